package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

// Tracer writes trace records. A nil *Tracer discards everything.
type Tracer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	seen   map[string]bool
}

// New returns a tracer writing to w.
func New(w io.Writer) *Tracer {
	return &Tracer{w: bufio.NewWriter(w), seen: make(map[string]bool)}
}

// Open returns the tracer described by f: nil when tracing is off, the
// log file opened for append when one is named, stdout otherwise.
func Open(f Flags) (*Tracer, error) {
	if !f.ProcessTracing {
		return nil, nil
	}
	if f.LogFile == "" {
		return New(os.Stdout), nil
	}
	file, err := os.OpenFile(f.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace log: %w", err)
	}
	t := New(file)
	t.closer = file
	return t, nil
}

// Expr records one traced value as label[i][j]=value.
func (t *Tracer) Expr(label string, indices []int64, value float64, integer bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.w.WriteString(label)
	for _, idx := range indices {
		fmt.Fprintf(t.w, "[%d]", idx)
	}
	t.w.WriteByte('=')
	t.w.WriteString(formatValue(value, integer))
	t.w.WriteByte('\n')
}

// Buffer records the contents of a buffer as "label[d0][d1] v v v".
// Each buffer name is written at most once per tracer.
func (t *Tracer) Buffer(name, label string, shape []int64, data []float64, integer bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen[name] {
		return
	}
	t.seen[name] = true

	t.w.WriteString(label)
	for _, d := range shape {
		fmt.Fprintf(t.w, "[%d]", d)
	}
	for _, v := range data {
		t.w.WriteByte(' ')
		t.w.WriteString(formatValue(v, integer))
	}
	t.w.WriteByte('\n')
}

// Flush writes buffered records.
func (t *Tracer) Flush() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Flush()
}

// Close flushes and closes the log file, if the tracer owns one.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	err := t.Flush()
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func formatValue(v float64, integer bool) string {
	if integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
