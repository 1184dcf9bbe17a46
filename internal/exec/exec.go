package exec

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/tensorcheck/internal/ir"
	"github.com/roach88/tensorcheck/internal/trace"
)

// DefaultMaxSteps bounds the number of statements one execution may run.
const DefaultMaxSteps = 1 << 26

// MaxElements bounds the number of values one buffer may hold, lanes
// included.
const MaxElements = 1 << 32

// Args supplies a program's parameters and the initial contents of its
// buffers. Buffers without contents or a fill pattern start zeroed.
type Args struct {
	Params  map[string]int64
	Buffers map[string][]float64

	// Fills names a pattern per buffer (see Fill), applied when Buffers
	// has no entry for it.
	Fills map[string]string
}

// Result holds the argument buffers after execution, flattened row-major
// with the lanes of each element adjacent.
type Result struct {
	Buffers map[string][]float64
	Steps   int
}

// Option configures an execution.
type Option func(*machine)

// WithMaxSteps sets the statement quota.
func WithMaxSteps(n int) Option {
	return func(m *machine) {
		m.maxSteps = n
	}
}

// WithTracer routes the trace intrinsics to t.
func WithTracer(t *trace.Tracer) Option {
	return func(m *machine) {
		m.tracer = t
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *machine) {
		m.log = l
	}
}

type buffer struct {
	decl *ir.Buffer
	dims []int64
	data []float64
}

func (b *buffer) integer() bool {
	return b.decl.DType == ir.Int32 || b.decl.DType == ir.Int64
}

type machine struct {
	maxSteps int
	steps    int
	tracer   *trace.Tracer
	log      *slog.Logger

	env     map[string]value
	buffers map[string]*buffer
}

// Execute runs p sequentially. Loops of every kind run in order.
//
// An unguarded access faults only when its flat offset leaves the
// allocation; a failing bounds guard returns *BoundsError before the
// guarded access happens. On error the returned Result holds the buffers
// as they were when execution stopped.
func Execute(p *ir.Program, args Args, opts ...Option) (*Result, error) {
	m := &machine{
		maxSteps: DefaultMaxSteps,
		log:      slog.Default(),
		env:      make(map[string]value),
		buffers:  make(map[string]*buffer),
	}
	for _, opt := range opts {
		opt(m)
	}

	sizes := p.SizeParams()
	for _, name := range p.AllParams() {
		v, ok := args.Params[name]
		if !ok {
			return nil, newError(ErrCodeBadArgument, "missing parameter %s", name)
		}
		if v < 0 && slices.Contains(sizes, name) {
			return nil, newError(ErrCodeBadArgument, "size parameter %s is negative (%d)", name, v)
		}
		m.env[name] = intValue(v)
	}
	for name := range args.Buffers {
		if p.Buffer(name) == nil {
			return nil, newError(ErrCodeBadArgument, "unknown buffer %s", name)
		}
	}

	res := &Result{Buffers: make(map[string][]float64, len(p.Buffers))}
	for _, decl := range p.Buffers {
		b, err := m.allocate(decl)
		if err != nil {
			return nil, err
		}
		if init, ok := args.Buffers[decl.Name]; ok {
			if len(init) != len(b.data) {
				return nil, newError(ErrCodeBadArgument, "buffer %s holds %d values, want %d", decl.Name, len(init), len(b.data))
			}
			copy(b.data, init)
		} else if pattern, ok := args.Fills[decl.Name]; ok {
			if b.data, err = Fill(pattern, len(b.data)); err != nil {
				return nil, newError(ErrCodeBadArgument, "buffer %s: %v", decl.Name, err)
			}
		}
		m.buffers[decl.Name] = b
		res.Buffers[decl.Name] = b.data
	}

	err := m.stmt(p.Body)
	res.Steps = m.steps
	if ferr := m.tracer.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("flush trace: %w", ferr)
	}
	m.log.Debug("program executed", "program", p.Name, "steps", m.steps, "error", err)
	return res, err
}

func (m *machine) allocate(decl *ir.Buffer) (*buffer, error) {
	b := &buffer{decl: decl, dims: make([]int64, len(decl.Shape))}
	size := int64(decl.ElemLanes())
	for i, d := range decl.Shape {
		n, err := m.scalarInt(d)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, newError(ErrCodeBadArgument, "buffer %s dim %d has negative extent %d", decl.Name, i, n)
		}
		b.dims[i] = n
		if n != 0 && size > MaxElements/n {
			return nil, newError(ErrCodeBadArgument, "buffer %s exceeds %d elements", decl.Name, int64(MaxElements))
		}
		size *= n
	}
	b.data = make([]float64, size)
	return b, nil
}

func (m *machine) step() error {
	m.steps++
	if m.steps > m.maxSteps {
		return &RuntimeError{
			Code:    ErrCodeQuotaExceeded,
			Message: fmt.Sprintf("exceeded max steps (%d > %d)", m.steps, m.maxSteps),
			Details: map[string]string{
				"steps":     fmt.Sprintf("%d", m.steps),
				"max_steps": fmt.Sprintf("%d", m.maxSteps),
			},
		}
	}
	return nil
}

// bind sets a variable and returns the function restoring its previous
// binding.
func (m *machine) bind(name string, v value) func() {
	old, had := m.env[name]
	m.env[name] = v
	return func() {
		if had {
			m.env[name] = old
		} else {
			delete(m.env, name)
		}
	}
}

func (m *machine) stmt(s ir.Stmt) error {
	if s == nil {
		return nil
	}
	if err := m.step(); err != nil {
		return err
	}

	switch n := s.(type) {
	case *ir.For:
		lo, err := m.scalarInt(n.Min)
		if err != nil {
			return err
		}
		extent, err := m.scalarInt(n.Extent)
		if err != nil {
			return err
		}
		for i := int64(0); i < extent; i++ {
			restore := m.bind(n.Var, intValue(lo+i))
			err := m.stmt(n.Body)
			restore()
			if err != nil {
				return err
			}
		}
		return nil
	case *ir.LetStmt:
		v, err := m.eval(n.Value)
		if err != nil {
			return err
		}
		restore := m.bind(n.Var, v)
		defer restore()
		return m.stmt(n.Body)
	case *ir.IfThenElse:
		c, err := m.eval(n.Cond)
		if err != nil {
			return err
		}
		if c.all() {
			return m.stmt(n.Then)
		}
		return m.stmt(n.Else)
	case *ir.Block:
		for _, st := range n.Stmts {
			if err := m.stmt(st); err != nil {
				return err
			}
		}
		return nil
	case *ir.Store:
		return m.store(n)
	case *ir.Evaluate:
		_, err := m.eval(n.Value)
		return err
	case *ir.Allocate:
		b, err := m.allocate(n.Buffer)
		if err != nil {
			return err
		}
		old, had := m.buffers[n.Buffer.Name]
		m.buffers[n.Buffer.Name] = b
		err = m.stmt(n.Body)
		if had {
			m.buffers[n.Buffer.Name] = old
		} else {
			delete(m.buffers, n.Buffer.Name)
		}
		return err
	case *ir.ProducerConsumer:
		return m.stmt(n.Body)
	case *ir.Assert:
		c, err := m.eval(n.Cond)
		if err != nil {
			return err
		}
		if !c.all() {
			if n.Kind == ir.AssertBounds {
				return &BoundsError{Buffer: n.Buffer, Message: n.Message}
			}
			return newError(ErrCodeAssertionFailed, "%s", n.Message)
		}
		return m.stmt(n.Body)
	default:
		return newError(ErrCodeBadArgument, "unsupported statement %T", s)
	}
}

func (m *machine) eval(e ir.Expr) (value, error) {
	switch n := e.(type) {
	case *ir.IntImm:
		return intValue(n.Value), nil
	case *ir.FloatImm:
		return floatValue(n.Value), nil
	case *ir.StringImm:
		return value{kind: kindString, str: n.Value}, nil
	case *ir.Var:
		v, ok := m.env[n.Name]
		if !ok {
			return value{}, newError(ErrCodeBadArgument, "unbound variable %s", n.Name)
		}
		return v, nil
	case *ir.Binary:
		x, y, err := m.eval2(n.X, n.Y)
		if err != nil {
			return value{}, err
		}
		return arith(n.Op, x, y)
	case *ir.Compare:
		x, y, err := m.eval2(n.X, n.Y)
		if err != nil {
			return value{}, err
		}
		return compare(n.Op, x, y)
	case *ir.And:
		x, y, err := m.eval2(n.X, n.Y)
		if err != nil {
			return value{}, err
		}
		return logical(true, x, y)
	case *ir.Or:
		x, y, err := m.eval2(n.X, n.Y)
		if err != nil {
			return value{}, err
		}
		return logical(false, x, y)
	case *ir.Not:
		x, err := m.eval(n.X)
		if err != nil {
			return value{}, err
		}
		out := make([]bool, x.lanes())
		for i := range out {
			out[i] = x.intAt(i) == 0
		}
		return boolValue(out), nil
	case *ir.Ramp:
		base, err := m.scalarInt(n.Base)
		if err != nil {
			return value{}, err
		}
		stride, err := m.scalarInt(n.Stride)
		if err != nil {
			return value{}, err
		}
		out := make([]int64, n.Lanes)
		for i := range out {
			out[i] = base + int64(i)*stride
		}
		return intValue(out...), nil
	case *ir.Broadcast:
		v, err := m.eval(n.Value)
		if err != nil {
			return value{}, err
		}
		if v.lanes() != 1 {
			return value{}, newError(ErrCodeTypeMismatch, "broadcast of a %d-lane value", v.lanes())
		}
		if v.kind == kindFloat {
			out := make([]float64, n.Lanes)
			for i := range out {
				out[i] = v.floats[0]
			}
			return floatValue(out...), nil
		}
		out := make([]int64, n.Lanes)
		for i := range out {
			out[i] = v.ints[0]
		}
		return value{kind: v.kind, ints: out}, nil
	case *ir.Load:
		return m.load(n)
	case *ir.Call:
		return m.call(n)
	default:
		return value{}, newError(ErrCodeBadArgument, "unsupported expression %T", e)
	}
}

func (m *machine) eval2(x, y ir.Expr) (value, value, error) {
	a, err := m.eval(x)
	if err != nil {
		return value{}, value{}, err
	}
	b, err := m.eval(y)
	if err != nil {
		return value{}, value{}, err
	}
	return a, b, nil
}

func (m *machine) scalarInt(e ir.Expr) (int64, error) {
	v, err := m.eval(e)
	if err != nil {
		return 0, err
	}
	if v.lanes() != 1 || v.kind == kindString {
		return 0, newError(ErrCodeTypeMismatch, "%s is not a scalar integer", ir.ExprString(e))
	}
	return v.intAt(0), nil
}

func (m *machine) lookup(b *ir.Buffer) (*buffer, error) {
	buf, ok := m.buffers[b.Name]
	if !ok {
		return nil, newError(ErrCodeBadArgument, "unknown buffer %s", b.Name)
	}
	return buf, nil
}

// offsets returns the flat offset of the first value of each touched
// element, one per index lane.
func (m *machine) offsets(buf *buffer, indices []ir.Expr) ([]int64, error) {
	idx := make([]value, len(indices))
	lanes := 1
	for d, e := range indices {
		v, err := m.eval(e)
		if err != nil {
			return nil, err
		}
		if v.kind == kindFloat || v.kind == kindString {
			return nil, newError(ErrCodeTypeMismatch, "index %s of %s is not an integer", ir.ExprString(e), buf.decl.Name)
		}
		if v.lanes() != 1 && lanes != 1 && v.lanes() != lanes {
			return nil, newError(ErrCodeTypeMismatch, "indices of %s have mismatched lanes", buf.decl.Name)
		}
		lanes = max(lanes, v.lanes())
		idx[d] = v
	}

	elem := int64(buf.decl.ElemLanes())
	out := make([]int64, lanes)
	for l := range out {
		var flat int64
		for d, v := range idx {
			flat = flat*buf.dims[d] + v.intAt(l)
		}
		out[l] = flat * elem
	}
	for _, off := range out {
		if off < 0 || off+elem > int64(len(buf.data)) {
			return nil, &RuntimeError{
				Code:    ErrCodeMemoryFault,
				Message: fmt.Sprintf("access to %s at offset %d outside allocation of %d", buf.decl.Name, off, len(buf.data)),
				Details: map[string]string{
					"buffer": buf.decl.Name,
					"offset": fmt.Sprintf("%d", off),
					"size":   fmt.Sprintf("%d", len(buf.data)),
				},
			}
		}
	}
	return out, nil
}

func (m *machine) load(n *ir.Load) (value, error) {
	buf, err := m.lookup(n.Buffer)
	if err != nil {
		return value{}, err
	}
	offs, err := m.offsets(buf, n.Indices)
	if err != nil {
		return value{}, err
	}
	elem := int64(buf.decl.ElemLanes())
	if buf.integer() {
		out := make([]int64, 0, int64(len(offs))*elem)
		for _, off := range offs {
			for k := int64(0); k < elem; k++ {
				out = append(out, int64(buf.data[off+k]))
			}
		}
		return intValue(out...), nil
	}
	out := make([]float64, 0, int64(len(offs))*elem)
	for _, off := range offs {
		out = append(out, buf.data[off:off+elem]...)
	}
	return floatValue(out...), nil
}

func (m *machine) store(n *ir.Store) error {
	buf, err := m.lookup(n.Buffer)
	if err != nil {
		return err
	}
	offs, err := m.offsets(buf, n.Indices)
	if err != nil {
		return err
	}
	v, err := m.eval(n.Value)
	if err != nil {
		return err
	}
	elem := int64(buf.decl.ElemLanes())
	want := int(int64(len(offs)) * elem)
	if v.lanes() != 1 && v.lanes() != want {
		return newError(ErrCodeTypeMismatch, "store of %d lanes into %d lanes of %s", v.lanes(), want, buf.decl.Name)
	}
	for l, off := range offs {
		for k := int64(0); k < elem; k++ {
			x := v.floatAt(l*int(elem) + int(k))
			if buf.integer() {
				x = math.Trunc(x)
			}
			buf.data[off+k] = x
		}
	}
	return nil
}

func (m *machine) call(n *ir.Call) (value, error) {
	switch n.Name {
	case "likely":
		if len(n.Args) != 1 {
			return value{}, newError(ErrCodeBadArgument, "likely takes 1 argument, got %d", len(n.Args))
		}
		return m.eval(n.Args[0])
	case "abs", "sqrt", "exp":
		return m.unary(n)
	case "min", "max":
		if len(n.Args) != 2 {
			return value{}, newError(ErrCodeBadArgument, "%s takes 2 arguments, got %d", n.Name, len(n.Args))
		}
		x, y, err := m.eval2(n.Args[0], n.Args[1])
		if err != nil {
			return value{}, err
		}
		op := ir.OpMin
		if n.Name == "max" {
			op = ir.OpMax
		}
		return arith(op, x, y)
	case "trace":
		return m.traceExpr(n)
	case "trace_buffer":
		return m.traceBuffer(n)
	default:
		return value{}, newError(ErrCodeUnknownCall, "unknown intrinsic %s", n.Name)
	}
}

func (m *machine) unary(n *ir.Call) (value, error) {
	if len(n.Args) != 1 {
		return value{}, newError(ErrCodeBadArgument, "%s takes 1 argument, got %d", n.Name, len(n.Args))
	}
	x, err := m.eval(n.Args[0])
	if err != nil {
		return value{}, err
	}
	if n.Name == "abs" && x.kind == kindInt {
		out := make([]int64, x.lanes())
		for i := range out {
			out[i] = max(x.ints[i], -x.ints[i])
		}
		return intValue(out...), nil
	}
	out := make([]float64, x.lanes())
	for i := range out {
		switch n.Name {
		case "abs":
			out[i] = math.Abs(x.floatAt(i))
		case "sqrt":
			out[i] = math.Sqrt(x.floatAt(i))
		case "exp":
			out[i] = math.Exp(x.floatAt(i))
		}
	}
	return floatValue(out...), nil
}

// traceExpr implements trace("label", i, j, ..., value): it returns value
// and records label[i][j]=value.
func (m *machine) traceExpr(n *ir.Call) (value, error) {
	if len(n.Args) < 2 {
		return value{}, newError(ErrCodeBadArgument, "trace takes a label and a value")
	}
	label, ok := n.Args[0].(*ir.StringImm)
	if !ok {
		return value{}, newError(ErrCodeBadArgument, "trace label must be a string")
	}
	indices := make([]int64, 0, len(n.Args)-2)
	for _, a := range n.Args[1 : len(n.Args)-1] {
		i, err := m.scalarInt(a)
		if err != nil {
			return value{}, err
		}
		indices = append(indices, i)
	}
	v, err := m.eval(n.Args[len(n.Args)-1])
	if err != nil {
		return value{}, err
	}
	if v.lanes() == 1 && v.kind != kindString {
		m.tracer.Expr(label.Value, indices, v.floatAt(0), v.kind != kindFloat)
	}
	return v, nil
}

// traceBuffer implements trace_buffer("label", B), recording the contents
// of B once.
func (m *machine) traceBuffer(n *ir.Call) (value, error) {
	if len(n.Args) != 2 {
		return value{}, newError(ErrCodeBadArgument, "trace_buffer takes a label and a buffer")
	}
	label, ok := n.Args[0].(*ir.StringImm)
	if !ok {
		return value{}, newError(ErrCodeBadArgument, "trace_buffer label must be a string")
	}
	ref, ok := n.Args[1].(*ir.Var)
	if !ok {
		return value{}, newError(ErrCodeBadArgument, "trace_buffer needs a buffer name")
	}
	buf, ok := m.buffers[ref.Name]
	if !ok {
		return value{}, newError(ErrCodeBadArgument, "unknown buffer %s", ref.Name)
	}
	m.tracer.Buffer(ref.Name, label.Value, buf.dims, buf.data, buf.integer())
	return intValue(0), nil
}
