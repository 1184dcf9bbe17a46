package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tensorcheck", cmd.Use)
	assert.Contains(t, cmd.Long, "runtime guards")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"compile", "validate", "check", "lower", "run", "history", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"compile", []string{"output"}},
		{"check", []string{"program", "db"}},
		{"lower", []string{"program", "instrument-bound-checkers", "output"}},
		{"run", []string{"program", "param", "fill", "instrument-bound-checkers", "max-steps", "show"}},
		{"history", []string{"db", "program", "verdict", "limit"}},
		{"test", []string{"update", "filter", "golden"}},
	}
	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestInstrumentFlagDefaultsOff(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"lower", "run"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, "false", sub.Flags().Lookup("instrument-bound-checkers").DefValue)
	}
}

func TestFormatValidation(t *testing.T) {
	_, err := execute(t, "--format", "xml", "compile", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	quiet := (&RootOptions{}).Logger(&buf)
	quiet.Info("hidden")
	quiet.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	verbose := (&RootOptions{Verbose: true}).Logger(&buf)
	verbose.Debug("details", "buffer", "A")
	assert.Contains(t, buf.String(), "buffer=A")
}
