package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf).With("run_id", "abc")
	logger.Info().Str("version", "20241112184512").Msg("Applied")

	out := buf.String()
	require.Contains(t, out, `"run_id":"abc"`)
	require.Contains(t, out, `"version":"20241112184512"`)
	require.Contains(t, out, `"message":"Applied"`)
	require.Contains(t, out, `"time":`)
}
