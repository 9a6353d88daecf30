//go:build testing

package oops

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireNoError is require.NoError that also prints the stack of an oops.Error.
func RequireNoError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		return
	}

	sterr, ok := err.(*Error)
	if !ok {
		require.Fail(t, fmt.Sprintf("Received unexpected error:\n%+v", err), msgAndArgs...)
		return
	}

	var b strings.Builder
	for i, frame := range sterr.StackTrace() {
		if i > 0 {
			fmt.Fprint(&b, "\n")
		}
		frameText, err := frame.MarshalText()
		if err != nil {
			require.Fail(t, fmt.Sprintf("Received unexpected error:\n%+v", err), msgAndArgs...)
		}
		fmt.Fprint(&b, string(frameText))
	}

	message := fmt.Sprintf("Received unexpected error:\n%s\n%s", sterr.Message(), b.String())
	require.Fail(t, message, msgAndArgs...)
}
