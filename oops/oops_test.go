package oops

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel")

type kindError struct {
	kind string
}

func (e *kindError) Error() string {
	return e.kind
}

func TestWrapKeepsIdentity(t *testing.T) {
	wrapped := Wrap(errSentinel)
	require.ErrorIs(t, wrapped, errSentinel)
	require.Equal(t, "sentinel", Message(wrapped))
	require.Contains(t, wrapped.Error(), "oops_test.go")

	require.Same(t, wrapped, Wrap(wrapped))
	require.Nil(t, Wrap(nil))
	require.Nil(t, Wrapf(nil, "context"))
}

func TestWrapfAndAs(t *testing.T) {
	inner := &kindError{kind: "busy"}
	wrapped := Wrapf(inner, "running %s", "up")
	require.Equal(t, "running up: busy", Message(wrapped))

	var target *kindError
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, "busy", target.kind)

	outer := fmt.Errorf("outer: %w", wrapped)
	require.True(t, strings.HasPrefix(Message(outer), "outer: running up: busy"))
}

func TestNewf(t *testing.T) {
	err := Newf("migration %s not found", "20241112184512")
	require.Equal(t, "migration 20241112184512 not found", Message(err))
	require.NotEmpty(t, err.(*Error).StackTrace())
}

func TestWrapfNestedKeepsMessage(t *testing.T) {
	inner := Wrap(errSentinel)
	wrapped := Wrapf(inner, "20241112184512_MakeIsCommanderNullable.yaml")
	require.Equal(t, "20241112184512_MakeIsCommanderNullable.yaml: sentinel", Message(wrapped))
	require.NotContains(t, Message(wrapped), "\n")
	require.ErrorIs(t, wrapped, errSentinel)

	twice := Wrapf(wrapped, "release migration lock")
	require.Equal(t, "release migration lock: 20241112184512_MakeIsCommanderNullable.yaml: sentinel", Message(twice))
}
