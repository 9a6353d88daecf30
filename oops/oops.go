package oops

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error carries the stack of the place it was created at. Error() prints the message followed by the
// stack, Message() prints just the message.
type Error struct {
	Inner StackTracer
}

func (err *Error) Error() string {
	st := err.StackTrace()
	var b strings.Builder
	for i, frame := range st {
		if i > 0 {
			fmt.Fprint(&b, "\n")
		}
		frameText, _ := frame.MarshalText()
		fmt.Fprint(&b, string(frameText))
	}
	return fmt.Sprintf("%+v\n%s", err.Inner.Error(), b.String())
}

func (err *Error) Message() string {
	return err.Inner.Error()
}

func (err *Error) Is(target error) bool {
	return errors.Is(err.Inner, target)
}

func (err *Error) As(target any) bool {
	return errors.As(err.Inner, target)
}

func (err *Error) Unwrap() error {
	return errors.Unwrap(err.Inner)
}

func (err *Error) StackTrace() errors.StackTrace {
	return err.Inner.StackTrace()
}

type StackTracer interface {
	Error() string
	StackTrace() errors.StackTrace
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}

	return &Error{
		Inner: errors.WithStack(err).(StackTracer),
	}
}

func Wrapf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}

	// Wrapping the inner error keeps the stack of an *Error out of the message
	if oopsErr, ok := err.(*Error); ok {
		err = oopsErr.Inner
	}
	inner := errors.Wrapf(err, format, a...)
	return &Error{
		Inner: errors.WithStack(inner).(StackTracer),
	}
}

func New(message string) error {
	err := errors.New(message)
	return &Error{
		Inner: errors.WithStack(err).(StackTracer),
	}
}

func Newf(format string, a ...any) error {
	err := fmt.Errorf(format, a...)
	return &Error{
		Inner: errors.WithStack(err).(StackTracer),
	}
}

// Message returns the error text without stack frames if err is an *Error.
func Message(err error) string {
	if oopsErr, ok := err.(*Error); ok {
		return oopsErr.Message()
	}
	return err.Error()
}
