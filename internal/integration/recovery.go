package integration

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// SafeCall runs fn and converts a panic into a *PanicError.
func SafeCall(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}

// SafeGo runs fn in a goroutine with panic recovery.
func SafeGo(fn func(), onPanic func(err error)) {
	go func() {
		if err := SafeCall(fn); err != nil && onPanic != nil {
			onPanic(err)
		}
	}()
}
