package iface

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	UnknownError ErrorKind = iota
	ValidationError
	ResourceError
	InferenceError
	EncodingError
)

func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case ResourceError:
		return "resource"
	case InferenceError:
		return "inference"
	case EncodingError:
		return "encoding"
	default:
		return "unknown"
	}
}

// Error carries the kind of failure and the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind ErrorKind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownError
}
