package types

import (
	"errors"
	"fmt"
	"strings"
)

// UsageError is a caller or configuration mistake. It is reported back as data,
// never treated as a crash.
type UsageError struct {
	// ID is the offending image id, if any.
	ID string
	// Option is the offending option name, if any.
	Option  string
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// Usagef builds a UsageError for an image id
func Usagef(id, format string, args ...any) *UsageError {
	return &UsageError{ID: id, Message: fmt.Sprintf(format, args...)}
}

// UsageErrors is an ordered set of independent usage errors
type UsageErrors []*UsageError

func (e UsageErrors) Error() string {
	msgs := make([]string, len(e))
	for i, u := range e {
		msgs[i] = u.Message
	}
	return strings.Join(msgs, "\n")
}

// FatalError is an unexpected failure from an external capability or from the
// staging lifecycle. Unwrap exposes the original cause.
type FatalError struct {
	Op   string
	Path string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a FatalError unless it already is one
func Fatal(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Op: op, Path: path, Err: err}
}

// Kind classifies an error returned by the pipeline
type Kind int

const (
	KindNone Kind = iota
	KindUsage
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUsage:
		return "usage"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindOf classifies err. A chain holding any non-usage error is fatal, so an
// unknown error is never mistaken for user input.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch e := err.(type) {
	case *UsageError:
		return KindUsage
	case UsageErrors:
		if len(e) == 0 {
			return KindNone
		}
		return KindUsage
	case *FatalError:
		return KindFatal
	case interface{ Unwrap() []error }:
		kind := KindNone
		for _, inner := range e.Unwrap() {
			switch KindOf(inner) {
			case KindFatal:
				return KindFatal
			case KindUsage:
				kind = KindUsage
			case KindNone:
			}
		}
		return kind
	case interface{ Unwrap() error }:
		return KindOf(e.Unwrap())
	default:
		return KindFatal
	}
}

// UsageErrorsOf collects every usage error held by err, flattening joined errors
func UsageErrorsOf(err error) (UsageErrors, bool) {
	var out UsageErrors
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case nil:
		case *UsageError:
			out = append(out, e)
		case UsageErrors:
			out = append(out, e...)
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		}
	}
	walk(err)
	return out, len(out) > 0
}
