// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package herr defines the error taxonomy used throughout hoard. Every
// error that crosses a component boundary is wrapped in a *Error so the
// CLI can choose an exit code without re-parsing error strings.
package herr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purpose of choosing an exit code and a
// recovery strategy.
type Kind int

const (
	// Unknown is the zero value; it should not normally escape a component.
	Unknown Kind = iota

	// ConfigParse reports a malformed config file or an unknown key.
	ConfigParse

	// ConfigSemantic reports an exclusivity conflict, a cyclic default, or a
	// forbidden AND on os/hostname.
	ConfigSemantic

	// EnvVarMissing reports an interpolated variable with no value and no
	// default.
	EnvVarMissing

	// AmbiguousCondition reports two or more equally-precedent condition
	// strings matching the active environment set.
	AmbiguousCondition

	// LastPathsMismatch reports that a pile's resolved path differs from the
	// path recorded in the last local operation.
	LastPathsMismatch

	// RemoteOperation reports that another host has changed the hoard more
	// recently than this host's last operation.
	RemoteOperation

	// UnexpectedChange reports that a tracked path was modified outside the
	// tool since the last operation.
	UnexpectedChange

	// IoFailure wraps any filesystem error, with path context attached.
	IoFailure

	// EditorExit reports a non-zero exit status from the external editor.
	EditorExit

	// LockHeld reports that another hoard invocation already holds the
	// advisory lock for this host.
	LockHeld
)

// Consistency reports whether k is one of the three check-failure kinds
// that together make up "Consistency" in spec terms.
func (k Kind) Consistency() bool {
	switch k {
	case LastPathsMismatch, RemoteOperation, UnexpectedChange:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case ConfigParse:
		return "ConfigParse"
	case ConfigSemantic:
		return "ConfigSemantic"
	case EnvVarMissing:
		return "EnvVarMissing"
	case AmbiguousCondition:
		return "AmbiguousCondition"
	case LastPathsMismatch:
		return "LastPathsMismatch"
	case RemoteOperation:
		return "RemoteOperation"
	case UnexpectedChange:
		return "UnexpectedChange"
	case IoFailure:
		return "IoFailure"
	case EditorExit:
		return "EditorExit"
	case LockHeld:
		return "LockHeld"
	default:
		return "Unknown"
	}
}

// ExitCode maps k to the process exit code assigned to its category:
// 1 for config errors, 2 for ambiguity and check failures, 3 for I/O
// failures and a held lock, 4 for editor failures. Unknown also maps to 1.
func (k Kind) ExitCode() int {
	switch k {
	case ConfigParse, ConfigSemantic, EnvVarMissing:
		return 1
	case AmbiguousCondition, LastPathsMismatch, RemoteOperation, UnexpectedChange:
		return 2
	case IoFailure:
		return 3
	case EditorExit:
		return 4
	case LockHeld:
		return 3
	default:
		return 1
	}
}

// Error is the concrete error type carried across component boundaries. It
// always has a Kind and a message; Path and Pile are filled in where the
// creation site has that context.
type Error struct {
	Kind Kind
	Msg  string

	// Path is the filesystem or pile-relative path implicated, if any.
	Path string
	// Pile is the pile identifier implicated, if any.
	Pile string
	// Hoard is the hoard name implicated, if any.
	Hoard string

	Err error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Hoard != "" {
		msg = fmt.Sprintf("[hoard %q] %s", e.Hoard, e.Msg)
	}
	if e.Pile != "" {
		msg = fmt.Sprintf("%s [pile %q]", msg, e.Pile)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s [path %q]", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an *Error of the given kind with a formatted message.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind wrapping err.
func Wrap(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithPath attaches path context and returns e for chaining.
func (e *Error) WithPath(path string) *Error { e.Path = path; return e }

// WithPile attaches pile context and returns e for chaining.
func (e *Error) WithPile(pile string) *Error { e.Pile = pile; return e }

// WithHoard attaches hoard context and returns e for chaining.
func (e *Error) WithHoard(hoard string) *Error { e.Hoard = hoard; return e }

// KindOf extracts the Kind of err if it is (or wraps) a *Error, else Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
