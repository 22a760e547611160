// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"
	"strings"
)

// ErrorKind is the machine-readable class of a media pipeline failure.
type ErrorKind string

const (
	KindUnsupportedFormat  ErrorKind = "UnsupportedFormat"
	KindInvalidPath        ErrorKind = "InvalidPath"
	KindTranscode          ErrorKind = "TranscodeError"
	KindNotFound           ErrorKind = "NotFound"
	KindStorage            ErrorKind = "StorageError"
	KindCatalogWriteFailed ErrorKind = "CatalogWriteFailed"
	KindBusy               ErrorKind = "Busy"
)

// Reason refines a kind where operators need to act differently.
type Reason string

const (
	ReasonTimeout       Reason = "Timeout"
	ReasonEncoderFailed Reason = "EncoderFailed"
	ReasonNoRecord      Reason = "NoRecord"
	ReasonFileMissing   Reason = "FileMissing"
)

// Error is the only error shape that crosses a module boundary.
type Error struct {
	Op     string // operation, e.g. "ingest.transcode"
	Kind   ErrorKind
	Reason Reason
	Detail string // operator-facing detail such as encoder stderr
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString("{")
		b.WriteString(string(e.Reason))
		b.WriteString("}")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind, and by reason when the sentinel has one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrUnsupportedFormat  = &Error{Kind: KindUnsupportedFormat}
	ErrInvalidPath        = &Error{Kind: KindInvalidPath}
	ErrTranscode          = &Error{Kind: KindTranscode}
	ErrTimeout            = &Error{Kind: KindTranscode, Reason: ReasonTimeout}
	ErrEncoderFailed      = &Error{Kind: KindTranscode, Reason: ReasonEncoderFailed}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrNoRecord           = &Error{Kind: KindNotFound, Reason: ReasonNoRecord}
	ErrFileMissing        = &Error{Kind: KindNotFound, Reason: ReasonFileMissing}
	ErrStorage            = &Error{Kind: KindStorage}
	ErrCatalogWriteFailed = &Error{Kind: KindCatalogWriteFailed}
	ErrBusy               = &Error{Kind: KindBusy}
)

// E builds an Error.
func E(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// EReason builds an Error with a reason.
func EReason(op string, kind ErrorKind, reason Reason, err error) *Error {
	return &Error{Op: op, Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) Reason {
	var me *Error
	if errors.As(err, &me) {
		return me.Reason
	}
	return ""
}
