package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so callers branch on a kind instead of
// matching message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindUnauthorized
	KindConflict
	KindRemote
	KindDecode
	KindMedia
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindRemote:
		return "remote_error"
	case KindDecode:
		return "decode_error"
	case KindMedia:
		return "media_error"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind. An *Error matches its kind's sentinel
// under errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrRemote       = errors.New("remote error")
	ErrDecode       = errors.New("decode error")
	ErrMedia        = errors.New("media error")
)

var kindSentinels = map[ErrorKind]error{
	KindNotFound:     ErrNotFound,
	KindUnauthorized: ErrUnauthorized,
	KindConflict:     ErrConflict,
	KindRemote:       ErrRemote,
	KindDecode:       ErrDecode,
	KindMedia:        ErrMedia,
}

// Error is the structured error returned by the remote file client, the
// map adapter and the media helpers.
type Error struct {
	Kind       ErrorKind
	Op         string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}

	prefix := e.Op
	if e.Path != "" {
		prefix = fmt.Sprintf("%s %s", e.Op, e.Path)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d (%s): %s", prefix, e.StatusCode, e.Kind, msg)
	}
	return fmt.Sprintf("%s (%s): %s", prefix, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusConflict:
		return KindConflict
	default:
		return KindRemote
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func IsNotFound(err error) bool     { return IsKind(err, KindNotFound) }
func IsUnauthorized(err error) bool { return IsKind(err, KindUnauthorized) }
func IsConflict(err error) bool     { return IsKind(err, KindConflict) }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
