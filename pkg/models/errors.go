package models

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a parse failure
type ErrorKind string

const (
	KindInput          ErrorKind = "input"
	KindResolution     ErrorKind = "resolution"
	KindFetch          ErrorKind = "fetch"
	KindExtractionMiss ErrorKind = "extraction_miss"
	KindUpstreamShape  ErrorKind = "upstream_shape"
	KindInternal       ErrorKind = "internal"
)

// ParseError is returned by platform parsers. Msg, Code and Status, when set,
// override the platform's default reply for the kind.
type ParseError struct {
	Kind     ErrorKind
	Platform Platform
	URL      string
	Msg      string
	Code     int
	Status   int
	Err      error
}

func (e *ParseError) Error() string {
	base := e.Msg
	if base == "" && e.Err != nil {
		base = e.Err.Error()
	}
	if base == "" {
		base = string(e.Kind)
	}
	if e.Platform != "" && e.URL != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Platform, base, e.URL)
	}
	if e.Platform != "" {
		return fmt.Sprintf("%s: %s", e.Platform, base)
	}
	return base
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError creates a parse error of the given kind
func NewParseError(kind ErrorKind, platform Platform, rawURL, msg string) *ParseError {
	return &ParseError{Kind: kind, Platform: platform, URL: rawURL, Msg: msg}
}

// WithCode sets the envelope code and returns the error
func (e *ParseError) WithCode(code int) *ParseError {
	e.Code = code
	return e
}

// WithStatus sets the HTTP status and returns the error
func (e *ParseError) WithStatus(status int) *ParseError {
	e.Status = status
	return e
}

// Wrap attaches a cause and returns the error
func (e *ParseError) Wrap(err error) *ParseError {
	e.Err = err
	return e
}

// ErrMissingURL is returned when a parser is handed an empty link
var ErrMissingURL = errors.New("missing url")

// KindOf reports the kind of err; timeouts and cancellations count as fetch failures
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *ParseError
	if errors.As(err, &pe) && pe.Kind != "" {
		return pe.Kind
	}
	if errors.Is(err, ErrMissingURL) {
		return KindInput
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFetch
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindFetch
	}
	return KindInternal
}
