package models

import (
	"errors"
	"net/http"
)

// Reply is an HTTP status with the envelope code and message written for it
type Reply struct {
	Status int
	Code   int
	Msg    string
}

// CodeBook maps outcomes to a platform's numeric codes
type CodeBook struct {
	Platform   Platform
	Success    Reply
	MissingURL Reply
	Failure    Reply
	Internal   Reply

	// Kinds overrides Failure for specific error kinds
	Kinds map[ErrorKind]Reply

	// InternalDetail appends the error text to the internal reply message
	InternalDetail bool
}

// Formatter returns the envelope builder for the book's platform
func (b *CodeBook) Formatter() Formatter {
	return Formatter{Platform: b.Platform}
}

// Respond converts a parse result into an HTTP status and envelope
func (b *CodeBook) Respond(data interface{}, err error) (int, *APIResponse) {
	f := b.Formatter()
	if err == nil {
		return statusOr(b.Success.Status), f.Format(b.Success.Code, b.Success.Msg, data)
	}

	kind := KindOf(err)
	reply := b.replyFor(kind)
	detail := err.Error()

	var pe *ParseError
	if errors.As(err, &pe) {
		detail = pe.Msg
		if detail == "" && pe.Err != nil {
			detail = pe.Err.Error()
		}
		if pe.Msg != "" && kind != KindInternal {
			reply.Msg = pe.Msg
		}
		if pe.Code != 0 {
			reply.Code = pe.Code
		}
		if pe.Status != 0 {
			reply.Status = pe.Status
		}
	}
	if kind == KindInternal && b.InternalDetail && detail != "" {
		reply.Msg = reply.Msg + "：" + detail
	}

	return statusOr(reply.Status), f.Format(reply.Code, reply.Msg, nil)
}

// replyFor picks the reply for an error kind
func (b *CodeBook) replyFor(kind ErrorKind) Reply {
	if r, ok := b.Kinds[kind]; ok {
		return r
	}
	switch kind {
	case KindInput:
		return b.MissingURL
	case KindInternal:
		return b.Internal
	default:
		return b.Failure
	}
}

func statusOr(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
