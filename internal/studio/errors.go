package studio

import (
	"context"
	"errors"
	"net/http"

	"github.com/AlexKimmel/BananaGate/internal/credential"
	"github.com/AlexKimmel/BananaGate/internal/genai"
)

type Kind int

const (
	KindUnknown Kind = iota
	AdmissionRejected
	MissingCredential
	CollaboratorCallFailed
	EmptyResult
	DownloadFailed
	PollTimeout
	Canceled
	InvalidInput
)

func (k Kind) String() string {
	switch k {
	case AdmissionRejected:
		return "admission_rejected"
	case MissingCredential:
		return "missing_credential"
	case CollaboratorCallFailed:
		return "collaborator_call_failed"
	case EmptyResult:
		return "empty_result"
	case DownloadFailed:
		return "download_failed"
	case PollTimeout:
		return "poll_timeout"
	case Canceled:
		return "canceled"
	case InvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the failure reported to callers of the studio.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// classify maps a collaborator call failure onto the taxonomy.
func classify(msg string, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return newError(Canceled, msg, err)
	case errors.Is(err, credential.ErrMissing):
		return newError(MissingCredential, msg, err)
	case errors.Is(err, genai.ErrNoImage):
		return newError(EmptyResult, msg, err)
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return newError(AdmissionRejected, msg, err)
	}
	return newError(CollaboratorCallFailed, msg, err)
}
