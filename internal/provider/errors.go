package provider

import "fmt"

// Kind classifies a provider failure so callers can react to it.
type Kind int

const (
	KindAPI Kind = iota
	KindNetwork
	KindAuth
	KindContextLength
	KindUsage
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindContextLength:
		return "context_length"
	case KindUsage:
		return "usage"
	case KindRequest:
		return "request"
	default:
		return "api"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNetwork               = &Error{Kind: KindNetwork}
	ErrAuth                  = &Error{Kind: KindAuth}
	ErrContextLengthExceeded = &Error{Kind: KindContextLength}
	ErrAPI                   = &Error{Kind: KindAPI}
	ErrUsageMissing          = &Error{Kind: KindUsage, Message: "usage data missing from response"}
	ErrRequest               = &Error{Kind: KindRequest}
)

// Errorf builds an *Error of kind k.
func Errorf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of kind k around err.
func Wrap(k Kind, message string, err error) *Error {
	return &Error{Kind: k, Message: message, Err: err}
}
