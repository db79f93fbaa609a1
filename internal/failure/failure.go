package failure

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure the way the presentation layer and the
// session lifecycle need to react to it.
type Kind string

const (
	KindValidation Kind = "validation" // missing/malformed input, caught before any remote call
	KindNotFound   Kind = "not_found"  // record/user could not be matched by value or key
	KindAuth       Kind = "auth"       // bad credentials, expired or invalid token
	KindPermission Kind = "permission" // non-admin attempting an admin operation
	KindTransport  Kind = "transport"  // service unreachable or response undecodable
	KindService    Kind = "service"    // service-reported failure that fits no other kind
)

// Messages used when the service gives nothing better.
const (
	MsgNetwork     = "Network error. Please try again."
	MsgMalformed   = "Malformed response from service"
	MsgLoginFailed = "Login failed"
	MsgNotLoggedIn = "Not logged in"
	MsgAdminOnly   = "Admin privileges required"
)

// Failure is the structured result every core operation returns instead of
// a bare error. Message is rendered verbatim; Err is kept for logging only.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is reports kind equality so errors.Is(err, failure.ErrAnonymous) and
// errors.Is(err, &Failure{Kind: KindAuth}) both work.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	if t.Message == "" {
		return f.Kind == t.Kind
	}
	return f.Kind == t.Kind && f.Message == t.Message
}

// ErrAnonymous is returned when an authenticated operation is attempted
// without a session. It never reaches the network.
var ErrAnonymous = &Failure{Kind: KindAuth, Message: MsgNotLoggedIn}

func New(kind Kind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) *Failure {
	return &Failure{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(message string) *Failure {
	if message == "" {
		message = "not found"
	}
	return &Failure{Kind: KindNotFound, Message: message}
}

func Auth(message string) *Failure {
	if message == "" {
		message = "authentication failed"
	}
	return &Failure{Kind: KindAuth, Message: message}
}

func Permission(message string) *Failure {
	if message == "" {
		message = MsgAdminOnly
	}
	return &Failure{Kind: KindPermission, Message: message}
}

// Transport wraps a network or decoding error behind the generic
// connectivity message.
func Transport(err error) *Failure {
	return &Failure{Kind: KindTransport, Message: MsgNetwork, Err: err}
}

func Service(message string, err error) *Failure {
	if message == "" {
		message = "service error"
	}
	return &Failure{Kind: KindService, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps a kind to the status code the service answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus classifies a failed service response. Some services report a
// missing record with a 500, so the message wins over the status for the
// not-found case.
func FromStatus(status int, message string) *Failure {
	switch message {
	case "Record not found", "User not found":
		return NotFound(message)
	}
	switch {
	case status == http.StatusUnauthorized:
		return Auth(message)
	case status == http.StatusForbidden:
		return Permission(message)
	case status == http.StatusNotFound:
		return NotFound(message)
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		if message == "" {
			message = "invalid request"
		}
		return &Failure{Kind: KindValidation, Message: message}
	default:
		return Service(message, nil)
	}
}
