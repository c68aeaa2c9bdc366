package auth

import (
	"errors"
	"strings"
)

// Kind classifies auth failures; the HTTP boundary maps each kind to a status.
type Kind int

const (
	KindUnknown        Kind = iota
	KindAuthentication      // bad credentials or inactive account (401)
	KindInvalidToken        // malformed, expired or wrongly signed token (401)
	KindAuthorization       // role mismatch (403)
	KindConflict            // duplicate email or username (409)
	KindValidation          // malformed input (400)
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindInvalidToken:
		return "invalid_token"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// Error is the typed error returned by the auth core.
type Error struct {
	Kind    Kind
	Message string
	// Fields names the offending inputs for conflict and validation errors.
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values of the same kind and message, so wrapped
// copies of the sentinels below still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrInvalidCredentials  = &Error{Kind: KindAuthentication, Message: "invalid credentials"}
	ErrAccountInactive     = &Error{Kind: KindAuthentication, Message: "account inactive"}
	ErrUnauthenticated     = &Error{Kind: KindAuthentication, Message: "authentication required"}
	ErrInvalidToken        = &Error{Kind: KindInvalidToken, Message: "invalid token"}
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidToken, Message: "invalid refresh token"}
	ErrForbidden           = &Error{Kind: KindAuthorization, Message: "forbidden"}
)

// ConflictError reports every unique field that is already taken.
func ConflictError(fields ...string) *Error {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f+" already in use")
	}
	return &Error{Kind: KindConflict, Message: strings.Join(msgs, "; "), Fields: fields}
}

// ValidationError reports malformed input.
func ValidationError(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
