// Package apierror defines the HTTP error taxonomy and writes errors as {"message": "..."} JSON bodies.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	Generic Kind = iota
	NoToken
	InvalidToken
	Unauthorized
	NotFound
	BadRequest
	InvalidCredentials
	RegistrationDisabled
)

var kinds = map[Kind]struct {
	status  int
	message string
	name    string
}{
	Generic:              {http.StatusInternalServerError, "Something went wrong, please try again later", "generic"},
	NoToken:              {http.StatusUnauthorized, "Missing bearer token on authorization header", "no_token"},
	InvalidToken:         {http.StatusForbidden, "Invalid token, please log in again", "invalid_token"},
	Unauthorized:         {http.StatusForbidden, "You're not authorized to perform that action", "unauthorized"},
	NotFound:             {http.StatusNotFound, "Resource not found", "not_found"},
	BadRequest:           {http.StatusBadRequest, "Invalid request", "bad_request"},
	InvalidCredentials:   {http.StatusUnauthorized, "Invalid email or password.", "invalid_credentials"},
	RegistrationDisabled: {http.StatusForbidden, "Account creation is disabled for now", "registration_disabled"},
}

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	if v, ok := kinds[k]; ok {
		return v.status
	}
	return http.StatusInternalServerError
}

// Message returns the stable client-facing message for k.
func (k Kind) Message() string {
	if v, ok := kinds[k]; ok {
		return v.message
	}
	return kinds[Generic].message
}

// String returns a short snake_case name, used as a log field and metric attribute.
func (k Kind) String() string {
	if v, ok := kinds[k]; ok {
		return v.name
	}
	return "unknown"
}

// Error is an error with a Kind. Detail, when set, replaces the default message (BadRequest only).
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of kind k.
func New(k Kind) *Error { return &Error{Kind: k} }

// Wrap returns an *Error of kind k carrying cause.
func Wrap(k Kind, cause error) *Error { return &Error{Kind: k, Err: cause} }

// Invalid returns a BadRequest error whose message is detail.
func Invalid(detail string) *Error { return &Error{Kind: BadRequest, Detail: detail} }

// KindOf returns the Kind of err. Errors without a Kind are Generic.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}

// Body is the JSON error body.
type Body struct {
	Message string `json:"message"`
}

// Write writes err as a JSON error response and returns its Kind.
func Write(w http.ResponseWriter, err error) Kind {
	k := KindOf(err)
	msg := k.Message()
	var e *Error
	if k == BadRequest && errors.As(err, &e) && e.Detail != "" {
		msg = e.Detail
	}
	WriteJSON(w, k.Status(), Body{Message: msg})
	return k
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON request body into v. Unknown fields, trailing data and oversized bodies
// are a BadRequest.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return Invalid("invalid request body")
	}
	if dec.More() {
		return Invalid("invalid request body")
	}
	return nil
}
