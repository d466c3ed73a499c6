package cerberus

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorKind is the machine-readable code attached to a rejection.
type ErrorKind string

const (
	KindBlocked            ErrorKind = "BLOCKED"
	KindRateLimited        ErrorKind = "RATE_LIMITED"
	KindInvalidContentType ErrorKind = "INVALID_CONTENT_TYPE"
	KindPayloadTooLarge    ErrorKind = "PAYLOAD_TOO_LARGE"
	KindInvalidUserAgent   ErrorKind = "INVALID_USER_AGENT"
	KindMalformedJSON      ErrorKind = "MALFORMED_JSON"
)

var (
	ErrBlocked            = errors.New("ip is blocked")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInvalidContentType = errors.New("content type must be application/json")
	ErrPayloadTooLarge    = errors.New("request body too large")
	ErrInvalidUserAgent   = errors.New("missing or invalid user agent")
	ErrMalformedJSON      = errors.New("malformed json body")
)

var kindErrors = map[ErrorKind]error{
	KindBlocked:            ErrBlocked,
	KindRateLimited:        ErrRateLimited,
	KindInvalidContentType: ErrInvalidContentType,
	KindPayloadTooLarge:    ErrPayloadTooLarge,
	KindInvalidUserAgent:   ErrInvalidUserAgent,
	KindMalformedJSON:      ErrMalformedJSON,
}

var kindStatus = map[ErrorKind]int{
	KindBlocked:            http.StatusForbidden,
	KindRateLimited:        http.StatusTooManyRequests,
	KindInvalidContentType: http.StatusBadRequest,
	KindPayloadTooLarge:    http.StatusRequestEntityTooLarge,
	KindInvalidUserAgent:   http.StatusBadRequest,
	KindMalformedJSON:      http.StatusBadRequest,
}

// Rejection is a terminal decision for the current request.
type Rejection struct {
	Status  int
	Kind    ErrorKind
	Message string
	Context map[string]interface{}
}

func newRejection(kind ErrorKind, message string, context map[string]interface{}) *Rejection {
	return &Rejection{
		Status:  kindStatus[kind],
		Kind:    kind,
		Message: message,
		Context: context,
	}
}

func (r *Rejection) Error() string {
	return string(r.Kind) + ": " + r.Message
}

// Unwrap exposes the sentinel for errors.Is.
func (r *Rejection) Unwrap() error {
	return kindErrors[r.Kind]
}

// Body renders the JSON response: {"error": ..., "code": ..., ...context}.
func (r *Rejection) Body() gin.H {
	body := gin.H{}
	for k, v := range r.Context {
		body[k] = v
	}
	body["error"] = r.Message
	body["code"] = string(r.Kind)
	return body
}
