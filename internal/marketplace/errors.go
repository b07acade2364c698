package marketplace

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lootwatch/internal/services"
)

// Kind classifies a failed marketplace response.
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"
	KindInvalidQuery Kind = "invalid_query"
	KindAuthExpired  Kind = "auth_expired"
	KindUnknown      Kind = "unknown"
)

// invalidQueryMessage is the error message the trade API returns for rejected
// queries. Private leagues also answer with it once the session id expires.
const invalidQueryMessage = "Invalid query"

// APIError is returned for any non-2xx marketplace response.
type APIError struct {
	Kind    Kind
	Status  int
	Op      string
	Message string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("marketplace ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "failed (%s, status %d)", e.Kind, e.Status)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes the services marker matching the kind so loops can classify
// failures with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case KindInvalidQuery, KindAuthExpired:
		return services.ErrConfiguration
	default:
		return services.ErrTransient
	}
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func classify(op string, status int, body []byte) *APIError {
	var envelope errorEnvelope
	message := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		message = strings.TrimSpace(envelope.Error.Message)
	}
	if message == "" {
		message = strings.TrimSpace(http.StatusText(status))
	}

	apiErr := &APIError{Kind: KindUnknown, Status: status, Op: op, Message: message}
	switch {
	case status == http.StatusTooManyRequests:
		apiErr.Kind = KindRateLimited
	case strings.EqualFold(message, invalidQueryMessage):
		apiErr.Kind = KindInvalidQuery
		apiErr.Message = `received "Invalid query"; the POESESSID session id may be expired when searching a private league`
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.Kind = KindAuthExpired
		apiErr.Message = message + "; refresh the POESESSID session id"
	}
	return apiErr
}
