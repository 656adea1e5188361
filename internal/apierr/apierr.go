package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed backend call
type Kind int

const (
	// KindAuthentication means the credential is missing, expired or rejected
	KindAuthentication Kind = iota + 1
	// KindForbidden means the credential is valid but the role may not perform the call
	KindForbidden
	// KindNotFound means the target record no longer exists
	KindNotFound
	// KindValidation means the backend rejected the payload
	KindValidation
	// KindNetwork means the call never produced a response
	KindNetwork
	// KindServer means the backend failed to process a well-formed call
	KindServer
)

// String returns the taxonomy name of the kind
func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AuthenticationFailure"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "ValidationFailure"
	case KindNetwork:
		return "NetworkFailure"
	case KindServer:
		return "ServerFailure"
	default:
		return "Unknown"
	}
}

// Error is a classified backend failure.
// No raw transport error crosses the gateway boundary without being wrapped in one.
type Error struct {
	Kind   Kind
	Status int    // HTTP status, zero for network failures
	Detail string // backend supplied detail, verbatim
	Cause  error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error
func New(kind Kind, status int, detail string) *Error {
	return &Error{Kind: kind, Status: status, Detail: detail}
}

// KindOf returns the kind of a classified error, or zero if err is not one
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// Is reports whether err is a classified error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsAuthentication reports whether err should invalidate the session
func IsAuthentication(err error) bool {
	return Is(err, KindAuthentication)
}

// FromTransport classifies an error raised before any response was received
func FromTransport(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	detail := ""
	var timeout interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
		detail = "request timed out"
	} else if errors.Is(err, context.Canceled) {
		detail = "request cancelled"
	}
	return &Error{Kind: KindNetwork, Detail: detail, Cause: err}
}

// FromResponse classifies a non-2xx response from its status and body
func FromResponse(status int, body []byte) *Error {
	detail := extractDetail(body)

	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindAuthentication, Status: status, Detail: detail}
	case status == http.StatusForbidden:
		return &Error{Kind: KindForbidden, Status: status, Detail: detail}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Detail: detail}
	case status >= 400 && status < 500:
		return &Error{Kind: KindValidation, Status: status, Detail: detail}
	default:
		return &Error{Kind: KindServer, Status: status, Detail: detail}
	}
}

// validationItem is one entry of a FastAPI request validation error list
type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}

		var items []validationItem
		if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				field := fieldFromLoc(item.Loc)
				if field == "" {
					parts = append(parts, item.Msg)
					continue
				}
				parts = append(parts, field+": "+item.Msg)
			}
			return strings.Join(parts, "; ")
		}
	}

	return envelope.Message
}

// fieldFromLoc drops the "body"/"query" prefix FastAPI puts on locations
func fieldFromLoc(loc []any) string {
	parts := make([]string, 0, len(loc))
	for i, p := range loc {
		s := fmt.Sprint(p)
		if i == 0 && (s == "body" || s == "query" || s == "path") {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

// UserMessage returns the text shown next to the action that failed
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Kind {
	case KindAuthentication:
		return "La sesión expiró o no es válida. Inicia sesión de nuevo."
	case KindForbidden:
		return "No tienes permisos para realizar esta acción."
	case KindNotFound:
		return "El registro ya no existe. Recarga la lista."
	case KindValidation:
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return "Los datos enviados no son válidos."
	case KindNetwork:
		return "No se pudo contactar al servidor. Intenta de nuevo."
	default:
		return "El servidor no pudo completar la operación. Intenta de nuevo."
	}
}
