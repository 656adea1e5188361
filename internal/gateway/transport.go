package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gestionnegocio/console/internal/credential"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries a per-call identifier for correlating console and backend logs
const RequestIDHeader = "X-Request-ID"

// authTransport attaches the stored credential to every outgoing request
type authTransport struct {
	base   http.RoundTripper
	store  credential.Store
	logger zerolog.Logger
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok, err := t.store.Get(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	// A RoundTripper must not modify the caller's request
	req = req.Clone(req.Context())
	if ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
		req.Header.Set(RequestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	event := t.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Bool("authenticated", ok && token != "").
		Dur("duration", time.Since(start))
	if err != nil {
		event.Err(err).Msg("backend call failed")
		return nil, err
	}
	event.Int("status", resp.StatusCode).Msg("backend call")
	return resp, nil
}
