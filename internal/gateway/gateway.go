package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/credential"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// maxBodySize bounds how much of a response body is read
const maxBodySize = 4 << 20

// Invalidator is told about authentication failures before they reach the caller
type Invalidator interface {
	Invalidate(ctx context.Context, cause error)
}

// Options configures a Gateway
type Options struct {
	// Environment is passed to Resolve on every call
	Environment string

	// Resolve returns the backend origin for an environment
	Resolve func(environment string) string

	// Store is read on every call to attach the credential
	Store credential.Store

	// Timeout bounds each call; zero means no timeout
	Timeout time.Duration

	// Transport is the underlying round tripper, http.DefaultTransport if nil
	Transport http.RoundTripper

	Logger zerolog.Logger
}

// Gateway is the single egress point for backend calls
type Gateway struct {
	environment string
	resolve     func(string) string
	client      *http.Client
	logger      zerolog.Logger

	mu          sync.RWMutex
	invalidator Invalidator
}

// New creates a gateway; the store and resolver are required
func New(opts Options) *Gateway {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Gateway{
		environment: opts.Environment,
		resolve:     opts.Resolve,
		logger:      opts.Logger,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &authTransport{
				base:   base,
				store:  opts.Store,
				logger: opts.Logger,
			},
		},
	}
}

// SetInvalidator registers who is told about authentication failures.
// The session controller needs the gateway to exist first, hence the setter.
func (g *Gateway) SetInvalidator(inv Invalidator) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidator = inv
}

// BaseOrigin returns the origin calls are sent to
func (g *Gateway) BaseOrigin() string {
	return g.resolve(g.environment)
}

// HTTPClient returns the client whose transport attaches the credential
func (g *Gateway) HTTPClient() *http.Client {
	return g.client
}

// Call describes one backend call
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Do performs a JSON call and decodes a successful response into out (if non-nil).
// Every failure is returned as an *apierr.Error.
func (g *Gateway) Do(ctx context.Context, call Call, out any) error {
	req, err := g.newRequest(ctx, call)
	if err != nil {
		// Nothing was sent; the call itself is unusable
		return &apierr.Error{Kind: apierr.KindValidation, Cause: err}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return apierr.FromTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return apierr.FromTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apierr.FromResponse(resp.StatusCode, body)
		if apiErr.Kind == apierr.KindAuthentication {
			g.invalidate(ctx, apiErr)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apierr.Error{
			Kind:   apierr.KindServer,
			Status: resp.StatusCode,
			Detail: "unexpected response body",
			Cause:  err,
		}
	}
	return nil
}

func (g *Gateway) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	target, err := url.Parse(g.BaseOrigin() + call.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}
	if len(call.Query) > 0 {
		target.RawQuery = call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		b, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (g *Gateway) invalidate(ctx context.Context, cause error) {
	g.mu.RLock()
	inv := g.invalidator
	g.mu.RUnlock()

	if inv == nil {
		return
	}
	g.logger.Warn().Err(cause).Msg("backend rejected the credential, invalidating session")
	inv.Invalidate(ctx, cause)
}

// PasswordLogin exchanges an identifier and secret for a bearer credential
// using the form-encoded OAuth2 password grant at tokenPath.
// A rejected login never invalidates the session.
func (g *Gateway) PasswordLogin(ctx context.Context, tokenPath, identifier, secret string) (string, error) {
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  g.BaseOrigin() + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	tok, err := conf.PasswordCredentialsToken(ctx, identifier, secret)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", apierr.FromResponse(retrieveErr.Response.StatusCode, retrieveErr.Body)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return "", apierr.FromTransport(err)
		}
		return "", &apierr.Error{Kind: apierr.KindServer, Detail: "invalid login response", Cause: err}
	}
	return tok.AccessToken, nil
}
