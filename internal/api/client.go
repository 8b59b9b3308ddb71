// Package api performs requests against the Taskify backend, handling bearer
// credentials and a single refresh-and-retry cycle on 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"taskify/internal/session"
)

// RequestIDHeader carries a per-operation correlation id.
const RequestIDHeader = "X-Request-ID"

// maxRetries bounds re-authentication per logical operation.
const maxRetries = 1

// Authenticator supplies bearer tokens and refreshes them.
type Authenticator interface {
	// TokenContext returns a usable access token, refreshing first when the
	// current one is known to be expired.
	TokenContext(ctx context.Context) (*oauth2.Token, error)

	// Refresh exchanges the stored refresh token and reports the new state.
	Refresh(ctx context.Context) (session.State, error)
}

// Client talks to the backend. It never touches the task cache; callers
// translate responses into cache actions.
type Client struct {
	baseURL string
	http    *http.Client
	auth    Authenticator
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log.Named("api") }
}

// New returns a Client for baseURL. Without an Authenticator only public
// requests succeed; see WithAuthenticator.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithAuthenticator returns a copy of c that sends authenticated requests
// through a.
func (c *Client) WithAuthenticator(a Authenticator) *Client {
	cp := *c
	cp.auth = a
	return &cp
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Do performs req. A 401 on an authenticated request triggers one refresh;
// the buffered request is replayed at most once. Other non-2xx replies are
// returned as *ValidationError, transport failures as *NetworkError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	reqID := uuid.NewString()
	log := c.log.With(zap.String("request_id", reqID), zap.String("method", req.Method), zap.String("path", req.Path))

	if req.Auth && c.auth == nil {
		return nil, ErrNotLoggedIn
	}

	for retries := 0; ; retries++ {
		tok := req.Token
		if req.Auth {
			var err error
			tok, err = c.auth.TokenContext(ctx)
			if err != nil {
				return nil, err
			}
		}

		status, body, err := c.send(ctx, req, reqID, tok, log.With(zap.Int("attempt", retries+1)))
		if err != nil {
			return nil, err
		}

		if status == http.StatusUnauthorized && req.Auth {
			st, err := c.auth.Refresh(ctx)
			if err != nil {
				log.Warn("persisting refreshed session failed", zap.Error(err))
			}
			if retries >= maxRetries {
				return nil, ErrRepeatedAuthFailure
			}
			switch st.Kind() {
			case session.KindAuthenticated:
				log.Debug("retrying after token refresh")
				continue
			case session.KindUnavailable:
				return nil, &NetworkError{Op: "refresh session", Err: st.Cause()}
			default:
				return nil, ErrSessionExpired
			}
		}

		if status < 200 || status > 299 {
			return nil, decodeError(status, body, reqID)
		}
		return &Response{Status: status, Body: body, RequestID: reqID, Retries: retries}, nil
	}
}

func (c *Client) send(ctx context.Context, req Request, reqID string, tok *oauth2.Token, log *zap.Logger) (int, []byte, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return 0, nil, &NetworkError{Op: "build request", Err: err}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, reqID)
	if tok != nil {
		tok.SetAuthHeader(httpReq)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Debug("request failed", zap.Error(err))
		return 0, nil, &NetworkError{Op: fmt.Sprintf("%s %s", req.Method, req.Path), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{Op: "read response", Err: err}
	}
	log.Debug("request done", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, data, nil
}

// decodeError turns a non-2xx reply into a ValidationError, using the
// backend's {"error":{"message":...}} envelope when present.
func decodeError(status int, body []byte, reqID string) error {
	err := googleapi.CheckResponse(&http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
	})
	verr := &ValidationError{Status: status, RequestID: reqID}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		verr.Message = gerr.Message
	}
	if verr.Message == "" {
		verr.Message = plainMessage(body)
	}
	return verr
}

// plainMessage accepts the flat {"message":...} replies some endpoints send.
func plainMessage(body []byte) string {
	var flat struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat.Message
	}
	return ""
}
