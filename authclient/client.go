// Package authclient talks to the TESLA backend: the unauthenticated auth
// endpoints (login, register, refresh) and a dispatcher that performs
// bearer-authenticated calls with a single transparent refresh-and-retry.
//
// Every operation reports failure as a *authmodel.ServerError.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tesla-access/tesla-client/authmodel"
	"github.com/tesla-access/tesla-client/internal/metrics"
	"github.com/tesla-access/tesla-client/internal/utils"
)

// Backend routes.
const (
	RouteLogin    = "/api/auth/login"
	RouteRegister = "/api/auth/register"
	RouteRefresh  = "/api/auth/refresh"
	RouteLogout   = "/api/auth/logout"
	RouteValid    = "/api/auth/valid"
	RouteWhoAmI   = "/api/auth/who-am-i"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"

	headerRequestID     = "X-Request-ID"
	defaultExpiryMarker = "token"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*authmodel.RefreshResponse, error)
}

var _ Refresher = (*Client)(nil)

// Client is the TESLA auth transport and request dispatcher. It holds no
// session state and is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       zerolog.Logger
	metrics      *metrics.Recorder
	expiryMarker string
	refresher    Refresher
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "authclient").Logger()
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithExpiryMarker sets the substring that marks an expired access token in
// an error body's msg field. Matching is case-insensitive.
func WithExpiryMarker(marker string) Option {
	return func(c *Client) {
		if marker != "" {
			c.expiryMarker = strings.ToLower(marker)
		}
	}
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   http.DefaultClient,
		logger:       zerolog.Nop(),
		expiryMarker: defaultExpiryMarker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UsingRefresher returns a copy of c whose dispatcher refreshes through r.
func (c *Client) UsingRefresher(r Refresher) *Client {
	cp := *c
	cp.refresher = r
	return &cp
}

func (c *Client) currentRefresher() Refresher {
	if c.refresher != nil {
		return c.refresher
	}
	return c
}

// rawResponse is what a single HTTP exchange produced.
type rawResponse struct {
	statusCode int
	status     string
	body       []byte
}

func (r *rawResponse) ok() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// send performs exactly one HTTP call. A non-empty bearer is sent as
// "Authorization: Bearer <bearer>".
func (c *Client) send(ctx context.Context, method, uri, bearer, contentType string, body any) (*rawResponse, error) {
	url := uri
	if strings.HasPrefix(uri, "/") {
		url = c.baseURL + uri
	}

	var bodyReader io.Reader
	if body != nil {
		var data []byte
		switch b := body.(type) {
		case []byte:
			data = b
		case string:
			data = []byte(b)
		default:
			var err error
			if data, err = json.Marshal(body); err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", utils.FirstNonEmpty(contentType, ContentTypeJSON))
	req.Header.Set(headerRequestID, requestID)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("uri", uri).Str("request_id", requestID).Msg("request failed")
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("uri", uri).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	return &rawResponse{statusCode: resp.StatusCode, status: resp.Status, body: respBody}, nil
}

// errorMessage picks the server's message, then the flask-jwt style msg,
// then the status text.
func errorMessage(r *rawResponse) string {
	var fields struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	_ = json.Unmarshal(r.body, &fields)
	return utils.FirstNonEmpty(fields.Message, fields.Msg, http.StatusText(r.statusCode), r.status)
}

func decodeBody[T any](body []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, &authmodel.ServerError{ErrorMessage: "invalid response body: " + err.Error(), Cause: err}
	}
	return &v, nil
}
