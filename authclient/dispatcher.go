package authclient

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tesla-access/tesla-client/authmodel"
	apperrors "github.com/tesla-access/tesla-client/internal/errors"
	"github.com/tesla-access/tesla-client/internal/metrics"
)

// Request describes one bearer-authenticated API call.
type Request struct {
	URI         string // absolute URL or path below the client's base URL
	Method      string
	Body        any    // JSON-encoded unless []byte or string
	ContentType string // defaults to application/json
}

// Credentials are the tokens a dispatch is allowed to use.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Result is the outcome of a dispatched call. Body is returned unmodified.
//
// RefreshedAccessToken is set when the dispatcher had to refresh the access
// token; the caller owns the session and must apply it. It can be set even
// when APIRequest also returns an error (the retried call failed).
type Result struct {
	Body                 []byte
	StatusCode           int
	RefreshedAccessToken string
}

// Refreshed reports whether a new access token was obtained.
func (r *Result) Refreshed() bool {
	return r != nil && r.RefreshedAccessToken != ""
}

// APIRequest performs req with creds.AccessToken as the bearer credential.
//
// When the response signals an expired access token, the refresh token is
// exchanged for a new access token once and the whole request is re-issued
// with it. A second expiry signal fails closed; there is no further retry.
func (c *Client) APIRequest(ctx context.Context, req Request, creds Credentials) (*Result, error) {
	switch {
	case req.URI == "":
		return nil, authmodel.NewServerError("uri required")
	case req.Method == "":
		return nil, authmodel.NewServerError("method required")
	case creds.AccessToken == "":
		return nil, authmodel.NewServerError("accessToken required")
	}

	res, expired, err := c.attempt(ctx, req, creds.AccessToken)
	if err != nil {
		c.metrics.Request(metrics.ResultFailure)
		return nil, err
	}
	if !expired {
		c.metrics.Request(metrics.ResultSuccess)
		return res, nil
	}

	c.logger.Info().Str("uri", req.URI).Msg("access token likely expired, refreshing")
	refreshed, err := c.currentRefresher().RefreshAccessToken(ctx, creds.RefreshToken)
	if err != nil {
		c.logger.Warn().Err(err).Str("uri", req.URI).Msg("unable to refresh access token")
		c.metrics.Request(metrics.ResultFailure)
		return nil, &authmodel.ServerError{ErrorMessage: apperrors.ErrRefreshFailed.Error(), Cause: err}
	}

	c.logger.Info().Str("uri", req.URI).Msg("access token refreshed, trying again")
	c.metrics.Retry()
	retried := &Result{RefreshedAccessToken: refreshed.AccessToken}

	res, expired, err = c.attempt(ctx, req, refreshed.AccessToken)
	if err != nil {
		c.metrics.Request(metrics.ResultFailure)
		return retried, err
	}
	if expired {
		c.logger.Warn().Str("uri", req.URI).Msg("refreshed access token rejected")
		c.metrics.Request(metrics.ResultFailure)
		return retried, &authmodel.ServerError{ErrorMessage: apperrors.ErrRepeatedExpiry.Error(), Cause: apperrors.ErrRepeatedExpiry}
	}

	c.metrics.Request(metrics.ResultSuccess)
	res.RefreshedAccessToken = refreshed.AccessToken
	return res, nil
}

// attempt issues the request once. expired reports an expiry signal, in
// which case res and err are nil.
func (c *Client) attempt(ctx context.Context, req Request, accessToken string) (res *Result, expired bool, err error) {
	resp, err := c.send(ctx, req.Method, req.URI, accessToken, req.ContentType, req.Body)
	if err != nil {
		return nil, false, authmodel.WrapServerError(err)
	}
	if c.isExpirySignal(resp) {
		return nil, true, nil
	}
	if !resp.ok() {
		return nil, false, authmodel.NewServerError(errorMessage(resp))
	}
	return &Result{Body: resp.body, StatusCode: resp.statusCode}, false, nil
}

// isExpirySignal looks for the expiry marker in the msg field of a failed
// response, either at the top level or nested under body.
func (c *Client) isExpirySignal(resp *rawResponse) bool {
	if resp.ok() {
		return false
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return false
	}
	if c.markedExpired(envelope["msg"]) {
		return true
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(envelope["body"], &body); err != nil {
		return false
	}
	return c.markedExpired(body["msg"])
}

// markedExpired reports whether raw is a JSON string containing the marker.
func (c *Client) markedExpired(raw json.RawMessage) bool {
	var msg string
	if len(raw) == 0 || json.Unmarshal(raw, &msg) != nil {
		return false
	}
	return strings.Contains(strings.ToLower(msg), c.expiryMarker)
}

// Decode unmarshals a JSON result body.
func Decode[T any](res *Result) (*T, error) {
	if res == nil {
		return nil, authmodel.NewServerError("empty result")
	}
	return decodeBody[T](res.Body)
}
