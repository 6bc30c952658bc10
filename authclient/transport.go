package authclient

import (
	"context"
	"net/http"

	"github.com/tesla-access/tesla-client/authmodel"
)

// Login exchanges credentials for an access/refresh token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*authmodel.TokenPair, error) {
	if username == "" {
		return nil, authmodel.NewServerError("username required")
	}
	if password == "" {
		return nil, authmodel.NewServerError("password required")
	}

	resp, err := c.send(ctx, http.MethodPost, RouteLogin, "", ContentTypeJSON, authmodel.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("login error")
		return nil, authmodel.WrapServerError(err)
	}
	if !resp.ok() {
		msg := errorMessage(resp)
		c.logger.Warn().Int("status", resp.statusCode).Str("error", msg).Msg("login rejected")
		return nil, authmodel.NewServerError(msg)
	}
	return decodeBody[authmodel.TokenPair](resp.body)
}

// Register creates a new account. It does not log the account in.
func (c *Client) Register(ctx context.Context, username, password, firstName, lastName string) (*authmodel.StatusMessage, error) {
	switch {
	case username == "":
		return nil, authmodel.NewServerError("username required")
	case password == "":
		return nil, authmodel.NewServerError("password required")
	case firstName == "":
		return nil, authmodel.NewServerError("firstName required")
	case lastName == "":
		return nil, authmodel.NewServerError("lastName required")
	}

	resp, err := c.send(ctx, http.MethodPost, RouteRegister, "", ContentTypeJSON, authmodel.RegisterRequest{
		Username:  username,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("registration error")
		return nil, authmodel.WrapServerError(err)
	}
	if !resp.ok() {
		return nil, authmodel.NewServerError(errorMessage(resp))
	}
	return decodeBody[authmodel.StatusMessage](resp.body)
}

// RefreshAccessToken obtains a new access token. The refresh token itself is
// the bearer credential for this endpoint.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*authmodel.RefreshResponse, error) {
	if refreshToken == "" {
		return nil, authmodel.NewServerError("refreshToken required")
	}

	resp, err := c.send(ctx, http.MethodPost, RouteRefresh, refreshToken, ContentTypeJSON, authmodel.RefreshRequest{
		RefreshToken: refreshToken,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("refresh error")
		return nil, authmodel.WrapServerError(err)
	}
	if !resp.ok() {
		return nil, authmodel.NewServerError(errorMessage(resp))
	}
	refreshed, err := decodeBody[authmodel.RefreshResponse](resp.body)
	if err != nil {
		return nil, err
	}
	if refreshed.AccessToken == "" {
		return nil, authmodel.NewServerError("refresh response missing accessToken")
	}
	return refreshed, nil
}
