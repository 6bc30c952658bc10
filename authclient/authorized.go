package authclient

import (
	"context"
	"net/http"

	"github.com/tesla-access/tesla-client/authmodel"
)

// Refreshed pairs a value with the access token obtained while producing it.
type Refreshed[T any] struct {
	Value                T
	RefreshedAccessToken string
}

func refreshedFrom[T any](value T, res *Result) Refreshed[T] {
	r := Refreshed[T]{Value: value}
	if res != nil {
		r.RefreshedAccessToken = res.RefreshedAccessToken
	}
	return r
}

// Logout revokes the refresh token server-side. It goes through the
// dispatcher so an expired access token is refreshed before the call is
// retried.
func (c *Client) Logout(ctx context.Context, creds Credentials) (Refreshed[*authmodel.StatusMessage], error) {
	res, err := c.APIRequest(ctx, Request{
		URI:    RouteLogout,
		Method: http.MethodPost,
		Body:   authmodel.RefreshRequest{RefreshToken: creds.RefreshToken},
	}, creds)
	if err != nil {
		c.logger.Error().Err(err).Msg("logout: unable to logout")
		return refreshedFrom[*authmodel.StatusMessage](nil, res), err
	}
	msg, err := Decode[authmodel.StatusMessage](res)
	return refreshedFrom(msg, res), err
}

// LoginValid reports whether the backend accepts the credentials.
func (c *Client) LoginValid(ctx context.Context, creds Credentials) Refreshed[bool] {
	res, err := c.APIRequest(ctx, Request{URI: RouteValid, Method: http.MethodGet}, creds)
	return refreshedFrom(err == nil, res)
}

// WhoAmI returns the profile of the authenticated user.
func (c *Client) WhoAmI(ctx context.Context, creds Credentials) (Refreshed[*authmodel.WhoAmI], error) {
	res, err := c.APIRequest(ctx, Request{URI: RouteWhoAmI, Method: http.MethodGet}, creds)
	if err != nil {
		return refreshedFrom[*authmodel.WhoAmI](nil, res), err
	}
	profile, err := Decode[authmodel.WhoAmI](res)
	return refreshedFrom(profile, res), err
}
