package authclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/authmodel"
	"github.com/tesla-access/tesla-client/internal/authtest"
	"github.com/tesla-access/tesla-client/tokeninfo"
)

func newBackend(t *testing.T, opts ...authtest.Option) (*authtest.Server, *authclient.Client) {
	t.Helper()
	srv := authtest.New(opts...)
	t.Cleanup(srv.Close)
	return srv, authclient.New(srv.URL)
}

func TestLogin(t *testing.T) {
	srv, client := newBackend(t)
	ctx := context.Background()

	t.Run("returns both tokens", func(t *testing.T) {
		pair, err := client.Login(ctx, authtest.DefaultUsername, authtest.DefaultPassword)
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		claims, err := tokeninfo.Parse(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "access", claims.TokenType)

		req, ok := srv.LastRequest(authtest.PathLogin)
		require.True(t, ok)
		require.Empty(t, req.Authorization, "login sends no bearer")
		require.Equal(t, authclient.ContentTypeJSON, req.ContentType)
		require.NotEmpty(t, req.RequestID)
	})

	t.Run("wrong password is a server error", func(t *testing.T) {
		pair, err := client.Login(ctx, authtest.DefaultUsername, "nope")
		require.Nil(t, pair)
		require.EqualError(t, err, "bad username or password")
		require.True(t, authmodel.IsServerError(err))
	})

	t.Run("empty arguments fail locally", func(t *testing.T) {
		before := srv.TotalCalls()

		_, err := client.Login(ctx, "", "pw")
		require.EqualError(t, err, "username required")
		_, err = client.Login(ctx, "user", "")
		require.EqualError(t, err, "password required")
		require.True(t, authmodel.IsServerError(err))

		require.Equal(t, before, srv.TotalCalls())
	})
}

func TestRegister(t *testing.T) {
	srv, client := newBackend(t)
	ctx := context.Background()

	msg, err := client.Register(ctx, "grace", "hopper-pw", "Grace", "Hopper")
	require.NoError(t, err)
	require.Equal(t, "user created", msg.Message)

	_, err = client.Register(ctx, "grace", "hopper-pw", "Grace", "Hopper")
	require.EqualError(t, err, "a user with that name already exists")

	pair, err := client.Login(ctx, "grace", "hopper-pw")
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)

	t.Run("required fields are checked in order without a network call", func(t *testing.T) {
		before := srv.TotalCalls()
		cases := []struct {
			args []string
			want string
		}{
			{[]string{"", "", "", ""}, "username required"},
			{[]string{"u", "", "", ""}, "password required"},
			{[]string{"u", "p", "", ""}, "firstName required"},
			{[]string{"u", "p", "f", ""}, "lastName required"},
		}
		for _, tc := range cases {
			_, err := client.Register(ctx, tc.args[0], tc.args[1], tc.args[2], tc.args[3])
			require.EqualError(t, err, tc.want)
		}
		require.Equal(t, before, srv.TotalCalls())
	})
}

func TestRefreshAccessToken(t *testing.T) {
	srv, client := newBackend(t)
	ctx := context.Background()

	pair, err := client.Login(ctx, authtest.DefaultUsername, authtest.DefaultPassword)
	require.NoError(t, err)

	t.Run("refresh token is the bearer", func(t *testing.T) {
		res, err := client.RefreshAccessToken(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, res.AccessToken)
		require.NotEqual(t, pair.AccessToken, res.AccessToken)

		req, ok := srv.LastRequest(authtest.PathRefresh)
		require.True(t, ok)
		require.Equal(t, "Bearer "+pair.RefreshToken, req.Authorization)
		require.JSONEq(t, `{"refreshToken":"`+pair.RefreshToken+`"}`, string(req.Body))
	})

	t.Run("access token is refused as a refresh credential", func(t *testing.T) {
		_, err := client.RefreshAccessToken(ctx, pair.AccessToken)
		require.EqualError(t, err, "Only refresh tokens are allowed")
	})

	t.Run("empty refresh token fails locally", func(t *testing.T) {
		before := srv.Calls(authtest.PathRefresh)
		_, err := client.RefreshAccessToken(ctx, "")
		require.EqualError(t, err, "refreshToken required")
		require.Equal(t, before, srv.Calls(authtest.PathRefresh))
	})

	t.Run("rejected refresh", func(t *testing.T) {
		srv.FailRefresh(true)
		defer srv.FailRefresh(false)
		_, err := client.RefreshAccessToken(ctx, pair.RefreshToken)
		require.EqualError(t, err, "Token has been revoked")
	})
}

func TestNetworkFailureIsServerError(t *testing.T) {
	srv := authtest.New()
	url := srv.URL
	srv.Close()

	_, err := authclient.New(url).Login(context.Background(), "u", "p")
	require.Error(t, err)
	require.True(t, authmodel.IsServerError(err))
}
