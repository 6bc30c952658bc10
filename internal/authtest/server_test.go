package authtest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tesla-access/tesla-client/internal/authtest"
)

func post(t *testing.T, url, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestExpiredAccessTokenIsRejectedLikeFlaskJWT(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	advance := func(d time.Duration) { now.Add(int64(d)) }
	clock := func() time.Time { return time.Unix(0, now.Load()) }
	srv := authtest.New(authtest.WithNow(clock), authtest.WithAccessTTL(time.Minute))
	defer srv.Close()

	access, refresh, err := srv.IssueTokens(authtest.DefaultUsername)
	require.NoError(t, err)

	resp, body := post(t, srv.URL+authtest.PathLogout, access, map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Refresh token successfully revoked", body["message"])

	advance(2 * time.Minute)
	access, _, err = srv.IssueTokens(authtest.DefaultUsername)
	require.NoError(t, err)
	advance(2 * time.Minute)

	resp, body = post(t, srv.URL+authtest.PathLogout, access, map[string]string{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Token has expired", body["msg"])
}

func TestRefreshEndpointWantsRefreshToken(t *testing.T) {
	srv := authtest.New()
	defer srv.Close()

	access, refresh, err := srv.IssueTokens(authtest.DefaultUsername)
	require.NoError(t, err)

	resp, body := post(t, srv.URL+authtest.PathRefresh, access, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "Only refresh tokens are allowed", body["msg"])

	resp, body = post(t, srv.URL+authtest.PathRefresh, refresh, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["accessToken"])

	resp, body = post(t, srv.URL+authtest.PathRefresh, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Missing Authorization Header", body["msg"])

	require.Equal(t, 3, srv.Calls(authtest.PathRefresh))
}
