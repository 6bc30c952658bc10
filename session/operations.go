package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/authmodel"
	"github.com/tesla-access/tesla-client/internal/metrics"
	"github.com/tesla-access/tesla-client/internal/utils"
	"github.com/tesla-access/tesla-client/kvstore"
	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned by authenticated operations when no access
// token is held.
var ErrNotAuthenticated = errors.New("not authenticated")

var _ oauth2.TokenSource = (*Manager)(nil)

func (m *Manager) credentials() (authclient.Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return authclient.Credentials{AccessToken: m.accessToken, RefreshToken: m.refreshToken}, m.stopped
}

// authorized returns the tokens for a bearer call, or why there are none.
func (m *Manager) authorized() (authclient.Credentials, error) {
	creds, stopped := m.credentials()
	switch {
	case stopped:
		return creds, ErrStopped
	case creds.AccessToken == "":
		return creds, ErrNotAuthenticated
	}
	return creds, nil
}

// Login authenticates with the backend, keeps both tokens in memory and
// persists the refresh token. On failure the previous tokens are kept but
// the session is no longer logged in.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	m.loggedIn = false
	m.authenticating = true
	m.publishLocked()
	m.mu.Unlock()

	pair, err := m.base.Login(ctx, username, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	m.authenticating = false
	if err != nil {
		m.publishLocked()
		return err
	}

	m.refreshToken = pair.RefreshToken
	m.setAccessTokenLocked(pair.AccessToken)
	m.loggedIn = true
	m.loading = false
	if err := m.store.Set(kvstore.RefreshTokenKey, pair.RefreshToken); err != nil {
		m.logger.Error().Err(err).Msg("unable to persist refresh token, session will not survive a restart")
	}
	m.publishLocked()
	m.logger.Info().Str("username", username).Msg("logged in")
	return nil
}

// Logout revokes the session server-side and always clears it locally,
// including the persisted refresh token. The server's error, if any, is
// returned after the local teardown.
func (m *Manager) Logout(ctx context.Context) error {
	creds, stopped := m.credentials()
	if stopped {
		return ErrStopped
	}

	var err error
	if creds.AccessToken != "" {
		_, err = m.client.Logout(ctx, creds)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = ""
	m.accessClaims = nil
	m.refreshToken = ""
	m.loggedIn = false
	m.authenticating = false
	if setErr := m.store.Set(kvstore.RefreshTokenKey, ""); setErr != nil {
		m.logger.Error().Err(setErr).Msg("unable to clear persisted refresh token")
	}
	m.publishLocked()
	if err != nil {
		m.logger.Warn().Err(err).Msg("server logout failed, local session cleared")
	}
	return err
}

// Call performs an authenticated request with the session's tokens. An
// access token refreshed along the way has already been applied to the
// session when Call returns.
func (m *Manager) Call(ctx context.Context, req authclient.Request) (*authclient.Result, error) {
	creds, err := m.authorized()
	if err != nil {
		return nil, err
	}
	return m.client.APIRequest(ctx, req, creds)
}

// WhoAmI returns the profile of the logged in user.
func (m *Manager) WhoAmI(ctx context.Context) (*authmodel.WhoAmI, error) {
	creds, err := m.authorized()
	if err != nil {
		return nil, err
	}
	out, err := m.client.WhoAmI(ctx, creds)
	return out.Value, err
}

// LoginValid asks the backend whether the session is still accepted.
func (m *Manager) LoginValid(ctx context.Context) bool {
	creds, err := m.authorized()
	if err != nil {
		return false
	}
	return m.client.LoginValid(ctx, creds).Value
}

// Token implements oauth2.TokenSource. An access token inside the expiry
// skew is refreshed first.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	refreshToken := m.refreshToken
	expiring := m.accessToken != "" && m.accessClaims.ExpiresWithin(m.now(), m.skew)
	missing := m.accessToken == ""
	m.mu.Unlock()

	if (expiring || missing) && refreshToken != "" {
		if _, err := m.refresh(context.Background(), refreshToken, metrics.TriggerTokenSource); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken: m.accessToken,
		TokenType:   "Bearer",
		Expiry:      utils.Value(m.accessClaims).ExpiresAt,
	}, nil
}

// HTTPClient returns a client that adds the session's bearer token to every
// request. It does not retry on expiry; use Call for that.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, m)
}
