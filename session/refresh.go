package session

import (
	"context"

	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/authmodel"
	apperrors "github.com/tesla-access/tesla-client/internal/errors"
	"github.com/tesla-access/tesla-client/internal/metrics"
	"github.com/tesla-access/tesla-client/tokeninfo"
)

// Refresh exchanges the refresh token for a new access token. Concurrent
// refreshes for the same refresh token share one network call.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refreshToken, stopped := m.refreshToken, m.stopped
	m.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	_, err := m.refresh(ctx, refreshToken, metrics.TriggerManual)
	return err
}

// RefreshIfDue refreshes when a refresh token is held and the session is
// not logged in, the last refresh is older than the threshold, or the
// access token is about to expire. It reports whether a refresh ran.
func (m *Manager) RefreshIfDue(ctx context.Context) (bool, error) {
	m.mu.Lock()
	refreshToken := m.refreshToken
	due := m.refreshDueLocked()
	stopped := m.stopped
	m.mu.Unlock()

	if stopped {
		return false, ErrStopped
	}
	if !due {
		return false, nil
	}
	_, err := m.refresh(ctx, refreshToken, metrics.TriggerPeriodic)
	return true, err
}

func (m *Manager) refreshDueLocked() bool {
	if m.refreshToken == "" {
		return false
	}
	if !m.loggedIn {
		return true
	}
	now := m.now()
	if now.Sub(m.lastRefreshAt) >= m.threshold {
		return true
	}
	return m.accessClaims.ExpiresWithin(now, m.skew)
}

// refresh runs at most one network refresh per refresh token at a time;
// callers arriving while one is in flight wait for its result.
func (m *Manager) refresh(ctx context.Context, refreshToken, trigger string) (string, error) {
	if refreshToken == "" {
		return "", authmodel.WrapServerError(apperrors.ErrNoRefreshToken)
	}

	ch := m.refreshes.DoChan(refreshToken, func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx), refreshToken, trigger)
	})
	select {
	case r := <-ch:
		if r.Shared {
			m.metrics.Refresh(trigger, metrics.ResultShared)
		}
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken, trigger string) (string, error) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return "", ErrStopped
	}
	m.authenticating = true
	m.publishLocked()
	m.mu.Unlock()

	res, err := m.base.RefreshAccessToken(ctx, refreshToken)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return "", ErrStopped
	}
	m.authenticating = false
	m.loading = false

	if m.refreshToken != refreshToken {
		// logged out or logged in again while the refresh was in flight
		m.publishLocked()
		if err != nil {
			return "", err
		}
		return res.AccessToken, nil
	}

	if err != nil {
		m.metrics.Refresh(trigger, metrics.ResultFailure)
		m.logger.Warn().Err(err).Str("trigger", trigger).Msg("refresh failed, session cleared")
		m.accessToken = ""
		m.accessClaims = nil
		m.refreshToken = ""
		m.loggedIn = false
		m.publishLocked()
		return "", err
	}

	m.metrics.Refresh(trigger, metrics.ResultSuccess)
	m.logger.Debug().Str("trigger", trigger).Msg("access token refreshed")
	m.setAccessTokenLocked(res.AccessToken)
	m.loggedIn = true
	m.publishLocked()
	return res.AccessToken, nil
}

func (m *Manager) setAccessTokenLocked(accessToken string) {
	m.accessToken = accessToken
	claims, err := tokeninfo.Parse(accessToken)
	if err != nil {
		m.logger.Debug().Err(err).Msg("access token carries no readable claims")
	}
	m.accessClaims = claims
	m.lastRefreshAt = m.now()
}

// sharedRefresher routes dispatcher refreshes through the manager so they
// join any refresh already in flight and update the session.
type sharedRefresher struct {
	m *Manager
}

func (r sharedRefresher) RefreshAccessToken(ctx context.Context, refreshToken string) (*authmodel.RefreshResponse, error) {
	accessToken, err := r.m.refresh(ctx, refreshToken, metrics.TriggerDispatcher)
	if err != nil {
		return nil, err
	}
	return &authmodel.RefreshResponse{AccessToken: accessToken}, nil
}

var _ authclient.Refresher = sharedRefresher{}
