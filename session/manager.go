// Package session owns the client's authentication state: the in-memory
// access token, the persisted refresh token, and the periodic refresher
// that keeps the access token fresh while the manager is running.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tesla-access/tesla-client/authclient"
	"github.com/tesla-access/tesla-client/internal/metrics"
	"github.com/tesla-access/tesla-client/kvstore"
	"github.com/tesla-access/tesla-client/tokeninfo"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshTick      = 60 * time.Second
	DefaultRefreshThreshold = 30 * time.Minute
	DefaultExpirySkew       = time.Minute
)

var (
	ErrAlreadyStarted = errors.New("session manager already started")
	ErrStopped        = errors.New("session manager stopped")
)

// Manager is the only writer of session state. It is safe for concurrent
// use.
type Manager struct {
	base   *authclient.Client // transport, refreshes directly
	client *authclient.Client // dispatcher, refreshes through the manager
	store  kvstore.Store

	logger    zerolog.Logger
	metrics   *metrics.Recorder
	tick      time.Duration
	threshold time.Duration
	skew      time.Duration
	now       func() time.Time

	refreshes singleflight.Group

	mu              sync.Mutex
	accessToken     string
	accessClaims    *tokeninfo.Claims // nil for opaque tokens
	refreshToken    string
	lastRefreshAt   time.Time
	loggedIn        bool
	loading         bool
	authenticating  bool
	started         bool
	stopped         bool
	cancel          context.CancelFunc
	done            chan struct{}
	subs            map[int]chan State
	nextSubID       int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshTick sets how often the periodic refresher wakes up.
func WithRefreshTick(d time.Duration) Option {
	return func(m *Manager) { m.tick = d }
}

// WithRefreshThreshold sets how old the access token may get before the
// periodic refresher replaces it.
func WithRefreshThreshold(d time.Duration) Option {
	return func(m *Manager) { m.threshold = d }
}

// WithExpirySkew refreshes early when the access token's exp claim is this
// close.
func WithExpirySkew(d time.Duration) Option {
	return func(m *Manager) { m.skew = d }
}

func WithNowTime(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger.With().Str("component", "session").Logger() }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// NewManager creates a Manager. Nothing is read from store until Start.
func NewManager(client *authclient.Client, store kvstore.Store, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, errors.New("session: client is required")
	}
	if store == nil {
		return nil, errors.New("session: store is required")
	}

	m := &Manager{
		base:      client,
		store:     store,
		logger:    zerolog.Nop(),
		tick:      DefaultRefreshTick,
		threshold: DefaultRefreshThreshold,
		skew:      DefaultExpirySkew,
		now:       time.Now,
		loading:   true,
		subs:      make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tick <= 0 {
		return nil, errors.New("session: refresh tick must be positive")
	}
	m.client = client.UsingRefresher(sharedRefresher{m: m})
	return m, nil
}

// Start hydrates the session from the store, attempts a silent refresh when
// a refresh token was persisted, and then starts the periodic refresher.
// The initial refresh runs before Start returns; its failure leaves the
// session unauthenticated but is not an error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.stopped:
		m.mu.Unlock()
		return ErrStopped
	case m.started:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	refreshToken, err := m.store.Get(kvstore.RefreshTokenKey)
	if err != nil {
		m.logger.Error().Err(err).Msg("unable to read persisted refresh token")
	}

	if refreshToken == "" {
		m.mu.Lock()
		m.loading = false
		m.publishLocked()
		m.mu.Unlock()
	} else {
		m.mu.Lock()
		m.refreshToken = refreshToken
		m.publishLocked()
		m.mu.Unlock()

		if _, err := m.refresh(ctx, refreshToken, metrics.TriggerStartup); err != nil {
			m.logger.Info().Err(err).Msg("silent refresh failed, login required")
		}
		m.mu.Lock()
		if m.loading && !m.stopped {
			m.loading = false
			m.publishLocked()
		}
		m.mu.Unlock()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		cancel()
		return ErrStopped
	}
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(loopCtx, m.done)
	return nil
}

// Stop cancels the periodic refresher and waits for it to exit. Requests
// already in flight are not cancelled, but their results are discarded.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.closeSubscribersLocked()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.logger.Debug().Msg("session manager stopped")
}

func (m *Manager) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RefreshIfDue(ctx); err != nil && !errors.Is(err, ErrStopped) {
				m.logger.Warn().Err(err).Msg("periodic refresh failed")
			}
		}
	}
}
