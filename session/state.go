package session

import (
	"time"

	"github.com/tesla-access/tesla-client/internal/utils"
)

// Status is the coarse authentication state shown to users.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "unauthenticated"
}

// State is a point-in-time view of the session. It never carries tokens.
type State struct {
	Status   Status
	LoggedIn bool

	// Loading is true until the first refresh attempt after Start completes.
	Loading bool

	HasRefreshToken      bool
	LastRefreshAt        time.Time
	AccessTokenExpiresAt time.Time
}

// stateLocked builds the current State. m.mu must be held.
func (m *Manager) stateLocked() State {
	s := State{
		LoggedIn:             m.loggedIn,
		Loading:              m.loading,
		HasRefreshToken:      m.refreshToken != "",
		LastRefreshAt:        m.lastRefreshAt,
		AccessTokenExpiresAt: utils.Value(m.accessClaims).ExpiresAt,
	}
	switch {
	case m.authenticating:
		s.Status = Authenticating
	case m.loggedIn:
		s.Status = Authenticated
	}
	return s
}

// Snapshot returns the current State.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Subscribe returns a channel that always holds the most recent State; a
// slow reader skips intermediate states. The current State is delivered
// immediately. The channel is closed by cancel or by Stop.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = ch
	ch <- m.stateLocked()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
}

// publishLocked replaces whatever each subscriber has not read yet with the
// current State. m.mu must be held.
func (m *Manager) publishLocked() {
	s := m.stateLocked()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (m *Manager) closeSubscribersLocked() {
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
