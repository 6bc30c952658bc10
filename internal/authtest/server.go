// Package authtest runs an in-process TESLA backend for tests: the auth
// endpoints with real HS256 tokens, and the admin resources the client reads.
//
// Failure modes are switched on per test (expired access tokens, refresh or
// logout failures) and every request is recorded for assertions.
package authtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Paths served by the fake backend.
const (
	PathLogin    = "/api/auth/login"
	PathRegister = "/api/auth/register"
	PathRefresh  = "/api/auth/refresh"
	PathLogout   = "/api/auth/logout"
	PathValid    = "/api/auth/valid"
	PathWhoAmI   = "/api/auth/who-am-i"
)

// Seeded account, an admin.
const (
	DefaultUsername  = "admin"
	DefaultPassword  = "correct-horse"
	DefaultFirstName = "Ada"
	DefaultLastName  = "Admin"
)

// RecordedRequest is what the backend saw of one request.
type RecordedRequest struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	ContentType   string
	RequestID     string
	Body          []byte
}

// Server is a fake TESLA backend listening on a loopback address.
type Server struct {
	*httptest.Server

	tokens  *issuer
	revoked *revocations
	users   *userDirectory
	data    *resourceData

	mu           sync.Mutex
	requests     []RecordedRequest
	issuedAccess map[string]time.Time
	stale        map[string]bool
	alwaysExpire bool
	failRefresh  bool
	failLogout   bool
	refreshDelay time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokens.accessTTL = ttl }
}

// WithNow sets the clock used to issue and verify tokens.
func WithNow(now func() time.Time) Option {
	return func(s *Server) { s.tokens.now = now }
}

// New starts a backend seeded with the default admin account. Close it when
// done.
func New(opts ...Option) *Server {
	s := &Server{
		tokens: &issuer{
			secret:     []byte("tesla-test-secret"),
			accessTTL:  15 * time.Minute,
			refreshTTL: 30 * 24 * time.Hour,
			now:        time.Now,
		},
		revoked:      newRevocations(),
		users:        newUserDirectory(),
		data:         newResourceData(),
		issuedAccess: make(map[string]time.Time),
		stale:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, _, err := s.users.add(DefaultUsername, DefaultPassword, DefaultFirstName, DefaultLastName, RoleAdmin); err != nil {
		panic(err)
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, s.record)

	r.Post(PathLogin, s.handleLogin)
	r.Post(PathRegister, s.handleRegister)
	r.With(s.requireToken(tokenTypeRefresh)).Post(PathRefresh, s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken(tokenTypeAccess))

		r.Post(PathLogout, s.handleLogout)
		r.Get(PathValid, s.handleValid)
		r.Get(PathWhoAmI, s.handleWhoAmI)

		r.Route("/api/users", func(r chi.Router) {
			r.With(requireRole(RoleAdmin, RoleEditor)).Get("/", s.handleListUsers)
			r.With(requireRole(RoleAdmin)).Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.With(requireRole(RoleAdmin, RoleEditor)).Put("/{id}", s.handleUpdateUser)
			r.With(requireRole(RoleAdmin)).Delete("/{id}", s.handleArchiveUser)
		})
		r.Route("/api/accessCards", s.collectionRoutes(s.data.accessCards))
		r.Route("/api/accessNodes", s.collectionRoutes(s.data.accessNodes))
		r.Route("/api/devices", func(r chi.Router) {
			r.Use(requireRole(RoleAdmin))
			r.Post("/", s.handleCreateRecord(s.data.devices))
			r.Put("/{id}", s.handleUpdateRecord(s.data.devices))
			r.Delete("/{id}", s.handleDeleteDevice)
		})
		r.With(requireRole(RoleAdmin, RoleEditor)).Get("/api/reports/{kind}", s.handleReport)
	})
	return r
}

// ExpireAccessTokens makes every access token issued so far look expired.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti := range s.issuedAccess {
		s.stale[jti] = true
	}
}

// SetAlwaysExpire makes every access token look expired, including fresh ones.
func (s *Server) SetAlwaysExpire(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alwaysExpire = on
}

// FailRefresh makes the refresh endpoint reject every refresh token.
func (s *Server) FailRefresh(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = on
}

// FailLogout makes the logout endpoint answer 500.
func (s *Server) FailLogout(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = on
}

// SetRefreshDelay holds every refresh response for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// Calls counts the requests received for path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// TotalCalls counts every request received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every recorded request, oldest first.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// LastRequest returns the most recent request for path.
func (s *Server) LastRequest(path string) (RecordedRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

// IssueTokens logs username in without going through HTTP.
func (s *Server) IssueTokens(username string) (accessToken, refreshToken string, err error) {
	u := s.users.byUsername(username)
	if u == nil {
		return "", "", errUnknownUser
	}
	return s.issuePair(u)
}

// RevokeRefreshToken revokes a refresh token as logout would.
func (s *Server) RevokeRefreshToken(raw string) {
	if t, err := s.tokens.verify(raw, tokenTypeRefresh); err == nil {
		s.revoked.add(t.id, t.expiresAt)
	}
}

func (s *Server) issuePair(u *user) (string, string, error) {
	access, err := s.issueAccess(u)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.issue(u, tokenTypeRefresh, s.tokens.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh.raw, nil
}

func (s *Server) issueAccess(u *user) (string, error) {
	t, err := s.tokens.issue(u, tokenTypeAccess, s.tokens.accessTTL)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.issuedAccess[t.id] = t.expiresAt
	s.mu.Unlock()
	return t.raw, nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = readAllAndRestore(r)
		}
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

type principal struct {
	user  *user
	token *issuedToken
}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(ctxKey{}).(*principal)
	return p
}

// requireToken authenticates the bearer token, answering the way
// flask-jwt-extended does: {"msg": ...} with 401 or 422.
func (s *Server) requireToken(tokenType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeMsg(w, http.StatusUnauthorized, errMissingHeader.Error())
				return
			}

			t, err := s.tokens.verify(raw, tokenType)
			switch {
			case err == errWrongType && tokenType == tokenTypeAccess:
				writeMsg(w, http.StatusUnprocessableEntity, "Only non-refresh tokens are allowed")
				return
			case err == errWrongType:
				writeMsg(w, http.StatusUnprocessableEntity, "Only refresh tokens are allowed")
				return
			case err == errTokenExpired:
				writeMsg(w, http.StatusUnauthorized, err.Error())
				return
			case err != nil:
				writeMsg(w, http.StatusUnprocessableEntity, err.Error())
				return
			}

			if s.revoked.isRevoked(t.id) {
				writeMsg(w, http.StatusUnauthorized, errTokenRevoked.Error())
				return
			}
			if tokenType == tokenTypeAccess && s.accessStale(t.id) {
				writeMsg(w, http.StatusUnauthorized, errTokenExpired.Error())
				return
			}

			u := s.users.get(t.subject)
			if u == nil || u.status == StatusArchived {
				writeMsg(w, http.StatusUnauthorized, "User not found")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKey{}, &principal{user: u, token: t})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) accessStale(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alwaysExpire || s.stale[jti]
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := principalFrom(r.Context())
			for _, role := range roles {
				if p != nil && p.user.role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeMessage(w, http.StatusForbidden, "you do not have permission to access this resource")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeMessage is the application error/status shape.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeMsg is the token layer's error shape.
func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}
