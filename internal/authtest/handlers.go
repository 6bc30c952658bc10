package authtest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

var errUnknownUser = errors.New("unknown user")

func readAllAndRestore(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, err
}

func decodeJSON(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(r, &req) || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "missing username or password")
		return
	}
	u := s.users.authenticate(strings.TrimSpace(req.Username), req.Password)
	if u == nil {
		writeMessage(w, http.StatusUnauthorized, "bad username or password")
		return
	}
	access, refresh, err := s.issuePair(u)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": access, "refreshToken": refresh})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if !decodeJSON(r, &req) || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "missing username or password")
		return
	}
	_, created, err := s.users.add(strings.TrimSpace(req.Username), req.Password, req.FirstName, req.LastName, RoleUser)
	switch {
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, "an unknown error occurred")
	case !created:
		writeMessage(w, http.StatusConflict, "a user with that name already exists")
	default:
		writeMessage(w, http.StatusCreated, "user created")
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail, delay := s.failRefresh, s.refreshDelay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeMsg(w, http.StatusUnauthorized, errTokenRevoked.Error())
		return
	}

	p := principalFrom(r.Context())
	access, err := s.issueAccess(p.user)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

// handleLogout revokes both the presented access token and the refresh
// token named in the body.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.failLogout
	s.mu.Unlock()
	if fail {
		writeMessage(w, http.StatusInternalServerError, "an unknown error occurred")
		return
	}

	p := principalFrom(r.Context())
	s.revoked.add(p.token.id, p.token.expiresAt)

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if decodeJSON(r, &req) && req.RefreshToken != "" {
		s.RevokeRefreshToken(req.RefreshToken)
	}
	s.revoked.cleanup(s.tokens.now())
	writeMessage(w, http.StatusOK, "Refresh token successfully revoked")
}

func (s *Server) handleValid(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "valid")
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, principalFrom(r.Context()).user.profile())
}
