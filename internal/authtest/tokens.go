package authtest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	errTokenExpired  = errors.New("Token has expired")
	errTokenRevoked  = errors.New("Token has been revoked")
	errWrongType     = errors.New("wrong token type")
	errBadSignature  = errors.New("Signature verification failed")
	errMissingHeader = errors.New("Missing Authorization Header")
)

// issuer signs and verifies HS256 tokens the way the TESLA backend does:
// a jti for revocation and a type claim separating access from refresh.
type issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type issuedToken struct {
	raw       string
	id        string
	subject   string
	expiresAt time.Time
}

func (i *issuer) issue(user *user, tokenType string, ttl time.Duration) (*issuedToken, error) {
	now := i.now()
	jti := uuid.New().String()
	exp := now.Add(ttl)
	claims := jwtlib.MapClaims{
		"sub":   user.id,
		"jti":   jti,
		"type":  tokenType,
		"roles": []string{user.role},
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return &issuedToken{raw: signed, id: jti, subject: user.id, expiresAt: exp}, nil
}

func (i *issuer) verify(raw, wantType string) (*issuedToken, error) {
	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(i.now), jwtlib.WithExpirationRequired())
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return nil, errTokenExpired
	case err != nil:
		return nil, errBadSignature
	}
	if tokenType, _ := claims["type"].(string); tokenType != wantType {
		return nil, errWrongType
	}

	t := &issuedToken{raw: raw}
	t.id, _ = claims["jti"].(string)
	t.subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t.expiresAt = exp.Time
	}
	return t, nil
}

// revocations holds the jtis of tokens that must be rejected until they
// would have expired anyway.
type revocations struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func newRevocations() *revocations {
	return &revocations{revoked: make(map[string]time.Time)}
}

func (r *revocations) add(jti string, exp time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = exp
}

func (r *revocations) isRevoked(jti string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.revoked[jti]
	return exists
}

func (r *revocations) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, exp := range r.revoked {
		if now.After(exp) {
			delete(r.revoked, jti)
		}
	}
}
