package authmodel

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// RefreshRequest is the body of POST /api/auth/refresh and /api/auth/logout.
// The refresh endpoint also expects the refresh token as the bearer credential.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is returned by a successful login.
type TokenPair struct {
	// AccessToken is the short-lived bearer credential (JWT). Never persisted.
	AccessToken string `json:"accessToken"`

	// RefreshToken is the long-lived credential kept in the key-value store.
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is returned by POST /api/auth/refresh.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// StatusMessage is the generic {message} success body.
type StatusMessage struct {
	Message string `json:"message"`
}

// WhoAmI is the profile returned by GET /api/auth/who-am-i.
type WhoAmI struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
