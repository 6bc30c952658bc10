package resources

import (
	"context"
	"net/http"

	"github.com/tesla-access/tesla-client/authmodel"
)

const usersPath = "/api/users"

type User struct {
	ID                  string `json:"id"`
	Username            string `json:"username"`
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	Role                string `json:"role"`
	Status              string `json:"status"`
	EMergeAccessLevel   string `json:"eMergeAccessLevel,omitempty"`
	CreatedAt           string `json:"createdAt,omitempty"`
	LastUpdatedAt       string `json:"lastUpdatedAt,omitempty"`
	LastUpdatedByUserID string `json:"lastUpdatedByUserId,omitempty"`
}

// UserInput is the body of a user create or update. Empty fields are left
// unchanged on update; Password is required on create only.
type UserInput struct {
	Username          string `json:"username"`
	Password          string `json:"password,omitempty"`
	FirstName         string `json:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty"`
	Role              string `json:"role,omitempty"`
	Status            string `json:"status,omitempty"`
	EMergeAccessLevel string `json:"eMergeAccessLevel,omitempty"`
}

// UserQuery adds the user-specific role filter to ListQuery.
type UserQuery struct {
	ListQuery
	Role string
}

type Users struct {
	caller Caller
}

func (u *Users) List(ctx context.Context, q UserQuery) ([]User, error) {
	v := q.values()
	setIf(v, "role", q.Role)
	out, err := get[struct {
		Users []User `json:"users"`
	}](ctx, u.caller, withQuery(usersPath, v))
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (u *Users) Get(ctx context.Context, id string) (*User, error) {
	uri, err := itemPath(usersPath, id)
	if err != nil {
		return nil, err
	}
	return get[User](ctx, u.caller, uri)
}

func (u *Users) Create(ctx context.Context, in UserInput) (*User, error) {
	switch {
	case in.Username == "":
		return nil, authmodel.NewServerError("username required")
	case in.Password == "":
		return nil, authmodel.NewServerError("password required")
	}
	return send[User](ctx, u.caller, http.MethodPost, usersPath, in)
}

func (u *Users) Update(ctx context.Context, id string, in UserInput) (*User, error) {
	if in.Username == "" {
		return nil, authmodel.NewServerError("username required")
	}
	return put[User](ctx, u.caller, usersPath, id, in)
}

// Archive marks the user archived; the record is kept.
func (u *Users) Archive(ctx context.Context, id string) error {
	uri, err := itemPath(usersPath, id)
	if err != nil {
		return err
	}
	_, err = archive(ctx, u.caller, uri)
	return err
}
