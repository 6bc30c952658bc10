package authtest

import (
	"cmp"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User roles and statuses known to the backend.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleUser   = "user"

	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
	StatusArchived  = "archived"
)

var (
	roles    = []string{RoleAdmin, RoleEditor, RoleUser}
	statuses = []string{StatusActive, StatusInactive, StatusSuspended, StatusArchived}
)

// userInput is the body of a user create or update.
type userInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

// invalid names the first enum field of in holding an unknown value.
func (in userInput) invalid() string {
	if in.Role != "" && !slices.Contains(roles, in.Role) {
		return "invalid role"
	}
	if in.Status != "" && !slices.Contains(statuses, in.Status) {
		return "invalid status"
	}
	return ""
}

type user struct {
	id           string
	username     string
	passwordHash string
	firstName    string
	lastName     string
	role         string
	status       string
}

func (u *user) profile() map[string]any {
	return map[string]any{
		"id":        u.id,
		"username":  u.username,
		"firstName": u.firstName,
		"lastName":  u.lastName,
	}
}

func (u *user) record() map[string]any {
	m := u.profile()
	m["role"] = u.role
	m["status"] = u.status
	return m
}

type userDirectory struct {
	mu    sync.RWMutex
	byID  map[string]*user
	names map[string]string
}

func newUserDirectory() *userDirectory {
	return &userDirectory{byID: make(map[string]*user), names: make(map[string]string)}
}

// add creates a user; ok is false when the username is taken.
func (d *userDirectory) add(username, password, firstName, lastName, role string) (u *user, ok bool, err error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.names[username]; exists {
		return nil, false, nil
	}
	u = &user{
		id:           uuid.New().String(),
		username:     username,
		passwordHash: hash,
		firstName:    firstName,
		lastName:     lastName,
		role:         role,
		status:       StatusActive,
	}
	d.byID[u.id] = u
	d.names[username] = u.id
	return u, true, nil
}

func (d *userDirectory) byUsername(username string) *user {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byID[d.names[username]]
}

func (d *userDirectory) authenticate(username, password string) *user {
	u := d.byUsername(username)
	if u == nil || u.status == StatusArchived || !checkPasswordHash(password, u.passwordHash) {
		return nil
	}
	return u
}

func (d *userDirectory) get(id string) *user {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byID[id]
}

func (d *userDirectory) archive(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if ok {
		u.status = StatusArchived
	}
	return ok
}

// update patches the non-empty fields of in and returns the updated record.
// found is false for an unknown id; taken is true when the new username
// belongs to another user.
func (d *userDirectory) update(id string, in userInput) (rec map[string]any, found, taken bool, err error) {
	var hash string
	if in.Password != "" {
		if hash, err = hashPassword(in.Password); err != nil {
			return nil, false, false, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, false, false, nil
	}
	if in.Username != "" && in.Username != u.username {
		if _, exists := d.names[in.Username]; exists {
			return nil, true, true, nil
		}
		delete(d.names, u.username)
		d.names[in.Username] = u.id
		u.username = in.Username
	}
	u.passwordHash = cmp.Or(hash, u.passwordHash)
	u.firstName = cmp.Or(in.FirstName, u.firstName)
	u.lastName = cmp.Or(in.LastName, u.lastName)
	u.role = cmp.Or(in.Role, u.role)
	u.status = cmp.Or(in.Status, u.status)
	return u.record(), true, false, nil
}

// list filters by role and status, hiding archived users unless a status is
// requested, and orders by username, firstName, lastName, role or status.
func (d *userDirectory) list(role, status, orderBy string, desc bool) []*user {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*user, 0, len(d.byID))
	for _, u := range d.byID {
		if role != "" && u.role != role {
			continue
		}
		if status != "" && u.status != status {
			continue
		}
		if status == "" && u.status == StatusArchived {
			continue
		}
		out = append(out, u)
	}

	key := func(u *user) string {
		switch orderBy {
		case "firstName":
			return u.firstName
		case "lastName":
			return u.lastName
		case "role":
			return u.role
		case "status":
			return u.status
		}
		return u.username
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return strings.Compare(key(out[i]), key(out[j])) > 0
		}
		return strings.Compare(key(out[i]), key(out[j])) < 0
	})
	return out
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
