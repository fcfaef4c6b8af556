package entity

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes regular users from the system user.
type Kind string

const (
	KindRegular Kind = "regular"
	KindSystem  Kind = "system"
)

// User is the aggregate root for user domain
// An empty ID means the user was never persisted. Username is the natural key
// and must not change once the user is stored.
type User struct {
	ID          string
	Username    string
	Fullname    string
	Enabled     bool
	Kind        Kind
	Details     UserDetails
	Roles       []Role
	Preferences []UserPreference
	// Passwords is the append-only credential history, oldest first.
	Passwords []*UserPassword
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a transient user with an unspecified kind. Repositories store
// an unspecified kind as KindRegular; on an existing user it keeps the stored kind.
func NewUser(username string) *User {
	return &User{Username: username, Enabled: true}
}

// NewSystemUser creates a transient system user holding exactly the system role.
func NewSystemUser(username string) *User {
	return &User{
		Username: username,
		Fullname: "System User",
		Enabled:  true,
		Kind:     KindSystem,
		Roles:    []Role{SystemRole()},
	}
}

func (u *User) IsNew() bool { return u.ID == "" }

func (u *User) IsSystem() bool { return u.Kind == KindSystem }

// SameIdentity reports whether both users denote the same account.
func (u *User) SameIdentity(o *User) bool {
	if u == nil || o == nil {
		return false
	}
	return u.Username == o.Username
}

// Validate checks the aggregate invariants that do not need storage.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidArgument)
	}
	switch u.Kind {
	case "", KindRegular:
		if u.HasRole(SystemRoleName) {
			return fmt.Errorf("%w: only the system user may hold the %s role", ErrInvalidArgument, SystemRoleName)
		}
	case KindSystem:
		if len(u.Roles) != 1 || !u.HasRole(SystemRoleName) {
			return fmt.Errorf("%w: system user must hold exactly the %s role", ErrInvalidArgument, SystemRoleName)
		}
	default:
		return fmt.Errorf("%w: unknown user kind %q", ErrInvalidArgument, u.Kind)
	}
	for _, p := range u.Preferences {
		if strings.TrimSpace(p.Key) == "" {
			return fmt.Errorf("%w: preference key is required", ErrInvalidArgument)
		}
		if p.Username != "" && p.Username != u.Username {
			return fmt.Errorf("%w: preference %q belongs to %q", ErrInvalidArgument, p.Key, p.Username)
		}
	}
	return nil
}

// CurrentPassword is the most recently accepted credential, nil if none.
func (u *User) CurrentPassword() *UserPassword {
	if len(u.Passwords) == 0 {
		return nil
	}
	return u.Passwords[len(u.Passwords)-1]
}

// SetPreference inserts or replaces the preference with the same key.
func (u *User) SetPreference(p UserPreference) {
	p.Username = u.Username
	for i := range u.Preferences {
		if u.Preferences[i].Key == p.Key {
			u.Preferences[i] = p
			return
		}
	}
	u.Preferences = append(u.Preferences, p)
}

// Preference looks up a preference by key.
func (u *User) Preference(key string) (UserPreference, bool) {
	for _, p := range u.Preferences {
		if p.Key == key {
			return p, true
		}
	}
	return UserPreference{}, false
}

// HasRole reports membership by role name.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with u. Credential values are immutable
// and therefore shared.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]Role(nil), u.Roles...)
	c.Preferences = append([]UserPreference(nil), u.Preferences...)
	c.Passwords = append([]*UserPassword(nil), u.Passwords...)
	if data, ok := u.Details.Image.Bytes(); ok && data != nil {
		c.Details.Image = LoadedImage(append([]byte(nil), data...))
	}
	return &c
}
