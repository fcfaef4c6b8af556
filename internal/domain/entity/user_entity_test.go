package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u := NewUser("alice")
	assert.True(t, u.IsNew())
	assert.False(t, u.IsSystem())
	assert.True(t, u.Enabled)
	assert.Empty(t, u.Kind, "kind is left for the store to decide")
	assert.NoError(t, u.Validate())
}

func TestNewSystemUser(t *testing.T) {
	u := NewSystemUser("root")
	assert.True(t, u.IsNew())
	assert.True(t, u.IsSystem())
	require.Len(t, u.Roles, 1)
	assert.Equal(t, SystemRoleName, u.Roles[0].Name)
	assert.NoError(t, u.Validate())
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(u *User)
		wantErr bool
	}{
		{name: "valid", mutate: func(u *User) {}},
		{name: "blank username", mutate: func(u *User) { u.Username = "  " }, wantErr: true},
		{name: "unknown kind", mutate: func(u *User) { u.Kind = "robot" }, wantErr: true},
		{name: "empty kind is regular", mutate: func(u *User) { u.Kind = "" }},
		{name: "system with extra role", mutate: func(u *User) {
			u.Kind = KindSystem
			u.Roles = []Role{SystemRole(), {Name: "user"}}
		}, wantErr: true},
		{name: "system without role", mutate: func(u *User) { u.Kind = KindSystem }, wantErr: true},
		{name: "regular with system role", mutate: func(u *User) {
			u.Kind = KindRegular
			u.Roles = []Role{SystemRole()}
		}, wantErr: true},
		{name: "unspecified kind with system role", mutate: func(u *User) {
			u.Roles = []Role{{Name: "user"}, SystemRole()}
		}, wantErr: true},
		{name: "empty preference key", mutate: func(u *User) {
			u.Preferences = []UserPreference{{Key: ""}}
		}, wantErr: true},
		{name: "foreign preference", mutate: func(u *User) {
			u.Preferences = []UserPreference{{Username: "bob", Key: "k"}}
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUser("alice")
			tt.mutate(u)
			err := u.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUser_SameIdentity(t *testing.T) {
	a := NewUser("alice")
	b := NewUser("alice")
	b.ID = "some-id"
	assert.True(t, a.SameIdentity(b))
	assert.False(t, a.SameIdentity(NewUser("bob")))
	assert.False(t, a.SameIdentity(nil))
}

func TestUser_SetPreference(t *testing.T) {
	u := NewUser("alice")
	u.SetPreference(UserPreference{Key: "lang", Value: "en"})
	u.SetPreference(UserPreference{Key: "tz", Value: "UTC"})
	u.SetPreference(UserPreference{Key: "lang", Value: "de"})

	require.Len(t, u.Preferences, 2)
	p, ok := u.Preference("lang")
	require.True(t, ok)
	assert.Equal(t, "de", p.Value)
	assert.Equal(t, "alice", p.Username)

	_, ok = u.Preference("missing")
	assert.False(t, ok)
}

func TestUser_CurrentPassword(t *testing.T) {
	u := NewUser("alice")
	assert.Nil(t, u.CurrentPassword())

	p1, err := NewUserPassword("alice", "one")
	require.NoError(t, err)
	p2, err := NewUserPassword("alice", "two")
	require.NoError(t, err)
	u.Passwords = append(u.Passwords, p1, p2)
	assert.Same(t, p2, u.CurrentPassword())
}

func TestUser_HasRole(t *testing.T) {
	u := NewSystemUser("root")
	assert.True(t, u.HasRole(SystemRoleName))
	assert.False(t, u.HasRole("user"))
}

func TestUser_Clone(t *testing.T) {
	u := NewUser("alice")
	u.Roles = []Role{{Name: "user"}}
	u.SetPreference(UserPreference{Key: "lang", Value: "en"})
	u.Details.Image = LoadedImage([]byte{1, 2, 3})

	c := u.Clone()
	c.Roles[0].Name = "admin"
	c.Preferences[0].Value = "fr"
	data, _ := c.Details.Image.Bytes()
	data[0] = 9

	assert.Equal(t, "user", u.Roles[0].Name)
	assert.Equal(t, "en", u.Preferences[0].Value)
	orig, _ := u.Details.Image.Bytes()
	assert.Equal(t, byte(1), orig[0])
	assert.Nil(t, (*User)(nil).Clone())
}

func TestProfileImage(t *testing.T) {
	var img ProfileImage
	assert.False(t, img.Loaded())
	assert.Equal(t, 0, img.Len())

	img = LoadedImage(make([]byte, 222))
	assert.True(t, img.Loaded())
	assert.Equal(t, 222, img.Len())

	cleared := LoadedImage(nil)
	data, loaded := cleared.Bytes()
	assert.True(t, loaded)
	assert.Nil(t, data)
}

func TestParseSex(t *testing.T) {
	tests := []struct {
		in   string
		want Sex
		ok   bool
	}{
		{"", "", true},
		{"male", SexMale, true},
		{" FEMALE ", SexFemale, true},
		{"other", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSex(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestNewUserPreference(t *testing.T) {
	p, err := NewUserPreference("alice", "TEST", "v")
	require.NoError(t, err)
	assert.Equal(t, UserPreference{Username: "alice", Key: "TEST", Value: "v"}, p)

	_, err = NewUserPreference("alice", " ", "v")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewUserPreference("", "k", "v")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
