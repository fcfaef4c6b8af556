package validation

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type signup struct {
	Username string `json:"username" binding:"required,username"`
	Password string `json:"password" binding:"required,pwd"`
	Sex      string `json:"sex" binding:"omitempty,sex"`
	Roles    []struct {
		Name string `json:"name" binding:"required"`
	} `json:"roles" binding:"dive"`
}

func validate(v any) error {
	Init()
	return binding.Validator.ValidateStruct(v)
}

func TestToDetails(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validate(&signup{Username: "alice.w@corp", Password: "long-enough", Sex: "FEMALE"}))
	})

	t.Run("field paths use json names", func(t *testing.T) {
		s := &signup{Username: "bad name!", Password: "short", Sex: "other"}
		s.Roles = append(s.Roles, struct {
			Name string `json:"name" binding:"required"`
		}{})
		details := ToDetails(validate(s))
		assert.Equal(t, "must be 1-64 letters, digits or . _ @ -", details["username"])
		assert.Equal(t, "must be between 8 and 128 characters", details["password"])
		assert.Equal(t, "must be MALE or FEMALE", details["sex"])
		assert.Equal(t, "is required", details["roles[0].name"])
	})

	t.Run("syntax error", func(t *testing.T) {
		var v map[string]any
		err := json.Unmarshal([]byte("{"), &v)
		assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToDetails(nil))
	})
}
