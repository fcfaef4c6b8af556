package application

import (
	"context"
	"time"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
)

const (
	EventUserSaved           = "user.saved"
	EventUserRemoved         = "user.removed"
	EventUserPasswordChanged = "user.password_changed"
	EventUserImageUploaded   = "user.image_uploaded"
)

// UserEvent is published after a user mutation commits.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Fullname   string    `json:"fullname,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// UserDocument is the searchable projection of a user.
type UserDocument struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Fullname    string    `json:"fullname"`
	Enabled     bool      `json:"enabled"`
	Kind        string    `json:"kind"`
	Description string    `json:"description,omitempty"`
	Office      string    `json:"office,omitempty"`
	Department  string    `json:"department,omitempty"`
	Roles       []string  `json:"roles"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewUserDocument(u *entity.User) UserDocument {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Name)
	}
	return UserDocument{
		ID:          u.ID,
		Username:    u.Username,
		Fullname:    u.Fullname,
		Enabled:     u.Enabled,
		Kind:        string(u.Kind),
		Description: u.Details.Description,
		Office:      u.Details.Office,
		Department:  u.Details.Department,
		Roles:       roles,
		UpdatedAt:   u.UpdatedAt,
	}
}

// EventPublisher delivers UserEvents to other services.
type EventPublisher interface {
	Publish(ctx context.Context, ev UserEvent) error
}

// UserIndexer keeps the search index in step with stored users.
type UserIndexer interface {
	Index(ctx context.Context, doc UserDocument) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]UserDocument, error)
}

// ImageMirror copies profile images to object storage and returns their URL.
type ImageMirror interface {
	Mirror(ctx context.Context, username string, data []byte) (string, error)
}
