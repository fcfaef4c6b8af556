package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/policy"
	repo "github.com/oksasatya/go-ddd-user-management/internal/domain/repository"
	"github.com/oksasatya/go-ddd-user-management/pkg/helpers"
)

const defaultSystemUsername = "system"

type Service struct {
	Repo    repo.UserRepository
	Tx      repo.TxManager
	History *policy.PasswordHistory
	Events  EventPublisher
	Index   UserIndexer
	Images  ImageMirror
	Logger  *logrus.Logger

	SystemUsername string
	// MaxImageBytes limits UploadImageFile; 0 means no limit.
	MaxImageBytes int
}

func NewService(r repo.UserRepository, tx repo.TxManager, history *policy.PasswordHistory, events EventPublisher, index UserIndexer, images ImageMirror, logger *logrus.Logger) *Service {
	if history == nil {
		history = policy.NewPasswordHistory(nil)
	}
	if logger == nil {
		logger = helpers.NopLogger()
	}
	return &Service{
		Repo:           r,
		Tx:             tx,
		History:        history,
		Events:         events,
		Index:          index,
		Images:         images,
		Logger:         logger,
		SystemUsername: defaultSystemUsername,
	}
}

// Save persists a transient user or updates the stored one with the same username.
// Stored preferences and credential history are left as they are.
func (s *Service) Save(ctx context.Context, u *entity.User) (*entity.User, error) {
	const op = "user.save"
	if u == nil {
		return nil, illegalArgument(op, "user is required")
	}
	if err := u.Validate(); err != nil {
		return nil, wrapError(op, err)
	}

	var saved *entity.User
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		target, err := s.merge(ctx, op, u)
		if err != nil {
			return err
		}
		saved, err = s.Repo.Save(ctx, target)
		return err
	})
	if err != nil {
		return nil, s.fail(op, u.Username, err)
	}
	s.afterSave(ctx, EventUserSaved, saved)
	return saved, nil
}

// Remove deletes the stored user together with its preferences and credential history.
func (s *Service) Remove(ctx context.Context, u *entity.User) error {
	const op = "user.remove"
	if u == nil {
		return illegalArgument(op, "user is required")
	}

	var removed *entity.User
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.Repo.FindByUsername(ctx, u.Username)
		if errors.Is(err, repo.ErrNotFound) {
			return userNotFound(op, u.Username)
		}
		if err != nil {
			return err
		}
		if !u.IsNew() && u.ID != stored.ID {
			// the record u was loaded from is gone; the username now names someone else
			return userNotFound(op, u.Username)
		}
		if err := s.Repo.Remove(ctx, stored); err != nil {
			return err
		}
		removed = stored
		return nil
	})
	if err != nil {
		return s.fail(op, u.Username, err)
	}

	if s.Index != nil {
		if err := s.Index.Delete(ctx, removed.ID); err != nil {
			s.Logger.WithError(err).WithField("username", removed.Username).Warn("search index delete failed")
		}
	}
	s.publish(ctx, EventUserRemoved, removed, "")
	return nil
}

// ChangeUserPassword accepts cred as the owner's new password unless it appears
// anywhere in the owner's history.
func (s *Service) ChangeUserPassword(ctx context.Context, cred *entity.UserPassword) error {
	const op = "user.change_password"
	if cred == nil {
		return illegalArgument(op, "credential is required")
	}

	var changed *entity.User
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.Repo.FindByUsername(ctx, cred.Username())
		if errors.Is(err, repo.ErrNotFound) {
			return userNotFound(op, cred.Username())
		}
		if err != nil {
			return err
		}
		if u.IsSystem() {
			return illegalArgument(op, "the system user password cannot be changed here")
		}
		if err := s.History.ValidateAndAccept(u, cred); err != nil {
			return err
		}
		changed, err = s.Repo.Save(ctx, u)
		return err
	})
	if err != nil {
		return s.fail(op, cred.Username(), err)
	}

	s.Logger.WithField("username", changed.Username).Info("password changed")
	s.publish(ctx, EventUserPasswordChanged, changed, "")
	return nil
}

// UploadImageFile replaces the user's profile image.
func (s *Service) UploadImageFile(ctx context.Context, username string, data []byte) error {
	const op = "user.upload_image"
	if strings.TrimSpace(username) == "" {
		return illegalArgument(op, "username is required")
	}
	if len(data) == 0 {
		return illegalArgument(op, "image is empty")
	}
	if s.MaxImageBytes > 0 && len(data) > s.MaxImageBytes {
		return illegalArgument(op, "image is too large")
	}

	var updated *entity.User
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.Repo.FindByUsername(ctx, username)
		if errors.Is(err, repo.ErrNotFound) {
			return userNotFound(op, username)
		}
		if err != nil {
			return err
		}
		u.Details.Image = entity.LoadedImage(append([]byte(nil), data...))
		updated, err = s.Repo.Save(ctx, u)
		return err
	})
	if err != nil {
		return s.fail(op, username, err)
	}

	var url string
	if s.Images != nil {
		if url, err = s.Images.Mirror(ctx, username, data); err != nil {
			s.Logger.WithError(err).WithField("username", username).Warn("image mirror failed")
		}
	}
	s.publish(ctx, EventUserImageUploaded, updated, url)
	return nil
}

func (s *Service) FindAll(ctx context.Context) ([]*entity.User, error) {
	users, err := s.Repo.FindAll(ctx)
	if err != nil {
		return nil, s.fail("user.find_all", "", err)
	}
	return users, nil
}

func (s *Service) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	const op = "user.find"
	if strings.TrimSpace(username) == "" {
		return nil, illegalArgument(op, "username is required")
	}
	u, err := s.Repo.FindByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, userNotFound(op, username)
	}
	if err != nil {
		return nil, s.fail(op, username, err)
	}
	return u, nil
}

// Exists reports whether a user with username is stored.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	const op = "user.exists"
	if strings.TrimSpace(username) == "" {
		return false, illegalArgument(op, "username is required")
	}
	ok, err := s.Repo.Exists(ctx, username)
	if err != nil {
		return false, s.fail(op, username, err)
	}
	return ok, nil
}

// LoadImage returns the stored user with its profile image loaded.
func (s *Service) LoadImage(ctx context.Context, username string) (*entity.User, error) {
	const op = "user.load_image"
	u, err := s.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.LoadImage(ctx, u); err != nil {
		return nil, s.fail(op, username, err)
	}
	return u, nil
}

// GetTemplate returns a blank transient user. Storage is not touched.
func (s *Service) GetTemplate(username string) *entity.User {
	return entity.NewUser(username)
}

// CreateSystemUser returns a transient system user. Storage is not touched.
func (s *Service) CreateSystemUser() *entity.User {
	name := s.SystemUsername
	if name == "" {
		name = defaultSystemUsername
	}
	return entity.NewSystemUser(name)
}

// SaveUserProfile saves u, its preferences and optionally a new password as one unit.
// When cred is rejected by the password history nothing is written.
func (s *Service) SaveUserProfile(ctx context.Context, u *entity.User, cred *entity.UserPassword, prefs ...entity.UserPreference) (*entity.User, error) {
	const op = "user.save_profile"
	if u == nil {
		return nil, illegalArgument(op, "user is required")
	}
	if err := u.Validate(); err != nil {
		return nil, wrapError(op, err)
	}
	if cred != nil && cred.Username() != u.Username {
		return nil, illegalArgument(op, "credential belongs to another user")
	}
	for _, p := range prefs {
		if strings.TrimSpace(p.Key) == "" {
			return nil, illegalArgument(op, "preference key is required")
		}
		if p.Username != "" && p.Username != u.Username {
			return nil, illegalArgument(op, "preference belongs to another user")
		}
	}

	var saved *entity.User
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		target, err := s.merge(ctx, op, u)
		if err != nil {
			return err
		}
		for _, p := range u.Preferences {
			target.SetPreference(p)
		}
		for _, p := range prefs {
			target.SetPreference(p)
		}
		if cred != nil {
			if err := s.History.ValidateAndAccept(target, cred); err != nil {
				return err
			}
		}
		saved, err = s.Repo.Save(ctx, target)
		return err
	})
	if err != nil {
		return nil, s.fail(op, u.Username, err)
	}

	s.afterSave(ctx, EventUserSaved, saved)
	if cred != nil {
		s.publish(ctx, EventUserPasswordChanged, saved, "")
	}
	return saved, nil
}

// SearchUsers queries the profile search index. Without an index it finds nothing.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]UserDocument, error) {
	if s.Index == nil {
		return []UserDocument{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	docs, err := s.Index.Search(ctx, q, size)
	if err != nil {
		s.Logger.WithError(err).WithField("q", q).Warn("user search failed")
		return nil, &ServiceError{Op: "user.search", Kind: KindPersistence, Err: err}
	}
	return docs, nil
}

// merge resolves u against storage by username. The returned user carries the
// stored identity, preferences and credential history with u's profile applied.
func (s *Service) merge(ctx context.Context, op string, u *entity.User) (*entity.User, error) {
	stored, err := s.Repo.FindByUsername(ctx, u.Username)
	if errors.Is(err, repo.ErrNotFound) {
		if !u.IsNew() {
			return nil, userNotFound(op, u.Username)
		}
		target := u.Clone()
		target.Preferences = nil
		target.Passwords = nil
		return target, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsNew() && u.ID != stored.ID {
		return nil, userNotFound(op, u.Username)
	}

	if u.Kind != "" && u.Kind != stored.Kind {
		return nil, illegalArgument(op, "user kind cannot change once stored")
	}

	stored.Fullname = u.Fullname
	stored.Enabled = u.Enabled
	image := stored.Details.Image
	stored.Details = u.Details
	stored.Details.Image = image
	if data, loaded := u.Details.Image.Bytes(); loaded {
		stored.Details.Image = entity.LoadedImage(append([]byte(nil), data...))
	}
	// the system user's single role is fixed
	if !stored.IsSystem() {
		stored.Roles = append([]entity.Role(nil), u.Roles...)
	}
	if err := stored.Validate(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Service) fail(op, username string, err error) error {
	err = wrapError(op, err)
	entry := s.Logger.WithError(err).WithField("op", op)
	if username != "" {
		entry = entry.WithField("username", username)
	}
	if KindOf(err) == KindPersistence {
		entry.Error("user operation failed")
	} else {
		entry.Debug("user operation rejected")
	}
	return err
}

func (s *Service) afterSave(ctx context.Context, eventType string, u *entity.User) {
	_ = s.indexUser(ctx, u)
	s.publish(ctx, eventType, u, "")
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.Index == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Index.Index(c, NewUserDocument(u)); err != nil {
		s.Logger.WithError(err).WithField("username", u.Username).Warn("search index failed")
		return err
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, u *entity.User, imageURL string) {
	if s.Events == nil {
		return
	}
	ev := UserEvent{
		Type:       eventType,
		UserID:     u.ID,
		Username:   u.Username,
		Fullname:   u.Fullname,
		ImageURL:   imageURL,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{"username": u.Username, "event": eventType}).Warn("publish user event failed")
	}
}
