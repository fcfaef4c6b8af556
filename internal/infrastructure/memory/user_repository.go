// Package memory keeps users in process memory. Transactions are serialized and
// rolled back by restoring a snapshot taken when they began.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/repository"
)

type state struct {
	users  map[string]*entity.User // by ID, images stripped
	byName map[string]string       // username -> ID
	images map[string][]byte       // by ID
	nextPw int64
}

func (s *state) clone() *state {
	c := &state{
		users:  make(map[string]*entity.User, len(s.users)),
		byName: make(map[string]string, len(s.byName)),
		images: make(map[string][]byte, len(s.images)),
		nextPw: s.nextPw,
	}
	for id, u := range s.users {
		c.users[id] = u.Clone()
	}
	for name, id := range s.byName {
		c.byName[name] = id
	}
	for id, img := range s.images {
		c.images[id] = append([]byte(nil), img...)
	}
	return c
}

// UserRepository is an in-memory repository.UserRepository that is also its own TxManager.
type UserRepository struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state
	now  func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		st: &state{
			users:  map[string]*entity.User{},
			byName: map[string]string{},
			images: map[string][]byte{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

type txKey struct{}

// RunInTx runs fn with exclusive access to the store. Nested calls join the outer transaction.
func (r *UserRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.st.clone()
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.restore(snapshot)
			panic(p)
		}
		if err != nil {
			r.restore(snapshot)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (r *UserRepository) restore(s *state) {
	r.mu.Lock()
	r.st = s
	r.mu.Unlock()
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.st.byName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.st.users[id].Clone(), nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.User, 0, len(r.st.users))
	for _, u := range r.st.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *UserRepository) Save(ctx context.Context, u *entity.User) (*entity.User, error) {
	if u == nil || u.Username == "" {
		return nil, fmt.Errorf("%w: username is required", entity.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var history []*entity.UserPassword
	if u.IsNew() {
		if _, taken := r.st.byName[u.Username]; taken {
			return nil, fmt.Errorf("user %q: %w", u.Username, repository.ErrDuplicate)
		}
		u.ID = uuid.NewString()
		u.CreatedAt = now
	} else {
		old, ok := r.st.users[u.ID]
		if !ok {
			return nil, repository.ErrNotFound
		}
		if old.Username != u.Username {
			return nil, fmt.Errorf("%w: username cannot change from %q to %q", entity.ErrInvalidArgument, old.Username, u.Username)
		}
		u.CreatedAt = old.CreatedAt
		history = append([]*entity.UserPassword(nil), old.Passwords...)
	}
	u.UpdatedAt = now
	if u.Kind == "" {
		u.Kind = entity.KindRegular
	}

	for _, p := range u.Passwords {
		if p.IsNew() {
			r.st.nextPw++
			history = append(history, p.WithID(r.st.nextPw))
		}
	}
	u.Passwords = history
	for i := range u.Preferences {
		u.Preferences[i].Username = u.Username
	}

	stored := u.Clone()
	if data, loaded := u.Details.Image.Bytes(); loaded {
		if data == nil {
			delete(r.st.images, u.ID)
		} else {
			r.st.images[u.ID] = append([]byte(nil), data...)
		}
	}
	stored.Details.Image = entity.ProfileImage{}
	r.st.users[u.ID] = stored
	r.st.byName[u.Username] = u.ID
	return u, nil
}

func (r *UserRepository) Remove(ctx context.Context, u *entity.User) error {
	if u == nil || u.IsNew() {
		return repository.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.st.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.st.users, u.ID)
	delete(r.st.byName, old.Username)
	delete(r.st.images, u.ID)
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.st.byName[username]
	return ok, nil
}

func (r *UserRepository) LoadImage(ctx context.Context, u *entity.User) error {
	if u == nil || u.IsNew() {
		return repository.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.st.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	var data []byte
	if img, ok := r.st.images[u.ID]; ok {
		data = append([]byte(nil), img...)
	}
	u.Details.Image = entity.LoadedImage(data)
	return nil
}

var (
	_ repository.UserRepository = (*UserRepository)(nil)
	_ repository.TxManager      = (*UserRepository)(nil)
)
