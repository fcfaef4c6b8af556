package application

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
)

// MockUserRepository mocks repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context) ([]*entity.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.User), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, u *entity.User) (*entity.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Remove(ctx context.Context, u *entity.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) LoadImage(ctx context.Context, u *entity.User) error {
	return m.Called(ctx, u).Error(0)
}

// directTx runs fn without a transaction.
type directTx struct{ calls int }

func (d *directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	d.calls++
	return fn(ctx)
}

// recorder captures post-commit side effects.
type recorder struct {
	mu       sync.Mutex
	events   []UserEvent
	indexed  []UserDocument
	deleted  []string
	mirrored map[string]int
	failAll  bool
	results  []UserDocument
}

var errSideEffect = errors.New("side effect unavailable")

func newRecorder() *recorder { return &recorder{mirrored: map[string]int{}} }

func (r *recorder) Publish(ctx context.Context, ev UserEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errSideEffect
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Index(ctx context.Context, doc UserDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errSideEffect
	}
	r.indexed = append(r.indexed, doc)
	return nil
}

func (r *recorder) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errSideEffect
	}
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *recorder) Search(ctx context.Context, q string, size int) ([]UserDocument, error) {
	if r.failAll {
		return nil, errSideEffect
	}
	return r.results, nil
}

func (r *recorder) Mirror(ctx context.Context, username string, data []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return "", errSideEffect
	}
	r.mirrored[username] = len(data)
	return "https://storage.example/" + username, nil
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
