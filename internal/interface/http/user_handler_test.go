package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	userapp "github.com/oksasatya/go-ddd-user-management/internal/application"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-management/pkg/validation"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Save(ctx context.Context, u *entity.User) (*entity.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserService) Remove(ctx context.Context, u *entity.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserService) ChangeUserPassword(ctx context.Context, cred *entity.UserPassword) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *MockUserService) UploadImageFile(ctx context.Context, username string, data []byte) error {
	return m.Called(ctx, username, data).Error(0)
}

func (m *MockUserService) FindAll(ctx context.Context) ([]*entity.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.User), args.Error(1)
}

func (m *MockUserService) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserService) LoadImage(ctx context.Context, username string) (*entity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserService) GetTemplate(username string) *entity.User {
	return m.Called(username).Get(0).(*entity.User)
}

func (m *MockUserService) CreateSystemUser() *entity.User {
	return m.Called().Get(0).(*entity.User)
}

func (m *MockUserService) SaveUserProfile(ctx context.Context, u *entity.User, cred *entity.UserPassword, prefs ...entity.UserPreference) (*entity.User, error) {
	args := m.Called(ctx, u, cred, prefs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserService) SearchUsers(ctx context.Context, q string, size int) ([]userapp.UserDocument, error) {
	args := m.Called(ctx, q, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]userapp.UserDocument), args.Error(1)
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   json.RawMessage `json:"error"`
}

func setupRouter(svc UserService, maxImage int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.Init()
	h := NewUserHandler(svc, nil, maxImage)
	r := gin.New()
	r.GET("/users", h.List)
	r.GET("/users/search", h.Search)
	r.GET("/users/:username", h.Get)
	r.PUT("/users/:username", h.Save)
	r.DELETE("/users/:username", h.Remove)
	r.PUT("/users/:username/password", h.ChangePassword)
	r.PUT("/users/:username/profile", h.SaveProfile)
	r.PUT("/users/:username/image", h.UploadImage)
	r.GET("/users/:username/image", h.GetImage)
	r.GET("/user-templates/:username", h.Template)
	r.GET("/system-user", h.SystemUser)
	return r
}

func do(r http.Handler, method, path string, body []byte, contentType string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func storedUser(username string) *entity.User {
	u := entity.NewUser(username)
	u.ID = "id-" + username
	return u
}

func TestUserHandler_Get(t *testing.T) {
	svc := new(MockUserService)
	u := storedUser("alice")
	u.Fullname = "Alice"
	u.Roles = []entity.Role{{Name: "user"}}
	u.SetPreference(entity.UserPreference{Key: "lang", Value: "en"})
	svc.On("FindByUsername", mock.Anything, "alice").Return(u, nil)
	svc.On("FindByUsername", mock.Anything, "ghost").
		Return(nil, &userapp.ServiceError{Op: "user.find", Kind: userapp.KindUserNotFound, Err: userapp.ErrUserNotFound})
	r := setupRouter(svc, 0)

	w, env := do(r, http.MethodGet, "/users/alice", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var got userResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "id-alice", got.ID)
	assert.Equal(t, []string{"user"}, got.Roles)
	assert.Equal(t, map[string]string{"lang": "en"}, got.Preferences)
	assert.Nil(t, got.Details.ImageSize)

	w, env = do(r, http.MethodGet, "/users/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestUserHandler_List(t *testing.T) {
	svc := new(MockUserService)
	svc.On("FindAll", mock.Anything).Return([]*entity.User{storedUser("a"), storedUser("b")}, nil)
	r := setupRouter(svc, 0)

	w, env := do(r, http.MethodGet, "/users", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, env.Meta["count"])
}

func TestUserHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"illegal argument", &userapp.ServiceError{Kind: userapp.KindIllegalArgument, Err: userapp.ErrIllegalArgument}, http.StatusBadRequest},
		{"not found", &userapp.ServiceError{Kind: userapp.KindUserNotFound, Err: userapp.ErrUserNotFound}, http.StatusNotFound},
		{"reused password", &userapp.ServiceError{Kind: userapp.KindInvalidPassword, Err: errors.New("used")}, http.StatusUnprocessableEntity},
		{"persistence", &userapp.ServiceError{Kind: userapp.KindPersistence, Err: errors.New("db down")}, http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockUserService)
			svc.On("ChangeUserPassword", mock.Anything, mock.Anything).Return(tc.err)
			r := setupRouter(svc, 0)
			w, env := do(r, http.MethodPut, "/users/alice/password", []byte(`{"password":"s3cret-pass"}`), "application/json")
			assert.Equal(t, tc.code, w.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestUserHandler_ChangePassword(t *testing.T) {
	t.Run("passes the credential through", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("ChangeUserPassword", mock.Anything, mock.MatchedBy(func(p *entity.UserPassword) bool {
			return p.Username() == "alice" && p.Password() == "s3cret-pass"
		})).Return(nil)
		r := setupRouter(svc, 0)
		w, _ := do(r, http.MethodPut, "/users/alice/password", []byte(`{"password":"s3cret-pass"}`), "application/json")
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("short password is rejected before the service", func(t *testing.T) {
		svc := new(MockUserService)
		r := setupRouter(svc, 0)
		w, env := do(r, http.MethodPut, "/users/alice/password", []byte(`{"password":"short"}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, string(env.Error), "password")
		svc.AssertNotCalled(t, "ChangeUserPassword", mock.Anything, mock.Anything)
	})
}

func TestUserHandler_Save(t *testing.T) {
	svc := new(MockUserService)
	svc.On("Save", mock.Anything, mock.MatchedBy(func(u *entity.User) bool {
		return u.Username == "alice" && u.IsNew() && u.Fullname == "Alice" && !u.Enabled &&
			u.Details.Sex == entity.SexFemale && len(u.Roles) == 1
	})).Return(storedUser("alice"), nil)
	r := setupRouter(svc, 0)

	body := `{"fullname":"Alice","enabled":false,"sex":"FEMALE","roles":[{"name":"user"}]}`
	w, env := do(r, http.MethodPut, "/users/alice", []byte(body), "application/json")
	require.Equal(t, http.StatusOK, w.Code, string(env.Error))
	svc.AssertExpectations(t)

	w, env = do(r, http.MethodPut, "/users/alice", []byte(`{"sex":"other"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "sex")

	w, _ = do(r, http.MethodPut, "/users/alice", []byte(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_Remove(t *testing.T) {
	svc := new(MockUserService)
	svc.On("Remove", mock.Anything, mock.MatchedBy(func(u *entity.User) bool { return u.Username == "alice" })).Return(nil)
	r := setupRouter(svc, 0)
	w, _ := do(r, http.MethodDelete, "/users/alice", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUserHandler_SaveProfile(t *testing.T) {
	svc := new(MockUserService)
	saved := storedUser("alice")
	saved.SetPreference(entity.UserPreference{Key: "lang", Value: "en"})
	svc.On("SaveUserProfile", mock.Anything,
		mock.MatchedBy(func(u *entity.User) bool { return u.Username == "alice" }),
		mock.MatchedBy(func(p *entity.UserPassword) bool { return p != nil && p.Password() == "password123" }),
		mock.MatchedBy(func(prefs []entity.UserPreference) bool {
			return len(prefs) == 1 && prefs[0].Key == "lang" && prefs[0].Username == "alice"
		}),
	).Return(saved, nil)
	r := setupRouter(svc, 0)

	body := `{"fullname":"Alice","password":"password123","preferences":{"lang":"en"}}`
	w, env := do(r, http.MethodPut, "/users/alice/profile", []byte(body), "application/json")
	require.Equal(t, http.StatusOK, w.Code, string(env.Error))
	var got userResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "en", got.Preferences["lang"])
	svc.AssertExpectations(t)
}

func TestUserHandler_UploadImage(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 222)

	t.Run("raw body", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("UploadImageFile", mock.Anything, "KNOWN", data).Return(nil)
		r := setupRouter(svc, 1024)
		w, env := do(r, http.MethodPut, "/users/KNOWN/image", data, "application/octet-stream")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"size":222}`, string(env.Data))
	})

	t.Run("multipart", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("UploadImageFile", mock.Anything, "KNOWN", data).Return(nil)
		r := setupRouter(svc, 1024)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("image", "avatar.png")
		require.NoError(t, err)
		_, _ = fw.Write(data)
		require.NoError(t, mw.Close())

		w, _ := do(r, http.MethodPut, "/users/KNOWN/image", buf.Bytes(), mw.FormDataContentType())
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("too large", func(t *testing.T) {
		svc := new(MockUserService)
		r := setupRouter(svc, 100)
		w, _ := do(r, http.MethodPut, "/users/KNOWN/image", data, "application/octet-stream")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		svc.AssertNotCalled(t, "UploadImageFile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("UploadImageFile", mock.Anything, "UNKNOWN", data).
			Return(&userapp.ServiceError{Kind: userapp.KindUserNotFound, Err: userapp.ErrUserNotFound})
		r := setupRouter(svc, 1024)
		w, _ := do(r, http.MethodPut, "/users/UNKNOWN/image", data, "application/octet-stream")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUserHandler_GetImage(t *testing.T) {
	svc := new(MockUserService)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	withImage := storedUser("alice")
	withImage.Details.Image = entity.LoadedImage(png)
	without := storedUser("bob")
	without.Details.Image = entity.LoadedImage(nil)
	svc.On("LoadImage", mock.Anything, "alice").Return(withImage, nil)
	svc.On("LoadImage", mock.Anything, "bob").Return(without, nil)
	r := setupRouter(svc, 0)

	w, _ := do(r, http.MethodGet, "/users/alice/image", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())

	w, _ = do(r, http.MethodGet, "/users/bob/image", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserHandler_Templates(t *testing.T) {
	svc := new(MockUserService)
	svc.On("GetTemplate", "newbie").Return(entity.NewUser("newbie"))
	svc.On("CreateSystemUser").Return(entity.NewSystemUser("system"))
	r := setupRouter(svc, 0)

	w, env := do(r, http.MethodGet, "/user-templates/newbie", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got userResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.New)
	assert.Empty(t, got.ID)

	w, env = do(r, http.MethodGet, "/system-user", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "system", got.Kind)
	assert.Equal(t, []string{entity.SystemRoleName}, got.Roles)
}

func TestUserHandler_Search(t *testing.T) {
	svc := new(MockUserService)
	svc.On("SearchUsers", mock.Anything, "ali", 5).Return([]userapp.UserDocument{{Username: "alice"}}, nil)
	svc.On("SearchUsers", mock.Anything, "down", 10).
		Return(nil, &userapp.ServiceError{Kind: userapp.KindPersistence, Err: errors.New("es down")})
	r := setupRouter(svc, 0)

	w, env := do(r, http.MethodGet, "/users/search?q=ali&size=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(string(env.Data), "alice"))

	w, _ = do(r, http.MethodGet, "/users/search?q=down", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = do(r, http.MethodGet, "/users/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
