package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-ddd-user-management/internal/application"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-management/pkg/response"
	"github.com/oksasatya/go-ddd-user-management/pkg/validation"
)

// UserService is the part of *application.Service the handlers use.
type UserService interface {
	Save(ctx context.Context, u *entity.User) (*entity.User, error)
	Remove(ctx context.Context, u *entity.User) error
	ChangeUserPassword(ctx context.Context, cred *entity.UserPassword) error
	UploadImageFile(ctx context.Context, username string, data []byte) error
	FindAll(ctx context.Context) ([]*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	LoadImage(ctx context.Context, username string) (*entity.User, error)
	GetTemplate(username string) *entity.User
	CreateSystemUser() *entity.User
	SaveUserProfile(ctx context.Context, u *entity.User, cred *entity.UserPassword, prefs ...entity.UserPreference) (*entity.User, error)
	SearchUsers(ctx context.Context, q string, size int) ([]userapp.UserDocument, error)
}

type UserHandler struct {
	Svc           UserService
	Logger        *logrus.Logger
	MaxImageBytes int64
}

func NewUserHandler(svc UserService, logger *logrus.Logger, maxImageBytes int) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, MaxImageBytes: int64(maxImageBytes)}
}

type roleRequest struct {
	Name        string `json:"name" binding:"required,max=64"`
	Description string `json:"description" binding:"max=255"`
}

type userRequest struct {
	Fullname    string        `json:"fullname" binding:"max=255"`
	Enabled     *bool         `json:"enabled"`
	Kind        string        `json:"kind" binding:"omitempty,userkind"`
	Description string        `json:"description" binding:"max=1000"`
	Comment     string        `json:"comment" binding:"max=1000"`
	PhoneNo     string        `json:"phone_no" binding:"max=32"`
	IMHandle    string        `json:"im_handle" binding:"max=128"`
	Office      string        `json:"office" binding:"max=128"`
	Department  string        `json:"department" binding:"max=128"`
	Sex         string        `json:"sex" binding:"omitempty,sex"`
	Roles       []roleRequest `json:"roles" binding:"dive"`
}

type profileRequest struct {
	userRequest
	Password    string            `json:"password" binding:"omitempty,pwd"`
	Preferences map[string]string `json:"preferences" binding:"dive,keys,required,max=128,endkeys,max=1000"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required,pwd"`
}

type detailsResponse struct {
	Description string `json:"description,omitempty"`
	Comment     string `json:"comment,omitempty"`
	PhoneNo     string `json:"phone_no,omitempty"`
	IMHandle    string `json:"im_handle,omitempty"`
	Office      string `json:"office,omitempty"`
	Department  string `json:"department,omitempty"`
	Sex         string `json:"sex,omitempty"`
	ImageSize   *int   `json:"image_size,omitempty"`
}

type userResponse struct {
	ID            string            `json:"id,omitempty"`
	Username      string            `json:"username"`
	Fullname      string            `json:"fullname"`
	Enabled       bool              `json:"enabled"`
	Kind          string            `json:"kind"`
	New           bool              `json:"new"`
	Details       detailsResponse   `json:"details"`
	Roles         []string          `json:"roles"`
	Preferences   map[string]string `json:"preferences"`
	PasswordCount int               `json:"password_count"`
	CreatedAt     *time.Time        `json:"created_at,omitempty"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

func toUserResponse(u *entity.User) userResponse {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Name)
	}
	prefs := make(map[string]string, len(u.Preferences))
	for _, p := range u.Preferences {
		prefs[p.Key] = p.Value
	}
	d := u.Details
	kind := u.Kind
	if kind == "" {
		kind = entity.KindRegular
	}
	res := userResponse{
		ID:       u.ID,
		Username: u.Username,
		Fullname: u.Fullname,
		Enabled:  u.Enabled,
		Kind:     string(kind),
		New:      u.IsNew(),
		Details: detailsResponse{
			Description: d.Description,
			Comment:     d.Comment,
			PhoneNo:     d.PhoneNo,
			IMHandle:    d.IMHandle,
			Office:      d.Office,
			Department:  d.Department,
			Sex:         string(d.Sex),
		},
		Roles:         roles,
		Preferences:   prefs,
		PasswordCount: len(u.Passwords),
	}
	if d.Image.Loaded() {
		n := d.Image.Len()
		res.Details.ImageSize = &n
	}
	if !u.CreatedAt.IsZero() {
		res.CreatedAt = &u.CreatedAt
		res.UpdatedAt = &u.UpdatedAt
	}
	return res
}

// toUser builds the transient user the service merges by username.
func (r userRequest) toUser(username string) *entity.User {
	u := entity.NewUser(username)
	u.Fullname = r.Fullname
	if r.Enabled != nil {
		u.Enabled = *r.Enabled
	}
	if r.Kind != "" {
		u.Kind = entity.Kind(r.Kind)
	}
	sex, _ := entity.ParseSex(r.Sex)
	u.Details = entity.UserDetails{
		Description: r.Description,
		Comment:     r.Comment,
		PhoneNo:     r.PhoneNo,
		IMHandle:    r.IMHandle,
		Office:      r.Office,
		Department:  r.Department,
		Sex:         sex,
	}
	for _, role := range r.Roles {
		u.Roles = append(u.Roles, entity.Role{Name: role.Name, Description: role.Description})
	}
	return u
}

// writeError maps service error kinds to HTTP statuses.
func (h *UserHandler) writeError(c *gin.Context, err error) {
	switch userapp.KindOf(err) {
	case userapp.KindIllegalArgument:
		response.Error[any](c, http.StatusBadRequest, "invalid request", err.Error())
	case userapp.KindUserNotFound:
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
	case userapp.KindInvalidPassword:
		response.Error[any](c, http.StatusUnprocessableEntity, "password was used before", nil)
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.Svc.FindAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	response.Success(c, http.StatusOK, out, "users", map[string]any{"count": len(out)})
}

func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.Svc.FindByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(u), "user", nil)
}

func (h *UserHandler) Save(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Save(c.Request.Context(), req.toUser(c.Param("username")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(u), "user saved", nil)
}

func (h *UserHandler) Remove(c *gin.Context) {
	if err := h.Svc.Remove(c.Request.Context(), entity.NewUser(c.Param("username"))); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"removed": true}, "user removed", nil)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	cred, err := entity.NewUserPassword(c.Param("username"), req.Password)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.Svc.ChangeUserPassword(c.Request.Context(), cred); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"changed": true}, "password changed", nil)
}

// UploadImage accepts a multipart "image" field or a raw request body.
func (h *UserHandler) UploadImage(c *gin.Context) {
	limit := h.MaxImageBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	var r io.Reader
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			response.Error[any](c, http.StatusBadRequest, "invalid image", nil)
			return
		}
		defer func() { _ = f.Close() }()
		r = f
	} else {
		r = c.Request.Body
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid image", nil)
		return
	}
	if int64(len(data)) > limit {
		response.Error[any](c, http.StatusRequestEntityTooLarge, "image too large", nil)
		return
	}
	if err := h.Svc.UploadImageFile(c.Request.Context(), c.Param("username"), data); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"size": len(data)}, "image uploaded", nil)
}

func (h *UserHandler) GetImage(c *gin.Context) {
	u, err := h.Svc.LoadImage(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	data, _ := u.Details.Image.Bytes()
	if len(data) == 0 {
		response.Error[any](c, http.StatusNotFound, "user has no image", nil)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func (h *UserHandler) SaveProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	username := c.Param("username")
	u := req.toUser(username)

	var cred *entity.UserPassword
	if req.Password != "" {
		var err error
		if cred, err = entity.NewUserPassword(username, req.Password); err != nil {
			response.Error[any](c, http.StatusBadRequest, "invalid payload", err.Error())
			return
		}
	}
	prefs := make([]entity.UserPreference, 0, len(req.Preferences))
	for k, v := range req.Preferences {
		p, err := entity.NewUserPreference(username, k, v)
		if err != nil {
			response.Error[any](c, http.StatusBadRequest, "invalid payload", err.Error())
			return
		}
		prefs = append(prefs, p)
	}

	saved, err := h.Svc.SaveUserProfile(c.Request.Context(), u, cred, prefs...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(saved), "profile saved", nil)
}

func (h *UserHandler) Template(c *gin.Context) {
	response.Success(c, http.StatusOK, toUserResponse(h.Svc.GetTemplate(c.Param("username"))), "user template", nil)
}

func (h *UserHandler) SystemUser(c *gin.Context) {
	response.Success(c, http.StatusOK, toUserResponse(h.Svc.CreateSystemUser()), "system user template", nil)
}

func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", map[string]string{"q": "is required"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	docs, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		var se *userapp.ServiceError
		if errors.As(err, &se) && se.Kind == userapp.KindPersistence {
			response.Error[any](c, http.StatusServiceUnavailable, "search unavailable", nil)
			return
		}
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, docs, "search results", map[string]any{"count": len(docs)})
}
