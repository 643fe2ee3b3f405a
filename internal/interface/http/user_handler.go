package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/kabantay/kabantay-api/internal/application"
	"github.com/kabantay/kabantay-api/internal/domain/entity"
	"github.com/kabantay/kabantay-api/pkg/helpers"
	"github.com/kabantay/kabantay-api/pkg/response"
	"github.com/kabantay/kabantay-api/pkg/validation"
)

type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type addressRequest struct {
	StreetName string `json:"streetName" binding:"required"`
	Barangay   string `json:"baranggay" binding:"required"`
	Town       string `json:"town" binding:"required"`
	Province   string `json:"province" binding:"required"`
	ZipCode    string `json:"zipCode" binding:"required"`
}

type profileRequest struct {
	FirstName   string `json:"firstName" binding:"required"`
	MiddleName  string `json:"middleName"`
	LastName    string `json:"lastName" binding:"required"`
	BirthDate   string `json:"birthDate" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

type createUserRequest struct {
	Email         string         `json:"email" binding:"required,email"`
	Password      string         `json:"password" binding:"required,pwd"`
	IsUserInGroup *bool          `json:"isUserInGroup" binding:"required"`
	IsUserHead    *bool          `json:"isUserHead" binding:"required"`
	Address       addressRequest `json:"address" binding:"required"`
	Profile       profileRequest `json:"profile" binding:"required"`
}

type updateUserRequest struct {
	Email         *string `json:"email" binding:"omitempty,email"`
	IsUserInGroup *bool   `json:"isUserInGroup"`
	IsUserHead    *bool   `json:"isUserHead"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,pwd"`
}

// userJSON shapes a user for the wire. The password hash never leaves
// the service boundary.
func userJSON(u *entity.User) gin.H {
	return gin.H{
		"userId":        u.ID,
		"email":         u.Email,
		"isUserInGroup": u.IsUserInGroup,
		"isUserHead":    u.IsUserHead,
		"addressId":     u.AddressID,
		"profileId":     u.ProfileID,
		"createdAt":     u.CreatedAt,
		"updatedAt":     u.UpdatedAt,
	}
}

func deletedUserJSON(d *entity.DeletedUser) gin.H {
	return gin.H{
		"userId":        d.ID,
		"email":         d.Email,
		"isUserInGroup": d.IsUserInGroup,
		"isUserHead":    d.IsUserHead,
		"addressId":     d.AddressID,
		"profileId":     d.ProfileID,
		"createdAt":     d.CreatedAt,
		"deletedAt":     d.DeletedAt,
		"address":       d.Address,
		"profile":       d.Profile,
	}
}

// Create POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Create(c.Request.Context(), userapp.CreateUserInput{
		Email:         req.Email,
		Password:      req.Password,
		IsUserInGroup: *req.IsUserInGroup,
		IsUserHead:    *req.IsUserHead,
		Address: entity.Address{
			StreetName: req.Address.StreetName,
			Barangay:   req.Address.Barangay,
			Town:       req.Address.Town,
			Province:   req.Address.Province,
			ZipCode:    req.Address.ZipCode,
		},
		Profile: entity.Profile{
			FirstName:   req.Profile.FirstName,
			MiddleName:  req.Profile.MiddleName,
			LastName:    req.Profile.LastName,
			BirthDate:   req.Profile.BirthDate,
			PhoneNumber: req.Profile.PhoneNumber,
		},
	})
	if err != nil {
		if errors.Is(err, userapp.ErrEmailExists) {
			response.Fail(c, http.StatusConflict, "existing email", nil)
			return
		}
		h.Logger.WithError(err).Error("create user failed")
		response.Fail(c, http.StatusInternalServerError, "failed to create user", nil)
		return
	}
	response.Success(c, http.StatusCreated, res, "user created", nil)
}

// GetAll GET /api/users
func (h *UserHandler) GetAll(c *gin.Context) {
	users, err := h.Svc.GetAll(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("list users failed")
		response.Fail(c, http.StatusInternalServerError, "failed to list users", nil)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON(u))
	}
	response.Success(c, http.StatusOK, out, "users", nil)
}

// GetByEmail GET /api/users/by-email?email=
func (h *UserHandler) GetByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		response.Fail(c, http.StatusBadRequest, "email is required", nil)
		return
	}
	u, err := h.Svc.GetByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("get user by email failed")
		response.Fail(c, http.StatusInternalServerError, "failed to get user", nil)
		return
	}
	response.Success(c, http.StatusOK, userJSON(u), "user", nil)
}

// Update PATCH /api/users/:userId
func (h *UserHandler) Update(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.Fail(c, http.StatusBadRequest, "userId param is required", nil)
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateByID(c.Request.Context(), userID, userapp.UpdateUserInput{
		Email:         req.Email,
		IsUserInGroup: req.IsUserInGroup,
		IsUserHead:    req.IsUserHead,
	})
	if err != nil {
		switch {
		case errors.Is(err, userapp.ErrUserNotFound):
			response.Fail(c, http.StatusNotFound, "user not found", nil)
		case errors.Is(err, userapp.ErrEmailExists):
			response.Fail(c, http.StatusConflict, "existing email", nil)
		default:
			h.Logger.WithError(err).Error("update user failed")
			response.Fail(c, http.StatusInternalServerError, "failed to update user", nil)
		}
		return
	}
	response.Success(c, http.StatusOK, userJSON(u), "user updated", nil)
}

// Login POST /api/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, userapp.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		h.Logger.WithError(err).Error("login failed")
		response.Fail(c, http.StatusInternalServerError, "login failed", nil)
		return
	}
	pair, err := h.Svc.IssueTokens(c.Request.Context(), u)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, "token issuance failed", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{"success": true, "userId": u.ID}, "login successful",
		gin.H{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Refresh POST /api/users/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Fail(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	claims, err := h.Svc.JWT.ParseRefreshToken(refresh)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	u, err := h.Svc.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	pair, err := h.Svc.IssueTokens(c.Request.Context(), u)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, "token issuance failed", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{"refreshed": true}, "token refreshed",
		gin.H{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Logout POST /api/users/logout
func (h *UserHandler) Logout(c *gin.Context) {
	if uid := c.GetString("userID"); uid != "" {
		h.Svc.Logout(c.Request.Context(), uid)
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// ChangePassword POST /api/users/change-password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	userID, err := h.Svc.ChangePassword(c.Request.Context(), req.Email, req.NewPassword)
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("change password failed")
		response.Fail(c, http.StatusInternalServerError, "failed to change password", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"success": true, "userId": userID}, "password changed", nil)
}

// SoftDelete PATCH /api/users/:userId/soft-delete
func (h *UserHandler) SoftDelete(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.Fail(c, http.StatusBadRequest, "userId param is required", nil)
		return
	}
	id, err := h.Svc.SoftDeleteByID(c.Request.Context(), userID)
	if err != nil {
		h.Logger.WithError(err).Error("soft delete failed")
		response.Fail(c, http.StatusInternalServerError, "failed to soft delete user", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"success": true, "userId": id}, "user soft deleted", nil)
}

// GetAllDeleted GET /api/users/deleted
func (h *UserHandler) GetAllDeleted(c *gin.Context) {
	deleted, err := h.Svc.GetAllDeleted(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("list deleted users failed")
		response.Fail(c, http.StatusInternalServerError, "failed to list deleted users", nil)
		return
	}
	out := make([]gin.H, 0, len(deleted))
	for _, d := range deleted {
		out = append(out, deletedUserJSON(d))
	}
	response.Success(c, http.StatusOK, out, "deleted users", nil)
}

// Search GET /api/users/search?q=&size=
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Fail(c, http.StatusBadRequest, "q is required", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Error("search users failed")
		response.Fail(c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", nil)
}

// UploadProfilePhoto POST /api/users/profile/photo
func (h *UserHandler) UploadProfilePhoto(c *gin.Context) {
	uid := c.GetString("userID")
	fh, err := c.FormFile("photo")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "photo file is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "cannot read photo", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadProfilePhoto(c.Request.Context(), uid, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("profile photo upload failed")
		response.Fail(c, http.StatusInternalServerError, "failed to upload photo", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"photoUrl": url}, "photo uploaded", nil)
}
