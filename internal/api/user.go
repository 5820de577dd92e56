package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

type UserHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Get handles GET /v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// List handles GET /v1/users?role=host. Online users come first.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), models.Role(c.Query("role")))
	if err != nil {
		respondError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	Username       string      `json:"username" binding:"required"`
	Password       string      `json:"password" binding:"required"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	Email          string      `json:"email" binding:"omitempty,email"`
	Role           models.Role `json:"role"`
	ProfilePicture string      `json:"profile_picture"`
}

// Create handles POST /v1/users (admin only).
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.Create(c.Request.Context(), service.CreateUserParams{
		Username:       req.Username,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Role:           req.Role,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		respondError(c, h.logger, "create user", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type updateUserRequest struct {
	Username       *string `json:"username"`
	Password       *string `json:"password"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Email          *string `json:"email" binding:"omitempty,email"`
	ProfilePicture *string `json:"profile_picture"`
	IsOnline       *bool   `json:"is_online"`
}

// Update handles PUT /v1/users/:id. Users edit themselves; admins edit anyone.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id != middleware.GetUserID(c) && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot edit another user"})
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, service.UpdateUserParams{
		Username:       req.Username,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		ProfilePicture: req.ProfilePicture,
		IsOnline:       req.IsOnline,
	})
	if err != nil {
		respondError(c, h.logger, "update user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /v1/users/:id (admin only). Removes the user's
// messages and notifications too.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id == middleware.GetUserID(c) {
		badRequest(c, "cannot delete yourself")
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}
