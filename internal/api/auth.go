package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/auth"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

// AuthHandler serves register and login, the only public endpoints, plus
// logout.
type AuthHandler struct {
	users     *service.UserService
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(users *service.UserService, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type registerRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"omitempty,email"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authResponse is what register and login return. The client sends the token
// back as "Authorization: Bearer <token>".
type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /v1/auth/register. New accounts are always hosts.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.CreateUserParams{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles POST /v1/auth/login. Unknown user and wrong password get
// the same 401 so the endpoint does not reveal which usernames exist.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// Logout handles POST /v1/auth/logout. Tokens are stateless, so this only
// flips presence; the client drops its token.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := auth.GenerateToken(user, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, "issue token", err)
		return
	}
	c.JSON(status, authResponse{Token: token, User: user})
}
