package handlers

import (
	"net/http"

	"studypath/internal/config"
	"studypath/internal/middleware"
	"studypath/internal/observability"
	"studypath/internal/services"
	contextutils "studypath/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves signup, login and session endpoints
type AuthHandler struct {
	users  *services.UserService
	cfg    *config.Config
	logger *observability.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *services.UserService, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8"`
}

// Signup registers a new account and logs it in
func (h *AuthHandler) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid signup request", err.Error())
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.establishSession(c, user.ID, user.Username); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login authenticates a username/password pair and starts a session
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid login request", err.Error())
		return
	}

	user, err := h.users.AuthenticateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.establishSession(c, user.ID, user.Username); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout clears the session
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: config.SessionPath, MaxAge: -1})
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the logged-in user, including streak counters
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeHTTPError(c, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) establishSession(c *gin.Context, userID int, username string) error {
	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, userID)
	session.Set(middleware.UsernameKey, username)
	if err := session.Save(); err != nil {
		return contextutils.WrapError(err, "failed to save session")
	}
	return nil
}
