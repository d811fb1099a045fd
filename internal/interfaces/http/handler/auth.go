package handler

import (
	"github.com/gin-gonic/gin"

	authapp "github.com/clinic/terminal/internal/application/auth"
)

// AuthHandler handles login and session introspection.
type AuthHandler struct {
	BaseHandler
	service *authapp.Service
	authMW  gin.HandlerFunc
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *authapp.Service, authMW gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{service: service, authMW: authMW}
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.GET("/me", h.authMW, h.Me)
		auth.DELETE("/credentials/:username", h.authMW, h.RemoveCredential)
	}
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates online when possible and against the local
// credential cache when the server is unreachable. The response says
// which path was taken.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Username and password are required")
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Me returns the operator behind the current token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	h.Success(c, gin.H{
		"user":    claims.User(),
		"offline": claims.Offline,
	})
}

// RemoveCredential drops a cached credential, e.g. when a staff member
// leaves. Their next login will require connectivity.
func (h *AuthHandler) RemoveCredential(c *gin.Context) {
	username := c.Param("username")
	if err := h.service.RemoveCachedCredential(c.Request.Context(), username); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
