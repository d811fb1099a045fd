package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	cashierapp "github.com/clinic/terminal/internal/application/cashier"
)

// SessionHandler handles cash session routes. Open and close are
// local-safe: the front desk keeps working through an outage, so the
// lock gate never applies here.
type SessionHandler struct {
	BaseHandler
	service *cashierapp.Service
	authMW  gin.HandlerFunc
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service *cashierapp.Service, authMW gin.HandlerFunc) *SessionHandler {
	return &SessionHandler{service: service, authMW: authMW}
}

// RegisterRoutes registers cash session routes
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions", h.authMW)
	{
		sessions.POST("", h.Open)
		sessions.POST("/close", h.Close)
		sessions.GET("/active", h.Active)
		sessions.GET("", h.History)
	}
}

// Open opens the terminal's cash session for the current operator.
func (h *SessionHandler) Open(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	session, err := h.service.Open(c.Request.Context(), claims.OperatorID(), claims.DisplayName)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, session)
}

// Close closes the open session and returns the reconciliation totals.
func (h *SessionHandler) Close(c *gin.Context) {
	session, err := h.service.Close(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// Active returns the open session with its running totals.
func (h *SessionHandler) Active(c *gin.Context) {
	session, err := h.service.Active(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// History lists recent sessions, newest first.
func (h *SessionHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	sessions, err := h.service.History(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sessions)
}
