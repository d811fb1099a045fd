package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinic/terminal/internal/domain/connectivity"
)

// ConnectivitySource reports the terminal's link verdict.
type ConnectivitySource interface {
	Snapshot() connectivity.Snapshot
}

// SystemHandler serves health and connectivity state. Both routes are
// unauthenticated: the UI shows the connectivity banner before login.
type SystemHandler struct {
	BaseHandler
	conn       ConnectivitySource
	terminalID string
	startedAt  time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(conn ConnectivitySource, terminalID string) *SystemHandler {
	return &SystemHandler{conn: conn, terminalID: terminalID, startedAt: time.Now()}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/status", h.Status)
}

// Health reports liveness of the terminal process itself.
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, gin.H{
		"status":      "ok",
		"terminal_id": h.terminalID,
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Status reports the connectivity verdict the UI banner renders.
func (h *SystemHandler) Status(c *gin.Context) {
	snapshot := h.conn.Snapshot()
	h.Success(c, gin.H{
		"terminal_id":          h.terminalID,
		"state":                snapshot.State,
		"last_change_at":       snapshot.LastChangeAt,
		"consecutive_failures": snapshot.ConsecutiveFailures,
	})
}
