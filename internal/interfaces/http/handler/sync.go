package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinic/terminal/internal/application/syncsvc"
	"github.com/clinic/terminal/internal/interfaces/http/dto"
)

// SyncHandler exposes the sync queue to the operator. It is not behind
// the lock gate: draining and bootstrapping are how a locked terminal
// recovers.
type SyncHandler struct {
	BaseHandler
	coordinator *syncsvc.Coordinator
	authMW      gin.HandlerFunc
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(coordinator *syncsvc.Coordinator, authMW gin.HandlerFunc) *SyncHandler {
	return &SyncHandler{coordinator: coordinator, authMW: authMW}
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync", h.authMW)
	{
		sync.GET("/status", h.Status)
		sync.POST("/kick", h.Kick)
		sync.POST("/bootstrap", h.Bootstrap)
		sync.GET("/parked", h.Parked)
		sync.POST("/records/:id/reset", h.Reset)
	}
}

// Status counts queue records per state.
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.coordinator.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Kick schedules a drain pass and returns immediately.
func (h *SyncHandler) Kick(c *gin.Context) {
	h.coordinator.Kick()
	c.Status(202)
}

// Bootstrap pulls the reference-data mirror from the server. The
// optional since parameter limits the patient pull.
func (h *SyncHandler) Bootstrap(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "since must be RFC3339")
			return
		}
		since = parsed
	}

	result, err := h.coordinator.Bootstrap(c.Request.Context(), since)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Parked lists records that exhausted their retries.
func (h *SyncHandler) Parked(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.coordinator.ListParked(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// Reset clears a parked record after the operator resolved the
// conflict.
func (h *SyncHandler) Reset(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid record id")
		return
	}
	id, _ := uuid.Parse(req.ID)

	record, err := h.coordinator.ResetRecord(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}
