package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clinic/terminal/internal/application/pool"
	"github.com/clinic/terminal/internal/domain/idpool"
)

// PoolHandler exposes the identifier reservation pool.
type PoolHandler struct {
	BaseHandler
	service *pool.Service
	authMW  gin.HandlerFunc
	lockMW  gin.HandlerFunc
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(service *pool.Service, authMW, lockMW gin.HandlerFunc) *PoolHandler {
	return &PoolHandler{service: service, authMW: authMW, lockMW: lockMW}
}

// RegisterRoutes registers pool routes. Drawing a barcode is local-safe
// and works while locked; replenish and return talk to the authority
// and are gated.
func (h *PoolHandler) RegisterRoutes(rg *gin.RouterGroup) {
	pools := rg.Group("/pools", h.authMW)
	{
		pools.GET("/status", h.Status)
		pools.POST("/allocations", h.Allocate)
		pools.POST("/replenish", h.lockMW, h.Replenish)
		pools.POST("/:batch_id/return", h.lockMW, h.Return)
	}
}

// AllocateRequest names the identifier kind to draw.
type AllocateRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// Allocate draws one standalone barcode identifier for a lab order or
// sample tube. Invoice numbers cannot be drawn here; they are only
// minted at issuance.
func (h *PoolHandler) Allocate(c *gin.Context) {
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Identifier kind is required")
		return
	}

	alloc, err := h.service.Allocate(c.Request.Context(), idpool.Kind(req.Kind))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, alloc)
}

// Status reports per-kind headroom and active ranges.
func (h *PoolHandler) Status(c *gin.Context) {
	statuses, err := h.service.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statuses)
}

// Replenish tops up every kind below its low-water mark. No-op while
// offline.
func (h *PoolHandler) Replenish(c *gin.Context) {
	if err := h.service.EnsureHeadroom(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	statuses, err := h.service.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statuses)
}

// Return hands a batch's unused tail back to the server. This is an
// explicit operator action, used when decommissioning a terminal; it is
// never triggered automatically.
func (h *PoolHandler) Return(c *gin.Context) {
	batchID := c.Param("batch_id")
	if err := h.service.ReturnUnused(c.Request.Context(), batchID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
