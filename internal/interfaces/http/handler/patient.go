package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinic/terminal/internal/application/patients"
	"github.com/clinic/terminal/internal/interfaces/http/dto"
)

// PatientHandler handles patient registration and offline search.
type PatientHandler struct {
	BaseHandler
	service *patients.Service
	authMW  gin.HandlerFunc
}

// NewPatientHandler creates a new patient handler. Patient creation is
// local-safe, so these routes stay open while the terminal is locked.
func NewPatientHandler(service *patients.Service, authMW gin.HandlerFunc) *PatientHandler {
	return &PatientHandler{service: service, authMW: authMW}
}

// RegisterRoutes registers patient routes
func (h *PatientHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/patients", h.authMW)
	{
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.GET("", h.Search)
	}
}

// Create registers a patient locally and queues it for sync.
func (h *PatientHandler) Create(c *gin.Context) {
	var req patients.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "First name, last name and branch are required")
		return
	}

	p, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, p)
}

// Get retrieves a patient by local id.
func (h *PatientHandler) Get(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid patient id")
		return
	}
	id, _ := uuid.Parse(req.ID)

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// Search matches the local directory by name or document fragment,
// diacritics-insensitive.
func (h *PatientHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		h.BadRequest(c, "Query parameter q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))

	found, err := h.service.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, found)
}
