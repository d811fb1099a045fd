package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/clinic/terminal/internal/application/billing"
	"github.com/clinic/terminal/internal/interfaces/http/dto"
)

// InvoiceHandler handles invoice issuance and lookup.
type InvoiceHandler struct {
	BaseHandler
	service *billingapp.Service
	authMW  gin.HandlerFunc
	lockMW  gin.HandlerFunc
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(service *billingapp.Service, authMW, lockMW gin.HandlerFunc) *InvoiceHandler {
	return &InvoiceHandler{service: service, authMW: authMW, lockMW: lockMW}
}

// RegisterRoutes registers invoice routes. Issuing an invoice is
// local-safe and stays available while the terminal is locked; voiding
// is not, since a void must reach the authority before the number is
// considered cancelled.
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices", h.authMW)
	{
		invoices.POST("", h.Create)
		invoices.POST("/:id/void", h.lockMW, h.Void)
		invoices.GET("/:id", h.Get)
		invoices.GET("", h.List)
	}
}

// Create issues an invoice under the next reserved number.
func (h *InvoiceHandler) Create(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req billingapp.CreateInvoiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Patient, lines and payment method are required")
		return
	}
	req.IssuedBy = claims.OperatorID()

	inv, err := h.service.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Void cancels an invoice. The number stays consumed.
func (h *InvoiceHandler) Void(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid invoice id")
		return
	}
	id, _ := uuid.Parse(req.ID)

	inv, err := h.service.VoidInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Get retrieves an invoice by local id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid invoice id")
		return
	}
	id, _ := uuid.Parse(req.ID)

	inv, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// List retrieves invoices by printed number or by session.
func (h *InvoiceHandler) List(c *gin.Context) {
	if number := c.Query("number"); number != "" {
		inv, err := h.service.GetByNumber(c.Request.Context(), number)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, []any{inv})
		return
	}

	sessionID, err := uuid.Parse(c.Query("session_id"))
	if err != nil {
		h.BadRequest(c, "Either number or session_id is required")
		return
	}
	invoices, err := h.service.ListSessionInvoices(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoices)
}
