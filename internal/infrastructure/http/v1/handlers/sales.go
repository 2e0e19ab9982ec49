package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"retailops/internal/core/id"
	"retailops/internal/domain/billing"
	"retailops/internal/domain/sales"
	"retailops/internal/infrastructure/http/v1/dto"
)

// SaleHandler handles sale requests, including invoicing a sale.
type SaleHandler struct {
	*BaseHandler
	service *sales.Service
	billing *billing.Service
}

// NewSaleHandler creates a sale handler.
func NewSaleHandler(base *BaseHandler, service *sales.Service, billingService *billing.Service) *SaleHandler {
	return &SaleHandler{BaseHandler: base, service: service, billing: billingService}
}

// Create handles POST /sales.
func (h *SaleHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	sale, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, sale)
}

// Get handles GET /sales/:id.
func (h *SaleHandler) Get(c *gin.Context) {
	h.apply(c, h.service.GetByID)
}

// Confirm handles POST /sales/:id/confirm.
func (h *SaleHandler) Confirm(c *gin.Context) {
	h.apply(c, h.service.Confirm)
}

// Deliver handles POST /sales/:id/deliver.
func (h *SaleHandler) Deliver(c *gin.Context) {
	h.apply(c, h.service.Deliver)
}

// Cancel handles POST /sales/:id/cancel.
func (h *SaleHandler) Cancel(c *gin.Context) {
	h.apply(c, h.service.Cancel)
}

func (h *SaleHandler) apply(c *gin.Context, op func(context.Context, id.ID) (*sales.Sale, error)) {
	saleID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	sale, err := op(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sale)
}

// Invoice handles POST /sales/:id/invoice. Repeated calls return the
// existing invoice.
func (h *SaleHandler) Invoice(c *gin.Context) {
	saleID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.billing.IssueInvoice(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}
