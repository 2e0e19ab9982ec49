package handlers

import (
	"github.com/gin-gonic/gin"

	"retailops/internal/domain/purchasing"
	"retailops/internal/infrastructure/http/v1/dto"
)

// PurchaseOrderHandler handles purchase order requests.
type PurchaseOrderHandler struct {
	*BaseHandler
	service *purchasing.Service
}

// NewPurchaseOrderHandler creates a purchase order handler.
func NewPurchaseOrderHandler(base *BaseHandler, service *purchasing.Service) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{BaseHandler: base, service: service}
}

// Create handles POST /purchase-orders.
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	po, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, po)
}

// Get handles GET /purchase-orders/:id.
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	poID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	po, err := h.service.GetByID(c.Request.Context(), poID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, po)
}

// Receipts handles GET /purchase-orders/:id/receipts.
func (h *PurchaseOrderHandler) Receipts(c *gin.Context) {
	poID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	receipts, err := h.service.ListReceipts(c.Request.Context(), poID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if receipts == nil {
		receipts = []purchasing.GoodsReceipt{}
	}
	h.OK(c, dto.ListResponse{Items: receipts})
}

// Receive handles POST /purchase-orders/:id/receive.
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	poID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	lines, err := req.ToLines()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Receive(c.Request.Context(), poID, lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ReceiveResponse{Order: res.Order, Receipt: res.Receipt})
}

// Cancel handles POST /purchase-orders/:id/cancel.
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	poID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	po, err := h.service.Cancel(c.Request.Context(), poID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, po)
}
