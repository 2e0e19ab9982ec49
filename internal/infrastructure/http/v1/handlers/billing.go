package handlers

import (
	"github.com/gin-gonic/gin"

	"retailops/internal/domain/billing"
	"retailops/internal/infrastructure/http/v1/dto"
)

// BillingHandler handles invoice and payment requests.
type BillingHandler struct {
	*BaseHandler
	service *billing.Service
}

// NewBillingHandler creates a billing handler.
func NewBillingHandler(base *BaseHandler, service *billing.Service) *BillingHandler {
	return &BillingHandler{BaseHandler: base, service: service}
}

// ListInvoices handles GET /invoices.
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	var q dto.InvoiceListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	page, err := h.service.ListInvoices(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoicePage(page))
}

// GetInvoice handles GET /invoices/:id.
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	invoiceID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}

// ListPayments handles GET /invoices/:id/payments.
func (h *BillingHandler) ListPayments(c *gin.Context) {
	invoiceID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if payments == nil {
		payments = []billing.Payment{}
	}
	h.OK(c, dto.ListResponse{Items: payments})
}

// RecordPayment handles POST /payments.
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	payment, inv, err := h.service.RecordPayment(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.PaymentResponse{Payment: payment, Invoice: dto.FromInvoice(inv)})
}
