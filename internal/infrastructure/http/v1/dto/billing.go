package dto

import (
	"time"

	"retailops/internal/core/types"
	"retailops/internal/domain/billing"
)

// InvoiceResponse is an invoice with its derived payment status.
type InvoiceResponse struct {
	*billing.Invoice
	PaymentStatus billing.PaymentStatus `json:"paymentStatus"`
	Balance       types.Money           `json:"balance"`
}

// FromInvoice builds the response for inv.
func FromInvoice(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		Invoice:       inv,
		PaymentStatus: inv.Status(),
		Balance:       inv.Balance(),
	}
}

// InvoiceListQuery holds the query parameters of GET /invoices.
type InvoiceListQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query to an invoice filter.
func (q *InvoiceListQuery) ToFilter() billing.InvoiceFilter {
	return billing.InvoiceFilter{
		Status: billing.PaymentStatus(q.Status),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
}

// Pagination describes the page of a list response.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// InvoiceListResponse is the body of GET /invoices.
type InvoiceListResponse struct {
	Items      []InvoiceResponse `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// FromInvoicePage builds the list response for page.
func FromInvoicePage(page *billing.InvoicePage) InvoiceListResponse {
	items := make([]InvoiceResponse, 0, len(page.Invoices))
	for i := range page.Invoices {
		items = append(items, FromInvoice(&page.Invoices[i]))
	}
	return InvoiceListResponse{
		Items: items,
		Pagination: Pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore(),
		},
	}
}

// RecordPaymentRequest is the body of POST /payments.
type RecordPaymentRequest struct {
	InvoiceID string      `json:"invoiceId" binding:"required"`
	Amount    types.Money `json:"amount"`
	Method    string      `json:"method" binding:"required"`
	PaidAt    *time.Time  `json:"paidAt,omitempty"`
	Notes     string      `json:"notes,omitempty"`
}

// ToInput converts the request to the service input.
func (r *RecordPaymentRequest) ToInput() (billing.PaymentInput, error) {
	invoiceID, err := ParseID("invoiceId", r.InvoiceID)
	if err != nil {
		return billing.PaymentInput{}, err
	}
	return billing.PaymentInput{
		InvoiceID: invoiceID,
		Amount:    r.Amount,
		Method:    billing.PaymentMethod(r.Method),
		PaidAt:    r.PaidAt,
		Notes:     r.Notes,
	}, nil
}

// PaymentResponse is a recorded payment with the updated invoice.
type PaymentResponse struct {
	Payment *billing.Payment `json:"payment"`
	Invoice InvoiceResponse  `json:"invoice"`
}
