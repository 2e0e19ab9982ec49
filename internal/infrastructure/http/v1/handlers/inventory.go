package handlers

import (
	"github.com/gin-gonic/gin"

	"retailops/internal/domain/inventory"
	"retailops/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves read-only stock positions and ledgers.
type InventoryHandler struct {
	*BaseHandler
	engine *inventory.Engine
}

// NewInventoryHandler creates an inventory handler.
func NewInventoryHandler(base *BaseHandler, engine *inventory.Engine) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, engine: engine}
}

func (h *InventoryHandler) key(c *gin.Context, variant string) (inventory.Key, bool) {
	productID, ok := h.PathID(c, "productId")
	if !ok {
		return inventory.Key{}, false
	}
	return inventory.Key{TenantID: h.TenantID(c), ProductID: productID, VariantSKU: variant}, true
}

// Snapshot handles GET /inventory/:productId?variant=.
func (h *InventoryHandler) Snapshot(c *gin.Context) {
	key, ok := h.key(c, c.Query("variant"))
	if !ok {
		return
	}
	snap, err := h.engine.Snapshot(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, snap)
}

// Ledger handles GET /inventory/:productId/ledger.
func (h *InventoryHandler) Ledger(c *gin.Context) {
	var q dto.LedgerQuery
	if !h.BindQuery(c, &q) {
		return
	}
	key, ok := h.key(c, q.Variant)
	if !ok {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.engine.Ledger(c.Request.Context(), key, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []inventory.LedgerEntry{}
	}
	h.OK(c, dto.ListResponse{Items: entries})
}

// Verify handles GET /inventory/:productId/verify.
func (h *InventoryHandler) Verify(c *gin.Context) {
	key, ok := h.key(c, c.Query("variant"))
	if !ok {
		return
	}
	if err := h.engine.Verify(c.Request.Context(), key); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"status": "consistent"})
}
