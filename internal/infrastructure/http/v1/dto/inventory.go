package dto

import (
	"retailops/internal/domain/inventory"
)

// LedgerQuery holds the query parameters of the ledger endpoint.
type LedgerQuery struct {
	Variant    string `form:"variant"`
	SourceType string `form:"sourceType"`
	SourceID   string `form:"sourceId"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ToFilter converts the query to a ledger filter.
func (q *LedgerQuery) ToFilter() (inventory.LedgerFilter, error) {
	f := inventory.LedgerFilter{
		SourceType: inventory.SourceType(q.SourceType),
		Limit:      q.Limit,
	}
	if q.SourceID != "" {
		sourceID, err := ParseID("sourceId", q.SourceID)
		if err != nil {
			return inventory.LedgerFilter{}, err
		}
		f.SourceID = sourceID
	}
	return f, nil
}
