// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/types"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
}

// ParseID parses a UUID field, naming it in the error.
func ParseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(strings.TrimSpace(raw))
	if err != nil {
		return id.ID{}, apperror.NewInvalidArgument("invalid " + field).
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return v, nil
}

// parseOptionalID is ParseID for fields that may be empty.
func parseOptionalID(field, raw string) (*id.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := ParseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// moneyOrZero returns m, or zero when the field was omitted.
func moneyOrZero(m *types.Money) types.Money {
	if m == nil {
		return types.Zero()
	}
	return *m
}
