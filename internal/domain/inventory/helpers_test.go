package inventory

import "retailops/internal/core/id"

func uuidOf(s string) id.ID { return id.MustParse(s) }
