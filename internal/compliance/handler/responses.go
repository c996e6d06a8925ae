package handler

import (
	"time"

	"verity/internal/compliance"
)

// RequirementsResponse is the body for GET /compliance/requirements/{jurisdiction}.
type RequirementsResponse struct {
	Jurisdiction string                   `json:"jurisdiction"`
	Requirements []compliance.Requirement `json:"requirements"`
}

// CheckResponse is one recorded compliance verdict.
type CheckResponse struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	Jurisdiction string    `json:"jurisdiction"`
	ProductTypes []string  `json:"product_types"`
	Passed       bool      `json:"passed"`
	Issues       []string  `json:"issues,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// ChecksResponse is the body for GET /compliance/orders/{orderID}/checks.
type ChecksResponse struct {
	Checks []CheckResponse `json:"checks"`
}

// FromChecks maps domain checks onto the wire shape.
func FromChecks(checks []compliance.Check) ChecksResponse {
	resp := ChecksResponse{Checks: make([]CheckResponse, 0, len(checks))}
	for _, check := range checks {
		types := make([]string, 0, len(check.ProductTypes))
		for _, t := range check.ProductTypes {
			types = append(types, string(t))
		}
		resp.Checks = append(resp.Checks, CheckResponse{
			ID:           check.ID.String(),
			OrderID:      check.OrderID.String(),
			Jurisdiction: string(check.Jurisdiction),
			ProductTypes: types,
			Passed:       check.Passed,
			Issues:       check.Issues,
			CheckedAt:    check.CheckedAt,
		})
	}
	return resp
}
