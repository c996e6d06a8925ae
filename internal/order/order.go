// Package order defines the consumer-side port for the order/catalog
// service. Verification only needs the restriction flags on line items and
// the delivery state; everything else about orders belongs to another
// service.
package order

import (
	"context"

	id "verity/pkg/domain"
)

// LineItem is one order line with its restriction flags.
type LineItem struct {
	ItemID               string
	Name                 string
	Quantity             int
	AgeRestricted        bool
	MinimumAge           int // 0 means unspecified; verifiers apply their default
	RequiresPrescription bool
	ProductType          id.ProductType
}

// Order is the slice of an order that verification consumes.
type Order struct {
	ID            id.OrderID
	CustomerID    id.CustomerID
	LineItems     []LineItem
	DeliveryState id.Jurisdiction
}

// Reader is implemented by the order service client.
type Reader interface {
	GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
}

// MaxMinimumAge returns the strictest minimum age among age-restricted
// items, falling back to def when items carry no explicit minimum.
func (o *Order) MaxMinimumAge(def int) int {
	max := 0
	for _, item := range o.LineItems {
		if !item.AgeRestricted {
			continue
		}
		age := item.MinimumAge
		if age == 0 {
			age = def
		}
		if age > max {
			max = age
		}
	}
	return max
}

// RequiresAgeCheck reports whether any line item is age-restricted.
func (o *Order) RequiresAgeCheck() bool {
	for _, item := range o.LineItems {
		if item.AgeRestricted {
			return true
		}
	}
	return false
}

// RequiresPrescription reports whether any line item needs a prescription.
func (o *Order) RequiresPrescription() bool {
	for _, item := range o.LineItems {
		if item.RequiresPrescription {
			return true
		}
	}
	return false
}

// TriggeredProductTypes returns the distinct product types that carry
// restrictions, preserving line-item order.
func (o *Order) TriggeredProductTypes() []id.ProductType {
	seen := make(map[id.ProductType]bool)
	var types []id.ProductType
	for _, item := range o.LineItems {
		if !item.AgeRestricted && !item.RequiresPrescription {
			continue
		}
		productType := item.ProductType
		if productType == "" && item.RequiresPrescription {
			productType = id.ProductPrescription
		}
		if productType == "" {
			continue
		}
		if !seen[productType] {
			seen[productType] = true
			types = append(types, productType)
		}
	}
	return types
}
