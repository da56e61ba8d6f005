// Package catalog manages the product master used by inventory documents.
package catalog

import (
	"time"
)

// ProductType distinguishes goods that move stock from pure services.
type ProductType string

const (
	// ProductTypeStockable marks products tracked in the stock ledger.
	ProductTypeStockable ProductType = "STOCKABLE"
	// ProductTypeService marks products that never post ledger entries.
	ProductTypeService ProductType = "SERVICE"
)

// IsValid reports whether the product type is known.
func (t ProductType) IsValid() bool {
	return t == ProductTypeStockable || t == ProductTypeService
}

// Product represents a product entity.
type Product struct {
	ID                  int64       `json:"id"`
	TenantID            int64       `json:"tenant_id"`
	SKU                 string      `json:"sku"`
	Name                string      `json:"name"`
	Type                ProductType `json:"type"`
	UnitOfMeasure       string      `json:"unit_of_measure"`
	IsActive            bool        `json:"is_active"`
	RequiresLotTracking bool        `json:"requires_lot_tracking"`
	RequiresExpiryDate  bool        `json:"requires_expiry_date"`
	ShelfLifeDays       *int        `json:"shelf_life_days,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}
