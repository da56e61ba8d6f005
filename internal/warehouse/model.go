// Package warehouse manages warehouses and their stock locations.
package warehouse

import (
	"time"
)

// LocationType classifies what a location is used for.
type LocationType string

const (
	// LocationTypeReceiving is where inbound goods land.
	LocationTypeReceiving LocationType = "RECEIVING"
	// LocationTypeInternal is the main storage area.
	LocationTypeInternal LocationType = "INTERNAL"
	// LocationTypeShipping is the outbound staging area.
	LocationTypeShipping LocationType = "SHIPPING"
)

// IsValid reports whether the location type is known.
func (t LocationType) IsValid() bool {
	switch t {
	case LocationTypeReceiving, LocationTypeInternal, LocationTypeShipping:
		return true
	default:
		return false
	}
}

// Warehouse represents a warehouse entity. Exactly one warehouse per
// tenant carries the default flag.
type Warehouse struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location represents a stock location inside a warehouse.
type Location struct {
	ID          int64        `json:"id"`
	WarehouseID int64        `json:"warehouse_id"`
	Name        string       `json:"name"`
	Type        LocationType `json:"type"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
}

// DefaultLocations holds the seeded locations of the default warehouse,
// used by document validation to fill in missing locations.
type DefaultLocations struct {
	WarehouseID int64
	ReceivingID int64
	InternalID  int64
	ShippingID  int64
}
