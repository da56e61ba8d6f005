package catalog

// CreateRequest represents a request to create a product.
type CreateRequest struct {
	SKU                 string `json:"sku" validate:"required,max=64"`
	Name                string `json:"name" validate:"required,max=200"`
	Type                string `json:"type" validate:"required,oneof=STOCKABLE SERVICE"`
	UnitOfMeasure       string `json:"unit_of_measure" validate:"required,max=20"`
	RequiresLotTracking bool   `json:"requires_lot_tracking"`
	RequiresExpiryDate  bool   `json:"requires_expiry_date"`
	ShelfLifeDays       *int   `json:"shelf_life_days,omitempty" validate:"omitempty,gt=0"`
}

// UpdateRequest represents a partial update of a product.
type UpdateRequest struct {
	Name                *string `json:"name,omitempty" validate:"omitempty,max=200"`
	UnitOfMeasure       *string `json:"unit_of_measure,omitempty" validate:"omitempty,max=20"`
	IsActive            *bool   `json:"is_active,omitempty"`
	RequiresLotTracking *bool   `json:"requires_lot_tracking,omitempty"`
	RequiresExpiryDate  *bool   `json:"requires_expiry_date,omitempty"`
	ShelfLifeDays       *int    `json:"shelf_life_days,omitempty" validate:"omitempty,gt=0"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search   string
	Type     *ProductType
	IsActive *bool
	Limit    int
	Offset   int
}
