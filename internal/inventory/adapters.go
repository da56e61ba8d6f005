package inventory

import (
	"context"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/warehouse"
)

// CatalogAdapter implements CatalogPort on top of the catalog service.
type CatalogAdapter struct {
	Products *catalog.Service
}

func (a CatalogAdapter) ProductsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]ProductInfo, error) {
	products, err := a.Products.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	result := make(map[int64]ProductInfo, len(products))
	for id, p := range products {
		result[id] = ProductInfo{
			ID:                  p.ID,
			SKU:                 p.SKU,
			IsStockable:         p.Type == catalog.ProductTypeStockable,
			IsActive:            p.IsActive,
			RequiresLotTracking: p.RequiresLotTracking,
			RequiresExpiryDate:  p.RequiresExpiryDate,
			ShelfLifeDays:       p.ShelfLifeDays,
		}
	}
	return result, nil
}

// WarehouseAdapter implements WarehousePort on top of the warehouse service.
type WarehouseAdapter struct {
	Warehouses *warehouse.Service
}

func (a WarehouseAdapter) DefaultLocations(ctx context.Context, tenantID int64) (*DefaultLocationSet, error) {
	defaults, err := a.Warehouses.DefaultLocations(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &DefaultLocationSet{
		WarehouseID: defaults.WarehouseID,
		ReceivingID: defaults.ReceivingID,
		InternalID:  defaults.InternalID,
		ShippingID:  defaults.ShippingID,
	}, nil
}

func (a WarehouseAdapter) LocationsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]LocationInfo, error) {
	locations, err := a.Warehouses.LocationsByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	result := make(map[int64]LocationInfo, len(locations))
	for id, loc := range locations {
		result[id] = LocationInfo{ID: loc.ID, WarehouseID: loc.WarehouseID, IsActive: loc.IsActive}
	}
	return result, nil
}
