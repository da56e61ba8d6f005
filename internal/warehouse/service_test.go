package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	warehouses map[int64]Warehouse
	locations  map[int64]Location
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		warehouses: make(map[int64]Warehouse),
		locations:  make(map[int64]Location),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) Get(ctx context.Context, tenantID, id int64) (Warehouse, error) {
	w, ok := r.warehouses[id]
	if !ok || w.TenantID != tenantID {
		return Warehouse{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepo) GetDefault(ctx context.Context, tenantID int64) (Warehouse, error) {
	for _, w := range r.warehouses {
		if w.TenantID == tenantID && w.IsDefault {
			return w, nil
		}
	}
	return Warehouse{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, tenantID int64) ([]Warehouse, error) {
	var result []Warehouse
	for _, w := range r.warehouses {
		if w.TenantID == tenantID {
			result = append(result, w)
		}
	}
	return result, nil
}

func (r *memoryRepo) CountForTenant(ctx context.Context, tenantID int64) (int, error) {
	count := 0
	for _, w := range r.warehouses {
		if w.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) CreateWithLocations(ctx context.Context, w Warehouse, locations []Location) (Warehouse, []Location, error) {
	if w.IsDefault {
		for id, existing := range r.warehouses {
			if existing.TenantID == w.TenantID && existing.IsDefault {
				existing.IsDefault = false
				r.warehouses[id] = existing
			}
		}
	}
	w.ID = r.id()
	r.warehouses[w.ID] = w

	seeded := make([]Location, 0, len(locations))
	for _, loc := range locations {
		loc.ID = r.id()
		loc.WarehouseID = w.ID
		r.locations[loc.ID] = loc
		seeded = append(seeded, loc)
	}
	return w, seeded, nil
}

func (r *memoryRepo) tenantOf(warehouseID int64) int64 {
	return r.warehouses[warehouseID].TenantID
}

func (r *memoryRepo) GetLocation(ctx context.Context, tenantID, locationID int64) (Location, error) {
	loc, ok := r.locations[locationID]
	if !ok || r.tenantOf(loc.WarehouseID) != tenantID {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

func (r *memoryRepo) GetLocationsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Location, error) {
	result := make(map[int64]Location, len(ids))
	for _, id := range ids {
		if loc, ok := r.locations[id]; ok && r.tenantOf(loc.WarehouseID) == tenantID {
			result[id] = loc
		}
	}
	return result, nil
}

func (r *memoryRepo) ListLocations(ctx context.Context, tenantID, warehouseID int64) ([]Location, error) {
	var result []Location
	for _, loc := range r.locations {
		if loc.WarehouseID == warehouseID && r.tenantOf(warehouseID) == tenantID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (r *memoryRepo) FindLocationByType(ctx context.Context, tenantID, warehouseID int64, locType LocationType) (Location, error) {
	for _, loc := range r.locations {
		if loc.WarehouseID == warehouseID && loc.Type == locType && loc.IsActive && r.tenantOf(warehouseID) == tenantID {
			return loc, nil
		}
	}
	return Location{}, ErrNotFound
}

func TestCreateSeedsStandardLocations(t *testing.T) {
	svc := NewService(newMemoryRepo())

	w, locations, err := svc.Create(context.Background(), 1, CreateRequest{Code: "MAIN", Name: "Main"})
	require.NoError(t, err)
	require.True(t, w.IsDefault)
	require.Len(t, locations, 3)

	types := map[LocationType]bool{}
	for _, loc := range locations {
		require.True(t, loc.IsActive)
		require.Equal(t, w.ID, loc.WarehouseID)
		types[loc.Type] = true
	}
	require.True(t, types[LocationTypeReceiving])
	require.True(t, types[LocationTypeInternal])
	require.True(t, types[LocationTypeShipping])
}

func TestCreateSecondWarehouseNotDefault(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	first, _, err := svc.Create(ctx, 1, CreateRequest{Code: "MAIN", Name: "Main"})
	require.NoError(t, err)
	require.True(t, first.IsDefault)

	second, _, err := svc.Create(ctx, 1, CreateRequest{Code: "AUX", Name: "Auxiliary"})
	require.NoError(t, err)
	require.False(t, second.IsDefault)

	// An explicit default takes over from the first warehouse.
	isDefault := true
	third, _, err := svc.Create(ctx, 1, CreateRequest{Code: "NEW", Name: "New Default", IsDefault: &isDefault})
	require.NoError(t, err)
	require.True(t, third.IsDefault)

	defaults, err := svc.DefaultLocations(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, third.ID, defaults.WarehouseID)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, _, err := svc.Create(context.Background(), 1, CreateRequest{Code: "  ", Name: "Blank"})
	require.Error(t, err)
	_, _, err = svc.Create(context.Background(), 1, CreateRequest{Code: "X", Name: ""})
	require.Error(t, err)
}

func TestDefaultLocationsResolvesSeededSet(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	w, locations, err := svc.Create(ctx, 1, CreateRequest{Code: "MAIN", Name: "Main"})
	require.NoError(t, err)

	defaults, err := svc.DefaultLocations(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, w.ID, defaults.WarehouseID)

	byType := map[LocationType]int64{}
	for _, loc := range locations {
		byType[loc.Type] = loc.ID
	}
	require.Equal(t, byType[LocationTypeReceiving], defaults.ReceivingID)
	require.Equal(t, byType[LocationTypeInternal], defaults.InternalID)
	require.Equal(t, byType[LocationTypeShipping], defaults.ShippingID)
}

func TestDefaultLocationsNoWarehouse(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.DefaultLocations(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}
