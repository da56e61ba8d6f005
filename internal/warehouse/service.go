package warehouse

import (
	"context"
	"errors"
	"strings"
)

// CreateRequest describes a new warehouse.
type CreateRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	Name      string `json:"name" validate:"required,max=200"`
	IsDefault *bool  `json:"is_default,omitempty"`
}

// Service provides warehouse operations.
type Service struct {
	repo Repository
}

// NewService creates a new service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a warehouse by id.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, errors.New("warehouse: invalid id")
	}
	return s.repo.Get(ctx, tenantID, id)
}

// List returns the tenant's warehouses.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Warehouse, error) {
	return s.repo.List(ctx, tenantID)
}

// Create registers a warehouse and seeds its three standard locations.
// The first warehouse of a tenant becomes the default unless the request
// explicitly says otherwise.
func (s *Service) Create(ctx context.Context, tenantID int64, req CreateRequest) (Warehouse, []Location, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" {
		return Warehouse{}, nil, errors.New("warehouse: code is required")
	}
	if name == "" {
		return Warehouse{}, nil, errors.New("warehouse: name is required")
	}

	count, err := s.repo.CountForTenant(ctx, tenantID)
	if err != nil {
		return Warehouse{}, nil, err
	}
	isDefault := count == 0
	if req.IsDefault != nil {
		isDefault = *req.IsDefault
	}

	w := Warehouse{TenantID: tenantID, Code: code, Name: name, IsDefault: isDefault}
	locations := []Location{
		{Name: "Receiving", Type: LocationTypeReceiving, IsActive: true},
		{Name: "Stock", Type: LocationTypeInternal, IsActive: true},
		{Name: "Shipping", Type: LocationTypeShipping, IsActive: true},
	}
	return s.repo.CreateWithLocations(ctx, w, locations)
}

// GetLocation returns a location by id, scoped to the tenant.
func (s *Service) GetLocation(ctx context.Context, tenantID, locationID int64) (Location, error) {
	if locationID <= 0 {
		return Location{}, errors.New("warehouse: invalid location id")
	}
	return s.repo.GetLocation(ctx, tenantID, locationID)
}

// LocationsByIDs returns the tenant's locations for the given ids,
// keyed by id. Unknown ids are simply absent from the result.
func (s *Service) LocationsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Location, error) {
	return s.repo.GetLocationsByIDs(ctx, tenantID, ids)
}

// ListLocations returns the locations of a warehouse.
func (s *Service) ListLocations(ctx context.Context, tenantID, warehouseID int64) ([]Location, error) {
	return s.repo.ListLocations(ctx, tenantID, warehouseID)
}

// DefaultLocations resolves the default warehouse and its seeded
// locations, used when documents omit a location.
func (s *Service) DefaultLocations(ctx context.Context, tenantID int64) (DefaultLocations, error) {
	w, err := s.repo.GetDefault(ctx, tenantID)
	if err != nil {
		return DefaultLocations{}, err
	}
	out := DefaultLocations{WarehouseID: w.ID}

	receiving, err := s.repo.FindLocationByType(ctx, tenantID, w.ID, LocationTypeReceiving)
	if err != nil {
		return DefaultLocations{}, err
	}
	out.ReceivingID = receiving.ID

	internal, err := s.repo.FindLocationByType(ctx, tenantID, w.ID, LocationTypeInternal)
	if err != nil {
		return DefaultLocations{}, err
	}
	out.InternalID = internal.ID

	shipping, err := s.repo.FindLocationByType(ctx, tenantID, w.ID, LocationTypeShipping)
	if err != nil {
		return DefaultLocations{}, err
	}
	out.ShippingID = shipping.ID

	return out, nil
}
