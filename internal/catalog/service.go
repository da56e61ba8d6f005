package catalog

import (
	"context"
	"errors"
	"strings"
)

// Service provides product master operations.
type Service struct {
	repo Repository
}

// NewService creates a new service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, errors.New("catalog: invalid product id")
	}
	return s.repo.Get(ctx, tenantID, id)
}

// GetBySKU returns a product by SKU.
func (s *Service) GetBySKU(ctx context.Context, tenantID int64, sku string) (Product, error) {
	if strings.TrimSpace(sku) == "" {
		return Product{}, errors.New("catalog: sku required")
	}
	return s.repo.GetBySKU(ctx, tenantID, sku)
}

// GetByIDs returns the tenant's products for the given ids, keyed by id.
// Unknown ids are simply absent from the result.
func (s *Service) GetByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Product, error) {
	return s.repo.GetByIDs(ctx, tenantID, ids)
}

// List returns products matching the filters.
func (s *Service) List(ctx context.Context, tenantID int64, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, tenantID, filters)
}

// Create registers a new product.
func (s *Service) Create(ctx context.Context, tenantID int64, req CreateRequest) (Product, error) {
	p := Product{
		TenantID:            tenantID,
		SKU:                 strings.TrimSpace(req.SKU),
		Name:                strings.TrimSpace(req.Name),
		Type:                ProductType(req.Type),
		UnitOfMeasure:       req.UnitOfMeasure,
		IsActive:            true,
		RequiresLotTracking: req.RequiresLotTracking,
		RequiresExpiryDate:  req.RequiresExpiryDate,
		ShelfLifeDays:       req.ShelfLifeDays,
	}
	if err := s.validate(p); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, p)
}

// Update applies a partial update to a product.
func (s *Service) Update(ctx context.Context, tenantID, id int64, req UpdateRequest) (Product, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return Product{}, err
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.UnitOfMeasure != nil {
		existing.UnitOfMeasure = *req.UnitOfMeasure
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.RequiresLotTracking != nil {
		existing.RequiresLotTracking = *req.RequiresLotTracking
	}
	if req.RequiresExpiryDate != nil {
		existing.RequiresExpiryDate = *req.RequiresExpiryDate
	}
	if req.ShelfLifeDays != nil {
		existing.ShelfLifeDays = req.ShelfLifeDays
	}
	if err := s.validate(existing); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return Product{}, err
	}
	return existing, nil
}

func (s *Service) validate(p Product) error {
	if p.SKU == "" {
		return errors.New("catalog: sku is required")
	}
	if p.Name == "" {
		return errors.New("catalog: name is required")
	}
	if !p.Type.IsValid() {
		return errors.New("catalog: invalid product type")
	}
	if p.RequiresExpiryDate && !p.RequiresLotTracking {
		return errors.New("catalog: expiry tracking requires lot tracking")
	}
	if p.ShelfLifeDays != nil && *p.ShelfLifeDays <= 0 {
		return errors.New("catalog: shelf life must be positive")
	}
	return nil
}
