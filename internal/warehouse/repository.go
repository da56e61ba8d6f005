package warehouse

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// ErrNotFound indicates the warehouse or location does not exist for the tenant.
var ErrNotFound = errors.New("warehouse: not found")

// Repository persists warehouses and locations in PostgreSQL.
type Repository interface {
	Get(ctx context.Context, tenantID, id int64) (Warehouse, error)
	GetDefault(ctx context.Context, tenantID int64) (Warehouse, error)
	List(ctx context.Context, tenantID int64) ([]Warehouse, error)
	CountForTenant(ctx context.Context, tenantID int64) (int, error)
	CreateWithLocations(ctx context.Context, w Warehouse, locations []Location) (Warehouse, []Location, error)
	GetLocation(ctx context.Context, tenantID, locationID int64) (Location, error)
	GetLocationsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Location, error)
	ListLocations(ctx context.Context, tenantID, warehouseID int64) ([]Location, error)
	FindLocationByType(ctx context.Context, tenantID, warehouseID int64, locType LocationType) (Location, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, code, name, is_default, created_at, updated_at
FROM warehouses WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&w.ID, &w.TenantID, &w.Code, &w.Name, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *repository) GetDefault(ctx context.Context, tenantID int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, code, name, is_default, created_at, updated_at
FROM warehouses WHERE tenant_id=$1 AND is_default`, tenantID).
		Scan(&w.ID, &w.TenantID, &w.Code, &w.Name, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, code, name, is_default, created_at, updated_at
FROM warehouses WHERE tenant_id=$1 ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.TenantID, &w.Code, &w.Name, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

func (r *repository) CountForTenant(ctx context.Context, tenantID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM warehouses WHERE tenant_id=$1`, tenantID).Scan(&count)
	return count, err
}

// CreateWithLocations inserts the warehouse and seeds its locations in
// one transaction. When the new warehouse takes the default flag, the
// previous default is cleared in the same transaction.
func (r *repository) CreateWithLocations(ctx context.Context, w Warehouse, locations []Location) (Warehouse, []Location, error) {
	var seeded []Location
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if w.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE warehouses SET is_default=false, updated_at=NOW()
WHERE tenant_id=$1 AND is_default`, w.TenantID); err != nil {
				return err
			}
		}

		err := tx.QueryRow(ctx, `INSERT INTO warehouses (tenant_id, code, name, is_default, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id, created_at, updated_at`,
			w.TenantID, w.Code, w.Name, w.IsDefault).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			return err
		}

		seeded = make([]Location, 0, len(locations))
		for _, loc := range locations {
			loc.WarehouseID = w.ID
			err := tx.QueryRow(ctx, `INSERT INTO locations (warehouse_id, name, location_type, is_active, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id, created_at`,
				loc.WarehouseID, loc.Name, string(loc.Type), loc.IsActive).Scan(&loc.ID, &loc.CreatedAt)
			if err != nil {
				return err
			}
			seeded = append(seeded, loc)
		}
		return nil
	})
	if err != nil {
		return Warehouse{}, nil, err
	}
	return w, seeded, nil
}

func (r *repository) GetLocation(ctx context.Context, tenantID, locationID int64) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT l.id, l.warehouse_id, l.name, l.location_type, l.is_active, l.created_at
FROM locations l JOIN warehouses w ON w.id = l.warehouse_id
WHERE w.tenant_id=$1 AND l.id=$2`, tenantID, locationID).
		Scan(&loc.ID, &loc.WarehouseID, &loc.Name, &loc.Type, &loc.IsActive, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *repository) GetLocationsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Location, error) {
	result := make(map[int64]Location, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.warehouse_id, l.name, l.location_type, l.is_active, l.created_at
FROM locations l JOIN warehouses w ON w.id = l.warehouse_id
WHERE w.tenant_id=$1 AND l.id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.WarehouseID, &loc.Name, &loc.Type, &loc.IsActive, &loc.CreatedAt); err != nil {
			return nil, err
		}
		result[loc.ID] = loc
	}
	return result, rows.Err()
}

func (r *repository) ListLocations(ctx context.Context, tenantID, warehouseID int64) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.warehouse_id, l.name, l.location_type, l.is_active, l.created_at
FROM locations l JOIN warehouses w ON w.id = l.warehouse_id
WHERE w.tenant_id=$1 AND l.warehouse_id=$2 ORDER BY l.id ASC`, tenantID, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.WarehouseID, &loc.Name, &loc.Type, &loc.IsActive, &loc.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (r *repository) FindLocationByType(ctx context.Context, tenantID, warehouseID int64, locType LocationType) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT l.id, l.warehouse_id, l.name, l.location_type, l.is_active, l.created_at
FROM locations l JOIN warehouses w ON w.id = l.warehouse_id
WHERE w.tenant_id=$1 AND l.warehouse_id=$2 AND l.location_type=$3 AND l.is_active
ORDER BY l.id ASC LIMIT 1`, tenantID, warehouseID, string(locType)).
		Scan(&loc.ID, &loc.WarehouseID, &loc.Name, &loc.Type, &loc.IsActive, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, err
	}
	return loc, nil
}
