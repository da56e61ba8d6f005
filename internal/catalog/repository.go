package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the product does not exist for the tenant.
var ErrNotFound = errors.New("catalog: product not found")

// ErrDuplicateSKU indicates the SKU is already taken within the tenant.
var ErrDuplicateSKU = errors.New("catalog: sku already exists")

// Repository persists products in PostgreSQL.
type Repository interface {
	Get(ctx context.Context, tenantID, id int64) (Product, error)
	GetBySKU(ctx context.Context, tenantID int64, sku string) (Product, error)
	GetByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Product, error)
	List(ctx context.Context, tenantID int64, filters ListFilters) ([]Product, int, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, tenant_id, sku, name, product_type, unit_of_measure, is_active,
requires_lot_tracking, requires_expiry_date, shelf_life_days, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Type, &p.UnitOfMeasure, &p.IsActive,
		&p.RequiresLotTracking, &p.RequiresExpiryDate, &p.ShelfLifeDays, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) GetBySKU(ctx context.Context, tenantID int64, sku string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND sku=$2`, tenantID, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) GetByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Product, error) {
	result := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

// List uses a dynamic query due to filter combinations.
func (r *repository) List(ctx context.Context, tenantID int64, filters ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id=$1`
	countQuery := `SELECT COUNT(*) FROM products WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	argCount := 1

	appendFilter := func(clause string, value interface{}) {
		argCount++
		query += ` AND ` + clause + `$` + strconv.Itoa(argCount)
		countQuery += ` AND ` + clause + `$` + strconv.Itoa(argCount)
		args = append(args, value)
	}

	if filters.Search != "" {
		argCount++
		placeholder := `$` + strconv.Itoa(argCount)
		query += ` AND (sku ILIKE ` + placeholder + ` OR name ILIKE ` + placeholder + `)`
		countQuery += ` AND (sku ILIKE ` + placeholder + ` OR name ILIKE ` + placeholder + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Type != nil {
		appendFilter(`product_type = `, string(*filters.Type))
	}
	if filters.IsActive != nil {
		appendFilter(`is_active = `, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY sku ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products
(tenant_id, sku, name, product_type, unit_of_measure, is_active, requires_lot_tracking, requires_expiry_date, shelf_life_days, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		p.TenantID, p.SKU, p.Name, string(p.Type), p.UnitOfMeasure, p.IsActive,
		p.RequiresLotTracking, p.RequiresExpiryDate, p.ShelfLifeDays,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET
name=$3, unit_of_measure=$4, is_active=$5, requires_lot_tracking=$6, requires_expiry_date=$7, shelf_life_days=$8, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`,
		p.TenantID, p.ID, p.Name, p.UnitOfMeasure, p.IsActive,
		p.RequiresLotTracking, p.RequiresExpiryDate, p.ShelfLifeDays)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
