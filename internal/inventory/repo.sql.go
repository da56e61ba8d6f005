package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const documentColumns = `id, tenant_id, doc_type, status, doc_number, scheduled_date, posting_date,
reference, party_id, source_type, source_id, created_by, created_at, confirmed_at, posted_at, canceled_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.TenantID, &d.Type, &d.Status, &d.Number, &d.ScheduledDate, &d.PostingDate,
		&d.Reference, &d.PartyID, &d.SourceType, &d.SourceID, &d.CreatedBy, &d.CreatedAt,
		&d.ConfirmedAt, &d.PostedAt, &d.CanceledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) GetDocument(ctx context.Context, tenantID, id int64) (*Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM inventory_documents WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		return nil, err
	}
	lines, err := loadLines(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return doc, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q queryer, docID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, document_id, product_id, quantity, unit_cost_cents,
from_location_id, to_location_id, lot_number, mfg_date, expiry_date, reserved_quantity, line_order
FROM inventory_document_lines WHERE document_id=$1 ORDER BY line_order ASC, id ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.ProductID, &l.Quantity, &l.UnitCostCents,
			&l.FromLocationID, &l.ToLocationID, &l.LotNumber, &l.MfgDate, &l.ExpiryDate,
			&l.ReservedQuantity, &l.LineOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) OnHand(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return sumOnHand(ctx, r.pool, tenantID, productID, locationID)
}

func (r *Repository) ActiveReserved(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return sumActiveReserved(ctx, r.pool, tenantID, productID, locationID)
}

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumOnHand(ctx context.Context, q rowQueryer, tenantID, productID, locationID int64) (float64, error) {
	var qty float64
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_delta), 0) FROM stock_moves
WHERE tenant_id=$1 AND product_id=$2 AND location_id=$3`, tenantID, productID, locationID).Scan(&qty)
	return qty, err
}

func sumActiveReserved(ctx context.Context, q rowQueryer, tenantID, productID, locationID int64) (float64, error) {
	var qty float64
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(reserved_qty), 0) FROM stock_reservations
WHERE tenant_id=$1 AND product_id=$2 AND location_id=$3 AND status='ACTIVE'`, tenantID, productID, locationID).Scan(&qty)
	return qty, err
}

func (r *Repository) ListStockMoves(ctx context.Context, tenantID int64, filter MoveFilter) ([]StockMove, error) {
	query := `SELECT id, tenant_id, posting_date, product_id, location_id, quantity_delta,
doc_type, document_id, line_id, reason_code, lot_id, created_at, created_by
FROM stock_moves WHERE tenant_id=$1`
	args := []any{tenantID}
	n := 1
	appendArg := func(clause string, value any) {
		n++
		query += ` AND ` + clause + `$` + strconv.Itoa(n)
		args = append(args, value)
	}
	if filter.ProductID != nil {
		appendArg(`product_id = `, *filter.ProductID)
	}
	if filter.LocationID != nil {
		appendArg(`location_id = `, *filter.LocationID)
	}
	if filter.DocumentID != nil {
		appendArg(`document_id = `, *filter.DocumentID)
	}
	if filter.From != nil {
		appendArg(`posting_date >= `, *filter.From)
	}
	if filter.To != nil {
		appendArg(`posting_date <= `, *filter.To)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	n++
	query += ` ORDER BY posting_date ASC, id ASC LIMIT $` + strconv.Itoa(n)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moves []StockMove
	for rows.Next() {
		var m StockMove
		if err := rows.Scan(&m.ID, &m.TenantID, &m.PostingDate, &m.ProductID, &m.LocationID,
			&m.QuantityDelta, &m.DocumentType, &m.DocumentID, &m.LineID, &m.ReasonCode,
			&m.LotID, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

func (r *Repository) ListReservations(ctx context.Context, tenantID int64, filter ReservationFilter) ([]StockReservation, error) {
	query := `SELECT id, tenant_id, product_id, location_id, document_id, line_id, reserved_qty,
status, created_at, released_at, fulfilled_at
FROM stock_reservations WHERE tenant_id=$1`
	args := []any{tenantID}
	n := 1
	appendArg := func(clause string, value any) {
		n++
		query += ` AND ` + clause + `$` + strconv.Itoa(n)
		args = append(args, value)
	}
	if filter.ProductID != nil {
		appendArg(`product_id = `, *filter.ProductID)
	}
	if filter.LocationID != nil {
		appendArg(`location_id = `, *filter.LocationID)
	}
	if filter.DocumentID != nil {
		appendArg(`document_id = `, *filter.DocumentID)
	}
	if filter.Status != nil {
		appendArg(`status = `, string(*filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	n++
	query += ` ORDER BY id ASC LIMIT $` + strconv.Itoa(n)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []StockReservation
	for rows.Next() {
		var res StockReservation
		if err := rows.Scan(&res.ID, &res.TenantID, &res.ProductID, &res.LocationID, &res.DocumentID,
			&res.LineID, &res.ReservedQty, &res.Status, &res.CreatedAt, &res.ReleasedAt, &res.FulfilledAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

const lotColumns = `id, tenant_id, product_id, lot_number, mfg_date, expiry_date, received_date,
source_id, supplier_party_id, unit_cost_cents, qty_received, qty_on_hand, qty_reserved, status, notes`

func scanLot(row pgx.Row) (Lot, error) {
	var l Lot
	err := row.Scan(&l.ID, &l.TenantID, &l.ProductID, &l.LotNumber, &l.MfgDate, &l.ExpiryDate,
		&l.ReceivedDate, &l.SourceID, &l.SupplierPartyID, &l.UnitCostCents,
		&l.QtyReceived, &l.QtyOnHand, &l.QtyReserved, &l.Status, &l.Notes)
	return l, err
}

func (r *Repository) ListLots(ctx context.Context, tenantID int64, filter LotFilter) ([]Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM inventory_lots WHERE tenant_id=$1`
	args := []any{tenantID}
	n := 1
	if filter.ProductID != nil {
		n++
		query += ` AND product_id = $` + strconv.Itoa(n)
		args = append(args, *filter.ProductID)
	}
	if filter.Status != nil {
		n++
		query += ` AND status = $` + strconv.Itoa(n)
		args = append(args, string(*filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	n++
	query += ` ORDER BY expiry_date ASC NULLS LAST, id ASC LIMIT $` + strconv.Itoa(n)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (r *Repository) ListExpiringLots(ctx context.Context, tenantID int64, before time.Time) ([]Lot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lotColumns+` FROM inventory_lots
WHERE tenant_id=$1 AND status='AVAILABLE' AND qty_on_hand > 0 AND expiry_date IS NOT NULL AND expiry_date <= $2
ORDER BY expiry_date ASC, id ASC`, tenantID, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (r *Repository) ListActivePolicies(ctx context.Context, tenantID int64, warehouseID *int64) ([]ReorderPolicy, error) {
	query := `SELECT id, tenant_id, product_id, warehouse_id, min_qty, max_qty, reorder_point,
preferred_supplier_party_id, lead_time_days, is_active
FROM reorder_policies WHERE tenant_id=$1 AND is_active`
	args := []any{tenantID}
	if warehouseID != nil {
		query += ` AND warehouse_id=$2`
		args = append(args, *warehouseID)
	}
	query += ` ORDER BY warehouse_id ASC, product_id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []ReorderPolicy
	for rows.Next() {
		var p ReorderPolicy
		if err := rows.Scan(&p.ID, &p.TenantID, &p.ProductID, &p.WarehouseID, &p.MinQty, &p.MaxQty,
			&p.ReorderPoint, &p.PreferredSupplierPartyID, &p.LeadTimeDays, &p.IsActive); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (r *Repository) StockByWarehouse(ctx context.Context, tenantID, warehouseID int64) (map[int64]float64, map[int64]float64, error) {
	onHand := make(map[int64]float64)
	rows, err := r.pool.Query(ctx, `SELECT m.product_id, COALESCE(SUM(m.quantity_delta), 0)
FROM stock_moves m JOIN locations l ON l.id = m.location_id
WHERE m.tenant_id=$1 AND l.warehouse_id=$2 GROUP BY m.product_id`, tenantID, warehouseID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var productID int64
		var qty float64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, nil, err
		}
		onHand[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	reserved := make(map[int64]float64)
	resRows, err := r.pool.Query(ctx, `SELECT s.product_id, COALESCE(SUM(s.reserved_qty), 0)
FROM stock_reservations s JOIN locations l ON l.id = s.location_id
WHERE s.tenant_id=$1 AND l.warehouse_id=$2 AND s.status='ACTIVE' GROUP BY s.product_id`, tenantID, warehouseID)
	if err != nil {
		return nil, nil, err
	}
	defer resRows.Close()
	for resRows.Next() {
		var productID int64
		var qty float64
		if err := resRows.Scan(&productID, &qty); err != nil {
			return nil, nil, err
		}
		reserved[productID] = qty
	}
	return onHand, reserved, resRows.Err()
}

func (r *Repository) GetSettings(ctx context.Context, tenantID int64) (Settings, error) {
	return loadSettings(ctx, r.pool, tenantID, false)
}

func (r *Repository) UpsertPolicy(ctx context.Context, policy ReorderPolicy) (ReorderPolicy, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO reorder_policies
(tenant_id, product_id, warehouse_id, min_qty, max_qty, reorder_point, preferred_supplier_party_id, lead_time_days, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (tenant_id, product_id, warehouse_id) DO UPDATE SET
min_qty=EXCLUDED.min_qty, max_qty=EXCLUDED.max_qty, reorder_point=EXCLUDED.reorder_point,
preferred_supplier_party_id=EXCLUDED.preferred_supplier_party_id,
lead_time_days=EXCLUDED.lead_time_days, is_active=EXCLUDED.is_active
RETURNING id`,
		policy.TenantID, policy.ProductID, policy.WarehouseID, policy.MinQty, policy.MaxQty,
		policy.ReorderPoint, policy.PreferredSupplierPartyID, policy.LeadTimeDays, policy.IsActive,
	).Scan(&policy.ID)
	if err != nil {
		return ReorderPolicy{}, err
	}
	return policy, nil
}

func loadSettings(ctx context.Context, q rowQueryer, tenantID int64, forUpdate bool) (Settings, error) {
	query := `SELECT tenant_id, default_warehouse_id, negative_stock_policy, counters, updated_at
FROM inventory_settings WHERE tenant_id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var s Settings
	var counters []byte
	err := q.QueryRow(ctx, query, tenantID).Scan(&s.TenantID, &s.DefaultWarehouseID,
		&s.NegativeStockPolicy, &counters, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultSettings(tenantID), nil
		}
		return Settings{}, err
	}
	if err := json.Unmarshal(counters, &s.Counters); err != nil {
		return Settings{}, err
	}
	if s.Counters == nil {
		s.Counters = make(map[DocumentType]int64)
	}
	return s, nil
}

func (t *txRepository) InsertDocument(ctx context.Context, doc *Document) error {
	return t.tx.QueryRow(ctx, `INSERT INTO inventory_documents
(tenant_id, doc_type, status, doc_number, scheduled_date, posting_date, reference, party_id, source_type, source_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
RETURNING id, created_at`,
		doc.TenantID, string(doc.Type), string(doc.Status), doc.Number, doc.ScheduledDate,
		doc.PostingDate, doc.Reference, doc.PartyID, doc.SourceType, doc.SourceID, doc.CreatedBy,
	).Scan(&doc.ID, &doc.CreatedAt)
}

func (t *txRepository) InsertLines(ctx context.Context, docID int64, lines []Line) ([]Line, error) {
	inserted := make([]Line, 0, len(lines))
	for _, line := range lines {
		line.DocumentID = docID
		err := t.tx.QueryRow(ctx, `INSERT INTO inventory_document_lines
(document_id, product_id, quantity, unit_cost_cents, from_location_id, to_location_id, lot_number, mfg_date, expiry_date, reserved_quantity, line_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
			line.DocumentID, line.ProductID, line.Quantity, line.UnitCostCents,
			line.FromLocationID, line.ToLocationID, line.LotNumber, line.MfgDate,
			line.ExpiryDate, line.ReservedQuantity, line.LineOrder,
		).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, line)
	}
	return inserted, nil
}

func (t *txRepository) ReplaceLines(ctx context.Context, docID int64, lines []Line) ([]Line, error) {
	if _, err := t.tx.Exec(ctx, `DELETE FROM inventory_document_lines WHERE document_id=$1`, docID); err != nil {
		return nil, err
	}
	return t.InsertLines(ctx, docID, lines)
}

func (t *txRepository) GetDocumentForUpdate(ctx context.Context, tenantID, id int64) (*Document, error) {
	doc, err := scanDocument(t.tx.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM inventory_documents WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
	if err != nil {
		return nil, err
	}
	lines, err := loadLines(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return doc, nil
}

func (t *txRepository) UpdateDocument(ctx context.Context, doc *Document) error {
	tag, err := t.tx.Exec(ctx, `UPDATE inventory_documents SET
status=$3, doc_number=$4, scheduled_date=$5, posting_date=$6, reference=$7, party_id=$8,
source_type=$9, source_id=$10, confirmed_at=$11, posted_at=$12, canceled_at=$13
WHERE tenant_id=$1 AND id=$2`,
		doc.TenantID, doc.ID, string(doc.Status), doc.Number, doc.ScheduledDate, doc.PostingDate,
		doc.Reference, doc.PartyID, doc.SourceType, doc.SourceID,
		doc.ConfirmedAt, doc.PostedAt, doc.CanceledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (t *txRepository) OnHand(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return sumOnHand(ctx, t.tx, tenantID, productID, locationID)
}

func (t *txRepository) ActiveReserved(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return sumActiveReserved(ctx, t.tx, tenantID, productID, locationID)
}

func (t *txRepository) InsertMove(ctx context.Context, move *StockMove) error {
	return t.tx.QueryRow(ctx, `INSERT INTO stock_moves
(tenant_id, posting_date, product_id, location_id, quantity_delta, doc_type, document_id, line_id, reason_code, lot_id, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),$11)
RETURNING id, created_at`,
		move.TenantID, move.PostingDate, move.ProductID, move.LocationID, move.QuantityDelta,
		string(move.DocumentType), move.DocumentID, move.LineID, string(move.ReasonCode),
		move.LotID, move.CreatedBy,
	).Scan(&move.ID, &move.CreatedAt)
}

func (t *txRepository) InsertReservation(ctx context.Context, res *StockReservation) error {
	return t.tx.QueryRow(ctx, `INSERT INTO stock_reservations
(tenant_id, product_id, location_id, document_id, line_id, reserved_qty, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING id, created_at`,
		res.TenantID, res.ProductID, res.LocationID, res.DocumentID, res.LineID,
		res.ReservedQty, string(res.Status),
	).Scan(&res.ID, &res.CreatedAt)
}

func (t *txRepository) SetLineReserved(ctx context.Context, lineID int64, qty float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventory_document_lines SET reserved_quantity=$2 WHERE id=$1`, lineID, qty)
	return err
}

func (t *txRepository) ReleaseReservations(ctx context.Context, tenantID, documentID int64, now time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_reservations SET status='RELEASED', released_at=$3
WHERE tenant_id=$1 AND document_id=$2 AND status='ACTIVE'`, tenantID, documentID, now)
	return err
}

func (t *txRepository) FulfillReservations(ctx context.Context, tenantID, documentID int64, now time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_reservations SET status='FULFILLED', fulfilled_at=$3
WHERE tenant_id=$1 AND document_id=$2 AND status='ACTIVE'`, tenantID, documentID, now)
	return err
}

func (t *txRepository) LotNumberExists(ctx context.Context, tenantID, productID int64, lotNumber string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_lots
WHERE tenant_id=$1 AND product_id=$2 AND lot_number=$3)`, tenantID, productID, lotNumber).Scan(&exists)
	return exists, err
}

func (t *txRepository) InsertLot(ctx context.Context, lot *Lot) error {
	return t.tx.QueryRow(ctx, `INSERT INTO inventory_lots
(tenant_id, product_id, lot_number, mfg_date, expiry_date, received_date, source_id, supplier_party_id, unit_cost_cents, qty_received, qty_on_hand, qty_reserved, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id`,
		lot.TenantID, lot.ProductID, lot.LotNumber, lot.MfgDate, lot.ExpiryDate, lot.ReceivedDate,
		lot.SourceID, lot.SupplierPartyID, lot.UnitCostCents, lot.QtyReceived, lot.QtyOnHand,
		lot.QtyReserved, string(lot.Status), lot.Notes,
	).Scan(&lot.ID)
}

func (t *txRepository) GetSettingsForUpdate(ctx context.Context, tenantID int64) (Settings, error) {
	return loadSettings(ctx, t.tx, tenantID, true)
}

func (t *txRepository) SaveSettings(ctx context.Context, settings Settings) error {
	counters, err := json.Marshal(settings.Counters)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO inventory_settings
(tenant_id, default_warehouse_id, negative_stock_policy, counters, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (tenant_id) DO UPDATE SET
default_warehouse_id=EXCLUDED.default_warehouse_id,
negative_stock_policy=EXCLUDED.negative_stock_policy,
counters=EXCLUDED.counters, updated_at=NOW()`,
		settings.TenantID, settings.DefaultWarehouseID, string(settings.NegativeStockPolicy), counters)
	return err
}

func (t *txRepository) DocumentNumberExists(ctx context.Context, tenantID int64, number string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_documents
WHERE tenant_id=$1 AND doc_number=$2)`, tenantID, number).Scan(&exists)
	return exists, err
}
