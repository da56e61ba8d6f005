package inventory

import (
	"context"
	"time"
)

// MoveFilter narrows stock move listings.
type MoveFilter struct {
	ProductID  *int64
	LocationID *int64
	DocumentID *int64
	From       *time.Time
	To         *time.Time
	Limit      int
}

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	ProductID  *int64
	LocationID *int64
	DocumentID *int64
	Status     *ReservationStatus
	Limit      int
}

// LotFilter narrows lot listings.
type LotFilter struct {
	ProductID *int64
	Status    *LotStatus
	Limit     int
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetDocument(ctx context.Context, tenantID, id int64) (*Document, error)
	OnHand(ctx context.Context, tenantID, productID, locationID int64) (float64, error)
	ActiveReserved(ctx context.Context, tenantID, productID, locationID int64) (float64, error)
	ListStockMoves(ctx context.Context, tenantID int64, filter MoveFilter) ([]StockMove, error)
	ListReservations(ctx context.Context, tenantID int64, filter ReservationFilter) ([]StockReservation, error)
	ListLots(ctx context.Context, tenantID int64, filter LotFilter) ([]Lot, error)
	ListExpiringLots(ctx context.Context, tenantID int64, before time.Time) ([]Lot, error)
	ListActivePolicies(ctx context.Context, tenantID int64, warehouseID *int64) ([]ReorderPolicy, error)
	// StockByWarehouse sums on-hand and active reservations per product
	// over every location of the warehouse, in one round trip each.
	StockByWarehouse(ctx context.Context, tenantID, warehouseID int64) (onHand, reserved map[int64]float64, err error)
	GetSettings(ctx context.Context, tenantID int64) (Settings, error)
	UpsertPolicy(ctx context.Context, policy ReorderPolicy) (ReorderPolicy, error)
}

// TxRepository exposes the transactional operations used by the
// confirm/post/cancel flows. Implementations run every call inside the
// transaction opened by WithTx.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc *Document) error
	InsertLines(ctx context.Context, docID int64, lines []Line) ([]Line, error)
	ReplaceLines(ctx context.Context, docID int64, lines []Line) ([]Line, error)
	GetDocumentForUpdate(ctx context.Context, tenantID, id int64) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error

	OnHand(ctx context.Context, tenantID, productID, locationID int64) (float64, error)
	ActiveReserved(ctx context.Context, tenantID, productID, locationID int64) (float64, error)
	InsertMove(ctx context.Context, move *StockMove) error
	InsertReservation(ctx context.Context, res *StockReservation) error
	SetLineReserved(ctx context.Context, lineID int64, qty float64) error
	ReleaseReservations(ctx context.Context, tenantID, documentID int64, now time.Time) error
	FulfillReservations(ctx context.Context, tenantID, documentID int64, now time.Time) error

	LotNumberExists(ctx context.Context, tenantID, productID int64, lotNumber string) (bool, error)
	InsertLot(ctx context.Context, lot *Lot) error

	GetSettingsForUpdate(ctx context.Context, tenantID int64) (Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error
	DocumentNumberExists(ctx context.Context, tenantID int64, number string) (bool, error)
}
