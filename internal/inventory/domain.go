// Package inventory implements inventory document processing and the
// stock ledger: documents move DRAFT -> CONFIRMED -> POSTED (or are
// canceled first), and posting appends immutable stock moves that are
// the single source of truth for on-hand quantity.
package inventory

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType enumerates supported inventory documents.
type DocumentType string

const (
	// DocumentTypeReceipt represents inbound goods.
	DocumentTypeReceipt DocumentType = "RECEIPT"
	// DocumentTypeDelivery represents outbound goods.
	DocumentTypeDelivery DocumentType = "DELIVERY"
	// DocumentTypeTransfer moves stock between locations.
	DocumentTypeTransfer DocumentType = "TRANSFER"
	// DocumentTypeAdjustment corrects counted stock.
	DocumentTypeAdjustment DocumentType = "ADJUSTMENT"
)

// IsValid reports whether the document type is known.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeReceipt, DocumentTypeDelivery, DocumentTypeTransfer, DocumentTypeAdjustment:
		return true
	default:
		return false
	}
}

// DocumentStatus represents the lifecycle of an inventory document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusConfirmed DocumentStatus = "CONFIRMED"
	StatusPosted    DocumentStatus = "POSTED"
	StatusCanceled  DocumentStatus = "CANCELED"
)

// CanEdit reports whether header/lines may still change.
func (s DocumentStatus) CanEdit() bool {
	return s == StatusDraft
}

// CanConfirm reports whether the document may be confirmed.
func (s DocumentStatus) CanConfirm() bool {
	return s == StatusDraft
}

// CanPost reports whether the document may be posted.
func (s DocumentStatus) CanPost() bool {
	return s == StatusConfirmed
}

// CanCancel reports whether the document may be canceled.
func (s DocumentStatus) CanCancel() bool {
	return s == StatusDraft || s == StatusConfirmed
}

// ReasonCode tags a stock move with its business cause.
type ReasonCode string

const (
	ReasonReceipt    ReasonCode = "RECEIPT"
	ReasonShipment   ReasonCode = "SHIPMENT"
	ReasonTransfer   ReasonCode = "TRANSFER"
	ReasonAdjustment ReasonCode = "ADJUSTMENT"
)

// Document is the aggregate root of one inventory transaction. Status
// is mutated only through Confirm, MarkPosted and Cancel so the state
// machine cannot be bypassed.
type Document struct {
	ID            int64          `json:"id"`
	TenantID      int64          `json:"tenant_id"`
	Type          DocumentType   `json:"type"`
	Status        DocumentStatus `json:"status"`
	Number        *string        `json:"number,omitempty"`
	ScheduledDate *time.Time     `json:"scheduled_date,omitempty"`
	PostingDate   *time.Time     `json:"posting_date,omitempty"`
	Reference     *string        `json:"reference,omitempty"`
	PartyID       *int64         `json:"party_id,omitempty"`
	SourceType    *string        `json:"source_type,omitempty"`
	SourceID      *uuid.UUID     `json:"source_id,omitempty"`
	Lines         []Line         `json:"lines"`
	CreatedBy     int64          `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	ConfirmedAt   *time.Time     `json:"confirmed_at,omitempty"`
	PostedAt      *time.Time     `json:"posted_at,omitempty"`
	CanceledAt    *time.Time     `json:"canceled_at,omitempty"`
}

// Confirm assigns the document number and transitions DRAFT -> CONFIRMED.
func (d *Document) Confirm(number string, now time.Time) error {
	if !d.Status.CanConfirm() {
		return transitionError(d.Status, StatusConfirmed)
	}
	d.Number = &number
	d.Status = StatusConfirmed
	d.ConfirmedAt = &now
	return nil
}

// MarkPosted stamps the posting date and transitions CONFIRMED -> POSTED.
func (d *Document) MarkPosted(postingDate, now time.Time) error {
	if !d.Status.CanPost() {
		return transitionError(d.Status, StatusPosted)
	}
	d.PostingDate = &postingDate
	d.Status = StatusPosted
	d.PostedAt = &now
	return nil
}

// Cancel transitions DRAFT or CONFIRMED -> CANCELED.
func (d *Document) Cancel(now time.Time) error {
	if !d.Status.CanCancel() {
		return transitionError(d.Status, StatusCanceled)
	}
	d.Status = StatusCanceled
	d.CanceledAt = &now
	return nil
}

// Line is one product movement within a document.
type Line struct {
	ID               int64      `json:"id"`
	DocumentID       int64      `json:"document_id"`
	ProductID        int64      `json:"product_id"`
	Quantity         float64    `json:"quantity"`
	UnitCostCents    *int64     `json:"unit_cost_cents,omitempty"`
	FromLocationID   *int64     `json:"from_location_id,omitempty"`
	ToLocationID     *int64     `json:"to_location_id,omitempty"`
	LotNumber        *string    `json:"lot_number,omitempty"`
	MfgDate          *time.Time `json:"mfg_date,omitempty"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	ReservedQuantity *float64   `json:"reserved_quantity,omitempty"`
	LineOrder        int        `json:"line_order"`
}

// StockMove is one immutable signed ledger entry. On-hand for a
// (product, location) pair is the sum of QuantityDelta over its moves.
type StockMove struct {
	ID            int64        `json:"id"`
	TenantID      int64        `json:"tenant_id"`
	PostingDate   time.Time    `json:"posting_date"`
	ProductID     int64        `json:"product_id"`
	LocationID    int64        `json:"location_id"`
	QuantityDelta float64      `json:"quantity_delta"`
	DocumentType  DocumentType `json:"document_type"`
	DocumentID    int64        `json:"document_id"`
	LineID        int64        `json:"line_id"`
	ReasonCode    ReasonCode   `json:"reason_code"`
	LotID         *int64       `json:"lot_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	CreatedBy     int64        `json:"created_by"`
}

// ReservationStatus represents the lifecycle of a stock reservation.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationFulfilled ReservationStatus = "FULFILLED"
)

// StockReservation is a provisional hold against future shipment,
// independent of physical stock moves.
type StockReservation struct {
	ID          int64             `json:"id"`
	TenantID    int64             `json:"tenant_id"`
	ProductID   int64             `json:"product_id"`
	LocationID  int64             `json:"location_id"`
	DocumentID  int64             `json:"document_id"`
	LineID      int64             `json:"line_id"`
	ReservedQty float64           `json:"reserved_qty"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ReleasedAt  *time.Time        `json:"released_at,omitempty"`
	FulfilledAt *time.Time        `json:"fulfilled_at,omitempty"`
}

// LotStatus represents the state of an inventory lot.
type LotStatus string

const (
	LotAvailable LotStatus = "AVAILABLE"
	LotDepleted  LotStatus = "DEPLETED"
	LotExpired   LotStatus = "EXPIRED"
)

// Lot tracks lot-level quantity and expiry metadata for lot-tracked
// products. Created only when posting a RECEIPT.
type Lot struct {
	ID              int64      `json:"id"`
	TenantID        int64      `json:"tenant_id"`
	ProductID       int64      `json:"product_id"`
	LotNumber       string     `json:"lot_number"`
	MfgDate         *time.Time `json:"mfg_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	ReceivedDate    time.Time  `json:"received_date"`
	SourceID        *uuid.UUID `json:"source_id,omitempty"`
	SupplierPartyID *int64     `json:"supplier_party_id,omitempty"`
	UnitCostCents   *int64     `json:"unit_cost_cents,omitempty"`
	QtyReceived     float64    `json:"qty_received"`
	QtyOnHand       float64    `json:"qty_on_hand"`
	QtyReserved     float64    `json:"qty_reserved"`
	Status          LotStatus  `json:"status"`
	Notes           *string    `json:"notes,omitempty"`
}

// ThresholdMode selects which policy value low-stock checks compare against.
type ThresholdMode string

const (
	// ThresholdModeMin compares against minQty.
	ThresholdModeMin ThresholdMode = "MIN"
	// ThresholdModeReorderPoint compares against reorderPoint, falling
	// back to minQty when the policy has none.
	ThresholdModeReorderPoint ThresholdMode = "REORDER_POINT"
)

// ReorderPolicy configures replenishment for one (product, warehouse) pair.
type ReorderPolicy struct {
	ID                       int64    `json:"id"`
	TenantID                 int64    `json:"tenant_id"`
	ProductID                int64    `json:"product_id"`
	WarehouseID              int64    `json:"warehouse_id"`
	MinQty                   float64  `json:"min_qty"`
	MaxQty                   *float64 `json:"max_qty,omitempty"`
	ReorderPoint             *float64 `json:"reorder_point,omitempty"`
	PreferredSupplierPartyID *int64   `json:"preferred_supplier_party_id,omitempty"`
	LeadTimeDays             *int     `json:"lead_time_days,omitempty"`
	IsActive                 bool     `json:"is_active"`
}

// NegativeStockPolicy controls whether outbound posting may drive
// on-hand below zero.
type NegativeStockPolicy string

const (
	NegativeStockAllow    NegativeStockPolicy = "ALLOW"
	NegativeStockDisallow NegativeStockPolicy = "DISALLOW"
)

// Settings is the per-tenant inventory singleton: numbering counters
// and the negative-stock policy. Lazily created with defaults on first
// confirm or post.
type Settings struct {
	TenantID            int64                  `json:"tenant_id"`
	DefaultWarehouseID  *int64                 `json:"default_warehouse_id,omitempty"`
	NegativeStockPolicy NegativeStockPolicy    `json:"negative_stock_policy"`
	Counters            map[DocumentType]int64 `json:"counters"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// DefaultSettings returns the lazily-created settings row for a tenant.
func DefaultSettings(tenantID int64) Settings {
	return Settings{
		TenantID:            tenantID,
		NegativeStockPolicy: NegativeStockDisallow,
		Counters:            make(map[DocumentType]int64),
	}
}
