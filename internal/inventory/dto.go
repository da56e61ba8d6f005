package inventory

import (
	"time"

	"github.com/google/uuid"
)

// LineRequest represents one line of a document create/replace request.
type LineRequest struct {
	ProductID      int64      `json:"product_id" validate:"required,gt=0"`
	Quantity       float64    `json:"quantity" validate:"required,gt=0"`
	UnitCostCents  *int64     `json:"unit_cost_cents,omitempty" validate:"omitempty,gte=0"`
	FromLocationID *int64     `json:"from_location_id,omitempty" validate:"omitempty,gt=0"`
	ToLocationID   *int64     `json:"to_location_id,omitempty" validate:"omitempty,gt=0"`
	LotNumber      *string    `json:"lot_number,omitempty" validate:"omitempty,max=64"`
	MfgDate        *time.Time `json:"mfg_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
}

// CreateDocumentRequest represents a request to create a draft document.
type CreateDocumentRequest struct {
	Type          string        `json:"type" validate:"required,oneof=RECEIPT DELIVERY TRANSFER ADJUSTMENT"`
	ScheduledDate *time.Time    `json:"scheduled_date,omitempty"`
	PostingDate   *time.Time    `json:"posting_date,omitempty"`
	Reference     *string       `json:"reference,omitempty" validate:"omitempty,max=100"`
	PartyID       *int64        `json:"party_id,omitempty" validate:"omitempty,gt=0"`
	SourceType    *string       `json:"source_type,omitempty" validate:"omitempty,max=40"`
	SourceID      *uuid.UUID    `json:"source_id,omitempty"`
	Lines         []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// UpdateHeaderRequest replaces the mutable header fields of a draft.
type UpdateHeaderRequest struct {
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	PostingDate   *time.Time `json:"posting_date,omitempty"`
	Reference     *string    `json:"reference,omitempty" validate:"omitempty,max=100"`
	PartyID       *int64     `json:"party_id,omitempty" validate:"omitempty,gt=0"`
	SourceType    *string    `json:"source_type,omitempty" validate:"omitempty,max=40"`
	SourceID      *uuid.UUID `json:"source_id,omitempty"`
}

// ReplaceLinesRequest swaps a draft's full line set.
type ReplaceLinesRequest struct {
	Lines []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// PostDocumentRequest optionally overrides the posting date.
type PostDocumentRequest struct {
	PostingDate *time.Time `json:"posting_date,omitempty"`
}

// UpsertPolicyRequest creates or updates a reorder policy.
type UpsertPolicyRequest struct {
	ProductID                int64    `json:"product_id" validate:"required,gt=0"`
	WarehouseID              int64    `json:"warehouse_id" validate:"required,gt=0"`
	MinQty                   float64  `json:"min_qty" validate:"gte=0"`
	MaxQty                   *float64 `json:"max_qty,omitempty" validate:"omitempty,gte=0"`
	ReorderPoint             *float64 `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
	PreferredSupplierPartyID *int64   `json:"preferred_supplier_party_id,omitempty" validate:"omitempty,gt=0"`
	LeadTimeDays             *int     `json:"lead_time_days,omitempty" validate:"omitempty,gt=0"`
	IsActive                 bool     `json:"is_active"`
}

// PreviewPickRequest asks the FEFO picker for an allocation preview.
type PreviewPickRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

func (r CreateDocumentRequest) toInput() CreateDocumentInput {
	return CreateDocumentInput{
		Type:          DocumentType(r.Type),
		ScheduledDate: r.ScheduledDate,
		PostingDate:   r.PostingDate,
		Reference:     r.Reference,
		PartyID:       r.PartyID,
		SourceType:    r.SourceType,
		SourceID:      r.SourceID,
		Lines:         toLineInputs(r.Lines),
	}
}

func toLineInputs(reqs []LineRequest) []LineInput {
	lines := make([]LineInput, 0, len(reqs))
	for _, req := range reqs {
		lines = append(lines, LineInput{
			ProductID:      req.ProductID,
			Quantity:       req.Quantity,
			UnitCostCents:  req.UnitCostCents,
			FromLocationID: req.FromLocationID,
			ToLocationID:   req.ToLocationID,
			LotNumber:      req.LotNumber,
			MfgDate:        req.MfgDate,
			ExpiryDate:     req.ExpiryDate,
		})
	}
	return lines
}
