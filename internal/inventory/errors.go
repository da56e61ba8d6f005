package inventory

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by inventory operations.
var (
	// ErrDocumentNotFound indicates the document does not exist for the tenant.
	ErrDocumentNotFound = errors.New("inventory: document not found")
	// ErrEmptyLines indicates a document without lines.
	ErrEmptyLines = errors.New("inventory: at least one line is required")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrProductUnknown indicates a line references a product the tenant does not have.
	ErrProductUnknown = errors.New("inventory: unknown product")
	// ErrProductNotStockable indicates a SERVICE product on a stock document.
	ErrProductNotStockable = errors.New("inventory: product is not stockable")
	// ErrProductInactive indicates an inactive product on a document line.
	ErrProductInactive = errors.New("inventory: product is inactive")
	// ErrLocationRequired indicates a missing required location for the document type.
	ErrLocationRequired = errors.New("inventory: required location missing")
	// ErrLocationConflict indicates invalid from/to combination for the document type.
	ErrLocationConflict = errors.New("inventory: invalid location combination")
	// ErrLocationInactive indicates a referenced location is inactive.
	ErrLocationInactive = errors.New("inventory: location is inactive")
	// ErrLotNumberRequired indicates a lot-tracked receipt line without a lot number.
	ErrLotNumberRequired = errors.New("inventory: lot number required")
	// ErrExpiryRequired indicates lot expiry could not be resolved.
	ErrExpiryRequired = errors.New("inventory: expiry date required")
	// ErrDuplicateLot indicates the (product, lot number) pair already exists.
	ErrDuplicateLot = errors.New("inventory: duplicate lot number")
	// ErrNumberSpaceExhausted indicates the numbering retry loop gave up.
	ErrNumberSpaceExhausted = errors.New("inventory: document number space exhausted")
	// ErrNotEditable indicates header/line edits on a non-DRAFT document.
	ErrNotEditable = errors.New("inventory: document can no longer be edited")
)

// TransitionError reports an illegal state-machine transition. Callers
// treat it as an integration error, not a retryable condition.
type TransitionError struct {
	From DocumentStatus
	To   DocumentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("inventory: illegal transition %s -> %s", e.From, e.To)
}

func transitionError(from, to DocumentStatus) error {
	return &TransitionError{From: from, To: to}
}

// Shortage describes one line whose requested quantity exceeds what is
// available or allowed.
type Shortage struct {
	LineID     int64   `json:"line_id"`
	ProductID  int64   `json:"product_id"`
	LocationID int64   `json:"location_id"`
	Requested  float64 `json:"requested"`
	Available  float64 `json:"available"`
}

// ReservationFailedError is returned when a DELIVERY confirm cannot
// reserve every line. No reservation is created for any line.
type ReservationFailedError struct {
	Shortages []Shortage `json:"shortages"`
}

func (e *ReservationFailedError) Error() string {
	return fmt.Sprintf("inventory: reservation failed for %d line(s)", len(e.Shortages))
}

// Code returns the machine-readable error code.
func (e *ReservationFailedError) Code() string { return "RESERVATION_FAILED" }

// NegativeStockError is returned when posting would drive on-hand below
// zero under a DISALLOW policy. No move is written.
type NegativeStockError struct {
	Shortages []Shortage `json:"shortages"`
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("inventory: negative stock not allowed for %d line(s)", len(e.Shortages))
}

// Code returns the machine-readable error code.
func (e *NegativeStockError) Code() string { return "NEGATIVE_STOCK_NOT_ALLOWED" }
