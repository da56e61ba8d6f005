package inventory

import (
	"context"
	"time"
)

// applyPostingMoves appends the stock moves for a document being
// posted, plus lot rows for lot-tracked receipt lines. The caller has
// already run the negative-stock guard and transitioned the document.
func applyPostingMoves(ctx context.Context, tx TxRepository, doc *Document, products map[int64]ProductInfo, postingDate, now time.Time) error {
	for _, line := range doc.Lines {
		switch doc.Type {
		case DocumentTypeReceipt:
			var lotID *int64
			product := products[line.ProductID]
			if product.RequiresLotTracking {
				lot, err := createReceiptLot(ctx, tx, doc, line, product, postingDate)
				if err != nil {
					return err
				}
				lotID = &lot.ID
			}
			if err := insertMove(ctx, tx, doc, line, *line.ToLocationID, line.Quantity, ReasonReceipt, lotID, postingDate, now); err != nil {
				return err
			}
		case DocumentTypeDelivery:
			if err := insertMove(ctx, tx, doc, line, *line.FromLocationID, -line.Quantity, ReasonShipment, nil, postingDate, now); err != nil {
				return err
			}
		case DocumentTypeTransfer:
			if err := insertMove(ctx, tx, doc, line, *line.FromLocationID, -line.Quantity, ReasonTransfer, nil, postingDate, now); err != nil {
				return err
			}
			if err := insertMove(ctx, tx, doc, line, *line.ToLocationID, line.Quantity, ReasonTransfer, nil, postingDate, now); err != nil {
				return err
			}
		case DocumentTypeAdjustment:
			locationID, delta := adjustmentLeg(line)
			if err := insertMove(ctx, tx, doc, line, locationID, delta, ReasonAdjustment, nil, postingDate, now); err != nil {
				return err
			}
		}
	}

	if doc.Type == DocumentTypeDelivery {
		return tx.FulfillReservations(ctx, doc.TenantID, doc.ID, now)
	}
	return nil
}

// adjustmentLeg resolves the single move of an adjustment line: plus at
// the to-location, minus at the from-location. Create-time validation
// guarantees exactly one of the two is set.
func adjustmentLeg(line Line) (int64, float64) {
	if line.ToLocationID != nil {
		return *line.ToLocationID, line.Quantity
	}
	return *line.FromLocationID, -line.Quantity
}

func insertMove(ctx context.Context, tx TxRepository, doc *Document, line Line, locationID int64, delta float64, reason ReasonCode, lotID *int64, postingDate, now time.Time) error {
	move := StockMove{
		TenantID:      doc.TenantID,
		PostingDate:   postingDate,
		ProductID:     line.ProductID,
		LocationID:    locationID,
		QuantityDelta: delta,
		DocumentType:  doc.Type,
		DocumentID:    doc.ID,
		LineID:        line.ID,
		ReasonCode:    reason,
		LotID:         lotID,
		CreatedAt:     now,
		CreatedBy:     doc.CreatedBy,
	}
	return tx.InsertMove(ctx, &move)
}

// createReceiptLot registers the lot for one lot-tracked receipt line.
// The (product, lot number) pair must be new for the tenant.
func createReceiptLot(ctx context.Context, tx TxRepository, doc *Document, line Line, product ProductInfo, postingDate time.Time) (*Lot, error) {
	if line.LotNumber == nil || *line.LotNumber == "" {
		return nil, ErrLotNumberRequired
	}
	expiry, err := resolveExpiry(line, product)
	if err != nil {
		return nil, err
	}
	exists, err := tx.LotNumberExists(ctx, doc.TenantID, line.ProductID, *line.LotNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateLot
	}
	lot := Lot{
		TenantID:        doc.TenantID,
		ProductID:       line.ProductID,
		LotNumber:       *line.LotNumber,
		MfgDate:         line.MfgDate,
		ExpiryDate:      expiry,
		ReceivedDate:    postingDate,
		SourceID:        doc.SourceID,
		SupplierPartyID: doc.PartyID,
		UnitCostCents:   line.UnitCostCents,
		QtyReceived:     line.Quantity,
		QtyOnHand:       line.Quantity,
		QtyReserved:     0,
		Status:          LotAvailable,
	}
	if err := tx.InsertLot(ctx, &lot); err != nil {
		return nil, err
	}
	return &lot, nil
}

// resolveExpiry picks the line's explicit expiry date, or derives one
// from the manufacturing date and the product's shelf life. A product
// that requires an expiry fails the post when neither resolves.
func resolveExpiry(line Line, product ProductInfo) (*time.Time, error) {
	if line.ExpiryDate != nil {
		return line.ExpiryDate, nil
	}
	if line.MfgDate != nil && product.ShelfLifeDays != nil {
		derived := line.MfgDate.AddDate(0, 0, *product.ShelfLifeDays)
		return &derived, nil
	}
	if product.RequiresExpiryDate {
		return nil, ErrExpiryRequired
	}
	return nil, nil
}

// checkNegativeStock enforces the DISALLOW policy for outbound
// documents. On-hand per (product, from-location) pair is computed
// once, then drawn down line by line so a document cannot overdraw a
// pair across several lines.
func checkNegativeStock(ctx context.Context, tx TxRepository, doc *Document) error {
	if doc.Type != DocumentTypeDelivery && doc.Type != DocumentTypeTransfer {
		return nil
	}

	onHand := make(map[stockKey]float64)
	var shortages []Shortage
	for _, line := range doc.Lines {
		locationID := *line.FromLocationID
		key := stockKey{productID: line.ProductID, locationID: locationID}
		if _, ok := onHand[key]; !ok {
			qty, err := tx.OnHand(ctx, doc.TenantID, line.ProductID, locationID)
			if err != nil {
				return err
			}
			onHand[key] = qty
		}
		if onHand[key]-line.Quantity < 0 {
			shortages = append(shortages, Shortage{
				LineID:     line.ID,
				ProductID:  line.ProductID,
				LocationID: locationID,
				Requested:  line.Quantity,
				Available:  onHand[key],
			})
			continue
		}
		onHand[key] -= line.Quantity
	}

	if len(shortages) > 0 {
		return &NegativeStockError{Shortages: shortages}
	}
	return nil
}
