package inventory

import (
	"context"
	"time"
)

type stockKey struct {
	productID  int64
	locationID int64
}

// reserveDeliveryLines reserves every line of a DELIVERY document or
// none of them. Availability is on-hand minus active reservations,
// decremented by quantities already consumed by earlier lines of the
// same document so two lines cannot double-claim the same units.
func reserveDeliveryLines(ctx context.Context, tx TxRepository, doc *Document, now time.Time) error {
	consumed := make(map[stockKey]float64)
	var shortages []Shortage

	for _, line := range doc.Lines {
		locationID := *line.FromLocationID
		key := stockKey{productID: line.ProductID, locationID: locationID}

		onHand, err := tx.OnHand(ctx, doc.TenantID, line.ProductID, locationID)
		if err != nil {
			return err
		}
		reserved, err := tx.ActiveReserved(ctx, doc.TenantID, line.ProductID, locationID)
		if err != nil {
			return err
		}
		available := onHand - reserved - consumed[key]
		if line.Quantity > available {
			shortages = append(shortages, Shortage{
				LineID:     line.ID,
				ProductID:  line.ProductID,
				LocationID: locationID,
				Requested:  line.Quantity,
				Available:  available,
			})
			continue
		}
		consumed[key] += line.Quantity
	}

	if len(shortages) > 0 {
		return &ReservationFailedError{Shortages: shortages}
	}

	for _, line := range doc.Lines {
		res := StockReservation{
			TenantID:    doc.TenantID,
			ProductID:   line.ProductID,
			LocationID:  *line.FromLocationID,
			DocumentID:  doc.ID,
			LineID:      line.ID,
			ReservedQty: line.Quantity,
			Status:      ReservationActive,
			CreatedAt:   now,
		}
		if err := tx.InsertReservation(ctx, &res); err != nil {
			return err
		}
		if err := tx.SetLineReserved(ctx, line.ID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}
