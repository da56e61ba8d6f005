package inventory

import (
	"math"
	"sort"
	"time"
)

// LotCandidate is one lot offered to the FEFO picker. Callers supply
// only AVAILABLE lots with positive on-hand.
type LotCandidate struct {
	LotID         int64      `json:"lot_id"`
	LotNumber     string     `json:"lot_number"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	QtyOnHand     float64    `json:"qty_on_hand"`
	QtyReserved   float64    `json:"qty_reserved"`
	UnitCostCents *int64     `json:"unit_cost_cents,omitempty"`
}

// LotAllocation is one picked slice of a lot.
type LotAllocation struct {
	LotID          int64      `json:"lot_id"`
	LotNumber      string     `json:"lot_number"`
	QuantityPicked float64    `json:"quantity_picked"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	UnitCostCents  *int64     `json:"unit_cost_cents,omitempty"`
}

// PickResult is the outcome of a FEFO allocation.
type PickResult struct {
	Requested             float64         `json:"requested"`
	QuantityAllocated     float64         `json:"quantity_allocated"`
	Shortfall             float64         `json:"shortfall"`
	Allocations           []LotAllocation `json:"allocations"`
	WeightedUnitCostCents *int64          `json:"weighted_unit_cost_cents,omitempty"`
}

// PickFEFO allocates the requested quantity from the candidate lots,
// nearest expiry first; lots without an expiry date sort last in their
// original relative order. The function performs no mutation: turning
// allocations into reservations or moves is the caller's job.
func PickFEFO(requested float64, lots []LotCandidate) PickResult {
	result := PickResult{Requested: requested}
	if requested <= 0 || len(lots) == 0 {
		result.Shortfall = math.Max(requested, 0)
		return result
	}

	sorted := make([]LotCandidate, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].ExpiryDate, sorted[j].ExpiryDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	remaining := requested
	for _, lot := range sorted {
		if remaining <= 0 {
			break
		}
		available := lot.QtyOnHand - lot.QtyReserved
		if available <= 0 {
			continue
		}
		picked := math.Min(remaining, available)
		result.Allocations = append(result.Allocations, LotAllocation{
			LotID:          lot.LotID,
			LotNumber:      lot.LotNumber,
			QuantityPicked: picked,
			ExpiryDate:     lot.ExpiryDate,
			UnitCostCents:  lot.UnitCostCents,
		})
		remaining -= picked
	}

	result.QuantityAllocated = requested - remaining
	result.Shortfall = remaining
	result.WeightedUnitCostCents = weightedUnitCost(result.Allocations)
	return result
}

// weightedUnitCost averages unit cost over allocations that carry one;
// nil when no allocation has a cost.
func weightedUnitCost(allocations []LotAllocation) *int64 {
	var totalCost, totalQty float64
	for _, a := range allocations {
		if a.UnitCostCents == nil || a.QuantityPicked <= 0 {
			continue
		}
		totalCost += float64(*a.UnitCostCents) * a.QuantityPicked
		totalQty += a.QuantityPicked
	}
	if totalQty == 0 {
		return nil
	}
	avg := int64(math.Round(totalCost / totalQty))
	return &avg
}
