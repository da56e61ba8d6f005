package inventory

import "math"

// ReorderSuggestion is one replenishment proposal for a
// (product, warehouse) pair whose availability fell to the threshold.
type ReorderSuggestion struct {
	ProductID                int64         `json:"product_id"`
	WarehouseID              int64         `json:"warehouse_id"`
	Available                float64       `json:"available"`
	Threshold                float64       `json:"threshold"`
	SuggestedQty             float64       `json:"suggested_qty"`
	ThresholdMode            ThresholdMode `json:"threshold_mode"`
	PreferredSupplierPartyID *int64        `json:"preferred_supplier_party_id,omitempty"`
	LeadTimeDays             *int          `json:"lead_time_days,omitempty"`
}

// threshold resolves the policy value the given mode compares against.
func (p ReorderPolicy) threshold(mode ThresholdMode) float64 {
	if mode == ThresholdModeReorderPoint && p.ReorderPoint != nil {
		return *p.ReorderPoint
	}
	return p.MinQty
}

// BuildSuggestions evaluates the policies of one warehouse against the
// warehouse-wide on-hand and reserved sums per product. A suggestion is
// emitted when available falls below the threshold; suggestedQty tops
// availability back up to the threshold. Available exactly at the
// threshold does not trigger a suggestion.
func BuildSuggestions(policies []ReorderPolicy, onHand, reserved map[int64]float64, mode ThresholdMode) []ReorderSuggestion {
	var suggestions []ReorderSuggestion
	for _, policy := range policies {
		if !policy.IsActive {
			continue
		}
		available := onHand[policy.ProductID] - reserved[policy.ProductID]
		threshold := policy.threshold(mode)
		if available >= threshold {
			continue
		}
		suggestions = append(suggestions, ReorderSuggestion{
			ProductID:                policy.ProductID,
			WarehouseID:              policy.WarehouseID,
			Available:                available,
			Threshold:                threshold,
			SuggestedQty:             math.Max(threshold-available, 0),
			ThresholdMode:            mode,
			PreferredSupplierPartyID: policy.PreferredSupplierPartyID,
			LeadTimeDays:             policy.LeadTimeDays,
		})
	}
	return suggestions
}
