package inventory

import (
	"context"
	"fmt"
)

// documentPrefixes maps document types to their number prefixes.
var documentPrefixes = map[DocumentType]string{
	DocumentTypeReceipt:    "RCP",
	DocumentTypeDelivery:   "DLV",
	DocumentTypeTransfer:   "TRF",
	DocumentTypeAdjustment: "ADJ",
}

// maxNumberAttempts bounds the collision retry loop. Collisions only
// happen when numbers were imported out of band, so a handful of
// attempts is plenty.
const maxNumberAttempts = 25

// nextDocumentNumber advances the per-type counter in settings and
// returns the first unused number. The caller persists settings in the
// same transaction, so the counter and the document commit atomically.
func nextDocumentNumber(ctx context.Context, tx TxRepository, settings *Settings, docType DocumentType) (string, error) {
	prefix, ok := documentPrefixes[docType]
	if !ok {
		return "", fmt.Errorf("inventory: no number prefix for document type %s", docType)
	}
	if settings.Counters == nil {
		settings.Counters = make(map[DocumentType]int64)
	}
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		settings.Counters[docType]++
		number := fmt.Sprintf("%s-%06d", prefix, settings.Counters[docType])
		exists, err := tx.DocumentNumberExists(ctx, settings.TenantID, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", ErrNumberSpaceExhausted
}
