package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextDocumentNumberPrefixes(t *testing.T) {
	tx := &memoryTx{repo: newMemoryRepo()}
	settings := DefaultSettings(1)

	for docType, want := range map[DocumentType]string{
		DocumentTypeReceipt:    "RCP-000001",
		DocumentTypeDelivery:   "DLV-000001",
		DocumentTypeTransfer:   "TRF-000001",
		DocumentTypeAdjustment: "ADJ-000001",
	} {
		number, err := nextDocumentNumber(context.Background(), tx, &settings, docType)
		require.NoError(t, err)
		require.Equal(t, want, number)
	}

	// Counters advance independently per type.
	number, err := nextDocumentNumber(context.Background(), tx, &settings, DocumentTypeReceipt)
	require.NoError(t, err)
	require.Equal(t, "RCP-000002", number)
}

func TestNextDocumentNumberSkipsExisting(t *testing.T) {
	repo := newMemoryRepo()
	taken := "RCP-000001"
	repo.documents[1] = &Document{ID: 1, TenantID: 1, Type: DocumentTypeReceipt, Number: &taken}
	tx := &memoryTx{repo: repo}
	settings := DefaultSettings(1)

	number, err := nextDocumentNumber(context.Background(), tx, &settings, DocumentTypeReceipt)
	require.NoError(t, err)
	require.Equal(t, "RCP-000002", number)
	require.Equal(t, int64(2), settings.Counters[DocumentTypeReceipt])
}

func TestNextDocumentNumberExhaustion(t *testing.T) {
	repo := newMemoryRepo()
	for i := int64(1); i <= maxNumberAttempts; i++ {
		number := fmt.Sprintf("RCP-%06d", i)
		repo.documents[i] = &Document{ID: i, TenantID: 1, Type: DocumentTypeReceipt, Number: &number}
	}
	tx := &memoryTx{repo: repo}
	settings := DefaultSettings(1)

	_, err := nextDocumentNumber(context.Background(), tx, &settings, DocumentTypeReceipt)
	require.ErrorIs(t, err, ErrNumberSpaceExhausted)
}

func TestNextDocumentNumberUnknownType(t *testing.T) {
	tx := &memoryTx{repo: newMemoryRepo()}
	settings := DefaultSettings(1)

	_, err := nextDocumentNumber(context.Background(), tx, &settings, DocumentType("RETURN"))
	require.Error(t, err)
}
