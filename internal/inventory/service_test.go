package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	documents    map[int64]*Document
	moves        []StockMove
	reservations []*StockReservation
	lots         []*Lot
	policies     []ReorderPolicy
	settings     map[int64]Settings
	stock        map[int64]map[int64]float64 // warehouseID -> productID -> onHand
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		documents: make(map[int64]*Document),
		settings:  make(map[int64]Settings),
		stock:     make(map[int64]map[int64]float64),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func copyDocument(doc *Document) *Document {
	cp := *doc
	cp.Lines = make([]Line, len(doc.Lines))
	copy(cp.Lines, doc.Lines)
	return &cp
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetDocument(ctx context.Context, tenantID, id int64) (*Document, error) {
	doc, ok := r.documents[id]
	if !ok || doc.TenantID != tenantID {
		return nil, ErrDocumentNotFound
	}
	return copyDocument(doc), nil
}

func (r *memoryRepo) onHand(tenantID, productID, locationID int64) float64 {
	var sum float64
	for _, m := range r.moves {
		if m.TenantID == tenantID && m.ProductID == productID && m.LocationID == locationID {
			sum += m.QuantityDelta
		}
	}
	return sum
}

func (r *memoryRepo) activeReserved(tenantID, productID, locationID int64) float64 {
	var sum float64
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.ProductID == productID &&
			res.LocationID == locationID && res.Status == ReservationActive {
			sum += res.ReservedQty
		}
	}
	return sum
}

func (r *memoryRepo) OnHand(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return r.onHand(tenantID, productID, locationID), nil
}

func (r *memoryRepo) ActiveReserved(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return r.activeReserved(tenantID, productID, locationID), nil
}

func (r *memoryRepo) ListStockMoves(ctx context.Context, tenantID int64, filter MoveFilter) ([]StockMove, error) {
	var result []StockMove
	for _, m := range r.moves {
		if m.TenantID != tenantID {
			continue
		}
		if filter.DocumentID != nil && m.DocumentID != *filter.DocumentID {
			continue
		}
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (r *memoryRepo) ListReservations(ctx context.Context, tenantID int64, filter ReservationFilter) ([]StockReservation, error) {
	var result []StockReservation
	for _, res := range r.reservations {
		if res.TenantID != tenantID {
			continue
		}
		if filter.DocumentID != nil && res.DocumentID != *filter.DocumentID {
			continue
		}
		if filter.Status != nil && res.Status != *filter.Status {
			continue
		}
		result = append(result, *res)
	}
	return result, nil
}

func (r *memoryRepo) ListLots(ctx context.Context, tenantID int64, filter LotFilter) ([]Lot, error) {
	var result []Lot
	for _, lot := range r.lots {
		if lot.TenantID != tenantID {
			continue
		}
		if filter.ProductID != nil && lot.ProductID != *filter.ProductID {
			continue
		}
		if filter.Status != nil && lot.Status != *filter.Status {
			continue
		}
		result = append(result, *lot)
	}
	return result, nil
}

func (r *memoryRepo) ListExpiringLots(ctx context.Context, tenantID int64, before time.Time) ([]Lot, error) {
	var result []Lot
	for _, lot := range r.lots {
		if lot.TenantID != tenantID || lot.Status != LotAvailable || lot.QtyOnHand <= 0 {
			continue
		}
		if lot.ExpiryDate == nil || lot.ExpiryDate.After(before) {
			continue
		}
		result = append(result, *lot)
	}
	return result, nil
}

func (r *memoryRepo) ListActivePolicies(ctx context.Context, tenantID int64, warehouseID *int64) ([]ReorderPolicy, error) {
	var result []ReorderPolicy
	for _, p := range r.policies {
		if p.TenantID != tenantID || !p.IsActive {
			continue
		}
		if warehouseID != nil && p.WarehouseID != *warehouseID {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (r *memoryRepo) StockByWarehouse(ctx context.Context, tenantID, warehouseID int64) (map[int64]float64, map[int64]float64, error) {
	onHand := make(map[int64]float64)
	for productID, qty := range r.stock[warehouseID] {
		onHand[productID] = qty
	}
	return onHand, map[int64]float64{}, nil
}

func (r *memoryRepo) GetSettings(ctx context.Context, tenantID int64) (Settings, error) {
	if s, ok := r.settings[tenantID]; ok {
		return s, nil
	}
	return DefaultSettings(tenantID), nil
}

func (r *memoryRepo) UpsertPolicy(ctx context.Context, policy ReorderPolicy) (ReorderPolicy, error) {
	policy.ID = r.id()
	r.policies = append(r.policies, policy)
	return policy, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertDocument(ctx context.Context, doc *Document) error {
	doc.ID = tx.repo.id()
	tx.repo.documents[doc.ID] = copyDocument(doc)
	return nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, docID int64, lines []Line) ([]Line, error) {
	doc := tx.repo.documents[docID]
	inserted := make([]Line, 0, len(lines))
	for _, line := range lines {
		line.ID = tx.repo.id()
		line.DocumentID = docID
		inserted = append(inserted, line)
	}
	doc.Lines = inserted
	result := make([]Line, len(inserted))
	copy(result, inserted)
	return result, nil
}

func (tx *memoryTx) ReplaceLines(ctx context.Context, docID int64, lines []Line) ([]Line, error) {
	tx.repo.documents[docID].Lines = nil
	return tx.InsertLines(ctx, docID, lines)
}

func (tx *memoryTx) GetDocumentForUpdate(ctx context.Context, tenantID, id int64) (*Document, error) {
	return tx.repo.GetDocument(ctx, tenantID, id)
}

func (tx *memoryTx) UpdateDocument(ctx context.Context, doc *Document) error {
	stored, ok := tx.repo.documents[doc.ID]
	if !ok {
		return ErrDocumentNotFound
	}
	updated := copyDocument(doc)
	updated.Lines = stored.Lines
	tx.repo.documents[doc.ID] = updated
	return nil
}

func (tx *memoryTx) OnHand(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return tx.repo.onHand(tenantID, productID, locationID), nil
}

func (tx *memoryTx) ActiveReserved(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return tx.repo.activeReserved(tenantID, productID, locationID), nil
}

func (tx *memoryTx) InsertMove(ctx context.Context, move *StockMove) error {
	move.ID = tx.repo.id()
	tx.repo.moves = append(tx.repo.moves, *move)
	return nil
}

func (tx *memoryTx) InsertReservation(ctx context.Context, res *StockReservation) error {
	res.ID = tx.repo.id()
	stored := *res
	tx.repo.reservations = append(tx.repo.reservations, &stored)
	return nil
}

func (tx *memoryTx) SetLineReserved(ctx context.Context, lineID int64, qty float64) error {
	for _, doc := range tx.repo.documents {
		for i := range doc.Lines {
			if doc.Lines[i].ID == lineID {
				doc.Lines[i].ReservedQuantity = &qty
			}
		}
	}
	return nil
}

func (tx *memoryTx) ReleaseReservations(ctx context.Context, tenantID, documentID int64, now time.Time) error {
	for _, res := range tx.repo.reservations {
		if res.TenantID == tenantID && res.DocumentID == documentID && res.Status == ReservationActive {
			res.Status = ReservationReleased
			res.ReleasedAt = &now
		}
	}
	return nil
}

func (tx *memoryTx) FulfillReservations(ctx context.Context, tenantID, documentID int64, now time.Time) error {
	for _, res := range tx.repo.reservations {
		if res.TenantID == tenantID && res.DocumentID == documentID && res.Status == ReservationActive {
			res.Status = ReservationFulfilled
			res.FulfilledAt = &now
		}
	}
	return nil
}

func (tx *memoryTx) LotNumberExists(ctx context.Context, tenantID, productID int64, lotNumber string) (bool, error) {
	for _, lot := range tx.repo.lots {
		if lot.TenantID == tenantID && lot.ProductID == productID && lot.LotNumber == lotNumber {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) InsertLot(ctx context.Context, lot *Lot) error {
	lot.ID = tx.repo.id()
	stored := *lot
	tx.repo.lots = append(tx.repo.lots, &stored)
	return nil
}

func (tx *memoryTx) GetSettingsForUpdate(ctx context.Context, tenantID int64) (Settings, error) {
	return tx.repo.GetSettings(ctx, tenantID)
}

func (tx *memoryTx) SaveSettings(ctx context.Context, settings Settings) error {
	tx.repo.settings[settings.TenantID] = settings
	return nil
}

func (tx *memoryTx) DocumentNumberExists(ctx context.Context, tenantID int64, number string) (bool, error) {
	for _, doc := range tx.repo.documents {
		if doc.TenantID == tenantID && doc.Number != nil && *doc.Number == number {
			return true, nil
		}
	}
	return false, nil
}

type fakeCatalog struct {
	products map[int64]ProductInfo
}

func (c fakeCatalog) ProductsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]ProductInfo, error) {
	result := make(map[int64]ProductInfo)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

type fakeWarehouse struct {
	defaults  DefaultLocationSet
	locations map[int64]LocationInfo
}

func (w fakeWarehouse) DefaultLocations(ctx context.Context, tenantID int64) (*DefaultLocationSet, error) {
	defaults := w.defaults
	return &defaults, nil
}

func (w fakeWarehouse) LocationsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]LocationInfo, error) {
	result := make(map[int64]LocationInfo)
	for _, id := range ids {
		if loc, ok := w.locations[id]; ok {
			result[id] = loc
		}
	}
	return result, nil
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

type memoryIdempotency struct {
	entries map[string][]byte
}

func (m *memoryIdempotency) key(tenantID int64, action, key string) string {
	return action + ":" + key
}

func (m *memoryIdempotency) Get(ctx context.Context, tenantID int64, action, key string) ([]byte, bool, error) {
	payload, ok := m.entries[m.key(tenantID, action, key)]
	return payload, ok, nil
}

func (m *memoryIdempotency) Put(ctx context.Context, tenantID int64, action, key string, result []byte) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[m.key(tenantID, action, key)] = result
	return nil
}

const (
	locReceiving = int64(11)
	locInternal  = int64(12)
	locShipping  = int64(13)
	locInactive  = int64(14)
	locRemote    = int64(21)
)

func shelfDays(n int) *int { return &n }

func newTestService(repo *memoryRepo) *Service {
	catalogPort := fakeCatalog{products: map[int64]ProductInfo{
		1: {ID: 1, SKU: "WIDGET", IsStockable: true, IsActive: true},
		2: {ID: 2, SKU: "SERUM", IsStockable: true, IsActive: true, RequiresLotTracking: true, RequiresExpiryDate: true, ShelfLifeDays: shelfDays(30)},
		3: {ID: 3, SKU: "INSTALL", IsStockable: false, IsActive: true},
		4: {ID: 4, SKU: "RETIRED", IsStockable: true, IsActive: false},
	}}
	warehousePort := fakeWarehouse{
		defaults: DefaultLocationSet{WarehouseID: 1, ReceivingID: locReceiving, InternalID: locInternal, ShippingID: locShipping},
		locations: map[int64]LocationInfo{
			locReceiving: {ID: locReceiving, WarehouseID: 1, IsActive: true},
			locInternal:  {ID: locInternal, WarehouseID: 1, IsActive: true},
			locShipping:  {ID: locShipping, WarehouseID: 1, IsActive: true},
			locInactive:  {ID: locInactive, WarehouseID: 1, IsActive: false},
			locRemote:    {ID: locRemote, WarehouseID: 2, IsActive: true},
		},
	}
	clock := fixedClock{at: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	return NewService(repo, catalogPort, warehousePort, nil, nil, &memoryIdempotency{}, clock, nil)
}

func seedStock(repo *memoryRepo, tenantID, productID, locationID int64, qty float64) {
	repo.moves = append(repo.moves, StockMove{
		ID:            repo.id(),
		TenantID:      tenantID,
		ProductID:     productID,
		LocationID:    locationID,
		QuantityDelta: qty,
		DocumentType:  DocumentTypeAdjustment,
		ReasonCode:    ReasonAdjustment,
	})
}

func TestCreateDocumentValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{Type: DocumentTypeReceipt})
	require.ErrorIs(t, err, ErrEmptyLines)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 1, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 3, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrProductNotStockable)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 4, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrProductInactive)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 99, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrProductUnknown)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeTransfer,
		Lines: []LineInput{{ProductID: 1, Quantity: 1, FromLocationID: ptr(locInternal), ToLocationID: ptr(locInternal)}},
	})
	require.ErrorIs(t, err, ErrLocationConflict)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeTransfer,
		Lines: []LineInput{{ProductID: 1, Quantity: 1, FromLocationID: ptr(locInternal)}},
	})
	require.ErrorIs(t, err, ErrLocationRequired)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeAdjustment,
		Lines: []LineInput{{ProductID: 1, Quantity: 1, FromLocationID: ptr(locInternal), ToLocationID: ptr(locShipping)}},
	})
	require.ErrorIs(t, err, ErrLocationConflict)

	_, err = svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeDelivery,
		Lines: []LineInput{{ProductID: 1, Quantity: 1, FromLocationID: ptr(locInactive)}},
	})
	require.ErrorIs(t, err, ErrLocationInactive)
}

func TestCreateReceiptDefaultsLocation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	doc, err := svc.CreateDocument(context.Background(), 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, doc.Status)
	require.Nil(t, doc.Number)
	require.Len(t, doc.Lines, 1)
	require.NotNil(t, doc.Lines[0].ToLocationID)
	require.Equal(t, locReceiving, *doc.Lines[0].ToLocationID)
}

func TestConfirmAssignsSequentialNumbers(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)
	second, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmDocument(ctx, 1, 7, first.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.Number)
	require.Equal(t, "RCP-000001", *confirmed.Number)

	confirmed2, err := svc.ConfirmDocument(ctx, 1, 7, second.ID, "")
	require.NoError(t, err)
	require.Equal(t, "RCP-000002", *confirmed2.Number)

	_, err = svc.ConfirmDocument(ctx, 1, 7, first.ID, "")
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, StatusConfirmed, transitionErr.From)
}

func TestDeliveryConfirmIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	seedStock(repo, 1, 1, locInternal, 10)

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type: DocumentTypeDelivery,
		Lines: []LineInput{
			{ProductID: 1, Quantity: 6},
			{ProductID: 1, Quantity: 6},
		},
	})
	require.NoError(t, err)

	_, err = svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	var reservationErr *ReservationFailedError
	require.ErrorAs(t, err, &reservationErr)
	require.Len(t, reservationErr.Shortages, 1)
	require.InDelta(t, 6, reservationErr.Shortages[0].Requested, 0.0001)
	require.InDelta(t, 4, reservationErr.Shortages[0].Available, 0.0001)

	require.Empty(t, repo.reservations)
	unchanged, err := svc.GetDocument(ctx, 1, doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, unchanged.Status)
}

func TestDeliveryLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	seedStock(repo, 1, 1, locInternal, 10)

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeDelivery,
		Lines: []LineInput{{ProductID: 1, Quantity: 4}},
	})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	require.NoError(t, err)
	require.Equal(t, "DLV-000001", *confirmed.Number)
	require.Len(t, repo.reservations, 1)
	require.Equal(t, ReservationActive, repo.reservations[0].Status)

	available, err := svc.GetAvailable(ctx, 1, 1, locInternal)
	require.NoError(t, err)
	require.InDelta(t, 6, available, 0.0001)

	posted, err := svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostingDate)
	require.Equal(t, ReservationFulfilled, repo.reservations[0].Status)

	onHand, err := svc.GetOnHand(ctx, 1, 1, locInternal)
	require.NoError(t, err)
	require.InDelta(t, 6, onHand, 0.0001)

	moves, err := svc.ListStockMoves(ctx, 1, MoveFilter{DocumentID: &doc.ID})
	require.NoError(t, err)
	require.Len(t, moves, 1)
	require.InDelta(t, -4, moves[0].QuantityDelta, 0.0001)
	require.Equal(t, ReasonShipment, moves[0].ReasonCode)
}

func TestCancelReleasesReservations(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	seedStock(repo, 1, 1, locInternal, 10)

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeDelivery,
		Lines: []LineInput{{ProductID: 1, Quantity: 4}},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	require.NoError(t, err)

	canceled, err := svc.CancelDocument(ctx, 1, 7, doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.Equal(t, ReservationReleased, repo.reservations[0].Status)

	available, err := svc.GetAvailable(ctx, 1, 1, locInternal)
	require.NoError(t, err)
	require.InDelta(t, 10, available, 0.0001)

	_, err = svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestPostReceiptCreatesLot(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	mfg := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	cost := int64(2500)
	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type: DocumentTypeReceipt,
		Lines: []LineInput{{
			ProductID:     2,
			Quantity:      12,
			UnitCostCents: &cost,
			LotNumber:     strPtr("LOT-A"),
			MfgDate:       &mfg,
		}},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	require.NoError(t, err)
	posted, err := svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)

	require.Len(t, repo.lots, 1)
	lot := repo.lots[0]
	require.Equal(t, "LOT-A", lot.LotNumber)
	require.Equal(t, LotAvailable, lot.Status)
	require.InDelta(t, 12, lot.QtyReceived, 0.0001)
	require.InDelta(t, 12, lot.QtyOnHand, 0.0001)
	require.InDelta(t, 0, lot.QtyReserved, 0.0001)
	require.NotNil(t, lot.ExpiryDate)
	require.Equal(t, mfg.AddDate(0, 0, 30), *lot.ExpiryDate)

	require.Len(t, repo.moves, 1)
	require.NotNil(t, repo.moves[0].LotID)
	require.Equal(t, lot.ID, *repo.moves[0].LotID)
	require.Equal(t, ReasonReceipt, repo.moves[0].ReasonCode)
}

func TestPostReceiptLotValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// Missing lot number on a lot-tracked product.
	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 2, Quantity: 5}},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	require.NoError(t, err)
	_, err = svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	require.ErrorIs(t, err, ErrLotNumberRequired)

	// Neither expiry nor mfg date resolves an expiry for a product that requires one.
	doc2, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 2, Quantity: 5, LotNumber: strPtr("LOT-B")}},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmDocument(ctx, 1, 7, doc2.ID, "")
	require.NoError(t, err)
	_, err = svc.PostDocument(ctx, 1, 7, doc2.ID, nil, "")
	require.ErrorIs(t, err, ErrExpiryRequired)

	// Duplicate (product, lot number) is rejected.
	expiry := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	for _, want := range []error{nil, ErrDuplicateLot} {
		doc3, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
			Type:  DocumentTypeReceipt,
			Lines: []LineInput{{ProductID: 2, Quantity: 5, LotNumber: strPtr("LOT-C"), ExpiryDate: &expiry}},
		})
		require.NoError(t, err)
		_, err = svc.ConfirmDocument(ctx, 1, 7, doc3.ID, "")
		require.NoError(t, err)
		_, err = svc.PostDocument(ctx, 1, 7, doc3.ID, nil, "")
		if want == nil {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, want)
		}
	}
}

func TestTransferPostsTwoMoves(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	seedStock(repo, 1, 1, locInternal, 8)

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeTransfer,
		Lines: []LineInput{{ProductID: 1, Quantity: 5, FromLocationID: ptr(locInternal), ToLocationID: ptr(locShipping)}},
	})
	require.NoError(t, err)
	confirmed, err := svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	require.NoError(t, err)
	require.Equal(t, "TRF-000001", *confirmed.Number)
	require.Empty(t, repo.reservations)

	_, err = svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	require.NoError(t, err)

	moves, err := svc.ListStockMoves(ctx, 1, MoveFilter{DocumentID: &doc.ID})
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.InDelta(t, -5, moves[0].QuantityDelta, 0.0001)
	require.Equal(t, locInternal, moves[0].LocationID)
	require.InDelta(t, 5, moves[1].QuantityDelta, 0.0001)
	require.Equal(t, locShipping, moves[1].LocationID)

	fromQty, err := svc.GetOnHand(ctx, 1, 1, locInternal)
	require.NoError(t, err)
	require.InDelta(t, 3, fromQty, 0.0001)
	toQty, err := svc.GetOnHand(ctx, 1, 1, locShipping)
	require.NoError(t, err)
	require.InDelta(t, 5, toQty, 0.0001)
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	seedStock(repo, 1, 1, locInternal, 3)

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeTransfer,
		Lines: []LineInput{{ProductID: 1, Quantity: 5, FromLocationID: ptr(locInternal), ToLocationID: ptr(locShipping)}},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	require.NoError(t, err)

	_, err = svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	var negativeErr *NegativeStockError
	require.ErrorAs(t, err, &negativeErr)
	require.Len(t, negativeErr.Shortages, 1)
	require.InDelta(t, 3, negativeErr.Shortages[0].Available, 0.0001)
	require.Empty(t, filterMoves(repo.moves, doc.ID))

	// Same post succeeds once the tenant allows negative stock.
	settings := DefaultSettings(1)
	settings.NegativeStockPolicy = NegativeStockAllow
	settings.Counters[DocumentTypeTransfer] = 1
	repo.settings[1] = settings

	posted, err := svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)

	onHand, err := svc.GetOnHand(ctx, 1, 1, locInternal)
	require.NoError(t, err)
	require.InDelta(t, -2, onHand, 0.0001)
}

func TestAdjustmentSign(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	seedStock(repo, 1, 1, locInternal, 10)

	in, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeAdjustment,
		Lines: []LineInput{{ProductID: 1, Quantity: 2, ToLocationID: ptr(locInternal)}},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmDocument(ctx, 1, 7, in.ID, "")
	require.NoError(t, err)
	_, err = svc.PostDocument(ctx, 1, 7, in.ID, nil, "")
	require.NoError(t, err)

	out, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeAdjustment,
		Lines: []LineInput{{ProductID: 1, Quantity: 15, FromLocationID: ptr(locInternal)}},
	})
	require.NoError(t, err)
	_, err = svc.ConfirmDocument(ctx, 1, 7, out.ID, "")
	require.NoError(t, err)
	// Adjustments are never blocked by the negative-stock guard.
	_, err = svc.PostDocument(ctx, 1, 7, out.ID, nil, "")
	require.NoError(t, err)

	onHand, err := svc.GetOnHand(ctx, 1, 1, locInternal)
	require.NoError(t, err)
	require.InDelta(t, -3, onHand, 0.0001)
}

func TestDraftOnlyEditing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)

	updated, err := svc.ReplaceLines(ctx, 1, 7, doc.ID, []LineInput{{ProductID: 1, Quantity: 9}})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 1)
	require.InDelta(t, 9, updated.Lines[0].Quantity, 0.0001)

	_, err = svc.ConfirmDocument(ctx, 1, 7, doc.ID, "")
	require.NoError(t, err)

	_, err = svc.ReplaceLines(ctx, 1, 7, doc.ID, []LineInput{{ProductID: 1, Quantity: 1}})
	require.ErrorIs(t, err, ErrNotEditable)
	_, err = svc.UpdateHeader(ctx, 1, 7, doc.ID, HeaderInput{Reference: strPtr("late")})
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestPostDraftReportsIllegalTransition(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// No stock at all: the state check must win over the stock guard.
	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeDelivery,
		Lines: []LineInput{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)

	_, err = svc.PostDocument(ctx, 1, 7, doc.ID, nil, "")
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, StatusDraft, transitionErr.From)
	require.Equal(t, StatusPosted, transitionErr.To)

	var negativeErr *NegativeStockError
	require.False(t, errors.As(err, &negativeErr))
}

type failingIdempotency struct{}

func (failingIdempotency) Get(ctx context.Context, tenantID int64, action, key string) ([]byte, bool, error) {
	return nil, false, errors.New("store unavailable")
}

func (failingIdempotency) Put(ctx context.Context, tenantID int64, action, key string, result []byte) error {
	return errors.New("store unavailable")
}

func TestConfirmIdempotencyReplay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)

	first, err := svc.ConfirmDocument(ctx, 1, 7, doc.ID, "req-42")
	require.NoError(t, err)

	// A retry with the same key replays the stored result instead of
	// re-running the transition.
	second, err := svc.ConfirmDocument(ctx, 1, 7, doc.ID, "req-42")
	require.NoError(t, err)
	require.Equal(t, *first.Number, *second.Number)
	require.Equal(t, StatusConfirmed, second.Status)
}

func TestConfirmProceedsWhenIdempotencyStoreFails(t *testing.T) {
	repo := newMemoryRepo()
	base := newTestService(repo)
	svc := NewService(repo, base.catalog, base.warehouses, nil, nil, failingIdempotency{}, base.clock, nil)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, 1, 7, CreateDocumentInput{
		Type:  DocumentTypeReceipt,
		Lines: []LineInput{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmDocument(ctx, 1, 7, doc.ID, "req-1")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)
}

func TestGetExpirySummary(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	soon := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	far := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.lots = append(repo.lots,
		&Lot{ID: 1, TenantID: 1, ProductID: 2, LotNumber: "L1", ExpiryDate: &soon, QtyOnHand: 4, Status: LotAvailable},
		&Lot{ID: 2, TenantID: 1, ProductID: 2, LotNumber: "L2", ExpiryDate: &far, QtyOnHand: 9, Status: LotAvailable},
		&Lot{ID: 3, TenantID: 1, ProductID: 2, LotNumber: "L3", ExpiryDate: &soon, QtyOnHand: 0, Status: LotDepleted},
	)

	summary, err := svc.GetExpirySummary(ctx, 1, 30)
	require.NoError(t, err)
	require.Len(t, summary.Lots, 1)
	require.Equal(t, "L1", summary.Lots[0].LotNumber)
	require.InDelta(t, 4, summary.TotalQty, 0.0001)
}

func filterMoves(moves []StockMove, documentID int64) []StockMove {
	var result []StockMove
	for _, m := range moves {
		if m.DocumentID == documentID {
			result = append(result, m)
		}
	}
	return result
}

func ptr(v int64) *int64      { return &v }
func strPtr(s string) *string { return &s }
