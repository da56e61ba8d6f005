package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ProductInfo is the catalog projection document validation needs.
type ProductInfo struct {
	ID                  int64
	SKU                 string
	IsStockable         bool
	IsActive            bool
	RequiresLotTracking bool
	RequiresExpiryDate  bool
	ShelfLifeDays       *int
}

// CatalogPort resolves product definitions for document lines.
type CatalogPort interface {
	ProductsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]ProductInfo, error)
}

// LocationInfo is the warehouse projection document validation needs.
type LocationInfo struct {
	ID          int64
	WarehouseID int64
	IsActive    bool
}

// DefaultLocationSet holds the default warehouse's seeded locations.
type DefaultLocationSet struct {
	WarehouseID int64
	ReceivingID int64
	InternalID  int64
	ShippingID  int64
}

// WarehousePort resolves locations and the tenant's default warehouse.
type WarehousePort interface {
	DefaultLocations(ctx context.Context, tenantID int64) (*DefaultLocationSet, error)
	LocationsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]LocationInfo, error)
}

// LockerPort serialises check-then-write sequences per stock key.
type LockerPort interface {
	LockAll(ctx context.Context, keys []shared.StockKey) (func(), error)
}

// AuditPort records audit trail entries after commit.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort replays cached results for retried requests.
type IdempotencyPort interface {
	Get(ctx context.Context, tenantID int64, action, key string) ([]byte, bool, error)
	Put(ctx context.Context, tenantID int64, action, key string, result []byte) error
}

// Service orchestrates inventory document processing.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	warehouses  WarehousePort
	locker      LockerPort
	audit       AuditPort
	idempotency IdempotencyPort
	clock       shared.Clock
	logger      *slog.Logger
}

// NewService constructs Service.
func NewService(
	repo RepositoryPort,
	catalog CatalogPort,
	warehouses WarehousePort,
	locker LockerPort,
	audit AuditPort,
	idempotency IdempotencyPort,
	clock shared.Clock,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = shared.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		catalog:     catalog,
		warehouses:  warehouses,
		locker:      locker,
		audit:       audit,
		idempotency: idempotency,
		clock:       clock,
		logger:      logger,
	}
}

// LineInput describes one requested document line.
type LineInput struct {
	ProductID      int64
	Quantity       float64
	UnitCostCents  *int64
	FromLocationID *int64
	ToLocationID   *int64
	LotNumber      *string
	MfgDate        *time.Time
	ExpiryDate     *time.Time
}

// CreateDocumentInput describes a new draft document.
type CreateDocumentInput struct {
	Type          DocumentType
	ScheduledDate *time.Time
	PostingDate   *time.Time
	Reference     *string
	PartyID       *int64
	SourceType    *string
	SourceID      *uuid.UUID
	Lines         []LineInput
}

// HeaderInput carries the mutable header fields of a draft document.
type HeaderInput struct {
	ScheduledDate *time.Time
	PostingDate   *time.Time
	Reference     *string
	PartyID       *int64
	SourceType    *string
	SourceID      *uuid.UUID
}

// CreateDocument validates lines and locations, then stores a DRAFT
// document. No document number is assigned until confirm.
func (s *Service) CreateDocument(ctx context.Context, tenantID, actorID int64, input CreateDocumentInput) (*Document, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("inventory: unknown document type %q", input.Type)
	}
	lines, err := s.buildLines(ctx, tenantID, input.Type, input.Lines)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		TenantID:      tenantID,
		Type:          input.Type,
		Status:        StatusDraft,
		ScheduledDate: input.ScheduledDate,
		PostingDate:   input.PostingDate,
		Reference:     input.Reference,
		PartyID:       input.PartyID,
		SourceType:    input.SourceType,
		SourceID:      input.SourceID,
		CreatedBy:     actorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		inserted, err := tx.InsertLines(ctx, doc.ID, lines)
		if err != nil {
			return err
		}
		doc.Lines = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, tenantID, actorID, "document.create", doc.ID, map[string]any{"type": doc.Type})
	return doc, nil
}

// UpdateHeader replaces the mutable header fields of a DRAFT document.
func (s *Service) UpdateHeader(ctx context.Context, tenantID, actorID, docID int64, input HeaderInput) (*Document, error) {
	var doc *Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		if !doc.Status.CanEdit() {
			return ErrNotEditable
		}
		doc.ScheduledDate = input.ScheduledDate
		doc.PostingDate = input.PostingDate
		doc.Reference = input.Reference
		doc.PartyID = input.PartyID
		doc.SourceType = input.SourceType
		doc.SourceID = input.SourceID
		return tx.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, tenantID, actorID, "document.update_header", doc.ID, nil)
	return doc, nil
}

// ReplaceLines swaps the full line set of a DRAFT document.
func (s *Service) ReplaceLines(ctx context.Context, tenantID, actorID, docID int64, inputs []LineInput) (*Document, error) {
	var doc *Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		if !doc.Status.CanEdit() {
			return ErrNotEditable
		}
		lines, err := s.buildLines(ctx, tenantID, doc.Type, inputs)
		if err != nil {
			return err
		}
		replaced, err := tx.ReplaceLines(ctx, doc.ID, lines)
		if err != nil {
			return err
		}
		doc.Lines = replaced
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, tenantID, actorID, "document.replace_lines", doc.ID, map[string]any{"lines": len(doc.Lines)})
	return doc, nil
}

// ConfirmDocument assigns a document number and, for deliveries,
// reserves stock for every line or fails the whole confirm.
func (s *Service) ConfirmDocument(ctx context.Context, tenantID, actorID, docID int64, idempotencyKey string) (*Document, error) {
	if cached := s.replay(ctx, tenantID, "document.confirm", idempotencyKey); cached != nil {
		return cached, nil
	}

	doc, err := s.repo.GetDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Type == DocumentTypeDelivery {
		release, err := s.lockLines(ctx, tenantID, doc.Lines, false)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	now := s.clock.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		settings, err := tx.GetSettingsForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}
		number, err := nextDocumentNumber(ctx, tx, &settings, doc.Type)
		if err != nil {
			return err
		}
		if err := doc.Confirm(number, now); err != nil {
			return err
		}
		if doc.Type == DocumentTypeDelivery {
			if err := reserveDeliveryLines(ctx, tx, doc, now); err != nil {
				return err
			}
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		return tx.SaveSettings(ctx, settings)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, tenantID, actorID, "document.confirm", doc.ID, map[string]any{"number": doc.Number})
	s.remember(ctx, tenantID, "document.confirm", idempotencyKey, doc)
	return doc, nil
}

// PostDocument writes the stock moves of a CONFIRMED document and
// transitions it to POSTED.
func (s *Service) PostDocument(ctx context.Context, tenantID, actorID, docID int64, postingDate *time.Time, idempotencyKey string) (*Document, error) {
	if cached := s.replay(ctx, tenantID, "document.post", idempotencyKey); cached != nil {
		return cached, nil
	}

	doc, err := s.repo.GetDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	products, err := s.lookupProducts(ctx, tenantID, doc.Lines)
	if err != nil {
		return nil, err
	}
	if doc.Type == DocumentTypeDelivery || doc.Type == DocumentTypeTransfer {
		release, err := s.lockLines(ctx, tenantID, doc.Lines, false)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	now := s.clock.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		if !doc.Status.CanPost() {
			return transitionError(doc.Status, StatusPosted)
		}
		settings, err := tx.GetSettingsForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}
		if settings.NegativeStockPolicy == NegativeStockDisallow {
			if err := checkNegativeStock(ctx, tx, doc); err != nil {
				return err
			}
		}
		effective := resolvePostingDate(postingDate, doc, now)
		if err := doc.MarkPosted(effective, now); err != nil {
			return err
		}
		if err := applyPostingMoves(ctx, tx, doc, products, effective, now); err != nil {
			return err
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		return tx.SaveSettings(ctx, settings)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, tenantID, actorID, "document.post", doc.ID, map[string]any{"posting_date": doc.PostingDate})
	s.remember(ctx, tenantID, "document.post", idempotencyKey, doc)
	return doc, nil
}

// CancelDocument cancels a DRAFT or CONFIRMED document, releasing any
// active reservations it holds.
func (s *Service) CancelDocument(ctx context.Context, tenantID, actorID, docID int64) (*Document, error) {
	now := s.clock.Now()
	var doc *Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		wasConfirmed := doc.Status == StatusConfirmed
		if err := doc.Cancel(now); err != nil {
			return err
		}
		if wasConfirmed && doc.Type == DocumentTypeDelivery {
			if err := tx.ReleaseReservations(ctx, tenantID, doc.ID, now); err != nil {
				return err
			}
		}
		return tx.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, tenantID, actorID, "document.cancel", doc.ID, nil)
	return doc, nil
}

// GetDocument returns one document with its lines.
func (s *Service) GetDocument(ctx context.Context, tenantID, docID int64) (*Document, error) {
	return s.repo.GetDocument(ctx, tenantID, docID)
}

// GetOnHand returns the ledger sum for a (product, location) pair.
func (s *Service) GetOnHand(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	return s.repo.OnHand(ctx, tenantID, productID, locationID)
}

// GetAvailable returns on-hand minus active reservations.
func (s *Service) GetAvailable(ctx context.Context, tenantID, productID, locationID int64) (float64, error) {
	onHand, err := s.repo.OnHand(ctx, tenantID, productID, locationID)
	if err != nil {
		return 0, err
	}
	reserved, err := s.repo.ActiveReserved(ctx, tenantID, productID, locationID)
	if err != nil {
		return 0, err
	}
	return onHand - reserved, nil
}

// ListStockMoves lists ledger entries matching the filter.
func (s *Service) ListStockMoves(ctx context.Context, tenantID int64, filter MoveFilter) ([]StockMove, error) {
	return s.repo.ListStockMoves(ctx, tenantID, filter)
}

// ListReservations lists reservations matching the filter.
func (s *Service) ListReservations(ctx context.Context, tenantID int64, filter ReservationFilter) ([]StockReservation, error) {
	return s.repo.ListReservations(ctx, tenantID, filter)
}

// ListLots lists lots matching the filter.
func (s *Service) ListLots(ctx context.Context, tenantID int64, filter LotFilter) ([]Lot, error) {
	return s.repo.ListLots(ctx, tenantID, filter)
}

// ExpirySummary reports available lots expiring within a window.
type ExpirySummary struct {
	Days     int       `json:"days"`
	Cutoff   time.Time `json:"cutoff"`
	TotalQty float64   `json:"total_qty"`
	Lots     []Lot     `json:"lots"`
}

// GetExpirySummary lists available lots whose expiry falls within the
// next days.
func (s *Service) GetExpirySummary(ctx context.Context, tenantID int64, days int) (*ExpirySummary, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := s.clock.Now().AddDate(0, 0, days)
	lots, err := s.repo.ListExpiringLots(ctx, tenantID, cutoff)
	if err != nil {
		return nil, err
	}
	summary := &ExpirySummary{Days: days, Cutoff: cutoff, Lots: lots}
	for _, lot := range lots {
		summary.TotalQty += lot.QtyOnHand
	}
	return summary, nil
}

// GetReorderSuggestions evaluates active reorder policies using the
// reorder-point threshold.
func (s *Service) GetReorderSuggestions(ctx context.Context, tenantID int64, warehouseID *int64) ([]ReorderSuggestion, error) {
	return s.suggest(ctx, tenantID, warehouseID, ThresholdModeReorderPoint)
}

// GetLowStock evaluates active reorder policies with the caller-chosen
// threshold mode.
func (s *Service) GetLowStock(ctx context.Context, tenantID int64, warehouseID *int64, mode ThresholdMode) ([]ReorderSuggestion, error) {
	if mode == "" {
		mode = ThresholdModeMin
	}
	return s.suggest(ctx, tenantID, warehouseID, mode)
}

func (s *Service) suggest(ctx context.Context, tenantID int64, warehouseID *int64, mode ThresholdMode) ([]ReorderSuggestion, error) {
	policies, err := s.repo.ListActivePolicies(ctx, tenantID, warehouseID)
	if err != nil {
		return nil, err
	}
	byWarehouse := make(map[int64][]ReorderPolicy)
	for _, p := range policies {
		byWarehouse[p.WarehouseID] = append(byWarehouse[p.WarehouseID], p)
	}

	var suggestions []ReorderSuggestion
	for whID, group := range byWarehouse {
		onHand, reserved, err := s.repo.StockByWarehouse(ctx, tenantID, whID)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, BuildSuggestions(group, onHand, reserved, mode)...)
	}
	return suggestions, nil
}

// UpsertReorderPolicy creates or updates the policy for a
// (product, warehouse) pair.
func (s *Service) UpsertReorderPolicy(ctx context.Context, tenantID, actorID int64, policy ReorderPolicy) (ReorderPolicy, error) {
	policy.TenantID = tenantID
	if policy.MinQty < 0 {
		return ReorderPolicy{}, ErrInvalidQuantity
	}
	saved, err := s.repo.UpsertPolicy(ctx, policy)
	if err != nil {
		return ReorderPolicy{}, err
	}
	s.recordAudit(ctx, tenantID, actorID, "reorder_policy.upsert", saved.ID, map[string]any{"product_id": saved.ProductID})
	return saved, nil
}

// PreviewPick runs the FEFO picker over a product's available lots
// without mutating anything.
func (s *Service) PreviewPick(ctx context.Context, tenantID, productID int64, quantity float64) (*PickResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	status := LotAvailable
	lots, err := s.repo.ListLots(ctx, tenantID, LotFilter{ProductID: &productID, Status: &status, Limit: 500})
	if err != nil {
		return nil, err
	}
	candidates := make([]LotCandidate, 0, len(lots))
	for _, lot := range lots {
		if lot.QtyOnHand <= 0 {
			continue
		}
		candidates = append(candidates, LotCandidate{
			LotID:         lot.ID,
			LotNumber:     lot.LotNumber,
			ExpiryDate:    lot.ExpiryDate,
			QtyOnHand:     lot.QtyOnHand,
			QtyReserved:   lot.QtyReserved,
			UnitCostCents: lot.UnitCostCents,
		})
	}
	result := PickFEFO(quantity, candidates)
	return &result, nil
}

// buildLines validates line inputs against the catalog and warehouse
// layout, filling in default locations where the document type allows.
func (s *Service) buildLines(ctx context.Context, tenantID int64, docType DocumentType, inputs []LineInput) ([]Line, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyLines
	}

	productIDs := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		productIDs = append(productIDs, in.ProductID)
	}
	products, err := s.catalog.ProductsByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		product, ok := products[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrProductUnknown, in.ProductID)
		}
		if !product.IsStockable {
			return nil, fmt.Errorf("%w: %s", ErrProductNotStockable, product.SKU)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductInactive, product.SKU)
		}
	}

	lines := make([]Line, 0, len(inputs))
	var defaults *DefaultLocationSet
	defaultsFor := func() (*DefaultLocationSet, error) {
		if defaults != nil {
			return defaults, nil
		}
		var err error
		defaults, err = s.warehouses.DefaultLocations(ctx, tenantID)
		return defaults, err
	}

	for i, in := range inputs {
		line := Line{
			ProductID:      in.ProductID,
			Quantity:       in.Quantity,
			UnitCostCents:  in.UnitCostCents,
			FromLocationID: in.FromLocationID,
			ToLocationID:   in.ToLocationID,
			LotNumber:      in.LotNumber,
			MfgDate:        in.MfgDate,
			ExpiryDate:     in.ExpiryDate,
			LineOrder:      i,
		}
		switch docType {
		case DocumentTypeReceipt:
			if line.ToLocationID == nil {
				def, err := defaultsFor()
				if err != nil {
					return nil, err
				}
				line.ToLocationID = &def.ReceivingID
			}
		case DocumentTypeDelivery:
			if line.FromLocationID == nil {
				def, err := defaultsFor()
				if err != nil {
					return nil, err
				}
				line.FromLocationID = &def.InternalID
			}
		case DocumentTypeTransfer:
			if line.FromLocationID == nil || line.ToLocationID == nil {
				return nil, ErrLocationRequired
			}
			if *line.FromLocationID == *line.ToLocationID {
				return nil, ErrLocationConflict
			}
		case DocumentTypeAdjustment:
			if (line.FromLocationID == nil) == (line.ToLocationID == nil) {
				return nil, ErrLocationConflict
			}
		}
		lines = append(lines, line)
	}

	if err := s.checkLocations(ctx, tenantID, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// checkLocations verifies every referenced location exists and is active.
func (s *Service) checkLocations(ctx context.Context, tenantID int64, lines []Line) error {
	ids := make([]int64, 0, len(lines)*2)
	for _, line := range lines {
		if line.FromLocationID != nil {
			ids = append(ids, *line.FromLocationID)
		}
		if line.ToLocationID != nil {
			ids = append(ids, *line.ToLocationID)
		}
	}
	if len(ids) == 0 {
		return ErrLocationRequired
	}
	locations, err := s.warehouses.LocationsByIDs(ctx, tenantID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		loc, ok := locations[id]
		if !ok {
			return fmt.Errorf("%w: location %d", ErrLocationRequired, id)
		}
		if !loc.IsActive {
			return fmt.Errorf("%w: location %d", ErrLocationInactive, id)
		}
	}
	return nil
}

// lockLines acquires per-(product, location) locks for the lines'
// outbound side, or both sides when includeTo is set.
func (s *Service) lockLines(ctx context.Context, tenantID int64, lines []Line, includeTo bool) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	keys := make([]shared.StockKey, 0, len(lines))
	for _, line := range lines {
		if line.FromLocationID != nil {
			keys = append(keys, shared.StockKey{TenantID: tenantID, ProductID: line.ProductID, LocationID: *line.FromLocationID})
		}
		if includeTo && line.ToLocationID != nil {
			keys = append(keys, shared.StockKey{TenantID: tenantID, ProductID: line.ProductID, LocationID: *line.ToLocationID})
		}
	}
	return s.locker.LockAll(ctx, keys)
}

func (s *Service) lookupProducts(ctx context.Context, tenantID int64, lines []Line) (map[int64]ProductInfo, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return s.catalog.ProductsByIDs(ctx, tenantID, ids)
}

func resolvePostingDate(explicit *time.Time, doc *Document, now time.Time) time.Time {
	if explicit != nil {
		return *explicit
	}
	if doc.PostingDate != nil {
		return *doc.PostingDate
	}
	return now
}

// replay returns the cached document for an idempotency key, if any.
// Store failures are logged, not surfaced: idempotency never blocks
// the business operation.
func (s *Service) replay(ctx context.Context, tenantID int64, action, key string) *Document {
	if s.idempotency == nil || key == "" {
		return nil
	}
	payload, ok, err := s.idempotency.Get(ctx, tenantID, action, key)
	if err != nil {
		s.logger.Warn("read idempotency result", "action", action, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		s.logger.Warn("decode idempotency result", "action", action, "error", err)
		return nil
	}
	return &doc
}

// remember caches the operation result under the idempotency key.
// Failures are logged, not surfaced: the operation itself committed.
func (s *Service) remember(ctx context.Context, tenantID int64, action, key string, doc *Document) {
	if s.idempotency == nil || key == "" {
		return
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		s.logger.Warn("marshal idempotency result", "action", action, "error", err)
		return
	}
	if err := s.idempotency.Put(ctx, tenantID, action, key, payload); err != nil {
		s.logger.Warn("store idempotency result", "action", action, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, tenantID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entity := "inventory_document"
	if action == "reorder_policy.upsert" {
		entity = "reorder_policy"
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.clock.Now(),
	})
}
