package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs an inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/documents", h.createDocument)
	r.Get("/documents/{id}", h.getDocument)
	r.Patch("/documents/{id}", h.updateHeader)
	r.Put("/documents/{id}/lines", h.replaceLines)
	r.Post("/documents/{id}/confirm", h.confirmDocument)
	r.Post("/documents/{id}/post", h.postDocument)
	r.Post("/documents/{id}/cancel", h.cancelDocument)

	r.Get("/stock/on-hand", h.onHand)
	r.Get("/stock/available", h.available)
	r.Get("/stock/moves", h.listMoves)
	r.Get("/reservations", h.listReservations)
	r.Get("/lots", h.listLots)
	r.Get("/lots/expiring", h.expirySummary)
	r.Post("/picks/preview", h.previewPick)

	r.Get("/reorder/suggestions", h.reorderSuggestions)
	r.Get("/reorder/low-stock", h.lowStock)
	r.Put("/reorder/policies", h.upsertPolicy)
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	actorID := shared.ActorFromContext(r.Context())
	var req CreateDocumentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), nil)
		return
	}
	doc, err := h.service.CreateDocument(r.Context(), tenantID, actorID, req.toInput())
	if err != nil {
		h.respondError(w, err, "create document")
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(r.Context(), tenantID, id)
	if err != nil {
		h.respondError(w, err, "get document")
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) updateHeader(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	actorID := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateHeaderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), nil)
		return
	}
	doc, err := h.service.UpdateHeader(r.Context(), tenantID, actorID, id, HeaderInput{
		ScheduledDate: req.ScheduledDate,
		PostingDate:   req.PostingDate,
		Reference:     req.Reference,
		PartyID:       req.PartyID,
		SourceType:    req.SourceType,
		SourceID:      req.SourceID,
	})
	if err != nil {
		h.respondError(w, err, "update document header")
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) replaceLines(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	actorID := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req ReplaceLinesRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), nil)
		return
	}
	doc, err := h.service.ReplaceLines(r.Context(), tenantID, actorID, id, toLineInputs(req.Lines))
	if err != nil {
		h.respondError(w, err, "replace document lines")
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) confirmDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	actorID := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.ConfirmDocument(r.Context(), tenantID, actorID, id, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, err, "confirm document")
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) postDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	actorID := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req PostDocumentRequest
	if r.ContentLength > 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
			return
		}
	}
	doc, err := h.service.PostDocument(r.Context(), tenantID, actorID, id, req.PostingDate, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, err, "post document")
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) cancelDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	actorID := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.CancelDocument(r.Context(), tenantID, actorID, id)
	if err != nil {
		h.respondError(w, err, "cancel document")
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	productID, locationID, ok := h.stockQuery(w, r)
	if !ok {
		return
	}
	qty, err := h.service.GetOnHand(r.Context(), tenantID, productID, locationID)
	if err != nil {
		h.respondError(w, err, "get on-hand")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "location_id": locationID, "on_hand": qty})
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	productID, locationID, ok := h.stockQuery(w, r)
	if !ok {
		return
	}
	qty, err := h.service.GetAvailable(r.Context(), tenantID, productID, locationID)
	if err != nil {
		h.respondError(w, err, "get available")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "location_id": locationID, "available": qty})
}

func (h *Handler) listMoves(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	filter := MoveFilter{
		ProductID:  queryInt64(r, "product_id"),
		LocationID: queryInt64(r, "location_id"),
		DocumentID: queryInt64(r, "document_id"),
		From:       queryTime(r, "from"),
		To:         queryTime(r, "to"),
		Limit:      queryLimit(r),
	}
	moves, err := h.service.ListStockMoves(r.Context(), tenantID, filter)
	if err != nil {
		h.respondError(w, err, "list stock moves")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"moves": moves})
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	filter := ReservationFilter{
		ProductID:  queryInt64(r, "product_id"),
		LocationID: queryInt64(r, "location_id"),
		DocumentID: queryInt64(r, "document_id"),
		Limit:      queryLimit(r),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := ReservationStatus(v)
		filter.Status = &status
	}
	reservations, err := h.service.ListReservations(r.Context(), tenantID, filter)
	if err != nil {
		h.respondError(w, err, "list reservations")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	filter := LotFilter{ProductID: queryInt64(r, "product_id"), Limit: queryLimit(r)}
	if v := r.URL.Query().Get("status"); v != "" {
		status := LotStatus(v)
		filter.Status = &status
	}
	lots, err := h.service.ListLots(r.Context(), tenantID, filter)
	if err != nil {
		h.respondError(w, err, "list lots")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots})
}

func (h *Handler) expirySummary(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	summary, err := h.service.GetExpirySummary(r.Context(), tenantID, days)
	if err != nil {
		h.respondError(w, err, "expiry summary")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) previewPick(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	var req PreviewPickRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), nil)
		return
	}
	result, err := h.service.PreviewPick(r.Context(), tenantID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, err, "preview pick")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) reorderSuggestions(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	suggestions, err := h.service.GetReorderSuggestions(r.Context(), tenantID, queryInt64(r, "warehouse_id"))
	if err != nil {
		h.respondError(w, err, "reorder suggestions")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	mode := ThresholdMode(r.URL.Query().Get("threshold_mode"))
	suggestions, err := h.service.GetLowStock(r.Context(), tenantID, queryInt64(r, "warehouse_id"), mode)
	if err != nil {
		h.respondError(w, err, "low stock")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *Handler) upsertPolicy(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	actorID := shared.ActorFromContext(r.Context())
	var req UpsertPolicyRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), nil)
		return
	}
	policy, err := h.service.UpsertReorderPolicy(r.Context(), tenantID, actorID, ReorderPolicy{
		ProductID:                req.ProductID,
		WarehouseID:              req.WarehouseID,
		MinQty:                   req.MinQty,
		MaxQty:                   req.MaxQty,
		ReorderPoint:             req.ReorderPoint,
		PreferredSupplierPartyID: req.PreferredSupplierPartyID,
		LeadTimeDays:             req.LeadTimeDays,
		IsActive:                 req.IsActive,
	})
	if err != nil {
		h.respondError(w, err, "upsert reorder policy")
		return
	}
	httpx.JSON(w, http.StatusOK, policy)
}

// respondError maps inventory errors onto problem documents. Business
// conflicts carry a machine-readable code plus the shortage payload.
func (h *Handler) respondError(w http.ResponseWriter, err error, action string) {
	var reservationErr *ReservationFailedError
	if errors.As(err, &reservationErr) {
		httpx.ProblemWithCode(w, http.StatusConflict, reservationErr.Code(), reservationErr.Error(),
			map[string]any{"shortages": reservationErr.Shortages})
		return
	}
	var negativeErr *NegativeStockError
	if errors.As(err, &negativeErr) {
		httpx.ProblemWithCode(w, http.StatusConflict, negativeErr.Code(), negativeErr.Error(),
			map[string]any{"shortages": negativeErr.Shortages})
		return
	}
	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		httpx.ProblemWithCode(w, http.StatusConflict, "ILLEGAL_TRANSITION", transitionErr.Error(), nil)
		return
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNotEditable):
		httpx.ProblemWithCode(w, http.StatusConflict, "NOT_EDITABLE", err.Error(), nil)
	case errors.Is(err, ErrDuplicateLot):
		httpx.ProblemWithCode(w, http.StatusConflict, "DUPLICATE_LOT", err.Error(), nil)
	case errors.Is(err, shared.ErrLockNotObtained):
		httpx.ProblemWithCode(w, http.StatusConflict, "STOCK_BUSY", err.Error(), nil)
	case errors.Is(err, ErrEmptyLines),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrProductUnknown),
		errors.Is(err, ErrProductNotStockable),
		errors.Is(err, ErrProductInactive),
		errors.Is(err, ErrLocationRequired),
		errors.Is(err, ErrLocationConflict),
		errors.Is(err, ErrLocationInactive),
		errors.Is(err, ErrLotNumberRequired),
		errors.Is(err, ErrExpiryRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error(), nil)
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) stockQuery(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	productID := queryInt64(r, "product_id")
	locationID := queryInt64(r, "location_id")
	if productID == nil || locationID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "product_id and location_id are required", nil)
		return 0, 0, false
	}
	return *productID, *locationID, true
}

func queryInt64(r *http.Request, name string) *int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func queryTime(r *http.Request, name string) *time.Time {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return 0
}
