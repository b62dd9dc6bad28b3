package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/karinderya-pos/api/internal/middleware"
	"github.com/shopspring/decimal"
)

// InventoryStore defines the database methods needed by inventory handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type InventoryStore interface {
	ListInventoryByBranch(ctx context.Context, branchID uuid.UUID) ([]database.InventoryItem, error)
	GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, arg database.CreateInventoryItemParams) (database.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, arg database.UpdateInventoryItemParams) (database.InventoryItem, error)
	SoftDeleteInventoryItem(ctx context.Context, arg database.SoftDeleteInventoryItemParams) (uuid.UUID, error)
	AdjustStock(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	ListLowStock(ctx context.Context, branchID uuid.UUID) ([]database.InventoryItem, error)
	ListStockMovementsByItem(ctx context.Context, arg database.ListStockMovementsByItemParams) ([]database.StockMovement, error)
}

// InventoryHandler handles stock tracking endpoints.
type InventoryHandler struct {
	store InventoryStore
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryStore) *InventoryHandler {
	return &InventoryHandler{store: store}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/inventory
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/low-stock", h.LowStock)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/adjust", h.Adjust)
	r.Get("/{id}/movements", h.Movements)
}

// --- Request / Response types ---

type inventoryItemRequest struct {
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	CostPerUnit  string `json:"cost_per_unit"`
	Quantity     string `json:"quantity"` // ignored on update
	MinThreshold string `json:"min_threshold"`
	MaxThreshold string `json:"max_threshold"`
}

type adjustStockRequest struct {
	Direction string `json:"direction"` // ADD or SUBTRACT
	Quantity  string `json:"quantity"`
	Note      string `json:"note"`
}

type inventoryItemResponse struct {
	ID           uuid.UUID `json:"id"`
	BranchID     uuid.UUID `json:"branch_id"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	CostPerUnit  string    `json:"cost_per_unit"`
	Quantity     string    `json:"quantity"`
	MinThreshold string    `json:"min_threshold"`
	MaxThreshold string    `json:"max_threshold"`
	LowStock     bool      `json:"low_stock"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type stockMovementResponse struct {
	ID              uuid.UUID `json:"id"`
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	OrderID         *string   `json:"order_id"`
	Direction       string    `json:"direction"`
	Quantity        string    `json:"quantity"`
	QuantityBefore  string    `json:"quantity_before"`
	QuantityAfter   string    `json:"quantity_after"`
	Note            *string   `json:"note"`
	CreatedBy       uuid.UUID `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func toInventoryItemResponse(item database.InventoryItem) inventoryItemResponse {
	qty := numericToQtyString(item.Quantity)
	minT := numericToQtyString(item.MinThreshold)
	qtyD, _ := decimal.NewFromString(qty)
	minD, _ := decimal.NewFromString(minT)
	return inventoryItemResponse{
		ID:           item.ID,
		BranchID:     item.BranchID,
		Name:         item.Name,
		Unit:         item.Unit,
		CostPerUnit:  numericToString(item.CostPerUnit),
		Quantity:     qty,
		MinThreshold: minT,
		MaxThreshold: numericToQtyString(item.MaxThreshold),
		LowStock:     qtyD.LessThanOrEqual(minD),
		IsActive:     item.IsActive,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func toStockMovementResponse(mv database.StockMovement) stockMovementResponse {
	resp := stockMovementResponse{
		ID:              mv.ID,
		InventoryItemID: mv.InventoryItemID,
		Direction:       string(mv.Direction),
		Quantity:        numericToQtyString(mv.Quantity),
		QuantityBefore:  numericToQtyString(mv.QuantityBefore),
		QuantityAfter:   numericToQtyString(mv.QuantityAfter),
		CreatedBy:       mv.CreatedBy,
		CreatedAt:       mv.CreatedAt,
	}
	if mv.OrderID.Valid {
		s := uuid.UUID(mv.OrderID.Bytes).String()
		resp.OrderID = &s
	}
	if mv.Note.Valid {
		resp.Note = &mv.Note.String
	}
	return resp
}

// parsePositiveAmount parses a required decimal field that must be > 0.
func parsePositiveAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseNonNegativeAmount parses an optional decimal field, defaulting to 0.
func parseNonNegativeAmount(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// --- Handlers ---

// List returns all active inventory items for the given branch.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	items, err := h.store.ListInventoryByBranch(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: list inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]inventoryItemResponse, len(items))
	for i, item := range items {
		resp[i] = toInventoryItemResponse(item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// LowStock returns items at or below their minimum threshold.
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	items, err := h.store.ListLowStock(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: list low stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]inventoryItemResponse, len(items))
	for i, item := range items {
		resp[i] = toInventoryItemResponse(item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a new inventory item with its opening quantity.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit are required"})
		return
	}

	cost, ok := parseNonNegativeAmount(req.CostPerUnit)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_per_unit"})
		return
	}
	qty, ok := parseNonNegativeAmount(req.Quantity)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
		return
	}
	minT, ok := parseNonNegativeAmount(req.MinThreshold)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_threshold"})
		return
	}
	maxT, ok := parseNonNegativeAmount(req.MaxThreshold)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid max_threshold"})
		return
	}

	item, err := h.store.CreateInventoryItem(r.Context(), database.CreateInventoryItemParams{
		BranchID:     branchID,
		Name:         req.Name,
		Unit:         req.Unit,
		CostPerUnit:  decimalToNumeric(cost),
		Quantity:     decimalToNumeric(qty),
		MinThreshold: decimalToNumeric(minT),
		MaxThreshold: decimalToNumeric(maxT),
	})
	if err != nil {
		log.Printf("ERROR: create inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toInventoryItemResponse(item))
}

// Update modifies an item's descriptive fields and thresholds. Quantity
// is only changed through Adjust so every change leaves a movement.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit are required"})
		return
	}

	cost, ok := parseNonNegativeAmount(req.CostPerUnit)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_per_unit"})
		return
	}
	minT, ok := parseNonNegativeAmount(req.MinThreshold)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_threshold"})
		return
	}
	maxT, ok := parseNonNegativeAmount(req.MaxThreshold)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid max_threshold"})
		return
	}

	item, err := h.store.UpdateInventoryItem(r.Context(), database.UpdateInventoryItemParams{
		ID:           itemID,
		BranchID:     branchID,
		Name:         req.Name,
		Unit:         req.Unit,
		CostPerUnit:  decimalToNumeric(cost),
		MinThreshold: decimalToNumeric(minT),
		MaxThreshold: decimalToNumeric(maxT),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
			return
		}
		log.Printf("ERROR: update inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toInventoryItemResponse(item))
}

// Delete soft-deletes an inventory item.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	_, err = h.store.SoftDeleteInventoryItem(r.Context(), database.SoftDeleteInventoryItemParams{
		ID:       itemID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
			return
		}
		log.Printf("ERROR: delete inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Adjust applies a manual stock change (delivery, spoilage, recount) and
// records the audit movement.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	direction := database.StockDirection(req.Direction)
	if direction != database.StockDirectionADD && direction != database.StockDirectionSUBTRACT {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "direction must be ADD or SUBTRACT"})
		return
	}

	qty, ok := parsePositiveAmount(req.Quantity)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}

	delta := qty
	if direction == database.StockDirectionSUBTRACT {
		delta = qty.Neg()
	}

	item, err := h.store.AdjustStock(r.Context(), database.AdjustStockParams{
		ID:       itemID,
		BranchID: branchID,
		Delta:    decimalToNumeric(delta),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
			return
		}
		log.Printf("ERROR: adjust stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	note := pgtype.Text{}
	if req.Note != "" {
		note = pgtype.Text{String: req.Note, Valid: true}
	}

	after, _ := decimal.NewFromString(numericToQtyString(item.Quantity))
	_, err = h.store.CreateStockMovement(r.Context(), database.CreateStockMovementParams{
		InventoryItemID: itemID,
		Direction:       direction,
		Quantity:        decimalToNumeric(qty),
		QuantityBefore:  decimalToNumeric(after.Sub(delta)),
		QuantityAfter:   decimalToNumeric(after),
		Note:            note,
		CreatedBy:       claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: record stock movement: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toInventoryItemResponse(item))
}

// Movements returns the audit trail for one item, newest first.
func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	if _, err := uuid.Parse(chi.URLParam(r, "bid")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	movements, err := h.store.ListStockMovementsByItem(r.Context(), database.ListStockMovementsByItemParams{
		InventoryItemID: itemID,
		Limit:           int32(limit),
		Offset:          int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list stock movements: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]stockMovementResponse, len(movements))
	for i, mv := range movements {
		resp[i] = toStockMovementResponse(mv)
	}

	writeJSON(w, http.StatusOK, resp)
}
