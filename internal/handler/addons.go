package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// AddonStore defines the database methods needed by addon handlers.
type AddonStore interface {
	ListAddonsByBranch(ctx context.Context, branchID uuid.UUID) ([]database.Addon, error)
	GetAddon(ctx context.Context, arg database.GetAddonParams) (database.Addon, error)
	CreateAddon(ctx context.Context, arg database.CreateAddonParams) (database.Addon, error)
	UpdateAddon(ctx context.Context, arg database.UpdateAddonParams) (database.Addon, error)
	SoftDeleteAddon(ctx context.Context, arg database.SoftDeleteAddonParams) (uuid.UUID, error)
	ListAddonIngredients(ctx context.Context, addonID uuid.UUID) ([]database.AddonIngredient, error)
	CreateAddonIngredient(ctx context.Context, arg database.CreateAddonIngredientParams) (database.AddonIngredient, error)
	DeleteAddonIngredientsByAddon(ctx context.Context, addonID uuid.UUID) error
}

// AddonHandler handles add-on catalog endpoints.
type AddonHandler struct {
	store AddonStore
}

// NewAddonHandler creates a new AddonHandler.
func NewAddonHandler(store AddonStore) *AddonHandler {
	return &AddonHandler{store: store}
}

// RegisterRoutes registers addon endpoints, mounted at /branches/{bid}/addons.
func (h *AddonHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type addonIngredientRequest struct {
	InventoryItemID string `json:"inventory_item_id"`
	Quantity        string `json:"quantity"`
	Unit            string `json:"unit"`
}

// addonRequest links inventory one of three ways: a multi-ingredient
// recipe, a single inventory item with qty_per_serving, or neither
// (price-only add-on that falls back to name matching at checkout).
type addonRequest struct {
	Name            string                   `json:"name"`
	Price           string                   `json:"price"`
	Category        string                   `json:"category"`
	InventoryItemID string                   `json:"inventory_item_id"`
	QtyPerServing   string                   `json:"qty_per_serving"`
	Ingredients     []addonIngredientRequest `json:"ingredients"`
}

type addonIngredientResponse struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Quantity        string    `json:"quantity"`
	Unit            string    `json:"unit"`
}

type addonResponse struct {
	ID              uuid.UUID                 `json:"id"`
	BranchID        uuid.UUID                 `json:"branch_id"`
	Name            string                    `json:"name"`
	Price           string                    `json:"price"`
	Category        string                    `json:"category"`
	InventoryItemID *string                   `json:"inventory_item_id"`
	QtyPerServing   *string                   `json:"qty_per_serving"`
	Ingredients     []addonIngredientResponse `json:"ingredients"`
	IsActive        bool                      `json:"is_active"`
	CreatedAt       time.Time                 `json:"created_at"`
}

func toAddonResponse(a database.Addon, ingredients []database.AddonIngredient) addonResponse {
	resp := addonResponse{
		ID:          a.ID,
		BranchID:    a.BranchID,
		Name:        a.Name,
		Price:       numericToString(a.Price),
		Category:    string(a.Category),
		Ingredients: make([]addonIngredientResponse, len(ingredients)),
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
	}
	if a.InventoryItemID.Valid {
		s := uuid.UUID(a.InventoryItemID.Bytes).String()
		resp.InventoryItemID = &s
	}
	if a.QtyPerServing.Valid {
		s := numericToQtyString(a.QtyPerServing)
		resp.QtyPerServing = &s
	}
	for i, ing := range ingredients {
		resp.Ingredients[i] = addonIngredientResponse{
			InventoryItemID: ing.InventoryItemID,
			Quantity:        numericToQtyString(ing.Quantity),
			Unit:            ing.Unit,
		}
	}
	return resp
}

func isValidAddonCategory(c database.AddonCategory) bool {
	switch c {
	case database.AddonCategorySIZE,
		database.AddonCategoryEXTRA,
		database.AddonCategoryMODIFICATION,
		database.AddonCategorySPECIAL:
		return true
	}
	return false
}

type parsedAddonRequest struct {
	name            string
	price           pgtype.Numeric
	category        database.AddonCategory
	inventoryItemID pgtype.UUID
	qtyPerServing   pgtype.Numeric
	ingredients     []database.CreateAddonIngredientParams
}

// parseAddonRequest validates the shared create/update fields. The DB
// enforces inventory_item_id and qty_per_serving both-or-neither; reject
// here for a clean 400 instead of a 500 on the CHECK violation.
func parseAddonRequest(req addonRequest) (parsedAddonRequest, string) {
	var out parsedAddonRequest

	if req.Name == "" {
		return out, "name is required"
	}
	out.name = req.Name

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return out, "invalid price"
	}
	out.price = decimalToNumeric(price)

	out.category = database.AddonCategory(req.Category)
	if !isValidAddonCategory(out.category) {
		return out, "invalid category"
	}

	if (req.InventoryItemID == "") != (req.QtyPerServing == "") {
		return out, "inventory_item_id and qty_per_serving must be set together"
	}
	if req.InventoryItemID != "" {
		invID, err := uuid.Parse(req.InventoryItemID)
		if err != nil {
			return out, "invalid inventory_item_id"
		}
		qty, err := decimal.NewFromString(req.QtyPerServing)
		if err != nil || !qty.IsPositive() {
			return out, "qty_per_serving must be > 0"
		}
		out.inventoryItemID = pgtype.UUID{Bytes: invID, Valid: true}
		out.qtyPerServing = decimalToNumeric(qty)
	}

	for _, ing := range req.Ingredients {
		invID, err := uuid.Parse(ing.InventoryItemID)
		if err != nil {
			return out, "invalid inventory_item_id in ingredients"
		}
		qty, err := decimal.NewFromString(ing.Quantity)
		if err != nil || !qty.IsPositive() {
			return out, "ingredient quantity must be > 0"
		}
		if ing.Unit == "" {
			return out, "ingredient unit is required"
		}
		out.ingredients = append(out.ingredients, database.CreateAddonIngredientParams{
			InventoryItemID: invID,
			Quantity:        decimalToNumeric(qty),
			Unit:            ing.Unit,
		})
	}

	return out, ""
}

// List returns the branch's active add-ons with their recipes.
func (h *AddonHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	addons, err := h.store.ListAddonsByBranch(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: list addons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]addonResponse, len(addons))
	for i, a := range addons {
		ingredients, err := h.store.ListAddonIngredients(r.Context(), a.ID)
		if err != nil {
			log.Printf("ERROR: list addon ingredients: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i] = toAddonResponse(a, ingredients)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single add-on.
func (h *AddonHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	a, err := h.store.GetAddon(r.Context(), database.GetAddonParams{
		ID:       addonID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
			return
		}
		log.Printf("ERROR: get addon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ingredients, err := h.store.ListAddonIngredients(r.Context(), addonID)
	if err != nil {
		log.Printf("ERROR: list addon ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toAddonResponse(a, ingredients))
}

// Create adds an add-on to the branch catalog.
func (h *AddonHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req addonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	parsed, msg := parseAddonRequest(req)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	a, err := h.store.CreateAddon(r.Context(), database.CreateAddonParams{
		BranchID:        branchID,
		Name:            parsed.name,
		Price:           parsed.price,
		Category:        parsed.category,
		InventoryItemID: parsed.inventoryItemID,
		QtyPerServing:   parsed.qtyPerServing,
	})
	if err != nil {
		log.Printf("ERROR: create addon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	created := make([]database.AddonIngredient, 0, len(parsed.ingredients))
	for _, ing := range parsed.ingredients {
		ing.AddonID = a.ID
		row, err := h.store.CreateAddonIngredient(r.Context(), ing)
		if err != nil {
			log.Printf("ERROR: create addon ingredient: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		created = append(created, row)
	}

	writeJSON(w, http.StatusCreated, toAddonResponse(a, created))
}

// Update replaces an add-on's fields and recipe.
func (h *AddonHandler) Update(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	var req addonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	parsed, msg := parseAddonRequest(req)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	a, err := h.store.UpdateAddon(r.Context(), database.UpdateAddonParams{
		ID:              addonID,
		BranchID:        branchID,
		Name:            parsed.name,
		Price:           parsed.price,
		Category:        parsed.category,
		InventoryItemID: parsed.inventoryItemID,
		QtyPerServing:   parsed.qtyPerServing,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
			return
		}
		log.Printf("ERROR: update addon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.store.DeleteAddonIngredientsByAddon(r.Context(), addonID); err != nil {
		log.Printf("ERROR: clear addon ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	updated := make([]database.AddonIngredient, 0, len(parsed.ingredients))
	for _, ing := range parsed.ingredients {
		ing.AddonID = a.ID
		row, err := h.store.CreateAddonIngredient(r.Context(), ing)
		if err != nil {
			log.Printf("ERROR: create addon ingredient: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		updated = append(updated, row)
	}

	writeJSON(w, http.StatusOK, toAddonResponse(a, updated))
}

// Delete deactivates an add-on.
func (h *AddonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	_, err = h.store.SoftDeleteAddon(r.Context(), database.SoftDeleteAddonParams{
		ID:       addonID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
			return
		}
		log.Printf("ERROR: delete addon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
