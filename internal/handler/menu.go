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
	"github.com/karinderya-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenuItemsByBranch(ctx context.Context, arg database.ListMenuItemsByBranchParams) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	SoftDeleteMenuItem(ctx context.Context, arg database.SoftDeleteMenuItemParams) (uuid.UUID, error)
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	CreateMenuItemIngredient(ctx context.Context, arg database.CreateMenuItemIngredientParams) (database.MenuItemIngredient, error)
	DeleteIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) error
	ListInventoryByBranch(ctx context.Context, branchID uuid.UUID) ([]database.InventoryItem, error)
}

// MenuHandler handles menu builder endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/menu
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type menuIngredientRequest struct {
	InventoryItemID string `json:"inventory_item_id"`
	Quantity        string `json:"quantity"`
	Unit            string `json:"unit"`
}

type menuItemRequest struct {
	CategoryID  string                  `json:"category_id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Price       string                  `json:"price"`
	IsAvailable *bool                   `json:"is_available"`
	Status      string                  `json:"status"` // update only
	Ingredients []menuIngredientRequest `json:"ingredients"`
}

type menuIngredientResponse struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Quantity        string    `json:"quantity"`
	Unit            string    `json:"unit"`
}

type menuItemResponse struct {
	ID          uuid.UUID                `json:"id"`
	BranchID    uuid.UUID                `json:"branch_id"`
	CategoryID  *string                  `json:"category_id"`
	Name        string                   `json:"name"`
	Description *string                  `json:"description"`
	Price       string                   `json:"price"`
	Cost        string                   `json:"cost"`
	Profit      string                   `json:"profit"`
	Margin      string                   `json:"margin"`
	IsAvailable bool                     `json:"is_available"`
	Status      string                   `json:"status"`
	Ingredients []menuIngredientResponse `json:"ingredients"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// toMenuItemResponse derives cost, profit and margin from the recipe and
// the branch's current ingredient costs. Prices move with the latest
// delivery cost, never with a snapshot.
func toMenuItemResponse(item database.MenuItem, ingredients []database.MenuItemIngredient, costs map[uuid.UUID]decimal.Decimal) menuItemResponse {
	refs := make([]service.IngredientRef, len(ingredients))
	ingResp := make([]menuIngredientResponse, len(ingredients))
	for i, ing := range ingredients {
		qty, _ := decimal.NewFromString(numericToQtyString(ing.Quantity))
		refs[i] = service.IngredientRef{InventoryItemID: ing.InventoryItemID, Quantity: qty}
		ingResp[i] = menuIngredientResponse{
			InventoryItemID: ing.InventoryItemID,
			Quantity:        numericToQtyString(ing.Quantity),
			Unit:            ing.Unit,
		}
	}

	price, _ := decimal.NewFromString(numericToString(item.Price))
	cost := service.IngredientCost(refs, costs)

	resp := menuItemResponse{
		ID:          item.ID,
		BranchID:    item.BranchID,
		Name:        item.Name,
		Price:       price.StringFixed(2),
		Cost:        cost.StringFixed(2),
		Profit:      service.Profit(price, cost).StringFixed(2),
		Margin:      service.Margin(price, cost).String(),
		IsAvailable: item.IsAvailable,
		Status:      string(item.Status),
		Ingredients: ingResp,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
	if item.CategoryID.Valid {
		s := uuid.UUID(item.CategoryID.Bytes).String()
		resp.CategoryID = &s
	}
	if item.Description.Valid {
		resp.Description = &item.Description.String
	}
	return resp
}

// branchCosts builds the inventory cost table used for margin derivation.
func (h *MenuHandler) branchCosts(ctx context.Context, branchID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	items, err := h.store.ListInventoryByBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	costs := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, item := range items {
		c, _ := decimal.NewFromString(numericToString(item.CostPerUnit))
		costs[item.ID] = c
	}
	return costs, nil
}

// validateIngredients parses the ingredient list of a create/update request.
func validateIngredients(reqs []menuIngredientRequest) ([]database.CreateMenuItemIngredientParams, string) {
	params := make([]database.CreateMenuItemIngredientParams, len(reqs))
	for i, ing := range reqs {
		invID, err := uuid.Parse(ing.InventoryItemID)
		if err != nil {
			return nil, "invalid inventory_item_id in ingredients"
		}
		qty, err := decimal.NewFromString(ing.Quantity)
		if err != nil || !qty.IsPositive() {
			return nil, "ingredient quantity must be > 0"
		}
		if ing.Unit == "" {
			return nil, "ingredient unit is required"
		}
		params[i] = database.CreateMenuItemIngredientParams{
			InventoryItemID: invID,
			Quantity:        decimalToNumeric(qty),
			Unit:            ing.Unit,
		}
	}
	return params, ""
}

// --- Handlers ---

// List returns the branch's menu with derived cost and margin, optionally
// filtered by ?category_id=.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	categoryID := pgtype.UUID{}
	if s := r.URL.Query().Get("category_id"); s != "" {
		cid, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		categoryID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	items, err := h.store.ListMenuItemsByBranch(r.Context(), database.ListMenuItemsByBranchParams{
		BranchID:   branchID,
		CategoryID: categoryID,
	})
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	costs, err := h.branchCosts(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: load inventory costs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		ingredients, err := h.store.ListIngredientsByMenuItem(r.Context(), item.ID)
		if err != nil {
			log.Printf("ERROR: list menu item ingredients: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i] = toMenuItemResponse(item, ingredients, costs)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns one menu item with its recipe and derived figures.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{
		ID:       itemID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ingredients, err := h.store.ListIngredientsByMenuItem(r.Context(), itemID)
	if err != nil {
		log.Printf("ERROR: list menu item ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	costs, err := h.branchCosts(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: load inventory costs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item, ingredients, costs))
}

// Create adds a menu item with its recipe.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	categoryID := pgtype.UUID{}
	if req.CategoryID != "" {
		cid, err := uuid.Parse(req.CategoryID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		categoryID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	desc := pgtype.Text{}
	if req.Description != "" {
		desc = pgtype.Text{String: req.Description, Valid: true}
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	ingredients, msg := validateIngredients(req.Ingredients)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		BranchID:    branchID,
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: desc,
		Price:       decimalToNumeric(price),
		IsAvailable: isAvailable,
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	created := make([]database.MenuItemIngredient, 0, len(ingredients))
	for _, ing := range ingredients {
		ing.MenuItemID = item.ID
		row, err := h.store.CreateMenuItemIngredient(r.Context(), ing)
		if err != nil {
			log.Printf("ERROR: create menu item ingredient: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		created = append(created, row)
	}

	costs, err := h.branchCosts(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: load inventory costs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item, created, costs))
}

// Update replaces a menu item's fields and recipe.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	status := database.MenuItemStatusACTIVE
	if req.Status != "" {
		status = database.MenuItemStatus(req.Status)
		if status != database.MenuItemStatusACTIVE &&
			status != database.MenuItemStatusINACTIVE &&
			status != database.MenuItemStatusOUTOFSTOCK {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
	}

	categoryID := pgtype.UUID{}
	if req.CategoryID != "" {
		cid, err := uuid.Parse(req.CategoryID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		categoryID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	desc := pgtype.Text{}
	if req.Description != "" {
		desc = pgtype.Text{String: req.Description, Valid: true}
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	ingredients, msg := validateIngredients(req.Ingredients)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:          itemID,
		BranchID:    branchID,
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: desc,
		Price:       decimalToNumeric(price),
		IsAvailable: isAvailable,
		Status:      status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: update menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Replace the recipe wholesale.
	if err := h.store.DeleteIngredientsByMenuItem(r.Context(), itemID); err != nil {
		log.Printf("ERROR: clear menu item ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	updated := make([]database.MenuItemIngredient, 0, len(ingredients))
	for _, ing := range ingredients {
		ing.MenuItemID = item.ID
		row, err := h.store.CreateMenuItemIngredient(r.Context(), ing)
		if err != nil {
			log.Printf("ERROR: create menu item ingredient: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		updated = append(updated, row)
	}

	costs, err := h.branchCosts(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: load inventory costs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item, updated, costs))
}

// Delete soft-deletes a menu item (status INACTIVE).
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	_, err = h.store.SoftDeleteMenuItem(r.Context(), database.SoftDeleteMenuItemParams{
		ID:       itemID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: delete menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
