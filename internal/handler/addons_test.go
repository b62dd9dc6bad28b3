package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/karinderya-pos/api/internal/handler"
)

// --- Mock store ---

type mockAddonStore struct {
	addons      map[uuid.UUID]database.Addon
	ingredients map[uuid.UUID][]database.AddonIngredient // keyed by addon ID
}

func newMockAddonStore() *mockAddonStore {
	return &mockAddonStore{
		addons:      make(map[uuid.UUID]database.Addon),
		ingredients: make(map[uuid.UUID][]database.AddonIngredient),
	}
}

func (m *mockAddonStore) ListAddonsByBranch(_ context.Context, branchID uuid.UUID) ([]database.Addon, error) {
	var result []database.Addon
	for _, a := range m.addons {
		if a.BranchID == branchID && a.IsActive {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAddonStore) GetAddon(_ context.Context, arg database.GetAddonParams) (database.Addon, error) {
	a, ok := m.addons[arg.ID]
	if !ok || a.BranchID != arg.BranchID {
		return database.Addon{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockAddonStore) CreateAddon(_ context.Context, arg database.CreateAddonParams) (database.Addon, error) {
	a := database.Addon{
		ID:              uuid.New(),
		BranchID:        arg.BranchID,
		Name:            arg.Name,
		Price:           arg.Price,
		Category:        arg.Category,
		InventoryItemID: arg.InventoryItemID,
		QtyPerServing:   arg.QtyPerServing,
		IsActive:        true,
	}
	m.addons[a.ID] = a
	return a, nil
}

func (m *mockAddonStore) UpdateAddon(_ context.Context, arg database.UpdateAddonParams) (database.Addon, error) {
	a, ok := m.addons[arg.ID]
	if !ok || a.BranchID != arg.BranchID || !a.IsActive {
		return database.Addon{}, pgx.ErrNoRows
	}
	a.Name = arg.Name
	a.Price = arg.Price
	a.Category = arg.Category
	a.InventoryItemID = arg.InventoryItemID
	a.QtyPerServing = arg.QtyPerServing
	m.addons[a.ID] = a
	return a, nil
}

func (m *mockAddonStore) SoftDeleteAddon(_ context.Context, arg database.SoftDeleteAddonParams) (uuid.UUID, error) {
	a, ok := m.addons[arg.ID]
	if !ok || a.BranchID != arg.BranchID || !a.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	a.IsActive = false
	m.addons[a.ID] = a
	return a.ID, nil
}

func (m *mockAddonStore) ListAddonIngredients(_ context.Context, addonID uuid.UUID) ([]database.AddonIngredient, error) {
	return m.ingredients[addonID], nil
}

func (m *mockAddonStore) CreateAddonIngredient(_ context.Context, arg database.CreateAddonIngredientParams) (database.AddonIngredient, error) {
	ing := database.AddonIngredient{
		ID:              uuid.New(),
		AddonID:         arg.AddonID,
		InventoryItemID: arg.InventoryItemID,
		Quantity:        arg.Quantity,
		Unit:            arg.Unit,
	}
	m.ingredients[arg.AddonID] = append(m.ingredients[arg.AddonID], ing)
	return ing, nil
}

func (m *mockAddonStore) DeleteAddonIngredientsByAddon(_ context.Context, addonID uuid.UUID) error {
	delete(m.ingredients, addonID)
	return nil
}

func setupAddonRouter(store *mockAddonStore) *chi.Mux {
	h := handler.NewAddonHandler(store)
	r := chi.NewRouter()
	r.Route("/branches/{bid}/addons", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestCreateAddon_InventoryLinked(t *testing.T) {
	store := newMockAddonStore()
	router := setupAddonRouter(store)
	branchID := uuid.New()
	cheeseID := uuid.New()

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":              "Extra Cheese",
		"price":             "25.00",
		"category":          "EXTRA",
		"inventory_item_id": cheeseID.String(),
		"qty_per_serving":   "2",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeJSONObject(t, rr)
	if resp["price"] != "25.00" {
		t.Errorf("price: got %v", resp["price"])
	}
	if resp["inventory_item_id"] != cheeseID.String() {
		t.Errorf("inventory_item_id: got %v", resp["inventory_item_id"])
	}
	if resp["qty_per_serving"] != "2" {
		t.Errorf("qty_per_serving: got %v, want full precision 2", resp["qty_per_serving"])
	}
}

func TestCreateAddon_RecipeLinked(t *testing.T) {
	store := newMockAddonStore()
	router := setupAddonRouter(store)
	branchID := uuid.New()

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":     "Upgrade to Large",
		"price":    "15.00",
		"category": "SIZE",
		"ingredients": []map[string]interface{}{
			{"inventory_item_id": uuid.New().String(), "quantity": "0.05", "unit": "L"},
			{"inventory_item_id": uuid.New().String(), "quantity": "1", "unit": "pc"},
		},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeJSONObject(t, rr)
	ingredients, _ := resp["ingredients"].([]interface{})
	if len(ingredients) != 2 {
		t.Fatalf("expected 2 recipe lines, got %v", resp["ingredients"])
	}
	if resp["inventory_item_id"] != nil {
		t.Errorf("inventory_item_id should be null for recipe addons, got %v", resp["inventory_item_id"])
	}
}

func TestCreateAddon_PriceOnly(t *testing.T) {
	store := newMockAddonStore()
	router := setupAddonRouter(store)
	branchID := uuid.New()

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":     "Less Ice",
		"price":    "0",
		"category": "MODIFICATION",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeJSONObject(t, rr)
	if resp["qty_per_serving"] != nil {
		t.Errorf("qty_per_serving: got %v, want null", resp["qty_per_serving"])
	}
}

func TestCreateAddon_LinkFieldsMustPair(t *testing.T) {
	store := newMockAddonStore()
	router := setupAddonRouter(store)
	branchID := uuid.New()

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":              "Extra Cheese",
		"price":             "25.00",
		"category":          "EXTRA",
		"inventory_item_id": uuid.New().String(),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("id without qty: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":            "Extra Cheese",
		"price":           "25.00",
		"category":        "EXTRA",
		"qty_per_serving": "2",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("qty without id: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateAddon_InvalidCategory(t *testing.T) {
	store := newMockAddonStore()
	router := setupAddonRouter(store)
	branchID := uuid.New()

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":     "Extra Cheese",
		"price":    "25.00",
		"category": "TOPPING",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateAddon_ReplacesRecipe(t *testing.T) {
	store := newMockAddonStore()
	branchID := uuid.New()
	router := setupAddonRouter(store)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":     "Upgrade to Large",
		"price":    "15.00",
		"category": "SIZE",
		"ingredients": []map[string]interface{}{
			{"inventory_item_id": uuid.New().String(), "quantity": "0.05", "unit": "L"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	created := decodeJSONObject(t, rr)
	addonID, _ := created["id"].(string)

	newInv := uuid.New()
	rr = doRequest(t, router, "PUT", "/branches/"+branchID.String()+"/addons/"+addonID, map[string]interface{}{
		"name":     "Upgrade to Large",
		"price":    "20.00",
		"category": "SIZE",
		"ingredients": []map[string]interface{}{
			{"inventory_item_id": newInv.String(), "quantity": "0.1", "unit": "L"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeJSONObject(t, rr)
	if resp["price"] != "20.00" {
		t.Errorf("price: got %v", resp["price"])
	}
	ingredients, _ := resp["ingredients"].([]interface{})
	if len(ingredients) != 1 {
		t.Fatalf("expected recipe replaced with 1 line, got %v", resp["ingredients"])
	}
	ing, _ := ingredients[0].(map[string]interface{})
	if ing["inventory_item_id"] != newInv.String() {
		t.Errorf("ingredient: got %v, want %s", ing["inventory_item_id"], newInv)
	}
}

func TestDeleteAddon_HiddenFromList(t *testing.T) {
	store := newMockAddonStore()
	branchID := uuid.New()
	router := setupAddonRouter(store)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":     "Less Ice",
		"price":    "0",
		"category": "MODIFICATION",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status: got %d", rr.Code)
	}
	created := decodeJSONObject(t, rr)
	addonID, _ := created["id"].(string)

	rr = doRequest(t, router, "DELETE", "/branches/"+branchID.String()+"/addons/"+addonID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status: got %d", rr.Code)
	}

	rr = doRequest(t, router, "GET", "/branches/"+branchID.String()+"/addons", nil)
	resp := decodeJSONList(t, rr)
	if len(resp) != 0 {
		t.Errorf("deleted addon still listed: %+v", resp)
	}
}

func TestGetAddon_WrongBranch(t *testing.T) {
	store := newMockAddonStore()
	branchID := uuid.New()
	router := setupAddonRouter(store)

	rr := doRequest(t, router, "POST", "/branches/"+branchID.String()+"/addons", map[string]interface{}{
		"name":     "Extra Rice",
		"price":    "15.00",
		"category": "EXTRA",
	})
	created := decodeJSONObject(t, rr)
	addonID, _ := created["id"].(string)

	rr = doRequest(t, router, "GET", "/branches/"+uuid.New().String()+"/addons/"+addonID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
