package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestIngredientCost(t *testing.T) {
	milk := uuid.New()
	beans := uuid.New()
	costs := map[uuid.UUID]decimal.Decimal{
		milk:  dec("60"), // per L
		beans: dec("800"), // per kg
	}

	got := IngredientCost([]IngredientRef{
		{InventoryItemID: milk, Quantity: dec("0.2")},
		{InventoryItemID: beans, Quantity: dec("0.018")},
	}, costs)

	if !got.Equal(dec("26.4")) {
		t.Errorf("cost = %v, want 26.4", got)
	}
}

func TestIngredientCost_MissingItemContributesZero(t *testing.T) {
	milk := uuid.New()
	costs := map[uuid.UUID]decimal.Decimal{milk: dec("60")}

	got := IngredientCost([]IngredientRef{
		{InventoryItemID: milk, Quantity: dec("0.2")},
		{InventoryItemID: uuid.New(), Quantity: dec("5")},
	}, costs)

	if !got.Equal(dec("12")) {
		t.Errorf("cost = %v, want 12", got)
	}
}

func TestIngredientCost_Empty(t *testing.T) {
	if got := IngredientCost(nil, nil); !got.IsZero() {
		t.Errorf("cost = %v, want 0", got)
	}
}

// A latte priced at 120 using 0.2 L of milk at 60 per liter: cost 12,
// profit 108, margin 90%.
func TestProfitAndMargin(t *testing.T) {
	milk := uuid.New()
	cost := IngredientCost(
		[]IngredientRef{{InventoryItemID: milk, Quantity: dec("0.2")}},
		map[uuid.UUID]decimal.Decimal{milk: dec("60")},
	)
	price := dec("120")

	if !cost.Equal(dec("12")) {
		t.Errorf("cost = %v, want 12", cost)
	}
	if got := Profit(price, cost); !got.Equal(dec("108")) {
		t.Errorf("profit = %v, want 108", got)
	}
	if got := Margin(price, cost); !got.Equal(dec("90")) {
		t.Errorf("margin = %v, want 90", got)
	}
}

func TestMargin_ZeroPrice(t *testing.T) {
	if got := Margin(decimal.Zero, dec("10")); !got.IsZero() {
		t.Errorf("margin = %v, want 0", got)
	}
}

func TestProfit_NegativeWhenCostExceedsPrice(t *testing.T) {
	if got := Profit(dec("10"), dec("15")); !got.Equal(dec("-5")) {
		t.Errorf("profit = %v, want -5", got)
	}
}

func TestMargin_Rounding(t *testing.T) {
	// 1/3 margin rounds to 2 decimal places.
	got := Margin(dec("30"), dec("20"))
	if !got.Equal(dec("33.33")) {
		t.Errorf("margin = %v, want 33.33", got)
	}
}
