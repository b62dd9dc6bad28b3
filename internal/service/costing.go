package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientRef is one line of a menu item's (or addon's) recipe.
type IngredientRef struct {
	InventoryItemID uuid.UUID
	Quantity        decimal.Decimal
}

// IngredientCost sums quantity × unit cost over the recipe against the
// given cost table. Ingredients whose inventory record is missing (deleted
// stock item, stale reference) contribute zero rather than failing;
// costing must never block a menu read.
func IngredientCost(ingredients []IngredientRef, costs map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, ing := range ingredients {
		unitCost, ok := costs[ing.InventoryItemID]
		if !ok {
			continue
		}
		total = total.Add(ing.Quantity.Mul(unitCost))
	}
	return total
}

// Profit is selling price minus ingredient cost. Can be negative.
func Profit(price, cost decimal.Decimal) decimal.Decimal {
	return price.Sub(cost)
}

// Margin is profit as a percentage of price, rounded to 2 decimal
// places, defined as 0 for a zero price (free items have no margin, not
// a division by zero).
func Margin(price, cost decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return price.Sub(cost).Div(price).Mul(decimal.NewFromInt(100)).Round(2)
}
