package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/karinderya-pos/api/internal/matcher"
	"github.com/shopspring/decimal"
)

// DeductionKind tags how an addon's stock deduction was resolved.
type DeductionKind string

const (
	// DeductionRecipe: the addon carries a multi-ingredient recipe.
	DeductionRecipe DeductionKind = "RECIPE"
	// DeductionSingleItem: the addon is bound to one inventory item with a
	// quantity per serving.
	DeductionSingleItem DeductionKind = "SINGLE_ITEM"
	// DeductionNameMatch: legacy addon resolved by name match against the
	// inventory list, assuming one unit per serving.
	DeductionNameMatch DeductionKind = "NAME_MATCH"
)

// DeductionEntry is one stock subtraction an addon or recipe requires.
type DeductionEntry struct {
	InventoryItemID uuid.UUID
	Quantity        decimal.Decimal
	Kind            DeductionKind
}

// AddonDeductionInput is everything known about a selected addon at
// checkout. Addon and Ingredients are nil/empty for ad-hoc addons that
// never went through the menu builder.
type AddonDeductionInput struct {
	Name         string
	Addon        *database.Addon
	Ingredients  []database.AddonIngredient
	LineQuantity int32
}

// ResolveAddonDeduction turns a selected addon into stock deductions.
// Resolution priority: recipe linkage, then single-item linkage, then a
// case-insensitive name match against inventory. A failed or ambiguous
// name match returns no entries and a warning; the sale is never blocked
// by addon bookkeeping.
func ResolveAddonDeduction(in AddonDeductionInput, inv *matcher.Matcher) ([]DeductionEntry, string) {
	lineQty := decimal.NewFromInt32(in.LineQuantity)

	if len(in.Ingredients) > 0 {
		entries := make([]DeductionEntry, len(in.Ingredients))
		for i, ing := range in.Ingredients {
			entries[i] = DeductionEntry{
				InventoryItemID: ing.InventoryItemID,
				Quantity:        numericToDecimal(ing.Quantity).Mul(lineQty),
				Kind:            DeductionRecipe,
			}
		}
		return entries, ""
	}

	if in.Addon != nil && in.Addon.InventoryItemID.Valid {
		return []DeductionEntry{{
			InventoryItemID: uuid.UUID(in.Addon.InventoryItemID.Bytes),
			Quantity:        numericToDecimal(in.Addon.QtyPerServing).Mul(lineQty),
			Kind:            DeductionSingleItem,
		}}, ""
	}

	// Legacy fallback: resolve by name, deduct one unit per serving.
	result := inv.Match(in.Name)
	switch result.Status {
	case matcher.Matched:
		return []DeductionEntry{{
			InventoryItemID: result.Item.ID,
			Quantity:        lineQty,
			Kind:            DeductionNameMatch,
		}}, ""
	case matcher.Ambiguous:
		return nil, fmt.Sprintf("addon %q matches %d inventory items, skipping deduction", in.Name, len(result.Candidates))
	default:
		return nil, fmt.Sprintf("addon %q has no matching inventory item, skipping deduction", in.Name)
	}
}
