package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/karinderya-pos/api/internal/enum"
	"github.com/karinderya-pos/api/internal/matcher"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems            = errors.New("items are required")
	ErrInvalidPaymentMethod  = errors.New("invalid payment_method")
	ErrInvalidQuantity       = errors.New("quantity must be > 0")
	ErrMenuItemNotFound      = errors.New("menu item not found in branch")
	ErrMenuItemUnavailable   = errors.New("menu item is not available")
	ErrAddonNotFound         = errors.New("addon not found")
	ErrInvalidMenuItemID     = errors.New("invalid menu_item_id")
	ErrInvalidAddonID        = errors.New("invalid addon_id")
	ErrInvalidAddonPrice     = errors.New("invalid addon price")
	ErrAddonNameRequired     = errors.New("addon name is required")
	ErrInvalidDiscount       = errors.New("invalid discount_amount")
	ErrInvalidTip            = errors.New("invalid tip_amount")
	ErrInvalidAmountReceived = errors.New("invalid amount_received")
	ErrInsufficientCash      = errors.New("amount_received must be >= total")
	ErrTotalMismatch         = errors.New("expected_total does not match computed total")
	ErrVoidReasonRequired    = errors.New("void reason is required")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyVoided    = errors.New("order is already voided")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	GetAddon(ctx context.Context, arg database.GetAddonParams) (database.Addon, error)
	ListAddonIngredients(ctx context.Context, addonID uuid.UUID) ([]database.AddonIngredient, error)
	ListInventoryByBranch(ctx context.Context, branchID uuid.UUID) ([]database.InventoryItem, error)
	GetOpenDrawerSession(ctx context.Context, branchID uuid.UUID) (database.DrawerSession, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error)
	AdjustStock(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	VoidOrder(ctx context.Context, arg database.VoidOrderParams) (database.Order, error)
	ListStockMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.StockMovement, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for a checkout.
type CreateOrderRequest struct {
	BranchID       uuid.UUID
	CreatedBy      uuid.UUID
	PaymentMethod  string
	DiscountAmount string // optional
	TipAmount      string // optional
	AmountReceived string // required for CASH
	ExpectedTotal  string // optional client-side total, verified against ours
	Items          []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single cart line.
type CreateOrderItemRequest struct {
	MenuItemID    string
	Quantity      int32
	Customization string
	Addons        []CreateOrderAddonRequest
}

// CreateOrderAddonRequest is a selected addon. AddonID references a
// menu-builder addon; an empty AddonID with Name+Price is an ad-hoc
// addon resolved by inventory name match at deduction time.
type CreateOrderAddonRequest struct {
	AddonID string
	Name    string
	Price   string
}

// CreateOrderResult is the created order plus the deduction side effects
// the caller surfaces: skipped-addon warnings and items that crossed
// their low-stock threshold.
type CreateOrderResult struct {
	Order    database.Order
	Items    []OrderItemResult
	Warnings []string
	LowStock []database.InventoryItem
}

// OrderItemResult is a created line with its addons.
type OrderItemResult struct {
	Item   database.OrderItem
	Addons []database.OrderItemAddon
}

// OrderService handles checkout and void business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// plannedAddon holds a priced addon and its resolved deductions.
type plannedAddon struct {
	addonID pgtype.UUID
	name    string
	price   decimal.Decimal
	entries []DeductionEntry
}

// plannedItem holds a prepared order line before insertion.
type plannedItem struct {
	menuItemID    uuid.UUID
	name          string
	quantity      int32
	unitPrice     decimal.Decimal
	customization string
	lineTotal     decimal.Decimal
	deductions    []DeductionEntry // menu recipe deductions
	addons        []plannedAddon
}

// CreateOrder validates the cart, calculates prices, and creates the
// order with all of its inventory deductions in a single transaction.
// Retries up to maxOrderNumberRetries times on order_number unique
// constraint violations (concurrent checkouts can read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	// Retry loop: handles order_number unique constraint race condition.
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_branch_id_order_number_key"
	}
	return false
}

// createOrderTx executes the full checkout in a single transaction:
// pricing, order + item rows, and every stock deduction. Any failure
// rolls back the whole set.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Generate order number ---
	nextNum, err := store.GetNextOrderNumber(ctx, req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("KPS-%03d", nextNum)

	// Inventory snapshot feeds the ad-hoc addon name matcher.
	inventory, err := store.ListInventoryByBranch(ctx, req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	matchItems := make([]matcher.Item, len(inventory))
	for i, inv := range inventory {
		matchItems[i] = matcher.Item{ID: inv.ID, Name: inv.Name, Unit: inv.Unit}
	}
	nameMatcher := matcher.New(matchItems)

	// --- Process items: validate + calculate prices + plan deductions ---
	var warnings []string
	subtotal := decimal.Zero
	var items []plannedItem

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}

		menuItem, err := store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:       menuItemID,
			BranchID: req.BranchID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !menuItem.IsAvailable || menuItem.Status != database.MenuItemStatusACTIVE {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemUnavailable)
		}

		unitPrice := numericToDecimal(menuItem.Price)
		lineQty := decimal.NewFromInt32(item.Quantity)

		// Recipe deductions: ingredient qty per serving x line quantity.
		ingredients, err := store.ListIngredientsByMenuItem(ctx, menuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: list ingredients: %w", i, err)
		}
		deductions := make([]DeductionEntry, len(ingredients))
		for k, ing := range ingredients {
			deductions[k] = DeductionEntry{
				InventoryItemID: ing.InventoryItemID,
				Quantity:        numericToDecimal(ing.Quantity).Mul(lineQty),
				Kind:            DeductionRecipe,
			}
		}

		// Process addons.
		addonsTotal := decimal.Zero
		var addons []plannedAddon
		for j, sel := range item.Addons {
			planned, err := s.planAddon(ctx, store, req.BranchID, sel, item.Quantity, nameMatcher, &warnings)
			if err != nil {
				return nil, fmt.Errorf("item[%d].addons[%d]: %w", i, j, err)
			}
			addonsTotal = addonsTotal.Add(planned.price)
			addons = append(addons, planned)
		}

		// line_total = (unit_price + addon prices) * quantity
		lineTotal := unitPrice.Add(addonsTotal).Mul(lineQty)
		subtotal = subtotal.Add(lineTotal)

		items = append(items, plannedItem{
			menuItemID:    menuItemID,
			name:          menuItem.Name,
			quantity:      item.Quantity,
			unitPrice:     unitPrice,
			customization: item.Customization,
			lineTotal:     lineTotal,
			deductions:    deductions,
			addons:        addons,
		})
	}

	// --- Calculate totals ---
	discount, err := parseOptionalAmount(req.DiscountAmount)
	if err != nil || discount.IsNegative() {
		return nil, ErrInvalidDiscount
	}
	tip, err := parseOptionalAmount(req.TipAmount)
	if err != nil || tip.IsNegative() {
		return nil, ErrInvalidTip
	}

	total := subtotal.Sub(discount).Add(tip)
	if total.IsNegative() {
		total = decimal.Zero
	}

	// The client-side cart total must agree with ours to the cent.
	if req.ExpectedTotal != "" {
		expected, err := decimal.NewFromString(req.ExpectedTotal)
		if err != nil || !expected.Round(2).Equal(total.Round(2)) {
			return nil, ErrTotalMismatch
		}
	}

	// --- Cash handling ---
	amountReceived := pgtype.Numeric{}
	changeAmount := pgtype.Numeric{}
	if req.PaymentMethod == enum.PaymentMethodCash {
		if req.AmountReceived == "" {
			return nil, ErrInvalidAmountReceived
		}
		received, err := decimal.NewFromString(req.AmountReceived)
		if err != nil {
			return nil, ErrInvalidAmountReceived
		}
		if received.LessThan(total) {
			return nil, ErrInsufficientCash
		}
		amountReceived = decimalToNumeric(received)
		changeAmount = decimalToNumeric(received.Sub(total))
	}

	// Attach the open drawer session if the branch has one. Checkout is
	// not blocked by a closed drawer; the link only feeds cash
	// reconciliation.
	drawerSessionID := pgtype.UUID{}
	session, err := store.GetOpenDrawerSession(ctx, req.BranchID)
	if err == nil {
		drawerSessionID = pgtype.UUID{Bytes: session.ID, Valid: true}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open drawer session: %w", err)
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		BranchID:        req.BranchID,
		OrderNumber:     orderNumber,
		Subtotal:        decimalToNumeric(subtotal),
		DiscountAmount:  decimalToNumeric(discount),
		TipAmount:       decimalToNumeric(tip),
		TotalAmount:     decimalToNumeric(total),
		PaymentMethod:   database.PaymentMethod(req.PaymentMethod),
		AmountReceived:  amountReceived,
		ChangeAmount:    changeAmount,
		DrawerSessionID: drawerSessionID,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items + addons, execute deductions ---
	var itemResults []OrderItemResult
	var lowStock []database.InventoryItem
	seenLow := make(map[uuid.UUID]bool)

	for _, pi := range items {
		customization := pgtype.Text{}
		if pi.customization != "" {
			customization = pgtype.Text{String: pi.customization, Valid: true}
		}
		orderItem, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:       order.ID,
			MenuItemID:    pi.menuItemID,
			NameSnapshot:  pi.name,
			Quantity:      pi.quantity,
			UnitPrice:     decimalToNumeric(pi.unitPrice),
			Customization: customization,
			LineTotal:     decimalToNumeric(pi.lineTotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		var addonResults []database.OrderItemAddon
		entries := append([]DeductionEntry{}, pi.deductions...)
		for _, pa := range pi.addons {
			oia, err := store.CreateOrderItemAddon(ctx, database.CreateOrderItemAddonParams{
				OrderItemID:  orderItem.ID,
				AddonID:      pa.addonID,
				NameSnapshot: pa.name,
				Price:        decimalToNumeric(pa.price),
			})
			if err != nil {
				return nil, fmt.Errorf("create order item addon: %w", err)
			}
			addonResults = append(addonResults, oia)
			entries = append(entries, pa.entries...)
		}

		for _, entry := range entries {
			updated, err := s.deduct(ctx, store, req, order, entry)
			if err != nil {
				return nil, err
			}
			if numericToDecimal(updated.Quantity).LessThanOrEqual(numericToDecimal(updated.MinThreshold)) && !seenLow[updated.ID] {
				seenLow[updated.ID] = true
				lowStock = append(lowStock, updated)
			}
		}

		itemResults = append(itemResults, OrderItemResult{
			Item:   orderItem,
			Addons: addonResults,
		})
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order:    order,
		Items:    itemResults,
		Warnings: warnings,
		LowStock: lowStock,
	}, nil
}

// planAddon prices one selected addon and resolves its deductions.
func (s *OrderService) planAddon(
	ctx context.Context,
	store OrderStore,
	branchID uuid.UUID,
	sel CreateOrderAddonRequest,
	lineQuantity int32,
	nameMatcher *matcher.Matcher,
	warnings *[]string,
) (plannedAddon, error) {
	in := AddonDeductionInput{LineQuantity: lineQuantity}
	planned := plannedAddon{}

	if sel.AddonID != "" {
		addonID, err := uuid.Parse(sel.AddonID)
		if err != nil {
			return planned, ErrInvalidAddonID
		}
		addon, err := store.GetAddon(ctx, database.GetAddonParams{ID: addonID, BranchID: branchID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return planned, ErrAddonNotFound
			}
			return planned, fmt.Errorf("get addon: %w", err)
		}
		ingredients, err := store.ListAddonIngredients(ctx, addonID)
		if err != nil {
			return planned, fmt.Errorf("list addon ingredients: %w", err)
		}
		planned.addonID = pgtype.UUID{Bytes: addonID, Valid: true}
		planned.name = addon.Name
		planned.price = numericToDecimal(addon.Price)
		in.Name = addon.Name
		in.Addon = &addon
		in.Ingredients = ingredients
	} else {
		// Ad-hoc addon: the register sends a display name and a price.
		if sel.Name == "" {
			return planned, ErrAddonNameRequired
		}
		price, err := decimal.NewFromString(sel.Price)
		if err != nil || price.IsNegative() {
			return planned, ErrInvalidAddonPrice
		}
		planned.name = sel.Name
		planned.price = price
		in.Name = sel.Name
	}

	entries, warn := ResolveAddonDeduction(in, nameMatcher)
	if warn != "" {
		*warnings = append(*warnings, warn)
	}
	planned.entries = entries
	return planned, nil
}

// deduct applies one stock subtraction and writes its audit movement.
// The movement keeps the order backlink so a later void can replay it.
func (s *OrderService) deduct(
	ctx context.Context,
	store OrderStore,
	req CreateOrderRequest,
	order database.Order,
	entry DeductionEntry,
) (database.InventoryItem, error) {
	updated, err := store.AdjustStock(ctx, database.AdjustStockParams{
		ID:       entry.InventoryItemID,
		BranchID: req.BranchID,
		Delta:    decimalToNumeric(entry.Quantity.Neg()),
	})
	if err != nil {
		return database.InventoryItem{}, fmt.Errorf("deduct stock %s: %w", entry.InventoryItemID, err)
	}

	after := numericToDecimal(updated.Quantity)
	_, err = store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		InventoryItemID: entry.InventoryItemID,
		OrderID:         pgtype.UUID{Bytes: order.ID, Valid: true},
		Direction:       database.StockDirectionSUBTRACT,
		Quantity:        decimalToNumeric(entry.Quantity),
		QuantityBefore:  decimalToNumeric(after.Add(entry.Quantity)),
		QuantityAfter:   decimalToNumeric(after),
		Note:            pgtype.Text{String: fmt.Sprintf("Order %s", order.OrderNumber), Valid: true},
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return database.InventoryItem{}, fmt.Errorf("record stock movement: %w", err)
	}
	return updated, nil
}

// VoidOrderRequest is the input for voiding a completed order.
type VoidOrderRequest struct {
	BranchID         uuid.UUID
	OrderID          uuid.UUID
	Reason           string
	RestoreInventory bool
	VoidedBy         uuid.UUID
}

// VoidOrderResult is the voided order plus how many restorations ran.
type VoidOrderResult struct {
	Order         database.Order
	RestoredCount int
}

// VoidOrder transitions a completed order to VOIDED. When
// RestoreInventory is set, every SUBTRACT movement the checkout wrote
// is replayed as an ADD of the same quantity, so restoration is exactly
// symmetric with the original deduction regardless of how each addon
// was resolved. Voiding is terminal: a voided order stays voided.
func (s *OrderService) VoidOrder(ctx context.Context, req VoidOrderRequest) (*VoidOrderResult, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrVoidReasonRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{
		ID:       req.OrderID,
		BranchID: req.BranchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if current.Status == database.OrderStatusVOIDED {
		return nil, ErrOrderAlreadyVoided
	}

	voided, err := store.VoidOrder(ctx, database.VoidOrderParams{
		ID:                req.OrderID,
		BranchID:          req.BranchID,
		VoidReason:        reason,
		VoidedBy:          req.VoidedBy,
		InventoryRestored: req.RestoreInventory,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race despite the row lock; treat as already voided.
			return nil, ErrOrderAlreadyVoided
		}
		return nil, fmt.Errorf("void order: %w", err)
	}

	restored := 0
	if req.RestoreInventory {
		movements, err := store.ListStockMovementsByOrder(ctx, req.OrderID)
		if err != nil {
			return nil, fmt.Errorf("list stock movements: %w", err)
		}
		note := fmt.Sprintf("Void %s: %s", voided.OrderNumber, reason)
		for _, mv := range movements {
			if mv.Direction != database.StockDirectionSUBTRACT {
				continue
			}
			qty := numericToDecimal(mv.Quantity)
			updated, err := store.AdjustStock(ctx, database.AdjustStockParams{
				ID:       mv.InventoryItemID,
				BranchID: req.BranchID,
				Delta:    decimalToNumeric(qty),
			})
			if err != nil {
				return nil, fmt.Errorf("restore stock %s: %w", mv.InventoryItemID, err)
			}
			after := numericToDecimal(updated.Quantity)
			_, err = store.CreateStockMovement(ctx, database.CreateStockMovementParams{
				InventoryItemID: mv.InventoryItemID,
				OrderID:         pgtype.UUID{Bytes: req.OrderID, Valid: true},
				Direction:       database.StockDirectionADD,
				Quantity:        decimalToNumeric(qty),
				QuantityBefore:  decimalToNumeric(after.Sub(qty)),
				QuantityAfter:   decimalToNumeric(after),
				Note:            pgtype.Text{String: note, Valid: true},
				CreatedBy:       req.VoidedBy,
			})
			if err != nil {
				return nil, fmt.Errorf("record restoration movement: %w", err)
			}
			restored++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &VoidOrderResult{Order: voided, RestoredCount: restored}, nil
}

// --- Helpers ---

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodGCash, enum.PaymentMethodCard:
		return true
	}
	return false
}

func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
