package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/karinderya-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed = true
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getNextOrderNumberFn    func(ctx context.Context, branchID uuid.UUID) (int32, error)
	getMenuItemFn           func(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	listIngredientsFn       func(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	getAddonFn              func(ctx context.Context, arg database.GetAddonParams) (database.Addon, error)
	listAddonIngredientsFn  func(ctx context.Context, addonID uuid.UUID) ([]database.AddonIngredient, error)
	listInventoryFn         func(ctx context.Context, branchID uuid.UUID) ([]database.InventoryItem, error)
	getOpenDrawerSessionFn  func(ctx context.Context, branchID uuid.UUID) (database.DrawerSession, error)
	createOrderFn           func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn       func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	createOrderItemAddonFn  func(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error)
	adjustStockFn           func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error)
	createStockMovementFn   func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	getOrderForUpdateFn     func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	voidOrderFn             func(ctx context.Context, arg database.VoidOrderParams) (database.Order, error)
	listMovementsByOrderFn  func(ctx context.Context, orderID uuid.UUID) ([]database.StockMovement, error)
}

func (m *mockOrderStore) GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error) {
	return m.getNextOrderNumberFn(ctx, branchID)
}
func (m *mockOrderStore) GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
	return m.getMenuItemFn(ctx, arg)
}
func (m *mockOrderStore) ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error) {
	return m.listIngredientsFn(ctx, menuItemID)
}
func (m *mockOrderStore) GetAddon(ctx context.Context, arg database.GetAddonParams) (database.Addon, error) {
	return m.getAddonFn(ctx, arg)
}
func (m *mockOrderStore) ListAddonIngredients(ctx context.Context, addonID uuid.UUID) ([]database.AddonIngredient, error) {
	return m.listAddonIngredientsFn(ctx, addonID)
}
func (m *mockOrderStore) ListInventoryByBranch(ctx context.Context, branchID uuid.UUID) ([]database.InventoryItem, error) {
	return m.listInventoryFn(ctx, branchID)
}
func (m *mockOrderStore) GetOpenDrawerSession(ctx context.Context, branchID uuid.UUID) (database.DrawerSession, error) {
	return m.getOpenDrawerSessionFn(ctx, branchID)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error) {
	return m.createOrderItemAddonFn(ctx, arg)
}
func (m *mockOrderStore) AdjustStock(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
	return m.adjustStockFn(ctx, arg)
}
func (m *mockOrderStore) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
	return m.createStockMovementFn(ctx, arg)
}
func (m *mockOrderStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, arg)
}
func (m *mockOrderStore) VoidOrder(ctx context.Context, arg database.VoidOrderParams) (database.Order, error) {
	return m.voidOrderFn(ctx, arg)
}
func (m *mockOrderStore) ListStockMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.StockMovement, error) {
	return m.listMovementsByOrderFn(ctx, orderID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

// newTestService creates an OrderService with mocked dependencies.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore), tx
}

// checkoutFixture holds the IDs a defaultStore is wired with.
type checkoutFixture struct {
	branchID   uuid.UUID
	cashierID  uuid.UUID
	menuItemID uuid.UUID
	milkID     uuid.UUID
	cheeseID   uuid.UUID
}

func newCheckoutFixture() checkoutFixture {
	return checkoutFixture{
		branchID:   uuid.New(),
		cashierID:  uuid.New(),
		menuItemID: uuid.New(),
		milkID:     uuid.New(),
		cheeseID:   uuid.New(),
	}
}

// defaultStore returns a mockOrderStore wired for a basic checkout: one
// menu item (Latte, 120.00) whose recipe uses 0.2 L of milk per serving,
// and an inventory of milk and cheese. Individual tests override the
// functions they care about.
func defaultStore(fx checkoutFixture) *mockOrderStore {
	return &mockOrderStore{
		getNextOrderNumberFn: func(ctx context.Context, branchID uuid.UUID) (int32, error) {
			return 1, nil
		},
		getMenuItemFn: func(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
			if arg.ID == fx.menuItemID && arg.BranchID == fx.branchID {
				return database.MenuItem{
					ID:          fx.menuItemID,
					BranchID:    fx.branchID,
					Name:        "Latte",
					Price:       makeNumeric("120.00"),
					IsAvailable: true,
					Status:      database.MenuItemStatusACTIVE,
				}, nil
			}
			return database.MenuItem{}, pgx.ErrNoRows
		},
		listIngredientsFn: func(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error) {
			return []database.MenuItemIngredient{{
				ID:              uuid.New(),
				MenuItemID:      menuItemID,
				InventoryItemID: fx.milkID,
				Quantity:        makeNumeric("0.2"),
				Unit:            "L",
			}}, nil
		},
		getAddonFn: func(ctx context.Context, arg database.GetAddonParams) (database.Addon, error) {
			return database.Addon{}, pgx.ErrNoRows
		},
		listAddonIngredientsFn: func(ctx context.Context, addonID uuid.UUID) ([]database.AddonIngredient, error) {
			return nil, nil
		},
		listInventoryFn: func(ctx context.Context, branchID uuid.UUID) ([]database.InventoryItem, error) {
			return []database.InventoryItem{
				{ID: fx.milkID, BranchID: fx.branchID, Name: "Whole Milk", Unit: "L",
					Quantity: makeNumeric("10"), MinThreshold: makeNumeric("1"), IsActive: true},
				{ID: fx.cheeseID, BranchID: fx.branchID, Name: "Cheese", Unit: "slice",
					Quantity: makeNumeric("40"), MinThreshold: makeNumeric("5"), IsActive: true},
			}, nil
		},
		getOpenDrawerSessionFn: func(ctx context.Context, branchID uuid.UUID) (database.DrawerSession, error) {
			return database.DrawerSession{}, pgx.ErrNoRows
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:             uuid.New(),
				BranchID:       arg.BranchID,
				OrderNumber:    arg.OrderNumber,
				Status:         database.OrderStatusCOMPLETED,
				Subtotal:       arg.Subtotal,
				DiscountAmount: arg.DiscountAmount,
				TipAmount:      arg.TipAmount,
				TotalAmount:    arg.TotalAmount,
				PaymentMethod:  arg.PaymentMethod,
				AmountReceived: arg.AmountReceived,
				ChangeAmount:   arg.ChangeAmount,
				CreatedBy:      arg.CreatedBy,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:           uuid.New(),
				OrderID:      arg.OrderID,
				MenuItemID:   arg.MenuItemID,
				NameSnapshot: arg.NameSnapshot,
				Quantity:     arg.Quantity,
				UnitPrice:    arg.UnitPrice,
				LineTotal:    arg.LineTotal,
			}, nil
		},
		createOrderItemAddonFn: func(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error) {
			return database.OrderItemAddon{
				ID:           uuid.New(),
				OrderItemID:  arg.OrderItemID,
				AddonID:      arg.AddonID,
				NameSnapshot: arg.NameSnapshot,
				Price:        arg.Price,
			}, nil
		},
		adjustStockFn: func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
			return database.InventoryItem{
				ID:           arg.ID,
				BranchID:     arg.BranchID,
				Quantity:     makeNumeric("9.4"),
				MinThreshold: makeNumeric("1"),
				IsActive:     true,
			}, nil
		},
		createStockMovementFn: func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
			return database.StockMovement{
				ID:              uuid.New(),
				InventoryItemID: arg.InventoryItemID,
				OrderID:         arg.OrderID,
				Direction:       arg.Direction,
				Quantity:        arg.Quantity,
				QuantityBefore:  arg.QuantityBefore,
				QuantityAfter:   arg.QuantityAfter,
				Note:            arg.Note,
				CreatedBy:       arg.CreatedBy,
			}, nil
		},
	}
}

func basicRequest(fx checkoutFixture) CreateOrderRequest {
	return CreateOrderRequest{
		BranchID:      fx.branchID,
		CreatedBy:     fx.cashierID,
		PaymentMethod: enum.PaymentMethodGCash,
		Items: []CreateOrderItemRequest{
			{MenuItemID: fx.menuItemID.String(), Quantity: 1},
		},
	}
}

// --- Validation tests ---

func TestCreateOrder_EmptyItems(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(defaultStore(fx))

	req := basicRequest(fx)
	req.Items = nil
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got %v", err)
	}
}

func TestCreateOrder_InvalidPaymentMethod(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(defaultStore(fx))

	req := basicRequest(fx)
	req.PaymentMethod = "BARTER"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(defaultStore(fx))

	req := basicRequest(fx)
	req.Items[0].Quantity = 0
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestCreateOrder_InvalidMenuItemID(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(defaultStore(fx))

	req := basicRequest(fx)
	req.Items[0].MenuItemID = "not-a-uuid"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidMenuItemID) {
		t.Fatalf("expected ErrInvalidMenuItemID, got %v", err)
	}
}

func TestCreateOrder_MenuItemNotFound(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(defaultStore(fx))

	req := basicRequest(fx)
	req.Items[0].MenuItemID = uuid.New().String()
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("expected ErrMenuItemNotFound, got %v", err)
	}
}

func TestCreateOrder_MenuItemUnavailable(t *testing.T) {
	fx := newCheckoutFixture()
	store := defaultStore(fx)
	store.getMenuItemFn = func(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
		return database.MenuItem{
			ID: fx.menuItemID, BranchID: fx.branchID, Name: "Latte",
			Price: makeNumeric("120.00"), IsAvailable: false,
			Status: database.MenuItemStatusACTIVE,
		}, nil
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicRequest(fx))
	if !errors.Is(err, ErrMenuItemUnavailable) {
		t.Fatalf("expected ErrMenuItemUnavailable, got %v", err)
	}
}

// --- Pricing tests ---

func TestCreateOrder_BasicPrice(t *testing.T) {
	fx := newCheckoutFixture()
	var created database.CreateOrderParams
	store := defaultStore(fx)
	inner := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return inner(ctx, arg)
	}
	svc, tx := newTestService(store)

	req := basicRequest(fx)
	req.Items[0].Quantity = 3
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !numericEquals(created.Subtotal, "360.00") {
		t.Errorf("subtotal = %v, want 360.00", numericToDecimal(created.Subtotal))
	}
	if !numericEquals(created.TotalAmount, "360.00") {
		t.Errorf("total = %v, want 360.00", numericToDecimal(created.TotalAmount))
	}
	if result.Order.OrderNumber != "KPS-001" {
		t.Errorf("order number = %q, want KPS-001", result.Order.OrderNumber)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestCreateOrder_DiscountAndTip(t *testing.T) {
	fx := newCheckoutFixture()
	var created database.CreateOrderParams
	store := defaultStore(fx)
	inner := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return inner(ctx, arg)
	}
	svc, _ := newTestService(store)

	req := basicRequest(fx)
	req.DiscountAmount = "20.00"
	req.TipAmount = "10.00"
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 120 - 20 + 10
	if !numericEquals(created.TotalAmount, "110.00") {
		t.Errorf("total = %v, want 110.00", numericToDecimal(created.TotalAmount))
	}
}

func TestCreateOrder_NegativeTotalClampedToZero(t *testing.T) {
	fx := newCheckoutFixture()
	var created database.CreateOrderParams
	store := defaultStore(fx)
	inner := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return inner(ctx, arg)
	}
	svc, _ := newTestService(store)

	req := basicRequest(fx)
	req.DiscountAmount = "500.00"
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !numericEquals(created.TotalAmount, "0") {
		t.Errorf("total = %v, want 0", numericToDecimal(created.TotalAmount))
	}
}

func TestCreateOrder_ExpectedTotalMismatch(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(defaultStore(fx))

	req := basicRequest(fx)
	req.ExpectedTotal = "119.00"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrTotalMismatch) {
		t.Fatalf("expected ErrTotalMismatch, got %v", err)
	}
}

func TestCreateOrder_CashChange(t *testing.T) {
	fx := newCheckoutFixture()
	var created database.CreateOrderParams
	store := defaultStore(fx)
	inner := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return inner(ctx, arg)
	}
	svc, _ := newTestService(store)

	req := basicRequest(fx)
	req.PaymentMethod = enum.PaymentMethodCash
	req.AmountReceived = "200.00"
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !numericEquals(created.AmountReceived, "200.00") {
		t.Errorf("amount received = %v, want 200.00", numericToDecimal(created.AmountReceived))
	}
	if !numericEquals(created.ChangeAmount, "80.00") {
		t.Errorf("change = %v, want 80.00", numericToDecimal(created.ChangeAmount))
	}
}

func TestCreateOrder_CashInsufficient(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(defaultStore(fx))

	req := basicRequest(fx)
	req.PaymentMethod = enum.PaymentMethodCash
	req.AmountReceived = "100.00"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
}

// --- Deduction tests ---

func TestCreateOrder_RecipeDeduction(t *testing.T) {
	fx := newCheckoutFixture()
	var adjusts []database.AdjustStockParams
	var movements []database.CreateStockMovementParams
	store := defaultStore(fx)
	innerAdjust := store.adjustStockFn
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjusts = append(adjusts, arg)
		return innerAdjust(ctx, arg)
	}
	innerMove := store.createStockMovementFn
	store.createStockMovementFn = func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
		movements = append(movements, arg)
		return innerMove(ctx, arg)
	}
	svc, _ := newTestService(store)

	req := basicRequest(fx)
	req.Items[0].Quantity = 3
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 0.2 L per serving x 3 servings.
	if len(adjusts) != 1 {
		t.Fatalf("expected 1 stock adjustment, got %d", len(adjusts))
	}
	if adjusts[0].ID != fx.milkID {
		t.Errorf("adjusted item = %v, want milk %v", adjusts[0].ID, fx.milkID)
	}
	if !numericEquals(adjusts[0].Delta, "-0.6") {
		t.Errorf("delta = %v, want -0.6", numericToDecimal(adjusts[0].Delta))
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 stock movement, got %d", len(movements))
	}
	if movements[0].Direction != database.StockDirectionSUBTRACT {
		t.Errorf("direction = %v, want SUBTRACT", movements[0].Direction)
	}
	if !numericEquals(movements[0].Quantity, "0.6") {
		t.Errorf("movement quantity = %v, want 0.6", numericToDecimal(movements[0].Quantity))
	}
	if !movements[0].OrderID.Valid {
		t.Error("movement should carry the order backlink")
	}
	if movements[0].Note.String != "Order KPS-001" {
		t.Errorf("note = %q, want %q", movements[0].Note.String, "Order KPS-001")
	}
}

func TestCreateOrder_AddonSingleItemDeduction(t *testing.T) {
	fx := newCheckoutFixture()
	addonID := uuid.New()
	var adjusts []database.AdjustStockParams
	store := defaultStore(fx)
	store.getAddonFn = func(ctx context.Context, arg database.GetAddonParams) (database.Addon, error) {
		if arg.ID == addonID {
			return database.Addon{
				ID: addonID, BranchID: fx.branchID, Name: "Extra Shot",
				Price:           makeNumeric("25.00"),
				InventoryItemID: pgtype.UUID{Bytes: fx.milkID, Valid: true},
				QtyPerServing:   makeNumeric("0.05"),
				IsActive:        true,
			}, nil
		}
		return database.Addon{}, pgx.ErrNoRows
	}
	innerAdjust := store.adjustStockFn
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjusts = append(adjusts, arg)
		return innerAdjust(ctx, arg)
	}
	// Isolate the addon deduction from the menu recipe.
	store.listIngredientsFn = func(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error) {
		return nil, nil
	}
	var created database.CreateOrderParams
	innerCreate := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return innerCreate(ctx, arg)
	}
	svc, _ := newTestService(store)

	req := basicRequest(fx)
	req.Items[0].Quantity = 2
	req.Items[0].Addons = []CreateOrderAddonRequest{{AddonID: addonID.String()}}
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// line_total = (120 + 25) * 2
	if !numericEquals(created.Subtotal, "290.00") {
		t.Errorf("subtotal = %v, want 290.00", numericToDecimal(created.Subtotal))
	}
	if len(adjusts) != 1 {
		t.Fatalf("expected 1 stock adjustment, got %d", len(adjusts))
	}
	if !numericEquals(adjusts[0].Delta, "-0.1") {
		t.Errorf("delta = %v, want -0.1 (0.05 x 2)", numericToDecimal(adjusts[0].Delta))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestCreateOrder_AddonRecipeDeduction(t *testing.T) {
	fx := newCheckoutFixture()
	addonID := uuid.New()
	var adjusts []database.AdjustStockParams
	store := defaultStore(fx)
	store.getAddonFn = func(ctx context.Context, arg database.GetAddonParams) (database.Addon, error) {
		return database.Addon{
			ID: addonID, BranchID: fx.branchID, Name: "Cheese Overload",
			Price: makeNumeric("35.00"), IsActive: true,
		}, nil
	}
	store.listAddonIngredientsFn = func(ctx context.Context, id uuid.UUID) ([]database.AddonIngredient, error) {
		return []database.AddonIngredient{
			{ID: uuid.New(), AddonID: addonID, InventoryItemID: fx.cheeseID, Quantity: makeNumeric("2"), Unit: "slice"},
			{ID: uuid.New(), AddonID: addonID, InventoryItemID: fx.milkID, Quantity: makeNumeric("0.01"), Unit: "L"},
		}, nil
	}
	store.listIngredientsFn = func(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error) {
		return nil, nil
	}
	innerAdjust := store.adjustStockFn
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjusts = append(adjusts, arg)
		return innerAdjust(ctx, arg)
	}
	svc, _ := newTestService(store)

	req := basicRequest(fx)
	req.Items[0].Addons = []CreateOrderAddonRequest{{AddonID: addonID.String()}}
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The recipe takes priority even though the addon has no item link.
	if len(adjusts) != 2 {
		t.Fatalf("expected 2 stock adjustments, got %d", len(adjusts))
	}
	if adjusts[0].ID != fx.cheeseID || !numericEquals(adjusts[0].Delta, "-2") {
		t.Errorf("first adjustment = %v %v, want cheese -2", adjusts[0].ID, numericToDecimal(adjusts[0].Delta))
	}
	if adjusts[1].ID != fx.milkID || !numericEquals(adjusts[1].Delta, "-0.01") {
		t.Errorf("second adjustment = %v %v, want milk -0.01", adjusts[1].ID, numericToDecimal(adjusts[1].Delta))
	}
}

func TestCreateOrder_AdHocAddonNameMatch(t *testing.T) {
	fx := newCheckoutFixture()
	var adjusts []database.AdjustStockParams
	store := defaultStore(fx)
	store.listIngredientsFn = func(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error) {
		return nil, nil
	}
	innerAdjust := store.adjustStockFn
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjusts = append(adjusts, arg)
		return innerAdjust(ctx, arg)
	}
	svc, _ := newTestService(store)

	req := basicRequest(fx)
	req.Items[0].Quantity = 2
	req.Items[0].Addons = []CreateOrderAddonRequest{{Name: "Extra Cheese", Price: "15.00"}}
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "Extra Cheese" resolves to the Cheese item, one unit per serving.
	if len(adjusts) != 1 {
		t.Fatalf("expected 1 stock adjustment, got %d", len(adjusts))
	}
	if adjusts[0].ID != fx.cheeseID {
		t.Errorf("adjusted item = %v, want cheese %v", adjusts[0].ID, fx.cheeseID)
	}
	if !numericEquals(adjusts[0].Delta, "-2") {
		t.Errorf("delta = %v, want -2", numericToDecimal(adjusts[0].Delta))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestCreateOrder_AdHocAddonNoMatchSkipsDeduction(t *testing.T) {
	fx := newCheckoutFixture()
	var adjusts []database.AdjustStockParams
	store := defaultStore(fx)
	store.listIngredientsFn = func(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error) {
		return nil, nil
	}
	innerAdjust := store.adjustStockFn
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjusts = append(adjusts, arg)
		return innerAdjust(ctx, arg)
	}
	var created database.CreateOrderParams
	innerCreate := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return innerCreate(ctx, arg)
	}
	svc, tx := newTestService(store)

	req := basicRequest(fx)
	req.Items[0].Addons = []CreateOrderAddonRequest{{Name: "Secret Sauce", Price: "10.00"}}
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The sale goes through, the addon is still charged, no deduction runs.
	if len(adjusts) != 0 {
		t.Fatalf("expected no stock adjustments, got %d", len(adjusts))
	}
	if !numericEquals(created.Subtotal, "130.00") {
		t.Errorf("subtotal = %v, want 130.00", numericToDecimal(created.Subtotal))
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "Secret Sauce") {
		t.Errorf("expected one warning naming the addon, got %v", result.Warnings)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestCreateOrder_LowStockFlagged(t *testing.T) {
	fx := newCheckoutFixture()
	store := defaultStore(fx)
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		return database.InventoryItem{
			ID: arg.ID, BranchID: arg.BranchID, Name: "Whole Milk",
			Quantity:     makeNumeric("0.8"),
			MinThreshold: makeNumeric("1"),
			IsActive:     true,
		}, nil
	}
	svc, _ := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), basicRequest(fx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.LowStock) != 1 || result.LowStock[0].ID != fx.milkID {
		t.Fatalf("expected milk flagged as low stock, got %v", result.LowStock)
	}
}

// --- Order number tests ---

func TestCreateOrder_RetryOnUniqueViolation(t *testing.T) {
	fx := newCheckoutFixture()
	store := defaultStore(fx)
	calls := 0
	inner := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		calls++
		if calls == 1 {
			return database.Order{}, &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "orders_branch_id_order_number_key",
			}
		}
		return inner(ctx, arg)
	}
	svc, _ := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), basicRequest(fx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 create attempts, got %d", calls)
	}
	if result.Order.OrderNumber != "KPS-001" {
		t.Errorf("order number = %q, want KPS-001", result.Order.OrderNumber)
	}
}

func TestCreateOrder_RetryExhausted(t *testing.T) {
	fx := newCheckoutFixture()
	store := defaultStore(fx)
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "orders_branch_id_order_number_key",
		}
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicRequest(fx))
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Fatalf("expected unique violation after retries, got %v", err)
	}
}

func TestCreateOrder_NonUniqueErrorNotRetried(t *testing.T) {
	fx := newCheckoutFixture()
	store := defaultStore(fx)
	calls := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		calls++
		return database.Order{}, errors.New("connection lost")
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), basicRequest(fx))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 create attempt, got %d", calls)
	}
}

// --- Void tests ---

func voidStore(fx checkoutFixture, orderID uuid.UUID) *mockOrderStore {
	store := defaultStore(fx)
	completed := database.Order{
		ID:          orderID,
		BranchID:    fx.branchID,
		OrderNumber: "KPS-007",
		Status:      database.OrderStatusCOMPLETED,
	}
	store.getOrderForUpdateFn = func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
		if arg.ID == orderID && arg.BranchID == fx.branchID {
			return completed, nil
		}
		return database.Order{}, pgx.ErrNoRows
	}
	store.voidOrderFn = func(ctx context.Context, arg database.VoidOrderParams) (database.Order, error) {
		voided := completed
		voided.Status = database.OrderStatusVOIDED
		voided.VoidReason = pgtype.Text{String: arg.VoidReason, Valid: true}
		voided.VoidedBy = pgtype.UUID{Bytes: arg.VoidedBy, Valid: true}
		voided.InventoryRestored = pgtype.Bool{Bool: arg.InventoryRestored, Valid: true}
		return voided, nil
	}
	store.listMovementsByOrderFn = func(ctx context.Context, id uuid.UUID) ([]database.StockMovement, error) {
		return []database.StockMovement{
			{
				ID: uuid.New(), InventoryItemID: fx.milkID,
				OrderID:   pgtype.UUID{Bytes: orderID, Valid: true},
				Direction: database.StockDirectionSUBTRACT,
				Quantity:  makeNumeric("0.6"),
			},
			{
				ID: uuid.New(), InventoryItemID: fx.cheeseID,
				OrderID:   pgtype.UUID{Bytes: orderID, Valid: true},
				Direction: database.StockDirectionSUBTRACT,
				Quantity:  makeNumeric("2"),
			},
		}, nil
	}
	return store
}

func TestVoidOrder_EmptyReason(t *testing.T) {
	fx := newCheckoutFixture()
	orderID := uuid.New()
	svc, _ := newTestService(voidStore(fx, orderID))

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := svc.VoidOrder(context.Background(), VoidOrderRequest{
			BranchID: fx.branchID,
			OrderID:  orderID,
			Reason:   reason,
			VoidedBy: fx.cashierID,
		})
		if !errors.Is(err, ErrVoidReasonRequired) {
			t.Errorf("reason %q: expected ErrVoidReasonRequired, got %v", reason, err)
		}
	}
}

func TestVoidOrder_NotFound(t *testing.T) {
	fx := newCheckoutFixture()
	svc, _ := newTestService(voidStore(fx, uuid.New()))

	_, err := svc.VoidOrder(context.Background(), VoidOrderRequest{
		BranchID: fx.branchID,
		OrderID:  uuid.New(),
		Reason:   "wrong order",
		VoidedBy: fx.cashierID,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestVoidOrder_AlreadyVoided(t *testing.T) {
	fx := newCheckoutFixture()
	orderID := uuid.New()
	store := voidStore(fx, orderID)
	store.getOrderForUpdateFn = func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
		return database.Order{
			ID: orderID, BranchID: fx.branchID,
			Status: database.OrderStatusVOIDED,
		}, nil
	}
	svc, _ := newTestService(store)

	_, err := svc.VoidOrder(context.Background(), VoidOrderRequest{
		BranchID: fx.branchID,
		OrderID:  orderID,
		Reason:   "double void",
		VoidedBy: fx.cashierID,
	})
	if !errors.Is(err, ErrOrderAlreadyVoided) {
		t.Fatalf("expected ErrOrderAlreadyVoided, got %v", err)
	}
}

func TestVoidOrder_NoRestore(t *testing.T) {
	fx := newCheckoutFixture()
	orderID := uuid.New()
	store := voidStore(fx, orderID)
	adjustCalls := 0
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjustCalls++
		return database.InventoryItem{}, nil
	}
	svc, tx := newTestService(store)

	result, err := svc.VoidOrder(context.Background(), VoidOrderRequest{
		BranchID:         fx.branchID,
		OrderID:          orderID,
		Reason:           "customer changed mind, food already served",
		RestoreInventory: false,
		VoidedBy:         fx.cashierID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if adjustCalls != 0 {
		t.Errorf("expected no stock adjustments, got %d", adjustCalls)
	}
	if result.RestoredCount != 0 {
		t.Errorf("restored count = %d, want 0", result.RestoredCount)
	}
	if result.Order.Status != database.OrderStatusVOIDED {
		t.Errorf("status = %v, want VOIDED", result.Order.Status)
	}
	if result.Order.InventoryRestored.Bool {
		t.Error("inventory_restored should be false")
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestVoidOrder_RestoreReplaysSubtractions(t *testing.T) {
	fx := newCheckoutFixture()
	orderID := uuid.New()
	store := voidStore(fx, orderID)
	var adjusts []database.AdjustStockParams
	innerAdjust := store.adjustStockFn
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjusts = append(adjusts, arg)
		return innerAdjust(ctx, arg)
	}
	var movements []database.CreateStockMovementParams
	innerMove := store.createStockMovementFn
	store.createStockMovementFn = func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
		movements = append(movements, arg)
		return innerMove(ctx, arg)
	}
	svc, _ := newTestService(store)

	result, err := svc.VoidOrder(context.Background(), VoidOrderRequest{
		BranchID:         fx.branchID,
		OrderID:          orderID,
		Reason:           "wrong order entered",
		RestoreInventory: true,
		VoidedBy:         fx.cashierID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every SUBTRACT comes back as an ADD of the same quantity.
	if result.RestoredCount != 2 {
		t.Fatalf("restored count = %d, want 2", result.RestoredCount)
	}
	if len(adjusts) != 2 {
		t.Fatalf("expected 2 stock adjustments, got %d", len(adjusts))
	}
	if adjusts[0].ID != fx.milkID || !numericEquals(adjusts[0].Delta, "0.6") {
		t.Errorf("first restore = %v %v, want milk +0.6", adjusts[0].ID, numericToDecimal(adjusts[0].Delta))
	}
	if adjusts[1].ID != fx.cheeseID || !numericEquals(adjusts[1].Delta, "2") {
		t.Errorf("second restore = %v %v, want cheese +2", adjusts[1].ID, numericToDecimal(adjusts[1].Delta))
	}
	for _, mv := range movements {
		if mv.Direction != database.StockDirectionADD {
			t.Errorf("movement direction = %v, want ADD", mv.Direction)
		}
		if !strings.HasPrefix(mv.Note.String, "Void KPS-007:") {
			t.Errorf("note = %q, want Void KPS-007 prefix", mv.Note.String)
		}
	}
}

func TestVoidOrder_RestoreSkipsAddMovements(t *testing.T) {
	fx := newCheckoutFixture()
	orderID := uuid.New()
	store := voidStore(fx, orderID)
	store.listMovementsByOrderFn = func(ctx context.Context, id uuid.UUID) ([]database.StockMovement, error) {
		return []database.StockMovement{
			{
				ID: uuid.New(), InventoryItemID: fx.milkID,
				Direction: database.StockDirectionADD,
				Quantity:  makeNumeric("0.6"),
			},
		}, nil
	}
	adjustCalls := 0
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error) {
		adjustCalls++
		return database.InventoryItem{}, nil
	}
	svc, _ := newTestService(store)

	result, err := svc.VoidOrder(context.Background(), VoidOrderRequest{
		BranchID:         fx.branchID,
		OrderID:          orderID,
		Reason:           "spilled drink",
		RestoreInventory: true,
		VoidedBy:         fx.cashierID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adjustCalls != 0 || result.RestoredCount != 0 {
		t.Errorf("ADD movements must not be replayed: adjusts=%d restored=%d", adjustCalls, result.RestoredCount)
	}
}
