package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusCOMPLETED OrderStatus = "COMPLETED"
	OrderStatusVOIDED    OrderStatus = "VOIDED"
)

type DrawerStatus string

const (
	DrawerStatusOPEN   DrawerStatus = "OPEN"
	DrawerStatusCLOSED DrawerStatus = "CLOSED"
)

type MenuItemStatus string

const (
	MenuItemStatusACTIVE     MenuItemStatus = "ACTIVE"
	MenuItemStatusINACTIVE   MenuItemStatus = "INACTIVE"
	MenuItemStatusOUTOFSTOCK MenuItemStatus = "OUT_OF_STOCK"
)

type UserRole string

const (
	UserRoleOWNER   UserRole = "OWNER"
	UserRoleMANAGER UserRole = "MANAGER"
	UserRoleCASHIER UserRole = "CASHIER"
)

type StockDirection string

const (
	StockDirectionADD      StockDirection = "ADD"
	StockDirectionSUBTRACT StockDirection = "SUBTRACT"
)

type CashDirection string

const (
	CashDirectionIN  CashDirection = "IN"
	CashDirectionOUT CashDirection = "OUT"
)

type AddonCategory string

const (
	AddonCategorySIZE         AddonCategory = "SIZE"
	AddonCategoryEXTRA        AddonCategory = "EXTRA"
	AddonCategoryMODIFICATION AddonCategory = "MODIFICATION"
	AddonCategorySPECIAL      AddonCategory = "SPECIAL"
)

type PaymentMethod string

const (
	PaymentMethodCASH  PaymentMethod = "CASH"
	PaymentMethodGCASH PaymentMethod = "GCASH"
	PaymentMethodCARD  PaymentMethod = "CARD"
)

type Branch struct {
	ID        uuid.UUID
	Name      string
	Address   pgtype.Text
	Phone     pgtype.Text
	IsActive  bool
	CreatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	Email          string
	HashedPassword string
	Pin            pgtype.Text
	FullName       string
	Role           UserRole
	IsActive       bool
	CreatedAt      time.Time
}

type Category struct {
	ID        uuid.UUID
	BranchID  uuid.UUID
	Name      string
	SortOrder int32
	IsActive  bool
	CreatedAt time.Time
}

type InventoryItem struct {
	ID           uuid.UUID
	BranchID     uuid.UUID
	Name         string
	Unit         string
	CostPerUnit  pgtype.Numeric
	Quantity     pgtype.Numeric
	MinThreshold pgtype.Numeric
	MaxThreshold pgtype.Numeric
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StockMovement is the audit row written for every inventory mutation.
// OrderID links movements caused by a checkout so a void can replay them.
type StockMovement struct {
	ID              uuid.UUID
	InventoryItemID uuid.UUID
	OrderID         pgtype.UUID
	Direction       StockDirection
	Quantity        pgtype.Numeric
	QuantityBefore  pgtype.Numeric
	QuantityAfter   pgtype.Numeric
	Note            pgtype.Text
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	CategoryID  pgtype.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
	Status      MenuItemStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MenuItemIngredient struct {
	ID              uuid.UUID
	MenuItemID      uuid.UUID
	InventoryItemID uuid.UUID
	Quantity        pgtype.Numeric
	Unit            string
}

// Addon carries at most one structured inventory linkage: either rows in
// addon_ingredients (recipe) or InventoryItemID + QtyPerServing (single
// item). An addon with neither is a legacy addon resolved by name match.
type Addon struct {
	ID              uuid.UUID
	BranchID        uuid.UUID
	Name            string
	Price           pgtype.Numeric
	Category        AddonCategory
	InventoryItemID pgtype.UUID
	QtyPerServing   pgtype.Numeric
	IsActive        bool
	CreatedAt       time.Time
}

type AddonIngredient struct {
	ID              uuid.UUID
	AddonID         uuid.UUID
	InventoryItemID uuid.UUID
	Quantity        pgtype.Numeric
	Unit            string
}

type Order struct {
	ID                uuid.UUID
	BranchID          uuid.UUID
	OrderNumber       string
	Status            OrderStatus
	Subtotal          pgtype.Numeric
	DiscountAmount    pgtype.Numeric
	TipAmount         pgtype.Numeric
	TotalAmount       pgtype.Numeric
	PaymentMethod     PaymentMethod
	AmountReceived    pgtype.Numeric
	ChangeAmount      pgtype.Numeric
	DrawerSessionID   pgtype.UUID
	VoidReason        pgtype.Text
	VoidedBy          pgtype.UUID
	VoidedAt          pgtype.Timestamptz
	InventoryRestored pgtype.Bool
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderItem snapshots the menu item at checkout; later menu edits must not
// change what a past order shows.
type OrderItem struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	MenuItemID    uuid.UUID
	NameSnapshot  string
	Quantity      int32
	UnitPrice     pgtype.Numeric
	Customization pgtype.Text
	LineTotal     pgtype.Numeric
}

type OrderItemAddon struct {
	ID           uuid.UUID
	OrderItemID  uuid.UUID
	AddonID      pgtype.UUID
	NameSnapshot string
	Price        pgtype.Numeric
}

type DrawerSession struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	Status         DrawerStatus
	OpeningFloat   pgtype.Numeric
	OpenedBy       uuid.UUID
	OpenedAt       time.Time
	ClosedBy       pgtype.UUID
	ClosedAt       pgtype.Timestamptz
	CountedAmount  pgtype.Numeric
	ExpectedAmount pgtype.Numeric
	OverShort      pgtype.Numeric
}

type CashMovement struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Direction CashDirection
	Amount    pgtype.Numeric
	Note      pgtype.Text
	CreatedBy uuid.UUID
	CreatedAt time.Time
}
