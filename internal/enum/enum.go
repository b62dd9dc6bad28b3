package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusCompleted = "COMPLETED"
	OrderStatusVoided    = "VOIDED"
)

const (
	DrawerStatusOpen   = "OPEN"
	DrawerStatusClosed = "CLOSED"
)

const (
	MenuItemStatusActive     = "ACTIVE"
	MenuItemStatusInactive   = "INACTIVE"
	MenuItemStatusOutOfStock = "OUT_OF_STOCK"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
)

const (
	StockDirectionAdd      = "ADD"
	StockDirectionSubtract = "SUBTRACT"
)

const (
	CashDirectionIn  = "IN"
	CashDirectionOut = "OUT"
)

// ── Configurable labels (no DB constraint) ──

const (
	AddonCategorySize         = "SIZE"
	AddonCategoryExtra        = "EXTRA"
	AddonCategoryModification = "MODIFICATION"
	AddonCategorySpecial      = "SPECIAL"
)

const (
	PaymentMethodCash  = "CASH"
	PaymentMethodGCash = "GCASH"
	PaymentMethodCard  = "CARD"
)
