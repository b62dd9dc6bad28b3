package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/karinderya-pos/api/internal/middleware"
	"github.com/karinderya-pos/api/internal/service"
	"github.com/karinderya-pos/api/internal/ws"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	VoidOrder(ctx context.Context, req service.VoidOrderRequest) (*service.VoidOrderResult, error)
}

// OrderReadStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderReadStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemAddonsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemAddon, error)
}

// OrderHandler handles checkout, lookup and void endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReadStore
	hub   *ws.Hub
}

// NewOrderHandler creates a new OrderHandler. hub may be nil in tests.
func NewOrderHandler(svc OrderServicer, store OrderReadStore, hub *ws.Hub) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/void", h.Void)
}

// --- Request / Response types ---

type createOrderRequest struct {
	PaymentMethod  string                   `json:"payment_method"`
	DiscountAmount string                   `json:"discount_amount"`
	TipAmount      string                   `json:"tip_amount"`
	AmountReceived string                   `json:"amount_received"`
	ExpectedTotal  string                   `json:"expected_total"`
	Items          []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID    string                    `json:"menu_item_id"`
	Quantity      int32                     `json:"quantity"`
	Customization string                    `json:"customization"`
	Addons        []createOrderAddonRequest `json:"addons"`
}

type createOrderAddonRequest struct {
	AddonID string `json:"addon_id"`
	Name    string `json:"name"`
	Price   string `json:"price"`
}

type voidOrderRequest struct {
	Reason           string `json:"reason"`
	RestoreInventory bool   `json:"restore_inventory"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	BranchID          uuid.UUID           `json:"branch_id"`
	OrderNumber       string              `json:"order_number"`
	Status            string              `json:"status"`
	Subtotal          string              `json:"subtotal"`
	DiscountAmount    string              `json:"discount_amount"`
	TipAmount         string              `json:"tip_amount"`
	TotalAmount       string              `json:"total_amount"`
	PaymentMethod     string              `json:"payment_method"`
	AmountReceived    *string             `json:"amount_received"`
	ChangeAmount      *string             `json:"change_amount"`
	DrawerSessionID   *string             `json:"drawer_session_id"`
	VoidReason        *string             `json:"void_reason"`
	VoidedBy          *string             `json:"voided_by"`
	VoidedAt          *time.Time          `json:"voided_at"`
	InventoryRestored bool                `json:"inventory_restored"`
	CreatedBy         uuid.UUID           `json:"created_by"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Items             []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID            uuid.UUID                `json:"id"`
	MenuItemID    uuid.UUID                `json:"menu_item_id"`
	Name          string                   `json:"name"`
	Quantity      int32                    `json:"quantity"`
	UnitPrice     string                   `json:"unit_price"`
	Customization *string                  `json:"customization"`
	LineTotal     string                   `json:"line_total"`
	Addons        []orderItemAddonResponse `json:"addons"`
}

type orderItemAddonResponse struct {
	ID      uuid.UUID `json:"id"`
	AddonID *string   `json:"addon_id"`
	Name    string    `json:"name"`
	Price   string    `json:"price"`
}

// createOrderResponse extends orderResponse with deduction side effects
// the register surfaces after checkout.
type createOrderResponse struct {
	orderResponse
	Warnings []string `json:"warnings"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /branches/{bid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "menu_item_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		addons := make([]service.CreateOrderAddonRequest, len(item.Addons))
		for j, a := range item.Addons {
			addons[j] = service.CreateOrderAddonRequest{
				AddonID: a.AddonID,
				Name:    a.Name,
				Price:   a.Price,
			}
		}
		svcItems[i] = service.CreateOrderItemRequest{
			MenuItemID:    item.MenuItemID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
			Addons:        addons,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		BranchID:       branchID,
		CreatedBy:      claims.UserID,
		PaymentMethod:  req.PaymentMethod,
		DiscountAmount: req.DiscountAmount,
		TipAmount:      req.TipAmount,
		AmountReceived: req.AmountReceived,
		ExpectedTotal:  req.ExpectedTotal,
		Items:          svcItems,
	})
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcastCheckout(branchID, result)

	writeJSON(w, http.StatusCreated, createOrderResponse{
		orderResponse: toOrderResponse(result),
		Warnings:      result.Warnings,
	})
}

// broadcastCheckout pushes the completed order and any low-stock crossings
// to the branch's live dashboards.
func (h *OrderHandler) broadcastCheckout(branchID uuid.UUID, result *service.CreateOrderResult) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastToBranch(branchID, ws.NewEvent(ws.EventOrderCompleted, map[string]string{
		"order_id":     result.Order.ID.String(),
		"order_number": result.Order.OrderNumber,
		"total":        numericToString(result.Order.TotalAmount),
	}))
	for _, item := range result.LowStock {
		h.hub.BroadcastToBranch(branchID, ws.NewEvent(ws.EventInventoryLowStock, map[string]string{
			"inventory_item_id": item.ID.String(),
			"name":              item.Name,
			"quantity":          numericToString(item.Quantity),
			"min_threshold":     numericToString(item.MinThreshold),
		}))
	}
}

// List handles GET /branches/{bid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		BranchID: branchID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := database.OrderStatus(s)
		if status != database.OrderStatusCOMPLETED && status != database.OrderStatusVOIDED {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /branches/{bid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:       orderID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemResponses := make([]orderItemResponse, len(items))
	for i, item := range items {
		addons, err := h.store.ListOrderItemAddonsByOrderItem(r.Context(), item.ID)
		if err != nil {
			log.Printf("ERROR: list order item addons: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		itemResponses[i] = dbOrderItemToResponse(item, addons)
	}

	resp := dbOrderToResponse(order)
	resp.Items = itemResponses

	writeJSON(w, http.StatusOK, resp)
}

// Void handles POST /branches/{bid}/orders/{id}/void.
func (h *OrderHandler) Void(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req voidOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.VoidOrder(r.Context(), service.VoidOrderRequest{
		BranchID:         branchID,
		OrderID:          orderID,
		Reason:           req.Reason,
		RestoreInventory: req.RestoreInventory,
		VoidedBy:         claims.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVoidReasonRequired):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderAlreadyVoided):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already voided"})
		default:
			log.Printf("ERROR: void order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	if h.hub != nil {
		h.hub.BroadcastToBranch(branchID, ws.NewEvent(ws.EventOrderVoided, map[string]string{
			"order_id":     result.Order.ID.String(),
			"order_number": result.Order.OrderNumber,
			"restored":     strconv.Itoa(result.RestoredCount),
		}))
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(result.Order))
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrMenuItemUnavailable) ||
		errors.Is(err, service.ErrAddonNotFound) ||
		errors.Is(err, service.ErrInvalidMenuItemID) ||
		errors.Is(err, service.ErrInvalidAddonID) ||
		errors.Is(err, service.ErrInvalidAddonPrice) ||
		errors.Is(err, service.ErrAddonNameRequired) ||
		errors.Is(err, service.ErrInvalidDiscount) ||
		errors.Is(err, service.ErrInvalidTip) ||
		errors.Is(err, service.ErrInvalidAmountReceived) ||
		errors.Is(err, service.ErrInsufficientCash) ||
		errors.Is(err, service.ErrTotalMismatch)
}

func toOrderResponse(result *service.CreateOrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(ir.Item, ir.Addons)
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// numericToQtyString is numericToString without the cent rounding; stock
// quantities carry up to three decimal places.
func numericToQtyString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0"
	}
	return d.String()
}

// decimalToNumeric keeps the full precision of d; stock quantities carry
// three decimal places and must not be rounded to cents.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		BranchID:          o.BranchID,
		OrderNumber:       o.OrderNumber,
		Status:            string(o.Status),
		Subtotal:          numericToString(o.Subtotal),
		DiscountAmount:    numericToString(o.DiscountAmount),
		TipAmount:         numericToString(o.TipAmount),
		TotalAmount:       numericToString(o.TotalAmount),
		PaymentMethod:     string(o.PaymentMethod),
		InventoryRestored: o.InventoryRestored.Bool,
		CreatedBy:         o.CreatedBy,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}

	if o.AmountReceived.Valid {
		s := numericToString(o.AmountReceived)
		resp.AmountReceived = &s
	}
	if o.ChangeAmount.Valid {
		s := numericToString(o.ChangeAmount)
		resp.ChangeAmount = &s
	}
	if o.DrawerSessionID.Valid {
		s := uuid.UUID(o.DrawerSessionID.Bytes).String()
		resp.DrawerSessionID = &s
	}
	if o.VoidReason.Valid {
		resp.VoidReason = &o.VoidReason.String
	}
	if o.VoidedBy.Valid {
		s := uuid.UUID(o.VoidedBy.Bytes).String()
		resp.VoidedBy = &s
	}
	if o.VoidedAt.Valid {
		resp.VoidedAt = &o.VoidedAt.Time
	}

	return resp
}

// dbOrderItemToResponse converts a database.OrderItem and its addons to an orderItemResponse.
func dbOrderItemToResponse(item database.OrderItem, addons []database.OrderItemAddon) orderItemResponse {
	resp := orderItemResponse{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Name:       item.NameSnapshot,
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		LineTotal:  numericToString(item.LineTotal),
	}

	if item.Customization.Valid {
		resp.Customization = &item.Customization.String
	}

	resp.Addons = make([]orderItemAddonResponse, len(addons))
	for j, a := range addons {
		ar := orderItemAddonResponse{
			ID:    a.ID,
			Name:  a.NameSnapshot,
			Price: numericToString(a.Price),
		}
		if a.AddonID.Valid {
			s := uuid.UUID(a.AddonID.Bytes).String()
			ar.AddonID = &s
		}
		resp.Addons[j] = ar
	}

	return resp
}
