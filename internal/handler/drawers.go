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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/karinderya-pos/api/internal/database"
	"github.com/karinderya-pos/api/internal/middleware"
	"github.com/karinderya-pos/api/internal/ws"
	"github.com/shopspring/decimal"
)

// DrawerStore defines the database methods needed by drawer handlers.
type DrawerStore interface {
	GetOpenDrawerSession(ctx context.Context, branchID uuid.UUID) (database.DrawerSession, error)
	CreateDrawerSession(ctx context.Context, arg database.CreateDrawerSessionParams) (database.DrawerSession, error)
	CloseDrawerSession(ctx context.Context, arg database.CloseDrawerSessionParams) (database.DrawerSession, error)
	SumCashSalesBySession(ctx context.Context, sessionID uuid.UUID) (pgtype.Numeric, error)
	CreateCashMovement(ctx context.Context, arg database.CreateCashMovementParams) (database.CashMovement, error)
	ListCashMovementsBySession(ctx context.Context, sessionID uuid.UUID) ([]database.CashMovement, error)
	SumCashMovementsBySession(ctx context.Context, sessionID uuid.UUID) (database.SumCashMovementsRow, error)
}

// DrawerHandler handles cash drawer session endpoints.
type DrawerHandler struct {
	store DrawerStore
	hub   *ws.Hub
}

// NewDrawerHandler creates a new DrawerHandler. hub may be nil in tests.
func NewDrawerHandler(store DrawerStore, hub *ws.Hub) *DrawerHandler {
	return &DrawerHandler{store: store, hub: hub}
}

// RegisterRoutes registers drawer endpoints, mounted at /branches/{bid}/drawer.
func (h *DrawerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/open", h.Open)
	r.Get("/current", h.Current)
	r.Post("/movements", h.AddMovement)
	r.Post("/close", h.Close)
}

// --- Request / Response types ---

type openDrawerRequest struct {
	OpeningFloat string `json:"opening_float"`
}

type cashMovementRequest struct {
	Direction string `json:"direction"` // IN or OUT
	Amount    string `json:"amount"`
	Note      string `json:"note"`
}

type closeDrawerRequest struct {
	CountedAmount string `json:"counted_amount"`
}

type drawerSessionResponse struct {
	ID             uuid.UUID  `json:"id"`
	BranchID       uuid.UUID  `json:"branch_id"`
	Status         string     `json:"status"`
	OpeningFloat   string     `json:"opening_float"`
	OpenedBy       uuid.UUID  `json:"opened_by"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedBy       *string    `json:"closed_by"`
	ClosedAt       *time.Time `json:"closed_at"`
	CountedAmount  *string    `json:"counted_amount"`
	ExpectedAmount *string    `json:"expected_amount"`
	OverShort      *string    `json:"over_short"`
}

type cashMovementResponse struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Direction string    `json:"direction"`
	Amount    string    `json:"amount"`
	Note      *string   `json:"note"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// currentDrawerResponse is the open session plus its running totals.
type currentDrawerResponse struct {
	drawerSessionResponse
	CashSales    string                 `json:"cash_sales"`
	TotalIn      string                 `json:"total_in"`
	TotalOut     string                 `json:"total_out"`
	ExpectedCash string                 `json:"expected_cash"`
	Movements    []cashMovementResponse `json:"movements"`
}

func toDrawerSessionResponse(s database.DrawerSession) drawerSessionResponse {
	resp := drawerSessionResponse{
		ID:           s.ID,
		BranchID:     s.BranchID,
		Status:       string(s.Status),
		OpeningFloat: numericToString(s.OpeningFloat),
		OpenedBy:     s.OpenedBy,
		OpenedAt:     s.OpenedAt,
	}
	if s.ClosedBy.Valid {
		v := uuid.UUID(s.ClosedBy.Bytes).String()
		resp.ClosedBy = &v
	}
	if s.ClosedAt.Valid {
		resp.ClosedAt = &s.ClosedAt.Time
	}
	if s.CountedAmount.Valid {
		v := numericToString(s.CountedAmount)
		resp.CountedAmount = &v
	}
	if s.ExpectedAmount.Valid {
		v := numericToString(s.ExpectedAmount)
		resp.ExpectedAmount = &v
	}
	if s.OverShort.Valid {
		v := numericToString(s.OverShort)
		resp.OverShort = &v
	}
	return resp
}

func toCashMovementResponse(m database.CashMovement) cashMovementResponse {
	resp := cashMovementResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Direction: string(m.Direction),
		Amount:    numericToString(m.Amount),
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
	if m.Note.Valid {
		resp.Note = &m.Note.String
	}
	return resp
}

// expectedCash is what the drawer should hold right now:
// opening float + cash sales + paid-ins - paid-outs.
func (h *DrawerHandler) expectedCash(ctx context.Context, session database.DrawerSession) (decimal.Decimal, decimal.Decimal, database.SumCashMovementsRow, error) {
	sales, err := h.store.SumCashSalesBySession(ctx, session.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, database.SumCashMovementsRow{}, err
	}
	sums, err := h.store.SumCashMovementsBySession(ctx, session.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, database.SumCashMovementsRow{}, err
	}

	opening, _ := decimal.NewFromString(numericToString(session.OpeningFloat))
	cashSales, _ := decimal.NewFromString(numericToString(sales))
	totalIn, _ := decimal.NewFromString(numericToString(sums.TotalIn))
	totalOut, _ := decimal.NewFromString(numericToString(sums.TotalOut))

	expected := opening.Add(cashSales).Add(totalIn).Sub(totalOut)
	return expected, cashSales, sums, nil
}

// --- Handlers ---

// Open starts a drawer session with a counted opening float.
func (h *DrawerHandler) Open(w http.ResponseWriter, r *http.Request) {
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

	var req openDrawerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	opening, ok := parseNonNegativeAmount(req.OpeningFloat)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid opening_float"})
		return
	}

	session, err := h.store.CreateDrawerSession(r.Context(), database.CreateDrawerSessionParams{
		BranchID:     branchID,
		OpeningFloat: decimalToNumeric(opening),
		OpenedBy:     claims.UserID,
	})
	if err != nil {
		// Partial unique index: one OPEN session per branch.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a drawer session is already open"})
			return
		}
		log.Printf("ERROR: open drawer session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toDrawerSessionResponse(session))
}

// Current returns the open session with its running expected cash.
func (h *DrawerHandler) Current(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	session, err := h.store.GetOpenDrawerSession(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open drawer session"})
			return
		}
		log.Printf("ERROR: get drawer session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	expected, cashSales, sums, err := h.expectedCash(r.Context(), session)
	if err != nil {
		log.Printf("ERROR: compute expected cash: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	movements, err := h.store.ListCashMovementsBySession(r.Context(), session.ID)
	if err != nil {
		log.Printf("ERROR: list cash movements: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	moveResps := make([]cashMovementResponse, len(movements))
	for i, m := range movements {
		moveResps[i] = toCashMovementResponse(m)
	}

	writeJSON(w, http.StatusOK, currentDrawerResponse{
		drawerSessionResponse: toDrawerSessionResponse(session),
		CashSales:             cashSales.StringFixed(2),
		TotalIn:               numericToString(sums.TotalIn),
		TotalOut:              numericToString(sums.TotalOut),
		ExpectedCash:          expected.StringFixed(2),
		Movements:             moveResps,
	})
}

// AddMovement records a paid-in or paid-out against the open session.
func (h *DrawerHandler) AddMovement(w http.ResponseWriter, r *http.Request) {
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

	var req cashMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	direction := database.CashDirection(req.Direction)
	if direction != database.CashDirectionIN && direction != database.CashDirectionOUT {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "direction must be IN or OUT"})
		return
	}

	amount, ok := parsePositiveAmount(req.Amount)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be > 0"})
		return
	}

	session, err := h.store.GetOpenDrawerSession(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "no open drawer session"})
			return
		}
		log.Printf("ERROR: get drawer session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	note := pgtype.Text{}
	if req.Note != "" {
		note = pgtype.Text{String: req.Note, Valid: true}
	}

	movement, err := h.store.CreateCashMovement(r.Context(), database.CreateCashMovementParams{
		SessionID: session.ID,
		Direction: direction,
		Amount:    decimalToNumeric(amount),
		Note:      note,
		CreatedBy: claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create cash movement: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toCashMovementResponse(movement))
}

// Close reconciles the drawer: expected cash is computed server-side and
// over/short is counted minus expected.
func (h *DrawerHandler) Close(w http.ResponseWriter, r *http.Request) {
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

	var req closeDrawerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	counted, ok := parseNonNegativeAmount(req.CountedAmount)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid counted_amount"})
		return
	}

	session, err := h.store.GetOpenDrawerSession(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "no open drawer session"})
			return
		}
		log.Printf("ERROR: get drawer session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	expected, _, _, err := h.expectedCash(r.Context(), session)
	if err != nil {
		log.Printf("ERROR: compute expected cash: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	closed, err := h.store.CloseDrawerSession(r.Context(), database.CloseDrawerSessionParams{
		ID:             session.ID,
		BranchID:       branchID,
		ClosedBy:       claims.UserID,
		CountedAmount:  decimalToNumeric(counted),
		ExpectedAmount: decimalToNumeric(expected),
		OverShort:      decimalToNumeric(counted.Sub(expected)),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "drawer session already closed"})
			return
		}
		log.Printf("ERROR: close drawer session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.hub != nil {
		h.hub.BroadcastToBranch(branchID, ws.NewEvent(ws.EventDrawerClosed, map[string]string{
			"session_id": closed.ID.String(),
			"expected":   expected.StringFixed(2),
			"counted":    counted.StringFixed(2),
			"over_short": counted.Sub(expected).StringFixed(2),
		}))
	}

	writeJSON(w, http.StatusOK, toDrawerSessionResponse(closed))
}
