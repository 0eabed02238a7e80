package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cashbook/internal/middleware"
	"cashbook/internal/money"
	"cashbook/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type postMovementRequest struct {
	AccountID    string            `json:"account_id"`
	BusinessDate string            `json:"business_date"`
	Kind         string            `json:"kind"`
	Amount       string            `json:"amount"`
	Category     *string           `json:"category,omitempty"`
	Counterparty *string           `json:"counterparty,omitempty"`
	Memo         *string           `json:"memo,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	VoucherNo    string            `json:"voucher_no,omitempty"`
}

func (h *Handler) PostMovement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req postMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.ledger.PostMovement(r.Context(), services.PostMovementRequest{
		AccountID:    req.AccountID,
		BusinessDate: req.BusinessDate,
		Kind:         req.Kind,
		Amount:       amount,
		Category:     req.Category,
		Counterparty: req.Counterparty,
		Memo:         req.Memo,
		Extra:        req.Extra,
		VoucherNo:    req.VoucherNo,
		CreatedBy:    userID,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.auditMovement(r, userID, "post_movement", result.MovementID, map[string]string{
		"voucher_no": result.VoucherNo,
		"account_id": req.AccountID,
		"kind":       req.Kind,
	})
	respondJSON(w, http.StatusCreated, map[string]any{
		"movement_id":   result.MovementID,
		"voucher_no":    result.VoucherNo,
		"balance_after": money.FormatMinor(result.BalanceAfter),
	})
}

type reverseMovementRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ReverseMovement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req reverseMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.ledger.ReverseMovement(r.Context(), services.ReverseMovementRequest{
		MovementID: chi.URLParam(r, "id"),
		Reason:     req.Reason,
		CreatedBy:  userID,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.auditMovement(r, userID, "reverse_movement", result.ReversalMovementID, map[string]string{
		"voucher_no":          result.ReversalVoucherNo,
		"original_voucher_no": result.OriginalVoucherNo,
	})
	respondJSON(w, http.StatusCreated, map[string]any{
		"reversal_movement_id": result.ReversalMovementID,
		"reversal_voucher_no":  result.ReversalVoucherNo,
		"original_voucher_no":  result.OriginalVoucherNo,
		"balance_after":        money.FormatMinor(result.BalanceAfter),
	})
}

func (h *Handler) GetMovement(w http.ResponseWriter, r *http.Request) {
	movement, err := h.movements.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "movement not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load movement")
		return
	}
	respondJSON(w, http.StatusOK, movement)
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	businessDate := r.URL.Query().Get("business_date")
	if businessDate != "" {
		if err := validateDate(businessDate); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	movements, err := h.movements.List(r.Context(), accountID, businessDate, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load movements")
		return
	}
	respondJSON(w, http.StatusOK, movements)
}

// auditMovement records who posted what. The ledger core deliberately does
// not write audit rows; its callers do, using the returned movement id.
func (h *Handler) auditMovement(r *http.Request, userID, action, movementID string, fields map[string]string) {
	data, _ := json.Marshal(fields)
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.audit.Log(r.Context(), tx, userID, action, "movement", movementID, string(data))
	})
	if err != nil {
		h.log.Warn("audit write failed",
			zap.String("action", action),
			zap.String("movement_id", movementID),
			zap.Error(err))
	}
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	var insufficient *services.InsufficientBalanceError
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidKind),
		errors.Is(err, services.ErrInvalidBusinessDate),
		errors.Is(err, services.ErrReasonRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrMovementNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAccountInactive),
		errors.Is(err, services.ErrAlreadyReversed),
		errors.Is(err, services.ErrReversalOfReversal),
		errors.Is(err, services.ErrDuplicateVoucher):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "insufficient balance",
			"balance":  money.FormatMinor(insufficient.Balance),
			"required": money.FormatMinor(insufficient.Required),
		})
	case errors.Is(err, services.ErrConcurrentModification):
		respondError(w, http.StatusConflict, "account is busy, please resubmit")
	default:
		respondError(w, http.StatusInternalServerError, "posting failed")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
