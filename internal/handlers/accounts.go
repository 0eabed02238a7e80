package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cashbook/internal/middleware"
	"cashbook/internal/money"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

type createAccountRequest struct {
	Name           string `json:"name"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"opening_balance"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Name == "" || len(req.Currency) != 3 {
		respondError(w, http.StatusBadRequest, "name and 3-letter currency are required")
		return
	}
	opening, err := money.ParseMinor(req.OpeningBalance)
	if err != nil || opening < 0 {
		respondError(w, http.StatusBadRequest, "invalid opening balance")
		return
	}
	accountID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Create(r.Context(), tx, accountID, req.Name, req.Currency, opening); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"name": req.Name, "currency": req.Currency})
		return h.audit.Log(r.Context(), tx, userID, "create_account", "account", accountID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create account")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": accountID})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	asOf := today()
	response := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		balance, err := h.balances.AsOf(r.Context(), h.db, account, asOf)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to resolve balance")
			return
		}
		response = append(response, map[string]any{
			"id":              account.ID,
			"name":            account.Name,
			"currency":        account.Currency,
			"active":          account.Active,
			"opening_balance": money.FormatMinor(account.OpeningBalance),
			"balance":         money.FormatMinor(balance),
		})
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load account")
		return
	}
	asOf := r.URL.Query().Get("as_of")
	if asOf == "" {
		asOf = today()
	} else if err := validateDate(asOf); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := h.balances.AsOf(r.Context(), h.db, account, asOf)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to resolve balance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"as_of":      asOf,
		"balance":    money.FormatMinor(balance),
		"currency":   account.Currency,
	})
}

func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, false, "deactivate_account")
}

func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountActive(w, r, true, "activate_account")
}

func (h *Handler) setAccountActive(w http.ResponseWriter, r *http.Request, active bool, action string) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	accountID := chi.URLParam(r, "id")
	var affected int64
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		rows, err := h.accounts.SetActive(r.Context(), tx, accountID, active)
		if err != nil {
			return err
		}
		affected = rows
		if rows == 0 {
			return nil
		}
		return h.audit.Log(r.Context(), tx, userID, action, "account", accountID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update account")
		return
	}
	if affected == 0 {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": accountID, "active": active})
}

// Reconcile compares, per account, the balance derived from the latest
// posting against a full replay of the log. The two must always agree; a
// non-zero drift means the append-only invariant was violated out of band.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	asOf := today()
	response := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		latest, err := h.balances.AsOf(r.Context(), h.db, account, asOf)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to resolve balance")
			return
		}
		replayed, err := h.balances.Replay(r.Context(), account)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to replay ledger")
			return
		}
		response = append(response, map[string]any{
			"account_id":       account.ID,
			"name":             account.Name,
			"currency":         account.Currency,
			"latest_balance":   money.FormatMinor(latest),
			"replayed_balance": money.FormatMinor(replayed),
			"drift":            money.FormatMinor(latest - replayed),
		})
	}
	movementsToday, err := h.movements.CountByDate(r.Context(), asOf)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to count movements")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"as_of":           asOf,
		"accounts":        response,
		"movements_today": movementsToday,
	})
}
