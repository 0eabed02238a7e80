package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"cashbook/internal/auth"
	"cashbook/internal/websocket"
)

// WSBalances streams balance updates for one account. Browsers cannot set
// an Authorization header on websocket upgrades, so the token rides in the
// query string.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if _, err := auth.ParseToken(h.cfg.JWTSecret, token); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		respondError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	if _, err := h.accounts.GetByID(r.Context(), accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load account")
		return
	}
	websocket.ServeWS(w, r, h.hub, accountID)
}
