package handlers

import (
	"encoding/json"
	"net/http"

	"cashbook/internal/middleware"

	"github.com/jmoiron/sqlx"
)

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

type grantAdminRequest struct {
	UserID  string   `json:"user_id"`
	IsSuper bool     `json:"is_super"`
	Roles   []string `json:"roles"`
}

func (h *Handler) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req grantAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.Grant(r.Context(), tx, req.UserID, req.IsSuper, req.Roles, &actorID); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, actorID, "grant_admin", "user", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to grant admin")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}
