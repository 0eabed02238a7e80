package handlers

import (
	"net/http"

	"cashbook/internal/config"
	"cashbook/internal/db"
	"cashbook/internal/middleware"
	"cashbook/internal/store"
	"cashbook/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	RoleManageAccounts = "CanManageAccounts"
	RoleViewAudit      = "CanViewAudit"
)

type Handler struct {
	db        store.DB
	txRunner  db.TxRunner
	cfg       config.Config
	log       *zap.Logger
	users     UserStore
	accounts  AccountStore
	movements MovementStore
	admin     AdminStore
	audit     AuditStore
	ledger    LedgerService
	balances  BalanceResolver
	hub       *websocket.Hub
	adminGate middleware.AdminStore
}

func New(database store.DB, txRunner db.TxRunner, cfg config.Config, log *zap.Logger, users UserStore, accounts AccountStore, movements MovementStore, admin AdminStore, adminGate middleware.AdminStore, audit AuditStore, ledger LedgerService, balances BalanceResolver, hub *websocket.Hub) *Handler {
	return &Handler{
		db:        database,
		txRunner:  txRunner,
		cfg:       cfg,
		log:       log,
		users:     users,
		accounts:  accounts,
		movements: movements,
		admin:     admin,
		adminGate: adminGate,
		audit:     audit,
		ledger:    ledger,
		balances:  balances,
		hub:       hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/accounts", h.ListAccounts)
		r.With(middleware.RequireAdmin(h.adminGate, RoleManageAccounts)).Post("/accounts", h.CreateAccount)
		r.With(middleware.RequireAdmin(h.adminGate, RoleManageAccounts)).Post("/accounts/{id}/deactivate", h.DeactivateAccount)
		r.With(middleware.RequireAdmin(h.adminGate, RoleManageAccounts)).Post("/accounts/{id}/activate", h.ActivateAccount)
		r.Get("/accounts/{id}/balance", h.GetBalance)
		r.With(middleware.RequireAdmin(h.adminGate, RoleViewAudit)).Get("/accounts/reconcile", h.Reconcile)

		r.Post("/movements", h.PostMovement)
		r.Post("/movements/{id}/reverse", h.ReverseMovement)
		r.Get("/movements", h.ListMovements)
		r.Get("/movements/{id}", h.GetMovement)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.With(middleware.RequireAdmin(h.adminGate, RoleViewAudit)).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.adminGate, "")).Post("/grant", h.GrantAdmin)
	})

	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
