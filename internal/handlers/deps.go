package handlers

import (
	"context"
	"time"

	"cashbook/internal/models"
	"cashbook/internal/services"
	"cashbook/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, id, name, currency string, openingBalance int64) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	SetActive(ctx context.Context, tx store.Execer, accountID string, active bool) (int64, error)
}

type MovementStore interface {
	GetByID(ctx context.Context, movementID string) (models.Movement, error)
	List(ctx context.Context, accountID, businessDate string, limit, offset int) ([]models.Movement, error)
	CountByDate(ctx context.Context, businessDate string) (int64, error)
}

type AdminStore interface {
	Grant(ctx context.Context, tx store.Execer, userID string, isSuper bool, roles []string, createdBy *string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

type BalanceResolver interface {
	AsOf(ctx context.Context, q store.Getter, account models.Account, businessDate string) (int64, error)
	BalanceBefore(ctx context.Context, q store.Getter, account models.Account, businessDate string, tieBreak time.Time) (int64, error)
	Replay(ctx context.Context, account models.Account) (int64, error)
}

type LedgerService interface {
	PostMovement(ctx context.Context, req services.PostMovementRequest) (services.PostMovementResult, error)
	ReverseMovement(ctx context.Context, req services.ReverseMovementRequest) (services.ReverseMovementResult, error)
}
