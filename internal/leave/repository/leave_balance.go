package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// LeaveBalanceRepository persists per (user, leave type, period) balance
// rows. GetForUpdate is the second half of the two-stage row lock order
// (leave request row first, balance row second) that BalanceEngine relies on,
// grounded on the teacher's inventory/repository/batch.go AdjustStock
// SELECT ... FOR UPDATE pattern.
type LeaveBalanceRepository struct {
	Base[*domain.LeaveBalance]
}

// NewLeaveBalanceRepository constructs a leave balance repository.
func NewLeaveBalanceRepository(db *database.DB, auditRepo *AuditRepository) *LeaveBalanceRepository {
	return &LeaveBalanceRepository{Base: NewBase[*domain.LeaveBalance](db, auditRepo, "leave_balances", "leave_balance")}
}

// GetCurrent returns the balance row covering `at` for (userID,
// leaveTypeID) without locking, for read-only lookups such as
// PolicyEngine.get_balance that must never hold a row lock outside a
// mutating operation's transaction.
func (r *LeaveBalanceRepository) GetCurrent(ctx context.Context, userID, leaveTypeID string, at time.Time) (*domain.LeaveBalance, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var b domain.LeaveBalance
	query := `
		SELECT * FROM leave_balances
		WHERE user_id = $1 AND leave_type_id = $2 AND organization_id = $3
		  AND period_start <= $4 AND period_end >= $4 AND deleted_at IS NULL
	`
	if err := r.db.GetContext(ctx, &b, query, userID, leaveTypeID, orgID, at); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &b, nil
}

// GetForUpdate locks and returns the balance row covering `at` for
// (userID, leaveTypeID), or nil if none exists yet. Must be called inside
// an open transaction (the UnitOfWork's pinned *sqlx.Tx) — FOR UPDATE on a
// connection with no open transaction is a protocol error.
func (r *LeaveBalanceRepository) GetForUpdate(ctx context.Context, userID, leaveTypeID string, at time.Time) (*domain.LeaveBalance, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var b domain.LeaveBalance
	query := `
		SELECT * FROM leave_balances
		WHERE user_id = $1 AND leave_type_id = $2 AND organization_id = $3
		  AND period_start <= $4 AND period_end >= $4 AND deleted_at IS NULL
		FOR UPDATE
	`
	if err := r.db.GetContext(ctx, &b, query, userID, leaveTypeID, orgID, at); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &b, nil
}

// ListCoveringInstant returns every user's balance row for leaveTypeID
// whose period covers `at`, without locking — the candidate set
// BalanceEngine.RunScheduledAccrual iterates before re-fetching and
// locking each row individually for its actual update.
func (r *LeaveBalanceRepository) ListCoveringInstant(ctx context.Context, leaveTypeID string, at time.Time) ([]domain.LeaveBalance, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var balances []domain.LeaveBalance
	query := `
		SELECT * FROM leave_balances
		WHERE leave_type_id = $1 AND organization_id = $2
		  AND period_start <= $3 AND period_end >= $3 AND deleted_at IS NULL
	`
	if err := r.db.SelectContext(ctx, &balances, query, leaveTypeID, orgID, at); err != nil {
		return nil, r.wrapErr(err)
	}
	return balances, nil
}

// Create inserts a new balance row and appends a CREATE audit row.
func (r *LeaveBalanceRepository) Create(ctx context.Context, b *domain.LeaveBalance, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.OrganizationID = orgID

	query := `
		INSERT INTO leave_balances (
			id, organization_id, user_id, leave_type_id, period_start, period_end,
			opening_balance, accrued, used, pending, adjusted, carried_forward, encashed, expired
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.OrganizationID, b.UserID, b.LeaveTypeID, b.PeriodStart, b.PeriodEnd,
		b.OpeningBalance, b.Accrued, b.Used, b.Pending, b.Adjusted, b.CarriedForward, b.Encashed, b.Expired,
	).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return r.wrapErr(err)
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionCreate,
		EntityType:  "leave_balance",
		EntityID:    b.ID,
		NewValues:   b,
		Description: description,
	})
}

// UpdateComponents persists the mutable accounting columns (everything but
// opening_balance and the period window) and appends an UPDATE audit row.
// Called by BalanceEngine after it has already computed `after` under the
// GetForUpdate lock held by the same transaction.
func (r *LeaveBalanceRepository) UpdateComponents(ctx context.Context, before, after *domain.LeaveBalance, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE leave_balances SET
			accrued = $3, used = $4, pending = $5, adjusted = $6,
			carried_forward = $7, encashed = $8, expired = $9, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		after.ID, orgID, after.Accrued, after.Used, after.Pending, after.Adjusted,
		after.CarriedForward, after.Encashed, after.Expired,
	)
	if err != nil {
		return r.wrapErr(err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("leave_balance")
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionUpdate,
		EntityType:  "leave_balance",
		EntityID:    after.ID,
		OldValues:   before,
		NewValues:   after,
		Description: description,
	})
}

// ListForUser returns every period balance row for a user across all leave
// types, newest period first. LeaveEngine.GetLeaveBalance does not call it:
// that method returns only the single row of one leave type covering one
// date.
func (r *LeaveBalanceRepository) ListForUser(ctx context.Context, userID string) ([]domain.LeaveBalance, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var balances []domain.LeaveBalance
	query := `
		SELECT * FROM leave_balances
		WHERE user_id = $1 AND organization_id = $2 AND deleted_at IS NULL
		ORDER BY period_start DESC
	`
	if err := r.db.SelectContext(ctx, &balances, query, userID, orgID); err != nil {
		return nil, r.wrapErr(err)
	}
	return balances, nil
}
