package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/tenant"
	"github.com/leaveflow/lms-core/pkg/testutil"
)

func newBalanceRepo(t *testing.T) (*testutil.MockDB, *LeaveBalanceRepository, context.Context) {
	mockDB := testutil.NewMockDB(t)
	db := database.NewFromSQLX(mockDB.DB, logger.New("lms-core-test", "test"))
	auditRepo := NewAuditRepository(db)
	repo := NewLeaveBalanceRepository(db, auditRepo)
	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	return mockDB, repo, ctx
}

func balanceColumns() []string {
	return []string{
		"id", "organization_id", "created_at", "updated_at", "deleted_at",
		"user_id", "leave_type_id", "period_start", "period_end",
		"opening_balance", "accrued", "used", "pending", "adjusted",
		"carried_forward", "encashed", "expired",
	}
}

func TestLeaveBalanceGetCurrentFound(t *testing.T) {
	mockDB, repo, ctx := newBalanceRepo(t)
	defer mockDB.Close()

	now := time.Now()
	rows := testutil.MockRows(balanceColumns()...).AddRow(
		"bal-1", "org-1", now, now, nil,
		"user-1", "lt-1", now.AddDate(0, -1, 0), now.AddDate(0, 11, 0),
		"10", "1.5", "0", "0", "0", "0", "0", "0",
	)

	mockDB.ExpectQuery(`
		SELECT * FROM leave_balances
		WHERE user_id = $1 AND leave_type_id = $2 AND organization_id = $3
		  AND period_start <= $4 AND period_end >= $4 AND deleted_at IS NULL
	`).WithArgs("user-1", "lt-1", "org-1", testutil.AnyTime{}).WillReturnRows(rows)

	got, err := repo.GetCurrent(ctx, "user-1", "lt-1", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, decimal.NewFromFloat(10).Equal(got.OpeningBalance))
}

func TestLeaveBalanceGetCurrentMiss(t *testing.T) {
	mockDB, repo, ctx := newBalanceRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`
		SELECT * FROM leave_balances
		WHERE user_id = $1 AND leave_type_id = $2 AND organization_id = $3
		  AND period_start <= $4 AND period_end >= $4 AND deleted_at IS NULL
	`).WithArgs("user-1", "lt-1", "org-1", testutil.AnyTime{}).WillReturnRows(testutil.MockRows(balanceColumns()...))

	got, err := repo.GetCurrent(ctx, "user-1", "lt-1", time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLeaveBalanceGetForUpdateLocksRow(t *testing.T) {
	mockDB, repo, ctx := newBalanceRepo(t)
	defer mockDB.Close()

	now := time.Now()
	rows := testutil.MockRows(balanceColumns()...).AddRow(
		"bal-1", "org-1", now, now, nil,
		"user-1", "lt-1", now.AddDate(0, -1, 0), now.AddDate(0, 11, 0),
		"10", "0", "2", "1", "0", "0", "0", "0",
	)

	mockDB.ExpectQuery(`
		SELECT * FROM leave_balances
		WHERE user_id = $1 AND leave_type_id = $2 AND organization_id = $3
		  AND period_start <= $4 AND period_end >= $4 AND deleted_at IS NULL
		FOR UPDATE
	`).WithArgs("user-1", "lt-1", "org-1", testutil.AnyTime{}).WillReturnRows(rows)

	got, err := repo.GetForUpdate(ctx, "user-1", "lt-1", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, decimal.NewFromFloat(7).Equal(got.Available()), "got %s", got.Available())
}

func TestLeaveBalanceUpdateComponentsRecordsAudit(t *testing.T) {
	mockDB, repo, ctx := newBalanceRepo(t)
	defer mockDB.Close()

	before := &domain.LeaveBalance{
		Base:           domain.Base{ID: "bal-1"},
		Accrued:        decimal.Zero,
		Used:           decimal.Zero,
		Pending:        decimal.Zero,
		Adjusted:       decimal.Zero,
		CarriedForward: decimal.Zero,
		Encashed:       decimal.Zero,
		Expired:        decimal.Zero,
	}
	after := &domain.LeaveBalance{
		Base:           domain.Base{ID: "bal-1"},
		Accrued:        decimal.Zero,
		Used:           decimal.Zero,
		Pending:        decimal.NewFromFloat(3),
		Adjusted:       decimal.Zero,
		CarriedForward: decimal.Zero,
		Encashed:       decimal.Zero,
		Expired:        decimal.Zero,
	}

	mockDB.ExpectExec(`
		UPDATE leave_balances SET
			accrued = $3, used = $4, pending = $5, adjusted = $6,
			carried_forward = $7, encashed = $8, expired = $9, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`).WithArgs("bal-1", "org-1", after.Accrued, after.Used, after.Pending, after.Adjusted,
		after.CarriedForward, after.Encashed, after.Expired).
		WillReturnResult(sqlmockResult())

	mockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmockResult())

	err := repo.UpdateComponents(ctx, before, after, "reserved for submission")
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}
