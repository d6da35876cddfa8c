package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	apperrors "github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/tenant"
	"github.com/leaveflow/lms-core/pkg/testutil"
)

func newTestBase(t *testing.T) (*testutil.MockDB, Base[*domain.LeaveType], context.Context) {
	mockDB := testutil.NewMockDB(t)
	db := database.NewFromSQLX(mockDB.DB, logger.New("lms-core-test", "test"))
	base := NewBase[*domain.LeaveType](db, nil, "leave_types", "leave_type")
	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	return mockDB, base, ctx
}

func leaveTypeColumns() []string {
	return []string{"id", "organization_id", "created_at", "updated_at", "deleted_at", "code", "name", "active", "reason_required"}
}

func TestBaseGetFound(t *testing.T) {
	mockDB, base, ctx := newTestBase(t)
	defer mockDB.Close()

	now := time.Now()
	rows := testutil.MockRows(leaveTypeColumns()...).
		AddRow("lt-1", "org-1", now, now, nil, "SICK", "Sick Leave", true, false)

	mockDB.ExpectQuery(`SELECT * FROM leave_types WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("lt-1", "org-1").
		WillReturnRows(rows)

	got, err := base.Get(ctx, "lt-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SICK", (*got).Code)
	mockDB.ExpectationsWereMet(t)
}

func TestBaseGetMissReturnsNilNil(t *testing.T) {
	mockDB, base, ctx := newTestBase(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`SELECT * FROM leave_types WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("missing", "org-1").
		WillReturnRows(testutil.MockRows(leaveTypeColumns()...))

	got, err := base.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	mockDB.ExpectationsWereMet(t)
}

func TestBaseGetRequiredMissReturnsNotFound(t *testing.T) {
	mockDB, base, ctx := newTestBase(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`SELECT * FROM leave_types WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("missing", "org-1").
		WillReturnRows(testutil.MockRows(leaveTypeColumns()...))

	got, err := base.GetRequired(ctx, "missing")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestBaseGetNoOrganizationInContext(t *testing.T) {
	mockDB, base, _ := newTestBase(t)
	defer mockDB.Close()

	_, err := base.Get(context.Background(), "lt-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, tenant.ErrNoOrganizationInContext)
}

func TestBaseListCapsLimit(t *testing.T) {
	mockDB, base, ctx := newTestBase(t)
	defer mockDB.Close()

	now := time.Now()
	rows := testutil.MockRows(leaveTypeColumns()...).
		AddRow("lt-1", "org-1", now, now, nil, "SICK", "Sick Leave", true, false).
		AddRow("lt-2", "org-1", now, now, nil, "CASUAL", "Casual Leave", true, false)

	mockDB.ExpectQuery(`SELECT * FROM leave_types WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC LIMIT $2 OFFSET $3`).
		WithArgs("org-1", MaxQueryLimit, 0).
		WillReturnRows(rows)

	got, err := base.List(ctx, 0, -5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	mockDB.ExpectationsWereMet(t)
}

func TestBaseCount(t *testing.T) {
	mockDB, base, ctx := newTestBase(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`SELECT COUNT(*) FROM leave_types WHERE organization_id = $1 AND deleted_at IS NULL`).
		WithArgs("org-1").
		WillReturnRows(testutil.MockRows("count").AddRow(int64(7)))

	got, err := base.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
	mockDB.ExpectationsWereMet(t)
}

func TestBaseSoftDeleteByIDNotFound(t *testing.T) {
	mockDB, base, ctx := newTestBase(t)
	defer mockDB.Close()

	mockDB.ExpectExec(`UPDATE leave_types SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("lt-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := base.softDeleteByID(ctx, "lt-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
