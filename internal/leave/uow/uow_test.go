package uow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/tenant"
	"github.com/leaveflow/lms-core/pkg/testutil"
)

func newTestFactory(t *testing.T) (*testutil.MockDB, *Factory) {
	mockDB := testutil.NewMockDB(t)
	db := database.NewFromSQLX(mockDB.DB, logger.New("lms-core-test", "test"))
	return mockDB, NewFactory(db)
}

func TestFactoryBeginWiresAllRepositories(t *testing.T) {
	mockDB, factory := newTestFactory(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectCommit()

	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	u, err := factory.Begin(ctx)
	require.NoError(t, err)

	assert.NotNil(t, u.Users)
	assert.NotNil(t, u.LeaveTypes)
	assert.NotNil(t, u.Policies)
	assert.NotNil(t, u.Balances)
	assert.NotNil(t, u.Requests)
	assert.NotNil(t, u.RequestDates)
	assert.NotNil(t, u.Workflows)
	assert.NotNil(t, u.WorkflowSteps)
	assert.NotNil(t, u.Comments)
	assert.NotNil(t, u.Audit)

	require.NoError(t, u.Commit())
	mockDB.ExpectationsWereMet(t)
}

func TestCommitIsIdempotent(t *testing.T) {
	mockDB, factory := newTestFactory(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectCommit()

	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	u, err := factory.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, u.Commit())
	// A second Commit must not issue another commit against the driver.
	require.NoError(t, u.Commit())
	mockDB.ExpectationsWereMet(t)
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	mockDB, factory := newTestFactory(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectCommit()

	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	u, err := factory.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, u.Commit())
	// Rollback after a successful Commit must be a no-op, not an error —
	// this is what lets callers defer u.Rollback() unconditionally.
	require.NoError(t, u.Rollback())
	mockDB.ExpectationsWereMet(t)
}

func TestRollbackIssuesDriverRollback(t *testing.T) {
	mockDB, factory := newTestFactory(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	u, err := factory.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, u.Rollback())
	mockDB.ExpectationsWereMet(t)
}

func TestRunCommitsOnSuccess(t *testing.T) {
	mockDB, factory := newTestFactory(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectCommit()

	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	err := Run(ctx, factory, func(u *UnitOfWork) error {
		assert.NotNil(t, u.Context())
		return nil
	})
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestRunRollsBackOnError(t *testing.T) {
	mockDB, factory := newTestFactory(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	sentinel := assert.AnError
	err := Run(ctx, factory, func(u *UnitOfWork) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	mockDB.ExpectationsWereMet(t)
}

func TestContextReturnsTransactionPinnedContext(t *testing.T) {
	mockDB, factory := newTestFactory(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	ctx := tenant.WithOrganizationID(context.Background(), "org-1")
	u, err := factory.Begin(ctx)
	require.NoError(t, err)

	orgID, err := tenant.OrganizationID(u.Context())
	require.NoError(t, err)
	assert.Equal(t, "org-1", orgID)

	require.NoError(t, u.Rollback())
	mockDB.ExpectationsWereMet(t)
}
