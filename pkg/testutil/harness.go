package testutil

import (
	"context"
	"testing"

	"github.com/leaveflow/lms-core/internal/leave/uow"
	"github.com/leaveflow/lms-core/pkg/actor"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// EngineHarness bundles a sqlmock-backed UnitOfWork with the fixture
// factory and mock expectations engine/repository unit tests assert
// against — the same "mockDB + fixtures" combination every test in this
// module's suite starts from (see UnitTestSuite).
type EngineHarness struct {
	MockDB   *MockDB
	Fixtures *FixtureFactory
	UoW      *uow.UnitOfWork
	OrgID    string
	t        *testing.T
}

// NewEngineHarness wires a UnitOfWork against a fresh sqlmock connection,
// with the returned context already carrying the fixture factory's
// organization scope and a user AuditContext — the shape every mutating
// engine call expects from its caller (§6 AuditContext).
func NewEngineHarness(t *testing.T) *EngineHarness {
	mockDB := NewMockDB(t)
	fixtures := NewFixtureFactory()

	ctx := context.Background()
	ctx = tenant.WithOrganizationID(ctx, fixtures.OrganizationID())
	ctx = actor.WithContext(ctx, actor.Context{ActorID: "test-actor", ActorType: actor.TypeUser})

	db := database.NewFromSQLX(mockDB.DB, logger.New("leave-service-test", "test"))
	u := uow.NewForTesting(ctx, db)

	return &EngineHarness{MockDB: mockDB, Fixtures: fixtures, UoW: u, OrgID: fixtures.OrganizationID(), t: t}
}

// Cleanup verifies every expected query ran and closes the connection.
func (h *EngineHarness) Cleanup() {
	h.MockDB.ExpectationsWereMet(h.t)
	h.MockDB.Close()
}
