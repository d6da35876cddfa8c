// Package uow implements the Unit of Work that scopes every mutating
// engine operation to exactly one database transaction: one Begin, many
// repository calls sharing the same context-pinned *sqlx.Tx (see
// pkg/database.DB.BeginTx), one Commit or Rollback. Engines are handed a
// UnitOfWork and its repositories; they never call Commit/Rollback/Begin
// themselves — that responsibility sits one layer up, at the call site
// that owns the whole operation (a handler, a cron tick, a message
// consumer), mirroring the teacher's own "the repository doesn't own the
// transaction boundary" discipline in pkg/database.Transaction.
package uow

import (
	"context"

	"github.com/leaveflow/lms-core/internal/leave/repository"
	"github.com/leaveflow/lms-core/pkg/database"
)

// UnitOfWork bundles one open transaction with every repository the leave
// engines need, all bound to the same transaction-pinned context.
type UnitOfWork struct {
	ctx       context.Context
	tx        txCommitter
	completed bool

	Users         *repository.UserRepository
	LeaveTypes    *repository.LeaveTypeRepository
	Policies      *repository.LeavePolicyRepository
	Balances      *repository.LeaveBalanceRepository
	Requests      *repository.LeaveRequestRepository
	RequestDates  *repository.LeaveRequestDateRepository
	Workflows     *repository.WorkflowConfigRepository
	WorkflowSteps *repository.WorkflowStepRepository
	Comments      *repository.CommentRepository
	Audit         *repository.AuditRepository
}

// txCommitter is the subset of *sqlx.Tx a UnitOfWork needs — narrowed to
// ease testing without a real sqlx.Tx.
type txCommitter interface {
	Commit() error
	Rollback() error
}

// Context returns the transaction-pinned context every repository call in
// this scope must be made with.
func (u *UnitOfWork) Context() context.Context {
	return u.ctx
}

// Commit commits the underlying transaction. Idempotent after the first
// call — a second Commit or a Rollback after a successful Commit is a
// no-op, matching the "complete once" discipline spec.md requires so a
// deferred Rollback in caller code can't double-resolve the transaction.
func (u *UnitOfWork) Commit() error {
	if u.completed {
		return nil
	}
	u.completed = true
	return u.tx.Commit()
}

// Rollback aborts the underlying transaction. Idempotent after the first
// Commit or Rollback.
func (u *UnitOfWork) Rollback() error {
	if u.completed {
		return nil
	}
	u.completed = true
	return u.tx.Rollback()
}

// Factory opens new UnitOfWork scopes against one database handle.
type Factory struct {
	db *database.DB
}

// NewFactory constructs a Unit of Work factory.
func NewFactory(db *database.DB) *Factory {
	return &Factory{db: db}
}

// Begin opens a new transaction and wires every repository to it. The
// caller owns calling Commit or Rollback exactly once (typically via
// `defer uow.Rollback()` immediately after Begin, then `uow.Commit()` on
// the success path — Rollback after a successful Commit is a no-op).
func (f *Factory) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, txCtx, err := f.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	auditRepo := repository.NewAuditRepository(f.db)

	return &UnitOfWork{
		ctx:           txCtx,
		tx:            tx,
		Users:         repository.NewUserRepository(f.db, auditRepo),
		LeaveTypes:    repository.NewLeaveTypeRepository(f.db, auditRepo),
		Policies:      repository.NewLeavePolicyRepository(f.db, auditRepo),
		Balances:      repository.NewLeaveBalanceRepository(f.db, auditRepo),
		Requests:      repository.NewLeaveRequestRepository(f.db, auditRepo),
		RequestDates:  repository.NewLeaveRequestDateRepository(f.db),
		Workflows:     repository.NewWorkflowConfigRepository(f.db, auditRepo),
		WorkflowSteps: repository.NewWorkflowStepRepository(f.db, auditRepo),
		Comments:      repository.NewCommentRepository(f.db, auditRepo),
		Audit:         auditRepo,
	}, nil
}

// noopCommitter satisfies txCommitter without a real *sqlx.Tx, for
// NewForTesting below — engine/repository unit tests drive a UnitOfWork
// against sqlmock and assert on the queries it issues, not on Commit/
// Rollback plumbing, which sqlmock's own ExpectBegin/ExpectCommit already
// cover in uow_test.go.
type noopCommitter struct{}

func (noopCommitter) Commit() error   { return nil }
func (noopCommitter) Rollback() error { return nil }

// NewForTesting builds a UnitOfWork wired to db without opening a real
// transaction — the context passed in is used as-is (already carrying
// tenant/actor scope), rather than one BeginTx would stash a *sqlx.Tx into.
// Test callers that want to assert transaction boundaries should go
// through Factory.Begin against a sqlmock connection instead.
func NewForTesting(ctx context.Context, db *database.DB) *UnitOfWork {
	auditRepo := repository.NewAuditRepository(db)
	return &UnitOfWork{
		ctx:           ctx,
		tx:            noopCommitter{},
		Users:         repository.NewUserRepository(db, auditRepo),
		LeaveTypes:    repository.NewLeaveTypeRepository(db, auditRepo),
		Policies:      repository.NewLeavePolicyRepository(db, auditRepo),
		Balances:      repository.NewLeaveBalanceRepository(db, auditRepo),
		Requests:      repository.NewLeaveRequestRepository(db, auditRepo),
		RequestDates:  repository.NewLeaveRequestDateRepository(db),
		Workflows:     repository.NewWorkflowConfigRepository(db, auditRepo),
		WorkflowSteps: repository.NewWorkflowStepRepository(db, auditRepo),
		Comments:      repository.NewCommentRepository(db, auditRepo),
		Audit:         auditRepo,
	}
}

// Run opens a UnitOfWork, runs fn, and commits on success or rolls back on
// any error fn returns — the convenience wrapper every engine entry point
// uses so the begin/defer-rollback/commit boilerplate lives in one place.
func Run(ctx context.Context, f *Factory, fn func(*UnitOfWork) error) error {
	u, err := f.Begin(ctx)
	if err != nil {
		return err
	}
	defer u.Rollback()

	if err := fn(u); err != nil {
		return err
	}

	return u.Commit()
}
