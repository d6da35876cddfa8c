package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/internal/leave/rules"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/testutil"
)

func newWorkflowEngine() *WorkflowEngine {
	return NewWorkflowEngine(rules.NewEvaluator(), logger.New("lms-core-test", "test"))
}

const stepGetByIDQuery = `
	SELECT * FROM workflow_steps
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
`

const requestGetForUpdateQuery = `SELECT * FROM leave_requests WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL FOR UPDATE`

const stepUpdateQuery = `
	UPDATE workflow_steps SET status = $3, actioned_at = $4, action_remarks = $5, updated_at = NOW()
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
`

const stepsListForRequestQuery = `
	SELECT * FROM workflow_steps
	WHERE leave_request_id = $1 AND organization_id = $2 AND deleted_at IS NULL
	ORDER BY step_order
`

const requestUpdateQuery = `
	UPDATE leave_requests SET
		status = $3, current_workflow_step = $4,
		submitted_at = $5, decided_at = $6, decided_by = $7, decision_remarks = $8,
		cancelled_at = $9, cancelled_by = $10, cancellation_reason = $11, updated_at = NOW()
	WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
`

func engineStepColumns() []string {
	return []string{
		"id", "organization_id", "created_at", "updated_at", "deleted_at",
		"leave_request_id", "workflow_id", "step_order", "approver_id",
		"status", "actioned_at", "action_remarks",
	}
}

func engineRequestColumns() []string {
	return []string{
		"id", "organization_id", "created_at", "updated_at", "deleted_at",
		"request_number", "user_id", "leave_type_id", "policy_id",
		"start_date", "end_date", "total_days", "reason", "status",
		"current_workflow_step", "submitted_at", "decided_at", "decided_by",
		"decision_remarks", "cancelled_at", "cancelled_by", "cancellation_reason",
	}
}

func TestWorkflowApproveFinalStepCompletesRequest(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()

	h.MockDB.ExpectQuery(stepGetByIDQuery).WithArgs("step-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).AddRow(
			"step-1", h.OrgID, now, now, nil, "lr-1", "wf-1", 0, "mgr-1", domain.StepPending, nil, nil,
		),
	)
	h.MockDB.ExpectQuery(requestGetForUpdateQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineRequestColumns()...).AddRow(
			"lr-1", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			now, now.AddDate(0, 0, 1), "1", nil, domain.RequestPendingApproval,
			0, &now, nil, nil, nil, nil, nil, nil,
		),
	)
	h.MockDB.ExpectExec(stepUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	h.MockDB.ExpectQuery(stepsListForRequestQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).AddRow(
			"step-1", h.OrgID, now, now, nil, "lr-1", "wf-1", 0, "mgr-1", domain.StepApproved, &now, nil,
		),
	)

	h.MockDB.ExpectExec(requestUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	e := newWorkflowEngine()
	activated, completed, err := e.Approve(h.UoW, "step-1", "mgr-1", nil)
	require.NoError(t, err)
	assert.Nil(t, activated)
	require.NotNil(t, completed)
	assert.Equal(t, domain.RequestApproved, completed.FinalStatus)
	h.MockDB.ExpectationsWereMet(t)
}

func TestWorkflowApproveMultiStepActivatesNext(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()

	h.MockDB.ExpectQuery(stepGetByIDQuery).WithArgs("step-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).AddRow(
			"step-1", h.OrgID, now, now, nil, "lr-1", "wf-1", 0, "mgr-1", domain.StepPending, nil, nil,
		),
	)
	h.MockDB.ExpectQuery(requestGetForUpdateQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineRequestColumns()...).AddRow(
			"lr-1", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			now, now.AddDate(0, 0, 1), "1", nil, domain.RequestPendingApproval,
			0, &now, nil, nil, nil, nil, nil, nil,
		),
	)
	h.MockDB.ExpectExec(stepUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	h.MockDB.ExpectQuery(stepsListForRequestQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).
			AddRow("step-1", h.OrgID, now, now, nil, "lr-1", "wf-1", 0, "mgr-1", domain.StepApproved, &now, nil).
			AddRow("step-2", h.OrgID, now, now, nil, "lr-1", "wf-1", 1, "mgr-2", domain.StepPending, nil, nil),
	)

	h.MockDB.ExpectExec(requestUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	e := newWorkflowEngine()
	activated, completed, err := e.Approve(h.UoW, "step-1", "mgr-1", nil)
	require.NoError(t, err)
	require.NotNil(t, activated)
	assert.Nil(t, completed)
	assert.Equal(t, 1, activated.Step.StepOrder)
	assert.False(t, activated.IsFinal)
	h.MockDB.ExpectationsWereMet(t)
}

func TestWorkflowApproveWrongApproverFails(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	h.MockDB.ExpectQuery(stepGetByIDQuery).WithArgs("step-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).AddRow(
			"step-1", h.OrgID, now, now, nil, "lr-1", "wf-1", 0, "mgr-1", domain.StepPending, nil, nil,
		),
	)

	e := newWorkflowEngine()
	activated, completed, err := e.Approve(h.UoW, "step-1", "someone-else", nil)
	assert.Nil(t, activated)
	assert.Nil(t, completed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrApproval))
}

func TestWorkflowApproveNonCursorStepFails(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	// step-2 is PENDING and assigned to mgr-2, but the request's cursor is
	// still at step order 0 (step-1, not yet acted on) — mgr-2 must not be
	// able to jump ahead of mgr-1.
	h.MockDB.ExpectQuery(stepGetByIDQuery).WithArgs("step-2", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).AddRow(
			"step-2", h.OrgID, now, now, nil, "lr-1", "wf-1", 1, "mgr-2", domain.StepPending, nil, nil,
		),
	)
	h.MockDB.ExpectQuery(requestGetForUpdateQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineRequestColumns()...).AddRow(
			"lr-1", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			now, now.AddDate(0, 0, 1), "1", nil, domain.RequestPendingApproval,
			0, &now, nil, nil, nil, nil, nil, nil,
		),
	)

	e := newWorkflowEngine()
	activated, completed, err := e.Approve(h.UoW, "step-2", "mgr-2", nil)
	assert.Nil(t, activated)
	assert.Nil(t, completed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWorkflowState))
	h.MockDB.ExpectationsWereMet(t)
}

func TestWorkflowRejectNonCursorStepFails(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	h.MockDB.ExpectQuery(stepGetByIDQuery).WithArgs("step-2", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).AddRow(
			"step-2", h.OrgID, now, now, nil, "lr-1", "wf-1", 1, "mgr-2", domain.StepPending, nil, nil,
		),
	)
	h.MockDB.ExpectQuery(requestGetForUpdateQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineRequestColumns()...).AddRow(
			"lr-1", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			now, now.AddDate(0, 0, 1), "1", nil, domain.RequestPendingApproval,
			0, &now, nil, nil, nil, nil, nil, nil,
		),
	)

	e := newWorkflowEngine()
	completed, err := e.Reject(h.UoW, "step-2", "mgr-2", nil)
	assert.Nil(t, completed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWorkflowState))
	h.MockDB.ExpectationsWereMet(t)
}

func TestWorkflowRejectTerminatesRequest(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	h.MockDB.ExpectQuery(stepGetByIDQuery).WithArgs("step-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).AddRow(
			"step-1", h.OrgID, now, now, nil, "lr-1", "wf-1", 0, "mgr-1", domain.StepPending, nil, nil,
		),
	)
	h.MockDB.ExpectQuery(requestGetForUpdateQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineRequestColumns()...).AddRow(
			"lr-1", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			now, now.AddDate(0, 0, 1), "1", nil, domain.RequestPendingApproval,
			0, &now, nil, nil, nil, nil, nil, nil,
		),
	)
	h.MockDB.ExpectExec(stepUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(requestUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	e := newWorkflowEngine()
	completed, err := e.Reject(h.UoW, "step-1", "mgr-1", nil)
	require.NoError(t, err)
	require.NotNil(t, completed)
	assert.Equal(t, domain.RequestRejected, completed.FinalStatus)
	h.MockDB.ExpectationsWereMet(t)
}

func TestWorkflowWithdrawSweepsPendingStepsToSkipped(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	h.MockDB.ExpectQuery(requestGetForUpdateQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineRequestColumns()...).AddRow(
			"lr-1", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			now, now.AddDate(0, 0, 1), "1", nil, domain.RequestPendingApproval,
			0, &now, nil, nil, nil, nil, nil, nil,
		),
	)
	h.MockDB.ExpectExec(requestUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	h.MockDB.ExpectQuery(stepsListForRequestQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineStepColumns()...).
			AddRow("step-1", h.OrgID, now, now, nil, "lr-1", "wf-1", 0, "mgr-1", domain.StepApproved, &now, nil).
			AddRow("step-2", h.OrgID, now, now, nil, "lr-1", "wf-1", 1, "mgr-2", domain.StepPending, nil, nil),
	)
	h.MockDB.ExpectExec(stepUpdateQuery).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	e := newWorkflowEngine()
	completed, err := e.Withdraw(h.UoW, "lr-1", "user-1", nil)
	require.NoError(t, err)
	require.NotNil(t, completed)
	assert.Equal(t, domain.RequestWithdrawn, completed.FinalStatus)
	h.MockDB.ExpectationsWereMet(t)
}

func TestWorkflowWithdrawByNonOwnerFails(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	h.MockDB.ExpectQuery(requestGetForUpdateQuery).WithArgs("lr-1", h.OrgID).WillReturnRows(
		testutil.MockRows(engineRequestColumns()...).AddRow(
			"lr-1", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			now, now.AddDate(0, 0, 1), "1", nil, domain.RequestPendingApproval,
			0, &now, nil, nil, nil, nil, nil, nil,
		),
	)

	e := newWorkflowEngine()
	completed, err := e.Withdraw(h.UoW, "lr-1", "not-the-owner", nil)
	assert.Nil(t, completed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrApproval))
}
