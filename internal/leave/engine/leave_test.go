package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/internal/leave/events"
	"github.com/leaveflow/lms-core/internal/leave/rules"
	"github.com/leaveflow/lms-core/pkg/config"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/testutil"
)

func newTestLeaveEngine() *LeaveEngine {
	log := logger.New("lms-core-test", "test")
	evaluator := rules.NewEvaluator()
	policy := NewPolicyEngine(evaluator, log)
	publisher := events.NewNoopPublisher(log)
	balance := NewBalanceEngine(publisher, log)
	workflow := NewWorkflowEngine(evaluator, log)
	cfg := config.LeaveConfig{RequestNumberPrefix: "LR", RequestNumberWidth: 6}
	return NewLeaveEngine(policy, balance, workflow, publisher, cfg, log)
}

func TestBuildRequestDatesWeekdaysOnly(t *testing.T) {
	// Monday through Friday, 5 calendar days, each valued 1.0.
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)   // Friday

	dates, total := buildRequestDates(start, end)
	require.Len(t, dates, 5)
	for _, d := range dates {
		assert.False(t, d.IsWeekend)
		assert.True(t, decimal.NewFromInt(1).Equal(d.DayValue))
	}
	assert.True(t, decimal.NewFromInt(5).Equal(total))
}

func TestBuildRequestDatesSpanningWeekendValuesEveryDay(t *testing.T) {
	// Weekend/holiday valuation is delegated to an external calendar
	// collaborator; the core values every expanded day at 1.0 and only
	// tags IsWeekend for that collaborator to act on later (§4.6).
	start := time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC) // Friday
	end := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)  // Monday

	dates, total := buildRequestDates(start, end)
	require.Len(t, dates, 4)

	weekendCount := 0
	for _, d := range dates {
		assert.True(t, decimal.NewFromInt(1).Equal(d.DayValue))
		if d.IsWeekend {
			weekendCount++
		}
	}
	assert.Equal(t, 2, weekendCount)
	assert.True(t, decimal.NewFromInt(4).Equal(total))
}

func TestBuildRequestDatesMatchesScenario1(t *testing.T) {
	// §8 scenario 1: 2024-02-01 (Thu) through 2024-02-03 (Sat), total_days=3.0.
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)

	dates, total := buildRequestDates(start, end)
	require.Len(t, dates, 3)
	assert.True(t, decimal.NewFromInt(3).Equal(total))
}

func TestFormatRequestNumber(t *testing.T) {
	cfg := config.LeaveConfig{RequestNumberPrefix: "LR", RequestNumberWidth: 6}
	assert.Equal(t, "LR-000042", formatRequestNumber(cfg, 42))
}

func userColumns() []string {
	return []string{
		"id", "organization_id", "created_at", "updated_at", "deleted_at",
		"first_name", "last_name", "email", "employment_type",
		"hire_date", "probation_end_date", "manager_id", "status", "metadata",
	}
}

func leaveTypeColumns() []string {
	return []string{"id", "organization_id", "created_at", "updated_at", "deleted_at", "code", "name", "active", "reason_required"}
}

func TestCreateLeaveRequestHappyPath(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)   // Wednesday

	h.MockDB.ExpectQuery(`SELECT * FROM users WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("user-1", h.OrgID).
		WillReturnRows(testutil.MockRows(userColumns()...).AddRow(
			"user-1", h.OrgID, now, now, nil,
			"Ada", "Lovelace", "ada@example.com", "full_time",
			nil, nil, nil, domain.UserStatusActive, nil,
		))

	h.MockDB.ExpectQuery(`SELECT * FROM leave_types WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("lt-1", h.OrgID).
		WillReturnRows(testutil.MockRows(leaveTypeColumns()...).AddRow(
			"lt-1", h.OrgID, now, now, nil, "VAC", "Vacation", true, false,
		))

	h.MockDB.ExpectQuery(`
		SELECT * FROM leave_policies
		WHERE leave_type_id = $1 AND organization_id = $2 AND active = true AND deleted_at IS NULL
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to >= $3)
		ORDER BY effective_from DESC
		LIMIT 1
	`).WithArgs("lt-1", h.OrgID, testutil.AnyTime{}).WillReturnRows(
		testutil.MockRows(policyColumns()...).AddRow(
			"pol-1", h.OrgID, now, now, nil,
			"lt-1", "Standard Vacation", true, now.AddDate(-1, 0, 0), nil,
			domain.EligibilityImmediate, 0, nil,
			"monthly", "1.5", false,
		),
	)

	h.MockDB.ExpectQuery(`
		SELECT * FROM leave_requests
		WHERE user_id = $1 AND organization_id = $2 AND deleted_at IS NULL
		  AND status NOT IN ('REJECTED', 'CANCELLED', 'WITHDRAWN')
		  AND start_date <= $4 AND end_date >= $3
		  AND id != $5
		ORDER BY start_date
	`).WithArgs("user-1", h.OrgID, start, end, "").WillReturnRows(testutil.MockRows(requestColumns()...))

	h.MockDB.ExpectQuery(`SELECT nextval('leave_request_number_seq')`).
		WillReturnRows(testutil.MockRows("nextval").AddRow(int64(1)))

	h.MockDB.ExpectQuery(`INSERT INTO leave_requests`).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	h.MockDB.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(engineSQLResult())

	h.MockDB.ExpectExec(`INSERT INTO leave_request_dates`).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO leave_request_dates`).WillReturnResult(engineSQLResult())
	h.MockDB.ExpectExec(`INSERT INTO leave_request_dates`).WillReturnResult(engineSQLResult())

	e := newTestLeaveEngine()
	req, err := e.CreateLeaveRequest(h.UoW, "user-1", "lt-1", start, end, nil)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "LR-000001", req.RequestNumber)
	assert.Equal(t, domain.RequestDraft, req.Status)
	assert.True(t, decimal.NewFromInt(3).Equal(req.TotalDays))
	h.MockDB.ExpectationsWereMet(t)
}

func TestCreateLeaveRequestRejectsOverlap(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)

	h.MockDB.ExpectQuery(`SELECT * FROM users WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("user-1", h.OrgID).
		WillReturnRows(testutil.MockRows(userColumns()...).AddRow(
			"user-1", h.OrgID, now, now, nil,
			"Ada", "Lovelace", "ada@example.com", "full_time",
			nil, nil, nil, domain.UserStatusActive, nil,
		))

	h.MockDB.ExpectQuery(`SELECT * FROM leave_types WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("lt-1", h.OrgID).
		WillReturnRows(testutil.MockRows(leaveTypeColumns()...).AddRow(
			"lt-1", h.OrgID, now, now, nil, "VAC", "Vacation", true, false,
		))

	h.MockDB.ExpectQuery(`
		SELECT * FROM leave_policies
		WHERE leave_type_id = $1 AND organization_id = $2 AND active = true AND deleted_at IS NULL
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to >= $3)
		ORDER BY effective_from DESC
		LIMIT 1
	`).WithArgs("lt-1", h.OrgID, testutil.AnyTime{}).WillReturnRows(
		testutil.MockRows(policyColumns()...).AddRow(
			"pol-1", h.OrgID, now, now, nil,
			"lt-1", "Standard Vacation", true, now.AddDate(-1, 0, 0), nil,
			domain.EligibilityImmediate, 0, nil,
			"monthly", "1.5", false,
		),
	)

	h.MockDB.ExpectQuery(`
		SELECT * FROM leave_requests
		WHERE user_id = $1 AND organization_id = $2 AND deleted_at IS NULL
		  AND status NOT IN ('REJECTED', 'CANCELLED', 'WITHDRAWN')
		  AND start_date <= $4 AND end_date >= $3
		  AND id != $5
		ORDER BY start_date
	`).WithArgs("user-1", h.OrgID, start, end, "").WillReturnRows(
		testutil.MockRows(requestColumns()...).AddRow(
			"lr-existing", h.OrgID, now, now, nil,
			"LR-000001", "user-1", "lt-1", "pol-1",
			start, end, "3", nil, domain.RequestPendingApproval,
			0, nil, nil, nil, nil, nil, nil, nil,
		),
	)

	e := newTestLeaveEngine()
	req, err := e.CreateLeaveRequest(h.UoW, "user-1", "lt-1", start, end, nil)
	assert.Nil(t, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLeaveOverlap))
}

func TestCreateLeaveRequestInactiveUserRejected(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	h.MockDB.ExpectQuery(`SELECT * FROM users WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`).
		WithArgs("user-1", h.OrgID).
		WillReturnRows(testutil.MockRows(userColumns()...).AddRow(
			"user-1", h.OrgID, now, now, nil,
			"Ada", "Lovelace", "ada@example.com", "full_time",
			nil, nil, nil, domain.UserStatusTerminated, nil,
		))

	e := newTestLeaveEngine()
	req, err := e.CreateLeaveRequest(h.UoW, "user-1", "lt-1", now, now.AddDate(0, 0, 1), nil)
	assert.Nil(t, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}
