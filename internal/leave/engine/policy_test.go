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

func newPolicyEngine() *PolicyEngine {
	return NewPolicyEngine(rules.NewEvaluator(), logger.New("lms-core-test", "test"))
}

func policyColumns() []string {
	return []string{
		"id", "organization_id", "created_at", "updated_at", "deleted_at",
		"leave_type_id", "name", "active", "effective_from", "effective_to",
		"eligibility_type", "eligibility_tenure_days", "eligibility_rules",
		"accrual_frequency", "accrual_amount", "allow_negative",
	}
}

func TestResolvePolicyForUserFound(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	now := time.Now()
	rows := testutil.MockRows(policyColumns()...).AddRow(
		"pol-1", h.OrgID, now, now, nil,
		"lt-1", "Standard Vacation", true, now.AddDate(-1, 0, 0), nil,
		domain.EligibilityImmediate, 0, nil,
		"monthly", "1.5", false,
	)

	h.MockDB.ExpectQuery(`
		SELECT * FROM leave_policies
		WHERE leave_type_id = $1 AND organization_id = $2 AND active = true AND deleted_at IS NULL
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to >= $3)
		ORDER BY effective_from DESC
		LIMIT 1
	`).WithArgs("lt-1", h.OrgID, testutil.AnyTime{}).WillReturnRows(rows)

	e := newPolicyEngine()
	policy, reason, err := e.ResolvePolicyForUser(h.UoW, "lt-1", now)
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, "pol-1", policy.ID)
	assert.NotEmpty(t, reason)
}

func TestResolvePolicyForUserNoneCovers(t *testing.T) {
	h := testutil.NewEngineHarness(t)
	defer h.Cleanup()

	h.MockDB.ExpectQuery(`
		SELECT * FROM leave_policies
		WHERE leave_type_id = $1 AND organization_id = $2 AND active = true AND deleted_at IS NULL
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to >= $3)
		ORDER BY effective_from DESC
		LIMIT 1
	`).WithArgs("lt-1", h.OrgID, testutil.AnyTime{}).WillReturnRows(testutil.MockRows(policyColumns()...))

	e := newPolicyEngine()
	policy, _, err := e.ResolvePolicyForUser(h.UoW, "lt-1", time.Now())
	assert.Nil(t, policy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPolicyNotFound))
}

func TestAssertEligibleImmediate(t *testing.T) {
	e := newPolicyEngine()
	user := &domain.User{Status: domain.UserStatusActive}
	policy := &domain.LeavePolicy{EligibilityType: domain.EligibilityImmediate}
	assert.NoError(t, e.AssertEligible(user, policy, time.Now()))
}

func TestAssertEligibleAfterProbationFailsWhileOnProbation(t *testing.T) {
	e := newPolicyEngine()
	probationEnd := time.Now().AddDate(0, 1, 0)
	user := &domain.User{ProbationEndDate: &probationEnd}
	policy := &domain.LeavePolicy{EligibilityType: domain.EligibilityAfterProbation}

	err := e.AssertEligible(user, policy, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEligibility))
}

func TestAssertEligibleAfterProbationPassesOnceOver(t *testing.T) {
	e := newPolicyEngine()
	probationEnd := time.Now().AddDate(0, -1, 0)
	user := &domain.User{ProbationEndDate: &probationEnd}
	policy := &domain.LeavePolicy{EligibilityType: domain.EligibilityAfterProbation}

	assert.NoError(t, e.AssertEligible(user, policy, time.Now()))
}

func TestAssertEligibleAfterTenureInsufficient(t *testing.T) {
	e := newPolicyEngine()
	hireDate := time.Now().AddDate(0, 0, -30)
	user := &domain.User{HireDate: &hireDate}
	policy := &domain.LeavePolicy{EligibilityType: domain.EligibilityAfterTenure, EligibilityTenureDays: 90}

	err := e.AssertEligible(user, policy, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEligibility))
}

func TestAssertEligibleAfterTenureNoHireDate(t *testing.T) {
	e := newPolicyEngine()
	user := &domain.User{}
	policy := &domain.LeavePolicy{EligibilityType: domain.EligibilityAfterTenure, EligibilityTenureDays: 90}

	err := e.AssertEligible(user, policy, time.Now())
	require.Error(t, err)
}

func TestAssertEligibleCustomRule(t *testing.T) {
	e := newPolicyEngine()
	user := &domain.User{EmploymentType: "full_time", Status: domain.UserStatusActive}
	policy := &domain.LeavePolicy{
		EligibilityType:  domain.EligibilityCustom,
		EligibilityRules: []byte(`{"expression": "employment_type == \"full_time\""}`),
	}

	assert.NoError(t, e.AssertEligible(user, policy, time.Now()))

	policy.EligibilityRules = []byte(`{"expression": "employment_type == \"part_time\""}`)
	err := e.AssertEligible(user, policy, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEligibility))
}

func TestAssertEligibleUnknownType(t *testing.T) {
	e := newPolicyEngine()
	user := &domain.User{}
	policy := &domain.LeavePolicy{EligibilityType: domain.EligibilityType("BOGUS")}

	err := e.AssertEligible(user, policy, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEligibility))
}
