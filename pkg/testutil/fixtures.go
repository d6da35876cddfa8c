package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leaveflow/lms-core/internal/leave/domain"
)

// FixtureFactory creates test fixtures with sensible defaults, the way the
// teacher's own factory builds employee/absence/shift rows for its tests —
// generalized here to the leave domain's entities.
type FixtureFactory struct {
	sequence       int
	organizationID string
}

// NewFixtureFactory creates a new fixture factory scoped to one
// organization, matching the single organization_id column every entity
// in this module carries.
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{
		sequence:       0,
		organizationID: uuid.New().String(),
	}
}

// OrganizationID returns the organization scope this factory's fixtures share.
func (f *FixtureFactory) OrganizationID() string {
	return f.organizationID
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

func (f *FixtureFactory) base() domain.Base {
	now := time.Now()
	return domain.Base{
		ID:             uuid.New().String(),
		OrganizationID: f.organizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// User creates a user fixture with defaults.
func (f *FixtureFactory) User(opts ...func(*domain.User)) domain.User {
	seq := f.nextSeq()
	hireDate := time.Now().AddDate(-2, 0, 0)

	u := domain.User{
		Base:           f.base(),
		FirstName:      fmt.Sprintf("Test%d", seq),
		LastName:       "User",
		Email:          fmt.Sprintf("user%d@test.leaveflow.dev", seq),
		EmploymentType: "full_time",
		HireDate:       &hireDate,
		Status:         domain.UserStatusActive,
	}

	for _, opt := range opts {
		opt(&u)
	}

	return u
}

// WithUserEmail sets the user email.
func WithUserEmail(email string) func(*domain.User) {
	return func(u *domain.User) { u.Email = email }
}

// WithUserName sets the user's first and last name.
func WithUserName(first, last string) func(*domain.User) {
	return func(u *domain.User) {
		u.FirstName = first
		u.LastName = last
	}
}

// WithUserStatus sets the user status.
func WithUserStatus(status domain.UserStatus) func(*domain.User) {
	return func(u *domain.User) { u.Status = status }
}

// WithUserManager sets the user's manager.
func WithUserManager(managerID string) func(*domain.User) {
	return func(u *domain.User) { u.ManagerID = &managerID }
}

// WithUserOnProbation sets a probation end date in the future.
func WithUserOnProbation(daysRemaining int) func(*domain.User) {
	return func(u *domain.User) {
		end := time.Now().AddDate(0, 0, daysRemaining)
		u.ProbationEndDate = &end
	}
}

// LeaveType creates a leave type fixture with defaults.
func (f *FixtureFactory) LeaveType(opts ...func(*domain.LeaveType)) domain.LeaveType {
	seq := f.nextSeq()

	lt := domain.LeaveType{
		Base:           f.base(),
		Code:           fmt.Sprintf("LT%d", seq),
		Name:           fmt.Sprintf("Leave Type %d", seq),
		Active:         true,
		ReasonRequired: false,
	}

	for _, opt := range opts {
		opt(&lt)
	}

	return lt
}

// WithLeaveTypeCode sets the leave type code.
func WithLeaveTypeCode(code string) func(*domain.LeaveType) {
	return func(lt *domain.LeaveType) { lt.Code = code }
}

// Policy creates a leave policy fixture with defaults: immediate
// eligibility, monthly accrual, effective from a year ago with no end.
func (f *FixtureFactory) Policy(leaveTypeID string, opts ...func(*domain.LeavePolicy)) domain.LeavePolicy {
	seq := f.nextSeq()

	p := domain.LeavePolicy{
		Base:             f.base(),
		LeaveTypeID:      leaveTypeID,
		Name:             fmt.Sprintf("Policy %d", seq),
		Active:           true,
		EffectiveFrom:    time.Now().AddDate(-1, 0, 0),
		EligibilityType:  domain.EligibilityImmediate,
		AccrualFrequency: "monthly",
		AccrualAmount:    decimal.NewFromFloat(1.5),
		AllowNegative:    false,
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// WithPolicyEligibility sets the eligibility type and tenure requirement.
func WithPolicyEligibility(t domain.EligibilityType, tenureDays int) func(*domain.LeavePolicy) {
	return func(p *domain.LeavePolicy) {
		p.EligibilityType = t
		p.EligibilityTenureDays = tenureDays
	}
}

// WithPolicyRules sets the CUSTOM eligibility rule document.
func WithPolicyRules(rulesJSON string) func(*domain.LeavePolicy) {
	return func(p *domain.LeavePolicy) { p.EligibilityRules = []byte(rulesJSON) }
}

// WithPolicyWindow sets the effective window.
func WithPolicyWindow(from time.Time, to *time.Time) func(*domain.LeavePolicy) {
	return func(p *domain.LeavePolicy) {
		p.EffectiveFrom = from
		p.EffectiveTo = to
	}
}

// Balance creates a leave balance fixture with defaults: a clean slate
// balance for the current period, opening 10 days available.
func (f *FixtureFactory) Balance(userID, leaveTypeID string, opts ...func(*domain.LeaveBalance)) domain.LeaveBalance {
	now := time.Now()

	b := domain.LeaveBalance{
		Base:           f.base(),
		UserID:         userID,
		LeaveTypeID:    leaveTypeID,
		PeriodStart:    time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(now.Year(), 12, 31, 23, 59, 59, 0, time.UTC),
		OpeningBalance: decimal.NewFromInt(10),
		Accrued:        decimal.Zero,
		Used:           decimal.Zero,
		Pending:        decimal.Zero,
		Adjusted:       decimal.Zero,
		CarriedForward: decimal.Zero,
		Encashed:       decimal.Zero,
		Expired:        decimal.Zero,
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// WithBalanceOpening sets the opening balance.
func WithBalanceOpening(amount float64) func(*domain.LeaveBalance) {
	return func(b *domain.LeaveBalance) { b.OpeningBalance = decimal.NewFromFloat(amount) }
}

// WithBalanceUsed sets the used component.
func WithBalanceUsed(amount float64) func(*domain.LeaveBalance) {
	return func(b *domain.LeaveBalance) { b.Used = decimal.NewFromFloat(amount) }
}

// WithBalancePending sets the pending component.
func WithBalancePending(amount float64) func(*domain.LeaveBalance) {
	return func(b *domain.LeaveBalance) { b.Pending = decimal.NewFromFloat(amount) }
}

// Request creates a leave request fixture with defaults: a three-day
// window starting tomorrow, in DRAFT status.
func (f *FixtureFactory) Request(userID, leaveTypeID, policyID string, opts ...func(*domain.LeaveRequest)) domain.LeaveRequest {
	seq := f.nextSeq()
	start := time.Now().AddDate(0, 0, 1)
	end := start.AddDate(0, 0, 2)

	r := domain.LeaveRequest{
		Base:          f.base(),
		RequestNumber: fmt.Sprintf("LR-%06d", seq),
		UserID:        userID,
		LeaveTypeID:   leaveTypeID,
		PolicyID:      policyID,
		StartDate:     start,
		EndDate:       end,
		TotalDays:     decimal.NewFromInt(3),
		Status:        domain.RequestDraft,
	}

	for _, opt := range opts {
		opt(&r)
	}

	return r
}

// WithRequestStatus sets the request status.
func WithRequestStatus(status domain.LeaveRequestStatus) func(*domain.LeaveRequest) {
	return func(r *domain.LeaveRequest) { r.Status = status }
}

// WithRequestWindow sets the start/end dates and total days.
func WithRequestWindow(start, end time.Time, totalDays float64) func(*domain.LeaveRequest) {
	return func(r *domain.LeaveRequest) {
		r.StartDate = start
		r.EndDate = end
		r.TotalDays = decimal.NewFromFloat(totalDays)
	}
}

// WithRequestStep sets the current workflow step cursor.
func WithRequestStep(step int) func(*domain.LeaveRequest) {
	return func(r *domain.LeaveRequest) { r.CurrentWorkflowStep = step }
}

// Workflow creates a workflow configuration fixture with defaults.
func (f *FixtureFactory) Workflow(opts ...func(*domain.WorkflowConfiguration)) domain.WorkflowConfiguration {
	seq := f.nextSeq()

	w := domain.WorkflowConfiguration{
		Base:          f.base(),
		Name:          fmt.Sprintf("Workflow %d", seq),
		Active:        true,
		EffectiveFrom: time.Now().AddDate(-1, 0, 0),
		Priority:      0,
	}

	for _, opt := range opts {
		opt(&w)
	}

	return w
}

// WorkflowStep creates a workflow step fixture with defaults.
func (f *FixtureFactory) WorkflowStep(requestID, workflowID, approverID string, stepOrder int, opts ...func(*domain.WorkflowStep)) domain.WorkflowStep {
	s := domain.WorkflowStep{
		Base:           f.base(),
		LeaveRequestID: requestID,
		WorkflowID:     workflowID,
		StepOrder:      stepOrder,
		ApproverID:     approverID,
		Status:         domain.StepPending,
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// WithStepStatus sets the workflow step status.
func WithStepStatus(status domain.WorkflowStepStatus) func(*domain.WorkflowStep) {
	return func(s *domain.WorkflowStep) { s.Status = status }
}
