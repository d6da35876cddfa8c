package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/internal/leave/events"
	"github.com/leaveflow/lms-core/internal/leave/uow"
	"github.com/leaveflow/lms-core/pkg/config"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/logger"
)

// LeaveEngine is the single entry point the handler layer calls: it
// orchestrates PolicyEngine, WorkflowEngine and BalanceEngine across the
// request lifecycle (create -> submit -> approve/reject/withdraw),
// committing every transition through one UnitOfWork scope. Grounded on the
// teacher's AbsenceService, which plays the same "one service, several
// collaborators, one transaction per call" role for shift absences.
type LeaveEngine struct {
	policy   *PolicyEngine
	balance  *BalanceEngine
	workflow *WorkflowEngine
	events   *events.LeaveEventPublisher
	cfg      config.LeaveConfig
	logger   *logger.Logger

	// managerBreaker guards the manager-record lookup Submit performs
	// before instantiating approval steps. In a deployment where user
	// records are synced from an external HRIS, this lookup can cross a
	// service boundary and stall; tripping the breaker after a run of
	// failures keeps a struggling HRIS sync from holding the UnitOfWork's
	// transaction (and its locked request/balance rows) open while every
	// submit call queues up behind it.
	managerBreaker *gobreaker.CircuitBreaker
}

// NewLeaveEngine constructs a LeaveEngine from its three collaborating
// engines.
func NewLeaveEngine(policy *PolicyEngine, balance *BalanceEngine, workflow *WorkflowEngine, publisher *events.LeaveEventPublisher, cfg config.LeaveConfig, log *logger.Logger) *LeaveEngine {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "manager-lookup",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return &LeaveEngine{policy: policy, balance: balance, workflow: workflow, events: publisher, cfg: cfg, logger: log, managerBreaker: breaker}
}

// CreateLeaveRequest validates eligibility and builds a DRAFT request with
// its per-day breakdown (§4.6 create_leave_request). The request is not yet
// submitted — no balance is reserved and no workflow is instantiated until
// Submit runs.
func (e *LeaveEngine) CreateLeaveRequest(u *uow.UnitOfWork, userID, leaveTypeID string, startDate, endDate time.Time, reason *string) (*domain.LeaveRequest, error) {
	ctx := u.Context()

	if endDate.Before(startDate) {
		return nil, errors.BadRequest("end_date must not be before start_date")
	}

	user, err := u.Users.GetRequiredByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, errors.BadRequest("user is not active")
	}

	leaveType, err := u.LeaveTypes.GetRequiredByID(ctx, leaveTypeID)
	if err != nil {
		return nil, err
	}
	if !leaveType.Active {
		return nil, errors.BadRequest("leave type is not active")
	}
	if leaveType.ReasonRequired && (reason == nil || *reason == "") {
		return nil, errors.BadRequest("a reason is required for this leave type")
	}

	policy, _, err := e.policy.ResolvePolicyForUser(u, leaveTypeID, startDate)
	if err != nil {
		return nil, err
	}
	if err := e.policy.AssertEligible(user, policy, startDate); err != nil {
		return nil, err
	}

	overlapping, err := u.Requests.FindOverlapping(ctx, userID, startDate, endDate, "")
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		ids := make([]string, len(overlapping))
		for i, r := range overlapping {
			ids[i] = r.ID
		}
		return nil, errors.LeaveOverlap(ids)
	}

	dates, totalDays := buildRequestDates(startDate, endDate)
	if totalDays.IsZero() {
		return nil, errors.BadRequest("requested window contains no working days")
	}

	seq, err := u.Requests.NextRequestNumber(ctx)
	if err != nil {
		return nil, err
	}

	req := &domain.LeaveRequest{
		Base:                domain.Base{ID: uuid.New().String()},
		RequestNumber:       formatRequestNumber(e.cfg, seq),
		UserID:              userID,
		LeaveTypeID:         leaveTypeID,
		PolicyID:            policy.ID,
		StartDate:           startDate,
		EndDate:             endDate,
		TotalDays:           totalDays,
		Reason:              reason,
		Status:              domain.RequestDraft,
		CurrentWorkflowStep: 0,
	}
	if err := u.Requests.Create(ctx, req, "leave request created"); err != nil {
		return nil, err
	}

	for i := range dates {
		dates[i].LeaveRequestID = req.ID
	}
	if err := u.RequestDates.CreateBatch(ctx, dates); err != nil {
		return nil, err
	}

	return req, nil
}

// Submit transitions a DRAFT request to PENDING_APPROVAL: it reserves the
// balance, resolves and instantiates the approval workflow, and advances
// the request's workflow cursor to its first step (§4.6 submit). Only the
// request's owner may submit it.
func (e *LeaveEngine) Submit(u *uow.UnitOfWork, requestID, actorUserID string) (*domain.LeaveRequest, error) {
	ctx := u.Context()

	req, err := u.Requests.GetForUpdate(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NotFound("leave_request")
	}
	if req.UserID != actorUserID {
		return nil, errors.ApprovalException("only the request's owner may submit it")
	}
	if req.Status != domain.RequestDraft {
		return nil, errors.WorkflowStateException(string(req.Status), "submit")
	}

	user, err := u.Users.GetRequiredByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	leaveType, err := u.LeaveTypes.GetRequiredByID(ctx, req.LeaveTypeID)
	if err != nil {
		return nil, err
	}

	if err := e.balance.OnSubmit(u, req, leaveType.Code, req.StartDate); err != nil {
		return nil, err
	}

	workflow, _, err := e.workflow.ResolveWorkflow(u, req, time.Now())
	if err != nil {
		return nil, err
	}

	// Single-manager approver chain: this deployment resolves approvers from
	// user.manager_id alone. WorkflowEngine.InstantiateSteps itself accepts
	// an arbitrary ordered approver list, so a multi-level chain can be
	// supplied by a caller that resolves one (e.g. a future org-chart walk)
	// without any change to the engine.
	if user.ManagerID == nil || *user.ManagerID == "" {
		return nil, errors.ApprovalException("user has no manager configured to approve this request")
	}
	manager, err := e.lookupManager(u, *user.ManagerID)
	if err != nil {
		return nil, err
	}
	if !manager.IsActive() {
		return nil, errors.ApprovalException("configured manager is not active")
	}
	steps, err := e.workflow.InstantiateSteps(u, req, workflow, []string{*user.ManagerID})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	before := *req
	req.Status = domain.RequestPendingApproval
	req.CurrentWorkflowStep = 0
	req.SubmittedAt = &now
	if err := u.Requests.Update(ctx, &before, req, "request submitted"); err != nil {
		return nil, err
	}

	e.events.PublishRequestSubmitted(ctx, req)
	if len(steps) > 0 {
		e.events.PublishWorkflowStepActivated(ctx, &steps[0])
	}

	return req, nil
}

// ApproveStep actions the step at stepID as an approval. When it was the
// final step the request becomes APPROVED and its reservation is consumed;
// otherwise the next step becomes active.
func (e *LeaveEngine) ApproveStep(u *uow.UnitOfWork, stepID, actorUserID string, comment *string) (*domain.LeaveRequest, error) {
	activated, completed, err := e.workflow.Approve(u, stepID, actorUserID, comment)
	if err != nil {
		return nil, err
	}

	if completed != nil {
		req := completed.LeaveRequest
		if err := e.balance.OnApprove(u, &req, req.StartDate); err != nil {
			return nil, err
		}
		e.events.PublishRequestApproved(u.Context(), &req)
		return &req, nil
	}

	e.events.PublishWorkflowStepActivated(u.Context(), &activated.Step)
	return u.Requests.GetByID(u.Context(), activated.Step.LeaveRequestID)
}

// RejectStep actions the step at stepID as a rejection, terminating the
// whole request and releasing its balance reservation.
func (e *LeaveEngine) RejectStep(u *uow.UnitOfWork, stepID, actorUserID string, comment *string) (*domain.LeaveRequest, error) {
	completed, err := e.workflow.Reject(u, stepID, actorUserID, comment)
	if err != nil {
		return nil, err
	}

	req := completed.LeaveRequest
	if err := e.balance.OnReject(u, &req, req.StartDate); err != nil {
		return nil, err
	}
	e.events.PublishRequestRejected(u.Context(), &req)
	return &req, nil
}

// WithdrawRequest lets the request's owner withdraw it while still pending,
// releasing its balance reservation.
func (e *LeaveEngine) WithdrawRequest(u *uow.UnitOfWork, requestID, actorUserID string, reason *string) (*domain.LeaveRequest, error) {
	completed, err := e.workflow.Withdraw(u, requestID, actorUserID, reason)
	if err != nil {
		return nil, err
	}

	req := completed.LeaveRequest
	if err := e.balance.OnWithdraw(u, &req, req.StartDate); err != nil {
		return nil, err
	}
	e.events.PublishRequestWithdrawn(u.Context(), &req)
	return &req, nil
}

// AddComment appends a free-form note to a request (§4.7 add_comment).
func (e *LeaveEngine) AddComment(u *uow.UnitOfWork, requestID, actorUserID, text string, isInternal bool) (*domain.Comment, error) {
	ctx := u.Context()

	req, err := u.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NotFound("leave_request")
	}

	c := &domain.Comment{
		Base:           domain.Base{ID: uuid.New().String()},
		LeaveRequestID: requestID,
		UserID:         actorUserID,
		Text:           text,
		IsInternal:     isInternal,
	}
	if err := u.Comments.Create(ctx, c, "comment added to request "+req.RequestNumber); err != nil {
		return nil, err
	}

	e.events.PublishCommentAdded(ctx, c)
	return c, nil
}

// GetLeaveRequest is a read-only lookup by ID.
func (e *LeaveEngine) GetLeaveRequest(u *uow.UnitOfWork, requestID string) (*domain.LeaveRequest, error) {
	req, err := u.Requests.GetByID(u.Context(), requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NotFound("leave_request")
	}
	return req, nil
}

// ListLeaveRequests paginates a user's requests, optionally filtered by
// status (§4.6 list_leave_requests).
func (e *LeaveEngine) ListLeaveRequests(u *uow.UnitOfWork, userID string, status *domain.LeaveRequestStatus, limit, offset int) ([]domain.LeaveRequest, error) {
	return u.Requests.ListByUser(u.Context(), userID, status, limit, offset)
}

// CountLeaveRequests mirrors ListLeaveRequests' filters for pagination.
func (e *LeaveEngine) CountLeaveRequests(u *uow.UnitOfWork, userID string, status *domain.LeaveRequestStatus) (int64, error) {
	return u.Requests.CountByUser(u.Context(), userID, status)
}

// GetLeaveBalance is a non-throwing lookup of the current-period balance.
func (e *LeaveEngine) GetLeaveBalance(u *uow.UnitOfWork, userID, leaveTypeID string, onDate time.Time) (*domain.LeaveBalance, error) {
	return e.policy.GetBalance(u, userID, leaveTypeID, onDate)
}

// lookupManager fetches the manager's user record through managerBreaker,
// translating both an open breaker and a genuine lookup failure into an
// ApprovalException — Submit has nothing else useful to do with either.
func (e *LeaveEngine) lookupManager(u *uow.UnitOfWork, managerID string) (*domain.User, error) {
	result, err := e.managerBreaker.Execute(func() (interface{}, error) {
		return u.Users.GetRequiredByID(u.Context(), managerID)
	})
	if err != nil {
		return nil, errors.ApprovalException("manager lookup failed: " + err.Error())
	}
	return result.(*domain.User), nil
}

// formatRequestNumber renders a sequence value as e.g. "LR-000001".
func formatRequestNumber(cfg config.LeaveConfig, seq int64) string {
	return fmt.Sprintf("%s-%0*d", cfg.RequestNumberPrefix, cfg.RequestNumberWidth, seq)
}

// buildRequestDates expands [start, end] into one LeaveRequestDate per
// calendar day, every day (including weekends) valued at 1.0 — weekend/
// holiday valuation is delegated to an external calendar collaborator and
// out of scope for the core (§4.6); IsWeekend is still tagged for that
// collaborator to act on later, and IsHoliday is always false absent one.
// totalDays is the sum of DayValue across the window.
func buildRequestDates(start, end time.Time) ([]domain.LeaveRequestDate, decimal.Decimal) {
	var dates []domain.LeaveRequestDate
	total := decimal.Zero

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		weekend := d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
		dayValue := decimal.NewFromInt(1)
		dates = append(dates, domain.LeaveRequestDate{
			Base:      domain.Base{ID: uuid.New().String()},
			Date:      d,
			DayValue:  dayValue,
			IsWeekend: weekend,
		})
		total = total.Add(dayValue)
	}

	return dates, total
}
