package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/internal/leave/rules"
	"github.com/leaveflow/lms-core/internal/leave/uow"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/logger"
)

// StepActivated is returned by WorkflowEngine.Approve when the approved
// step was not the last one: the next step in sequence is now the active
// cursor and the request stays PENDING_APPROVAL.
type StepActivated struct {
	Step    domain.WorkflowStep
	IsFinal bool
}

// WorkflowCompleted is returned by WorkflowEngine.Approve (on the final
// step), Reject, and Withdraw: the request has reached a terminal
// disposition and the caller must hand off to BalanceEngine accordingly.
type WorkflowCompleted struct {
	LeaveRequest domain.LeaveRequest
	FinalStatus  domain.LeaveRequestStatus
}

// WorkflowEngine drives the ordered multi-step approval state machine
// (§4.6): resolving which WorkflowConfiguration applies, instantiating its
// steps, and advancing/terminating a request as steps are approved,
// rejected, or withdrawn. "Active step" is modeled via
// LeaveRequest.CurrentWorkflowStep rather than a dedicated ACTIVE status
// (see DESIGN.md's Open Question decision) — the step at that cursor with
// status PENDING is the one awaiting action (invariant W1).
type WorkflowEngine struct {
	rules  *rules.Evaluator
	logger *logger.Logger
}

// NewWorkflowEngine constructs a WorkflowEngine.
func NewWorkflowEngine(evaluator *rules.Evaluator, log *logger.Logger) *WorkflowEngine {
	return &WorkflowEngine{rules: evaluator, logger: log}
}

// ResolveWorkflow picks the active workflow configuration whose effective
// window covers `at` and whose matching criteria (if any) match req,
// preferring the highest priority (§4.6 resolve_workflow). Fails with
// errors.WorkflowNotFound if none match.
func (e *WorkflowEngine) ResolveWorkflow(u *uow.UnitOfWork, req *domain.LeaveRequest, at time.Time) (*domain.WorkflowConfiguration, string, error) {
	candidates, err := u.Workflows.ListCandidates(u.Context(), at)
	if err != nil {
		return nil, "", err
	}

	attrs := map[string]interface{}{
		"leave_type_id": req.LeaveTypeID,
		"total_days":    req.TotalDays.InexactFloat64(),
	}

	for i := range candidates {
		w := &candidates[i]
		if len(w.MatchingCriteria) == 0 {
			return w, "highest-priority active workflow with no matching criteria", nil
		}
		matched, err := e.rules.Evaluate(w.MatchingCriteria, attrs)
		if err != nil {
			e.logger.Warn().Err(err).Str("workflow_id", w.ID).Msg("failed to evaluate workflow matching criteria, skipping candidate")
			continue
		}
		if matched {
			return w, "highest-priority active workflow whose matching criteria matched the request", nil
		}
	}
	return nil, "", errors.WorkflowNotFound("no workflow configuration matches this request")
}

// InstantiateSteps persists one WorkflowStep per approver, in order
// (§4.6 instantiate_steps). approverIDsInOrder must be non-empty. Every
// step is written PENDING; the caller is responsible for setting
// req.CurrentWorkflowStep = 0 and transitioning req.Status when it
// persists the request (LeaveEngine.Submit does both in the same write).
func (e *WorkflowEngine) InstantiateSteps(u *uow.UnitOfWork, req *domain.LeaveRequest, workflow *domain.WorkflowConfiguration, approverIDsInOrder []string) ([]domain.WorkflowStep, error) {
	if len(approverIDsInOrder) == 0 {
		return nil, errors.WorkflowStateException(string(req.Status), "instantiate_steps")
	}

	steps := make([]domain.WorkflowStep, len(approverIDsInOrder))
	for i, approverID := range approverIDsInOrder {
		steps[i] = domain.WorkflowStep{
			Base:           domain.Base{ID: uuid.New().String()},
			LeaveRequestID: req.ID,
			WorkflowID:     workflow.ID,
			StepOrder:      i,
			ApproverID:     approverID,
			Status:         domain.StepPending,
		}
	}

	if err := u.WorkflowSteps.CreateBatch(u.Context(), steps, "workflow steps instantiated for request "+req.RequestNumber); err != nil {
		return nil, err
	}
	return steps, nil
}

// Approve actions the step at stepID on behalf of actorUserID (§4.6
// approve). Fails WorkflowStateException if stepID is not the step
// currently at req.CurrentWorkflowStep — every other step is PENDING too
// (InstantiateSteps writes all of them that way) but only the cursor step
// may be acted on, so a later approver can't act ahead of an earlier one.
// Exactly one of the return values is non-nil.
func (e *WorkflowEngine) Approve(u *uow.UnitOfWork, stepID, actorUserID string, comment *string) (*StepActivated, *WorkflowCompleted, error) {
	ctx := u.Context()

	step, err := e.loadStepForAction(u, stepID, actorUserID)
	if err != nil {
		return nil, nil, err
	}

	req, err := u.Requests.GetForUpdate(ctx, step.LeaveRequestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, errors.ApprovalException("the workflow step's leave request no longer exists")
	}
	if step.Status != domain.StepPending || req.Status != domain.RequestPendingApproval {
		return nil, nil, errors.WorkflowStateException(string(req.Status), "approve")
	}
	if step.StepOrder != req.CurrentWorkflowStep {
		return nil, nil, errors.WorkflowStateException(string(req.Status), "approve")
	}

	now := time.Now()
	beforeStep := *step
	step.Status = domain.StepApproved
	step.ActionedAt = &now
	step.ActionRemarks = comment
	if err := u.WorkflowSteps.Update(ctx, &beforeStep, step, "workflow step approved"); err != nil {
		return nil, nil, err
	}

	steps, err := u.WorkflowSteps.ListForRequest(ctx, req.ID)
	if err != nil {
		return nil, nil, err
	}
	nextIdx := -1
	for i := range steps {
		if steps[i].StepOrder == step.StepOrder+1 {
			nextIdx = i
			break
		}
	}

	beforeReq := *req
	if nextIdx >= 0 {
		next := steps[nextIdx]
		req.CurrentWorkflowStep = next.StepOrder
		if err := u.Requests.Update(ctx, &beforeReq, req, "workflow advanced to next step"); err != nil {
			return nil, nil, err
		}
		return &StepActivated{Step: next, IsFinal: false}, nil, nil
	}

	req.Status = domain.RequestApproved
	req.DecidedAt = &now
	req.DecidedBy = &actorUserID
	req.DecisionRemarks = comment
	if err := u.Requests.Update(ctx, &beforeReq, req, "request approved"); err != nil {
		return nil, nil, err
	}
	return nil, &WorkflowCompleted{LeaveRequest: *req, FinalStatus: domain.RequestApproved}, nil
}

// Reject actions the step at stepID as a rejection, terminating the whole
// request (§4.6 reject).
func (e *WorkflowEngine) Reject(u *uow.UnitOfWork, stepID, actorUserID string, comment *string) (*WorkflowCompleted, error) {
	ctx := u.Context()

	step, err := e.loadStepForAction(u, stepID, actorUserID)
	if err != nil {
		return nil, err
	}

	req, err := u.Requests.GetForUpdate(ctx, step.LeaveRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.ApprovalException("the workflow step's leave request no longer exists")
	}
	if step.Status != domain.StepPending || req.Status != domain.RequestPendingApproval {
		return nil, errors.WorkflowStateException(string(req.Status), "reject")
	}
	if step.StepOrder != req.CurrentWorkflowStep {
		return nil, errors.WorkflowStateException(string(req.Status), "reject")
	}

	now := time.Now()
	beforeStep := *step
	step.Status = domain.StepRejected
	step.ActionedAt = &now
	step.ActionRemarks = comment
	if err := u.WorkflowSteps.Update(ctx, &beforeStep, step, "workflow step rejected"); err != nil {
		return nil, err
	}

	beforeReq := *req
	req.Status = domain.RequestRejected
	req.DecidedAt = &now
	req.DecidedBy = &actorUserID
	req.DecisionRemarks = comment
	if err := u.Requests.Update(ctx, &beforeReq, req, "request rejected"); err != nil {
		return nil, err
	}
	return &WorkflowCompleted{LeaveRequest: *req, FinalStatus: domain.RequestRejected}, nil
}

// Withdraw lets the request's owner withdraw it while it is still
// PENDING_APPROVAL (§4.6 withdraw), sweeping every PENDING step to
// SKIPPED.
func (e *WorkflowEngine) Withdraw(u *uow.UnitOfWork, leaveRequestID, actorUserID string, reason *string) (*WorkflowCompleted, error) {
	ctx := u.Context()

	req, err := u.Requests.GetForUpdate(ctx, leaveRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NotFound("leave_request")
	}
	if req.UserID != actorUserID {
		return nil, errors.ApprovalException("only the request's owner may withdraw it")
	}
	if req.Status != domain.RequestPendingApproval {
		return nil, errors.WorkflowStateException(string(req.Status), "withdraw")
	}

	now := time.Now()
	beforeReq := *req
	req.Status = domain.RequestWithdrawn
	req.CancelledAt = &now
	req.CancelledBy = &actorUserID
	req.CancellationReason = reason
	if err := u.Requests.Update(ctx, &beforeReq, req, "request withdrawn by owner"); err != nil {
		return nil, err
	}

	steps, err := u.WorkflowSteps.ListForRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for i := range steps {
		if steps[i].Status != domain.StepPending {
			continue
		}
		before := steps[i]
		after := steps[i]
		after.Status = domain.StepSkipped
		if err := u.WorkflowSteps.Update(ctx, &before, &after, "workflow step skipped on withdrawal"); err != nil {
			return nil, err
		}
	}

	return &WorkflowCompleted{LeaveRequest: *req, FinalStatus: domain.RequestWithdrawn}, nil
}

// loadStepForAction fetches a step by ID and checks actor identity,
// shared by Approve and Reject (§4.6: "Fail ApprovalException if
// step.approver_id != actor_user_id").
func (e *WorkflowEngine) loadStepForAction(u *uow.UnitOfWork, stepID, actorUserID string) (*domain.WorkflowStep, error) {
	step, err := u.WorkflowSteps.GetByID(u.Context(), stepID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, errors.ApprovalException("workflow step not found")
	}
	if step.ApproverID != actorUserID {
		return nil, errors.ApprovalException("actor is not the assigned approver for this step")
	}
	return step, nil
}
