// Package events publishes leave-domain notifications fire-and-forget.
// The engines call it from inside the UnitOfWork scope, before the caller
// commits. Grounded on the teacher's internal/staff/events.StaffEventPublisher:
// one typed Publish* method per domain event, each building the matching
// messaging.*Event payload and logging (never returning) on failure — a
// publish failure never causes the surrounding transaction to roll back.
package events

import (
	"context"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/messaging"
)

// LeaveEventPublisher publishes leave-request/workflow/balance domain
// events to the leave.events exchange.
type LeaveEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewLeaveEventPublisher constructs a publisher bound to the leave events
// exchange.
func NewLeaveEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*LeaveEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeLeaveEvents, "leave-service", log)
	if err != nil {
		return nil, err
	}
	return &LeaveEventPublisher{publisher: publisher, logger: log}, nil
}

// NewNoopPublisher builds a LeaveEventPublisher with no broker wired up —
// every Publish* call becomes a no-op. Used by engine unit tests, which
// exercise the core decision logic without a running RabbitMQ.
func NewNoopPublisher(log *logger.Logger) *LeaveEventPublisher {
	return &LeaveEventPublisher{logger: log}
}

// emit publishes through the broker if one is configured, swallowing
// failures the same way every Publish* caller already does.
func (p *LeaveEventPublisher) emit(ctx context.Context, eventType string, data interface{}) error {
	if p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, eventType, data)
}

// PublishRequestSubmitted publishes a leave request submission.
func (p *LeaveEventPublisher) PublishRequestSubmitted(ctx context.Context, req *domain.LeaveRequest) {
	data := messaging.LeaveRequestSubmittedEvent{
		RequestID:      req.ID,
		RequestNumber:  req.RequestNumber,
		UserID:         req.UserID,
		LeaveTypeID:    req.LeaveTypeID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TotalDays:      req.TotalDays.String(),
		OrganizationID: req.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventLeaveRequestSubmitted, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to publish leave request submitted event")
	}
}

// PublishRequestApproved publishes a terminal approval.
func (p *LeaveEventPublisher) PublishRequestApproved(ctx context.Context, req *domain.LeaveRequest) {
	data := messaging.LeaveRequestApprovedEvent{
		RequestID:      req.ID,
		UserID:         req.UserID,
		DecidedBy:      derefOrEmpty(req.DecidedBy),
		OrganizationID: req.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventLeaveRequestApproved, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to publish leave request approved event")
	}
}

// PublishRequestRejected publishes a rejection at any workflow step.
func (p *LeaveEventPublisher) PublishRequestRejected(ctx context.Context, req *domain.LeaveRequest) {
	data := messaging.LeaveRequestRejectedEvent{
		RequestID:      req.ID,
		UserID:         req.UserID,
		DecidedBy:      derefOrEmpty(req.DecidedBy),
		Reason:         derefOrEmpty(req.DecisionRemarks),
		OrganizationID: req.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventLeaveRequestRejected, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to publish leave request rejected event")
	}
}

// PublishRequestWithdrawn publishes a requester-initiated withdrawal.
func (p *LeaveEventPublisher) PublishRequestWithdrawn(ctx context.Context, req *domain.LeaveRequest) {
	data := messaging.LeaveRequestWithdrawnEvent{
		RequestID:      req.ID,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventLeaveRequestWithdrawn, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to publish leave request withdrawn event")
	}
}

// PublishRequestCancelled publishes an administrative cancellation.
func (p *LeaveEventPublisher) PublishRequestCancelled(ctx context.Context, req *domain.LeaveRequest) {
	data := messaging.LeaveRequestCancelledEvent{
		RequestID:      req.ID,
		UserID:         req.UserID,
		Reason:         derefOrEmpty(req.CancellationReason),
		OrganizationID: req.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventLeaveRequestCancelled, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to publish leave request cancelled event")
	}
}

// PublishWorkflowStepActivated publishes that a new approval step is now
// awaiting the assigned approver.
func (p *LeaveEventPublisher) PublishWorkflowStepActivated(ctx context.Context, step *domain.WorkflowStep) {
	data := messaging.WorkflowStepActivatedEvent{
		RequestID:      step.LeaveRequestID,
		StepID:         step.ID,
		StepOrder:      step.StepOrder,
		ApproverID:     step.ApproverID,
		OrganizationID: step.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventWorkflowStepActivated, data); err != nil {
		p.logger.Error().Err(err).Str("step_id", step.ID).Msg("failed to publish workflow step activated event")
	}
}

// PublishBalanceAdjusted publishes any change to a balance's components.
func (p *LeaveEventPublisher) PublishBalanceAdjusted(ctx context.Context, b *domain.LeaveBalance, reason string) {
	data := messaging.BalanceAdjustedEvent{
		BalanceID:      b.ID,
		UserID:         b.UserID,
		LeaveTypeID:    b.LeaveTypeID,
		Available:      b.Available().String(),
		Reason:         reason,
		OrganizationID: b.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventBalanceAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("balance_id", b.ID).Msg("failed to publish balance adjusted event")
	}
}

// PublishBalanceAccrued publishes a scheduled accrual tick's result.
func (p *LeaveEventPublisher) PublishBalanceAccrued(ctx context.Context, b *domain.LeaveBalance, amount string) {
	data := messaging.BalanceAccruedEvent{
		BalanceID:      b.ID,
		UserID:         b.UserID,
		LeaveTypeID:    b.LeaveTypeID,
		Amount:         amount,
		OrganizationID: b.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventBalanceAccrued, data); err != nil {
		p.logger.Error().Err(err).Str("balance_id", b.ID).Msg("failed to publish balance accrued event")
	}
}

// PublishCommentAdded publishes a new comment on a request.
func (p *LeaveEventPublisher) PublishCommentAdded(ctx context.Context, c *domain.Comment) {
	data := messaging.CommentAddedEvent{
		RequestID:      c.LeaveRequestID,
		CommentID:      c.ID,
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
	}
	if err := p.emit(ctx, messaging.EventCommentAdded, data); err != nil {
		p.logger.Error().Err(err).Str("comment_id", c.ID).Msg("failed to publish comment added event")
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
