package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types published by the leave decision engine. These are
// fire-and-forget domain notifications, distinct from (and never a
// substitute for) the in-transaction audit log: a consumer missing an
// event sees a stale read model, never a missing compliance record.
const (
	EventLeaveRequestSubmitted = "leave.request.submitted"
	EventLeaveRequestApproved  = "leave.request.approved"
	EventLeaveRequestRejected  = "leave.request.rejected"
	EventLeaveRequestWithdrawn = "leave.request.withdrawn"
	EventLeaveRequestCancelled = "leave.request.cancelled"

	EventWorkflowStepActivated = "leave.workflow.step_activated"
	EventWorkflowEscalated     = "leave.workflow.escalated"

	EventBalanceAdjusted = "leave.balance.adjusted"
	EventBalanceAccrued  = "leave.balance.accrued"

	EventCommentAdded = "leave.comment.added"

	EventAuditLogCreated = "audit.log.created"
)

// Exchange names
const (
	ExchangeLeaveEvents = "leave.events"
	ExchangeAuditEvents = "audit.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// LeaveRequestSubmittedEvent is published when LeaveEngine.submit completes.
type LeaveRequestSubmittedEvent struct {
	RequestID      string    `json:"request_id"`
	RequestNumber  string    `json:"request_number"`
	UserID         string    `json:"user_id"`
	LeaveTypeID    string    `json:"leave_type_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	TotalDays      string    `json:"total_days"`
	OrganizationID string    `json:"organization_id"`
}

// LeaveRequestApprovedEvent is published when the final workflow step approves a request.
type LeaveRequestApprovedEvent struct {
	RequestID      string `json:"request_id"`
	RequestNumber  string `json:"request_number"`
	UserID         string `json:"user_id"`
	DecidedBy      string `json:"decided_by"`
	OrganizationID string `json:"organization_id"`
}

// LeaveRequestRejectedEvent is published when any workflow step rejects a request.
type LeaveRequestRejectedEvent struct {
	RequestID      string `json:"request_id"`
	RequestNumber  string `json:"request_number"`
	UserID         string `json:"user_id"`
	DecidedBy      string `json:"decided_by"`
	Reason         string `json:"reason,omitempty"`
	OrganizationID string `json:"organization_id"`
}

// LeaveRequestWithdrawnEvent is published when a user withdraws a pending request.
type LeaveRequestWithdrawnEvent struct {
	RequestID      string `json:"request_id"`
	RequestNumber  string `json:"request_number"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// LeaveRequestCancelledEvent is published when an already-approved request is cancelled.
type LeaveRequestCancelledEvent struct {
	RequestID      string `json:"request_id"`
	RequestNumber  string `json:"request_number"`
	UserID         string `json:"user_id"`
	Reason         string `json:"reason,omitempty"`
	OrganizationID string `json:"organization_id"`
}

// WorkflowStepActivatedEvent is published when a new step becomes the
// current pending approval, naming the approver who should act next.
type WorkflowStepActivatedEvent struct {
	RequestID      string `json:"request_id"`
	StepID         string `json:"step_id"`
	StepOrder      int    `json:"step_order"`
	ApproverID     string `json:"approver_id"`
	OrganizationID string `json:"organization_id"`
}

// WorkflowEscalatedEvent is published when a step is escalated past its
// assigned approver (e.g. delegated to a fallback approver).
type WorkflowEscalatedEvent struct {
	RequestID     string `json:"request_id"`
	StepID        string `json:"step_id"`
	FromApprover  string `json:"from_approver"`
	ToApprover    string `json:"to_approver,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// BalanceAdjustedEvent is published whenever BalanceEngine mutates a
// balance's Used/Pending/Adjusted components outside of scheduled accrual.
type BalanceAdjustedEvent struct {
	BalanceID      string `json:"balance_id"`
	UserID         string `json:"user_id"`
	LeaveTypeID    string `json:"leave_type_id"`
	Available      string `json:"available"`
	Reason         string `json:"reason"`
	OrganizationID string `json:"organization_id"`
}

// BalanceAccruedEvent is published by the scheduled accrual hook for each
// balance it advances.
type BalanceAccruedEvent struct {
	BalanceID      string `json:"balance_id"`
	UserID         string `json:"user_id"`
	LeaveTypeID    string `json:"leave_type_id"`
	Amount         string `json:"amount"`
	OrganizationID string `json:"organization_id"`
}

// CommentAddedEvent is published when a comment is appended to a request.
type CommentAddedEvent struct {
	RequestID      string `json:"request_id"`
	CommentID      string `json:"comment_id"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// AuditLogCreatedEvent mirrors an audit log append for downstream read
// models that want a live feed rather than polling the audit table.
type AuditLogCreatedEvent struct {
	LogID      string         `json:"log_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Changes    map[string]any `json:"changes,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
