// Package domain holds the entity definitions shared by the leave
// management core: users, policies, balances, requests and their workflow
// steps, and the audit log. Every entity carries the same base columns
// (id, organization scope, soft delete, timestamps) the way the teacher's
// employee/absence/shift rows do.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Base holds the columns every persisted entity in this module carries.
type Base struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// GetID satisfies repository.Identifiable.
func (b *Base) GetID() string { return b.ID }

// SoftDeleted reports whether the row has been soft-deleted.
func (b *Base) SoftDeleted() bool { return b.DeletedAt != nil }

// UserStatus is the lifecycle state of an employee/user record.
type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusInactive    UserStatus = "inactive"
	UserStatusSuspended   UserStatus = "suspended"
	UserStatusTerminated  UserStatus = "terminated"
)

// User is the employee record referenced by leave requests. It is a shared,
// unowned entity — leave requests reference it by ID, they never own it.
type User struct {
	Base
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	Email            string     `db:"email" json:"email"`
	EmploymentType   string     `db:"employment_type" json:"employment_type"`
	HireDate         *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	ProbationEndDate *time.Time `db:"probation_end_date" json:"probation_end_date,omitempty"`
	ManagerID        *string    `db:"manager_id" json:"manager_id,omitempty"`
	Status           UserStatus `db:"status" json:"status"`
	// Metadata carries arbitrary attribute key/values consumed by CUSTOM
	// eligibility rule evaluation (rules.Evaluate).
	Metadata json.RawMessage `db:"metadata" json:"metadata,omitempty"`
}

// IsActive reports whether the user may be a valid actor on new requests (R: invariant on User.Status).
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// FullName returns first + last name for logging/display.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// LeaveType is an organization-scoped category of leave (vacation, sick, ...).
type LeaveType struct {
	Base
	Code            string `db:"code" json:"code"`
	Name            string `db:"name" json:"name"`
	Active          bool   `db:"active" json:"active"`
	ReasonRequired  bool   `db:"reason_required" json:"reason_required"`
}

// EligibilityType is the discriminator for how a policy evaluates eligibility.
type EligibilityType string

const (
	EligibilityImmediate      EligibilityType = "IMMEDIATE"
	EligibilityAfterProbation EligibilityType = "AFTER_PROBATION"
	EligibilityAfterTenure    EligibilityType = "AFTER_TENURE"
	EligibilityCustom         EligibilityType = "CUSTOM"
)

// LeavePolicy configures accrual/eligibility/carry-forward rules for a
// (organization, leave type) pair over an effective window.
type LeavePolicy struct {
	Base
	LeaveTypeID          string          `db:"leave_type_id" json:"leave_type_id"`
	Name                 string          `db:"name" json:"name"`
	Active               bool            `db:"active" json:"active"`
	EffectiveFrom        time.Time       `db:"effective_from" json:"effective_from"`
	EffectiveTo          *time.Time      `db:"effective_to" json:"effective_to,omitempty"`
	EligibilityType      EligibilityType `db:"eligibility_type" json:"eligibility_type"`
	EligibilityTenureDays int            `db:"eligibility_tenure_days" json:"eligibility_tenure_days"`
	// EligibilityRules is the opaque CUSTOM rule document, see rules.Evaluate.
	EligibilityRules json.RawMessage  `db:"eligibility_rules" json:"eligibility_rules,omitempty"`
	AccrualFrequency string           `db:"accrual_frequency" json:"accrual_frequency"` // monthly, yearly, ...
	AccrualAmount    decimal.Decimal  `db:"accrual_amount" json:"accrual_amount"`
	AllowNegative    bool             `db:"allow_negative" json:"allow_negative"`
}

// CoversInstant reports whether the policy's effective window covers `at`.
func (p *LeavePolicy) CoversInstant(at time.Time) bool {
	if at.Before(p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && at.After(*p.EffectiveTo) {
		return false
	}
	return true
}

// LeaveBalance is the per (user, leave type, period) accounting record.
// All eight components are decimal.Decimal to keep balance conservation
// (P1) exact across many accrual/consume cycles.
type LeaveBalance struct {
	Base
	UserID           string          `db:"user_id" json:"user_id"`
	LeaveTypeID      string          `db:"leave_type_id" json:"leave_type_id"`
	PeriodStart      time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd        time.Time       `db:"period_end" json:"period_end"`
	OpeningBalance   decimal.Decimal `db:"opening_balance" json:"opening_balance"`
	Accrued          decimal.Decimal `db:"accrued" json:"accrued"`
	Used             decimal.Decimal `db:"used" json:"used"`
	Pending          decimal.Decimal `db:"pending" json:"pending"`
	Adjusted         decimal.Decimal `db:"adjusted" json:"adjusted"`
	CarriedForward   decimal.Decimal `db:"carried_forward" json:"carried_forward"`
	Encashed         decimal.Decimal `db:"encashed" json:"encashed"`
	Expired          decimal.Decimal `db:"expired" json:"expired"`
}

// Available computes the derived available balance (§3 LeaveBalance).
func (b *LeaveBalance) Available() decimal.Decimal {
	return b.OpeningBalance.
		Add(b.Accrued).
		Add(b.CarriedForward).
		Add(b.Adjusted).
		Sub(b.Used).
		Sub(b.Pending).
		Sub(b.Encashed).
		Sub(b.Expired)
}

// LeaveRequestStatus is the lifecycle state of a leave request (§3 R3-R5).
type LeaveRequestStatus string

const (
	RequestDraft            LeaveRequestStatus = "DRAFT"
	RequestPendingApproval   LeaveRequestStatus = "PENDING_APPROVAL"
	RequestApproved          LeaveRequestStatus = "APPROVED"
	RequestRejected          LeaveRequestStatus = "REJECTED"
	RequestCancelled         LeaveRequestStatus = "CANCELLED"
	RequestWithdrawn         LeaveRequestStatus = "WITHDRAWN"
)

// IsTerminal reports whether the status is a sink state.
func (s LeaveRequestStatus) IsTerminal() bool {
	switch s {
	case RequestApproved, RequestRejected, RequestCancelled, RequestWithdrawn:
		return true
	default:
		return false
	}
}

// LeaveRequest is the central unit of work for the whole engine trio.
type LeaveRequest struct {
	Base
	RequestNumber       string             `db:"request_number" json:"request_number"`
	UserID              string             `db:"user_id" json:"user_id"`
	LeaveTypeID         string             `db:"leave_type_id" json:"leave_type_id"`
	PolicyID            string             `db:"policy_id" json:"policy_id"`
	StartDate           time.Time          `db:"start_date" json:"start_date"`
	EndDate             time.Time          `db:"end_date" json:"end_date"`
	TotalDays           decimal.Decimal    `db:"total_days" json:"total_days"`
	Reason              *string            `db:"reason" json:"reason,omitempty"`
	Status              LeaveRequestStatus `db:"status" json:"status"`
	CurrentWorkflowStep int                `db:"current_workflow_step" json:"current_workflow_step"`
	SubmittedAt         *time.Time         `db:"submitted_at" json:"submitted_at,omitempty"`
	DecidedAt           *time.Time         `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy           *string            `db:"decided_by" json:"decided_by,omitempty"`
	DecisionRemarks     *string            `db:"decision_remarks" json:"decision_remarks,omitempty"`
	CancelledAt         *time.Time         `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy         *string            `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason  *string            `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
}

// OverlapsWindow reports whether [start,end] (inclusive both ends) overlaps
// this request's window — the closed-interval predicate the overlap
// repository query implements in SQL (see repository.LeaveRequestRepository.
// FindOverlapping), kept here too so engine-side unit tests can assert the
// same semantics without a database.
func (r *LeaveRequest) OverlapsWindow(start, end time.Time) bool {
	return !r.EndDate.Before(start) && !r.StartDate.After(end)
}

// LeaveRequestDate is one calendar day within a request's window.
type LeaveRequestDate struct {
	Base
	LeaveRequestID string          `db:"leave_request_id" json:"leave_request_id"`
	Date           time.Time       `db:"date" json:"date"`
	DayValue       decimal.Decimal `db:"day_value" json:"day_value"` // half-day support left to a future calendar collaborator
	IsWeekend      bool            `db:"is_weekend" json:"is_weekend"`
	IsHoliday      bool            `db:"is_holiday" json:"is_holiday"`
}

// WorkflowConfiguration is an org-scoped approval workflow definition.
type WorkflowConfiguration struct {
	Base
	Name              string          `db:"name" json:"name"`
	Active            bool            `db:"active" json:"active"`
	EffectiveFrom     time.Time       `db:"effective_from" json:"effective_from"`
	EffectiveTo       *time.Time      `db:"effective_to" json:"effective_to,omitempty"`
	Priority          int             `db:"priority" json:"priority"`
	MatchingCriteria  json.RawMessage `db:"matching_criteria" json:"matching_criteria,omitempty"`
}

// CoversInstant mirrors LeavePolicy.CoversInstant for workflow resolution.
func (w *WorkflowConfiguration) CoversInstant(at time.Time) bool {
	if at.Before(w.EffectiveFrom) {
		return false
	}
	if w.EffectiveTo != nil && at.After(*w.EffectiveTo) {
		return false
	}
	return true
}

// WorkflowStepStatus is the lifecycle state of a single approval step.
type WorkflowStepStatus string

const (
	StepPending   WorkflowStepStatus = "PENDING"
	StepApproved  WorkflowStepStatus = "APPROVED"
	StepRejected  WorkflowStepStatus = "REJECTED"
	StepSkipped   WorkflowStepStatus = "SKIPPED"
	StepEscalated WorkflowStepStatus = "ESCALATED"
	StepDelegated WorkflowStepStatus = "DELEGATED"
)

// WorkflowStep is a concrete instantiation of one approval hop on a request.
type WorkflowStep struct {
	Base
	LeaveRequestID string              `db:"leave_request_id" json:"leave_request_id"`
	WorkflowID     string              `db:"workflow_id" json:"workflow_id"`
	StepOrder      int                 `db:"step_order" json:"step_order"`
	ApproverID     string              `db:"approver_id" json:"approver_id"`
	Status         WorkflowStepStatus  `db:"status" json:"status"`
	ActionedAt     *time.Time          `db:"actioned_at" json:"actioned_at,omitempty"`
	ActionRemarks  *string             `db:"action_remarks" json:"action_remarks,omitempty"`
}

// Comment is a free-form note attached to a leave request (§4.7 add_comment).
type Comment struct {
	Base
	LeaveRequestID string `db:"leave_request_id" json:"leave_request_id"`
	UserID         string `db:"user_id" json:"user_id"`
	Text           string `db:"text" json:"text"`
	IsInternal     bool   `db:"is_internal" json:"is_internal"`
}

// AuditAction enumerates the append-only audit event kinds.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionSoftDelete AuditAction = "SOFT_DELETE"
)

// AuditLog is the immutable audit trail row (§3 AuditLog, §4.2).
type AuditLog struct {
	ID            string          `db:"id" json:"id"`
	Timestamp     time.Time       `db:"timestamp" json:"timestamp"`
	ActorID       *string         `db:"actor_id" json:"actor_id,omitempty"`
	ActorType     string          `db:"actor_type" json:"actor_type"`
	Action        AuditAction     `db:"action" json:"action"`
	EntityType    string          `db:"entity_type" json:"entity_type"`
	EntityID      string          `db:"entity_id" json:"entity_id"`
	OldValues     json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues     json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	Changes       json.RawMessage `db:"changes" json:"changes,omitempty"`
	Description   *string         `db:"description" json:"description,omitempty"`
	RequestID     *string         `db:"request_id" json:"request_id,omitempty"`
	SessionID     *string         `db:"session_id" json:"session_id,omitempty"`
	OrganizationID string         `db:"organization_id" json:"organization_id"`
}
