// Package errors implements the closed error taxonomy of spec.md §7 as a
// single tagged AppError type, the way the teacher's pkg/errors does for
// its own HTTP-facing error kinds — generalized here with the
// engine-specific kinds (PolicyNotFound, InsufficientBalance, ...) plus
// structured Details a controller can render without reaching into
// engine internals.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound            = errors.New("resource not found")
	ErrBadRequest          = errors.New("bad request")
	ErrConflict            = errors.New("resource conflict")
	ErrInternal            = errors.New("internal server error")
	ErrValidation          = errors.New("validation error")
	ErrDuplicateEntity     = errors.New("duplicate entity")
	ErrPolicyNotFound      = errors.New("no applicable policy")
	ErrEligibility         = errors.New("not eligible")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWorkflowNotFound    = errors.New("no applicable workflow")
	ErrWorkflowState       = errors.New("illegal workflow state transition")
	ErrApproval            = errors.New("approval not permitted")
	ErrLeaveOverlap        = errors.New("leave request overlaps an existing request")
)

// AppError represents an application error with context.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func DuplicateEntity(message string) *AppError {
	return &AppError{
		Err:        ErrDuplicateEntity,
		Code:       "DUPLICATE_ENTITY",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// --- §7 engine-level taxonomy ---

// PolicyNotFound: PolicyEngine.resolve_policy_for_user found no policy
// covering the leave type at the requested instant.
func PolicyNotFound(leaveTypeID string) *AppError {
	return &AppError{
		Err:        ErrPolicyNotFound,
		Code:       "POLICY_NOT_FOUND",
		Message:    "no active policy covers this leave type at the requested time",
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"leave_type_id": leaveTypeID},
	}
}

// EligibilityException: PolicyEngine.assert_eligible rejected the user,
// carrying the evaluated criteria for diagnostics.
func EligibilityException(reason string, criteria map[string]string) *AppError {
	return &AppError{
		Err:        ErrEligibility,
		Code:       "ELIGIBILITY_EXCEPTION",
		Message:    reason,
		StatusCode: http.StatusBadRequest,
		Details:    criteria,
	}
}

// InsufficientBalance: BalanceEngine.on_submit found available < requested.
func InsufficientBalance(available, requested, leaveTypeCode string) *AppError {
	return &AppError{
		Err:     ErrInsufficientBalance,
		Code:    "INSUFFICIENT_BALANCE",
		Message: "available balance is less than the requested days",
		Details: map[string]string{
			"available":  available,
			"requested":  requested,
			"leave_type": leaveTypeCode,
		},
		StatusCode: http.StatusBadRequest,
	}
}

// WorkflowNotFound: WorkflowEngine.resolve_workflow found no matching
// workflow configuration to instantiate steps from.
func WorkflowNotFound(reason string) *AppError {
	return &AppError{
		Err:        ErrWorkflowNotFound,
		Code:       "WORKFLOW_NOT_FOUND",
		Message:    reason,
		StatusCode: http.StatusBadRequest,
	}
}

// WorkflowStateException: an operation was attempted against a request or
// step not currently in a state that permits it.
func WorkflowStateException(currentState, attemptedAction string) *AppError {
	return &AppError{
		Err:     ErrWorkflowState,
		Code:    "WORKFLOW_STATE_EXCEPTION",
		Message: fmt.Sprintf("cannot %s while in state %s", attemptedAction, currentState),
		Details: map[string]string{
			"current_state":    currentState,
			"attempted_action": attemptedAction,
		},
		StatusCode: http.StatusConflict,
	}
}

// ApprovalException: the acting user is not the assigned approver for the
// current workflow step, or no pending step exists for them to act on.
func ApprovalException(message string) *AppError {
	return &AppError{
		Err:        ErrApproval,
		Code:       "APPROVAL_EXCEPTION",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// LeaveOverlap: the requested window overlaps one or more non-terminal
// requests already held by the same user.
func LeaveOverlap(overlappingRequestIDs []string) *AppError {
	details := map[string]string{}
	for i, id := range overlappingRequestIDs {
		details[fmt.Sprintf("overlap_%d", i)] = id
	}
	return &AppError{
		Err:        ErrLeaveOverlap,
		Code:       "LEAVE_OVERLAP",
		Message:    "requested window overlaps an existing request",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Is checks if the error matches a target error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type.
func As(err error, target any) bool {
	return errors.As(err, target)
}
