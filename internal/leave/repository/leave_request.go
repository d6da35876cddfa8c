package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// LeaveRequestRepository persists the central request aggregate. GetForUpdate
// is always acquired before LeaveBalanceRepository.GetForUpdate within a
// UnitOfWork scope — the fixed lock order (request, then balance) that
// prevents the deadlock a reversed order could produce under concurrent
// submit/approve traffic, grounded on the same ordering discipline the
// teacher's batch.go applies per adjustment.
type LeaveRequestRepository struct {
	Base[*domain.LeaveRequest]
}

// NewLeaveRequestRepository constructs a leave request repository.
func NewLeaveRequestRepository(db *database.DB, auditRepo *AuditRepository) *LeaveRequestRepository {
	return &LeaveRequestRepository{Base: NewBase[*domain.LeaveRequest](db, auditRepo, "leave_requests", "leave_request")}
}

// GetByID returns a request row by ID without locking it, for read-only
// display (LeaveEngine.get_leave_request). Use GetForUpdate instead when the
// caller is about to mutate the row.
func (r *LeaveRequestRepository) GetByID(ctx context.Context, id string) (*domain.LeaveRequest, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var req domain.LeaveRequest
	query := `SELECT * FROM leave_requests WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &req, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &req, nil
}

// GetForUpdate locks and returns a request row by ID.
func (r *LeaveRequestRepository) GetForUpdate(ctx context.Context, id string) (*domain.LeaveRequest, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var req domain.LeaveRequest
	query := `SELECT * FROM leave_requests WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL FOR UPDATE`
	if err := r.db.GetContext(ctx, &req, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &req, nil
}

// FindOverlapping returns non-terminal requests for userID whose window
// overlaps [start, end] (inclusive both ends), used by LeaveEngine to
// enforce the no-double-booking invariant when a request is created.
func (r *LeaveRequestRepository) FindOverlapping(ctx context.Context, userID string, start, end time.Time, excludeRequestID string) ([]domain.LeaveRequest, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var requests []domain.LeaveRequest
	query := `
		SELECT * FROM leave_requests
		WHERE user_id = $1 AND organization_id = $2 AND deleted_at IS NULL
		  AND status NOT IN ('REJECTED', 'CANCELLED', 'WITHDRAWN')
		  AND start_date <= $4 AND end_date >= $3
		  AND id != $5
		ORDER BY start_date
	`
	if err := r.db.SelectContext(ctx, &requests, query, userID, orgID, start, end, excludeRequestID); err != nil {
		return nil, r.wrapErr(err)
	}
	return requests, nil
}

// ListByUser returns requests for one user, optionally filtered by status,
// newest first, capped at MaxQueryLimit (§4.6 list_leave_requests).
func (r *LeaveRequestRepository) ListByUser(ctx context.Context, userID string, status *domain.LeaveRequestStatus, limit, offset int) ([]domain.LeaveRequest, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	var requests []domain.LeaveRequest
	query := `SELECT * FROM leave_requests WHERE organization_id = $1 AND deleted_at IS NULL`
	args := []interface{}{orgID}

	if userID != "" {
		args = append(args, userID)
		query += " AND user_id = $" + strconv.Itoa(len(args))
	}
	if status != nil {
		args = append(args, *status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}

	args = append(args, limit, offset)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, r.wrapErr(err)
	}
	return requests, nil
}

// CountByUser mirrors ListByUser's filters for pagination metadata.
func (r *LeaveRequestRepository) CountByUser(ctx context.Context, userID string, status *domain.LeaveRequestStatus) (int64, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM leave_requests WHERE organization_id = $1 AND deleted_at IS NULL`
	args := []interface{}{orgID}

	if userID != "" {
		args = append(args, userID)
		query += " AND user_id = $" + strconv.Itoa(len(args))
	}
	if status != nil {
		args = append(args, *status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, r.wrapErr(err)
	}
	return total, nil
}

// Create inserts a new request and appends a CREATE audit row.
func (r *LeaveRequestRepository) Create(ctx context.Context, req *domain.LeaveRequest, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.OrganizationID = orgID

	query := `
		INSERT INTO leave_requests (
			id, organization_id, request_number, user_id, leave_type_id, policy_id,
			start_date, end_date, total_days, reason, status, current_workflow_step
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.OrganizationID, req.RequestNumber, req.UserID, req.LeaveTypeID, req.PolicyID,
		req.StartDate, req.EndDate, req.TotalDays, req.Reason, req.Status, req.CurrentWorkflowStep,
	).Scan(&req.CreatedAt, &req.UpdatedAt); err != nil {
		return r.wrapErr(err)
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionCreate,
		EntityType:  "leave_request",
		EntityID:    req.ID,
		NewValues:   req,
		Description: description,
	})
}

// Update persists the full mutable surface of a request (status, workflow
// cursor, decision/cancellation metadata) and appends an UPDATE audit row.
func (r *LeaveRequestRepository) Update(ctx context.Context, before, after *domain.LeaveRequest, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE leave_requests SET
			status = $3, current_workflow_step = $4,
			submitted_at = $5, decided_at = $6, decided_by = $7, decision_remarks = $8,
			cancelled_at = $9, cancelled_by = $10, cancellation_reason = $11, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		after.ID, orgID, after.Status, after.CurrentWorkflowStep,
		after.SubmittedAt, after.DecidedAt, after.DecidedBy, after.DecisionRemarks,
		after.CancelledAt, after.CancelledBy, after.CancellationReason,
	)
	if err != nil {
		return r.wrapErr(err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("leave_request")
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionUpdate,
		EntityType:  "leave_request",
		EntityID:    after.ID,
		OldValues:   before,
		NewValues:   after,
		Description: description,
	})
}

// NextRequestNumber reserves the next sequence value for human-facing
// request numbers (e.g. LR-000123), using one dedicated Postgres sequence
// shared by every organization rather than MAX()+1 to stay race-free under concurrent
// submits without needing its own row lock.
func (r *LeaveRequestRepository) NextRequestNumber(ctx context.Context) (int64, error) {
	var next int64
	query := `SELECT nextval('leave_request_number_seq')`
	if err := r.db.GetContext(ctx, &next, query); err != nil {
		return 0, r.wrapErr(err)
	}
	return next, nil
}
