package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// WorkflowStepRepository persists the concrete approval hops instantiated
// for a single leave request.
type WorkflowStepRepository struct {
	Base[*domain.WorkflowStep]
}

// NewWorkflowStepRepository constructs a workflow step repository.
func NewWorkflowStepRepository(db *database.DB, auditRepo *AuditRepository) *WorkflowStepRepository {
	return &WorkflowStepRepository{Base: NewBase[*domain.WorkflowStep](db, auditRepo, "workflow_steps", "workflow_step")}
}

// ListForRequest returns every step for a request, ordered by step_order.
func (r *WorkflowStepRepository) ListForRequest(ctx context.Context, requestID string) ([]domain.WorkflowStep, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var steps []domain.WorkflowStep
	query := `
		SELECT * FROM workflow_steps
		WHERE leave_request_id = $1 AND organization_id = $2 AND deleted_at IS NULL
		ORDER BY step_order
	`
	if err := r.db.SelectContext(ctx, &steps, query, requestID, orgID); err != nil {
		return nil, r.wrapErr(err)
	}
	return steps, nil
}

// GetByID looks up a single step by its own ID, used by WorkflowEngine.Approve
// and Reject to load the step an approver is actioning. A dedicated method
// rather than the generic Base.Get, which returns **T for a pointer type
// parameter and is awkward to consume directly.
func (r *WorkflowStepRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowStep, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var step domain.WorkflowStep
	query := `
		SELECT * FROM workflow_steps
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	if err := r.db.GetContext(ctx, &step, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &step, nil
}

// GetByRequestAndOrder looks up a single step by its position.
func (r *WorkflowStepRepository) GetByRequestAndOrder(ctx context.Context, requestID string, stepOrder int) (*domain.WorkflowStep, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var step domain.WorkflowStep
	query := `
		SELECT * FROM workflow_steps
		WHERE leave_request_id = $1 AND step_order = $2 AND organization_id = $3 AND deleted_at IS NULL
	`
	if err := r.db.GetContext(ctx, &step, query, requestID, stepOrder, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &step, nil
}

// CreateBatch inserts every instantiated step for a request in one
// transaction scope (WorkflowEngine.instantiate_steps, §4.5).
func (r *WorkflowStepRepository) CreateBatch(ctx context.Context, steps []domain.WorkflowStep, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_steps (id, organization_id, leave_request_id, workflow_id, step_order, approver_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	for i := range steps {
		s := &steps[i]
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		s.OrganizationID = orgID

		if err := r.db.QueryRowxContext(ctx, query,
			s.ID, s.OrganizationID, s.LeaveRequestID, s.WorkflowID, s.StepOrder, s.ApproverID, s.Status,
		).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			return r.wrapErr(err)
		}

		if err := r.recordAudit(ctx, AuditActionRecorder{
			Action:      domain.AuditActionCreate,
			EntityType:  "workflow_step",
			EntityID:    s.ID,
			NewValues:   s,
			Description: description,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Update persists a step's decision outcome and appends an UPDATE audit row.
func (r *WorkflowStepRepository) Update(ctx context.Context, before, after *domain.WorkflowStep, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_steps SET status = $3, actioned_at = $4, action_remarks = $5, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, after.ID, orgID, after.Status, after.ActionedAt, after.ActionRemarks)
	if err != nil {
		return r.wrapErr(err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("workflow_step")
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionUpdate,
		EntityType:  "workflow_step",
		EntityID:    after.ID,
		OldValues:   before,
		NewValues:   after,
		Description: description,
	})
}
