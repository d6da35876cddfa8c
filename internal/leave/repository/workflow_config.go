package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// WorkflowConfigRepository persists approval workflow definitions.
type WorkflowConfigRepository struct {
	Base[*domain.WorkflowConfiguration]
}

// NewWorkflowConfigRepository constructs a workflow configuration repository.
func NewWorkflowConfigRepository(db *database.DB, auditRepo *AuditRepository) *WorkflowConfigRepository {
	return &WorkflowConfigRepository{Base: NewBase[*domain.WorkflowConfiguration](db, auditRepo, "workflow_configurations", "workflow_configuration")}
}

// ListCandidates returns every active configuration whose effective window
// covers `at`, ordered by priority descending — WorkflowEngine.resolve_workflow
// (§4.5) picks the first whose matching_criteria also matches the request.
func (r *WorkflowConfigRepository) ListCandidates(ctx context.Context, at time.Time) ([]domain.WorkflowConfiguration, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var configs []domain.WorkflowConfiguration
	query := `
		SELECT * FROM workflow_configurations
		WHERE organization_id = $1 AND active = true AND deleted_at IS NULL
		  AND effective_from <= $2 AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY priority DESC, effective_from DESC
	`
	if err := r.db.SelectContext(ctx, &configs, query, orgID, at); err != nil {
		return nil, r.wrapErr(err)
	}
	return configs, nil
}

// Create inserts a new workflow configuration and appends a CREATE audit row.
func (r *WorkflowConfigRepository) Create(ctx context.Context, w *domain.WorkflowConfiguration, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	w.OrganizationID = orgID

	query := `
		INSERT INTO workflow_configurations (
			id, organization_id, name, active, effective_from, effective_to, priority, matching_criteria
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		w.ID, w.OrganizationID, w.Name, w.Active, w.EffectiveFrom, w.EffectiveTo, w.Priority, w.MatchingCriteria,
	).Scan(&w.CreatedAt, &w.UpdatedAt); err != nil {
		return r.wrapErr(err)
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionCreate,
		EntityType:  "workflow_configuration",
		EntityID:    w.ID,
		NewValues:   w,
		Description: description,
	})
}
