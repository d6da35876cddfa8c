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

// LeaveTypeRepository persists organization-scoped leave type catalogs.
type LeaveTypeRepository struct {
	Base[*domain.LeaveType]
}

// NewLeaveTypeRepository constructs a leave type repository.
func NewLeaveTypeRepository(db *database.DB, auditRepo *AuditRepository) *LeaveTypeRepository {
	return &LeaveTypeRepository{Base: NewBase[*domain.LeaveType](db, auditRepo, "leave_types", "leave_type")}
}

// GetByID looks up a leave type by ID, returning (nil, nil) on miss.
func (r *LeaveTypeRepository) GetByID(ctx context.Context, id string) (*domain.LeaveType, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var lt domain.LeaveType
	query := `SELECT * FROM leave_types WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &lt, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &lt, nil
}

// GetRequiredByID is GetByID but fails with errors.NotFound on miss.
func (r *LeaveTypeRepository) GetRequiredByID(ctx context.Context, id string) (*domain.LeaveType, error) {
	lt, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, errors.NotFound("leave_type")
	}
	return lt, nil
}

// GetByCode looks up a leave type by its organization-unique code.
func (r *LeaveTypeRepository) GetByCode(ctx context.Context, code string) (*domain.LeaveType, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var lt domain.LeaveType
	query := `SELECT * FROM leave_types WHERE code = $1 AND organization_id = $2 AND deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &lt, query, code, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &lt, nil
}

// Create inserts a new leave type and appends a CREATE audit row.
func (r *LeaveTypeRepository) Create(ctx context.Context, lt *domain.LeaveType, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}
	if lt.ID == "" {
		lt.ID = uuid.New().String()
	}
	lt.OrganizationID = orgID

	query := `
		INSERT INTO leave_types (id, organization_id, code, name, active, reason_required)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		lt.ID, lt.OrganizationID, lt.Code, lt.Name, lt.Active, lt.ReasonRequired,
	).Scan(&lt.CreatedAt, &lt.UpdatedAt); err != nil {
		return r.wrapErr(err)
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionCreate,
		EntityType:  "leave_type",
		EntityID:    lt.ID,
		NewValues:   lt,
		Description: description,
	})
}

// Update persists changed fields on an existing leave type and appends an
// UPDATE audit row diffing before against after.
func (r *LeaveTypeRepository) Update(ctx context.Context, before, after *domain.LeaveType, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE leave_types SET name = $3, active = $4, reason_required = $5, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, after.ID, orgID, after.Name, after.Active, after.ReasonRequired)
	if err != nil {
		return r.wrapErr(err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("leave_type")
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionUpdate,
		EntityType:  "leave_type",
		EntityID:    after.ID,
		OldValues:   before,
		NewValues:   after,
		Description: description,
	})
}

// SoftDelete marks a leave type deleted and appends a SOFT_DELETE audit row.
func (r *LeaveTypeRepository) SoftDelete(ctx context.Context, lt *domain.LeaveType, description string) error {
	if err := r.softDeleteByID(ctx, lt.ID); err != nil {
		return err
	}
	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionSoftDelete,
		EntityType:  "leave_type",
		EntityID:    lt.ID,
		OldValues:   lt,
		Description: description,
	})
}
