package repository

import (
	"context"
	"database/sql"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// UserRepository is read-mostly: users are a shared entity owned by
// whatever HR/identity system feeds this engine, so the leave module never
// creates or updates them — it only reads the fields PolicyEngine and
// WorkflowEngine need (status, hire date, manager). Grounded on the
// teacher's staff/repository/employee.go GetByID shape.
type UserRepository struct {
	Base[*domain.User]
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *database.DB, auditRepo *AuditRepository) *UserRepository {
	return &UserRepository{Base: NewBase[*domain.User](db, auditRepo, "users", "user")}
}

// GetByID looks up a user by ID, returning (nil, nil) on miss.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var u domain.User
	query := `SELECT * FROM users WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &u, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, r.wrapErr(err)
	}
	return &u, nil
}

// GetRequiredByID is GetByID but fails with errors.NotFound on miss.
func (r *UserRepository) GetRequiredByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.NotFound("user")
	}
	return u, nil
}
