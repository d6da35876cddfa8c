// Package repository holds the typed CRUD layer over every leave-domain
// entity: no business rules live here, only persistence — the same split
// the teacher draws between its repository package (plain SQL, tenant
// scoping) and its service/engine layer (rules). Every repository wraps
// a shared generic base that the teacher doesn't need (it hand-writes one
// bespoke struct per entity) but that this module's BaseRepository
// contract requires, since the same get/get_required/list/count/add/
// update_fields/soft_delete surface must be available identically across
// users, leave types, policies, balances, requests, workflow steps and
// comments.
package repository

import (
	"context"
	"fmt"

	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// MaxQueryLimit is the hard ceiling on any List() page size, independent
// of whatever smaller default a deployment's config.Leave.MaxQueryLimit
// configures — no caller can ask for more than this in one round trip.
const MaxQueryLimit = 1000

// Identifiable is satisfied by every entity carrying the base columns.
type Identifiable interface {
	GetID() string
}

// Base is the generic repository every concrete entity repository embeds.
// T is an entity's pointer type (e.g. *domain.LeaveType), which implements
// Identifiable; the struct it points to carries the `db` struct tags sqlx
// scans into.
type Base[T Identifiable] struct {
	db        *database.DB
	table     string
	auditRepo *AuditRepository
	// entityType names this entity for audit rows (e.g. "leave_request").
	entityType string
}

// NewBase constructs a base repository bound to one table.
func NewBase[T Identifiable](db *database.DB, auditRepo *AuditRepository, table, entityType string) Base[T] {
	return Base[T]{db: db, table: table, auditRepo: auditRepo, entityType: entityType}
}

// Get fetches a row by ID, scoped to the organization in ctx. Returns
// (nil, nil) on miss — use GetRequired when a miss should be an error.
func (b *Base[T]) Get(ctx context.Context, id string) (*T, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	// T is itself a pointer, so the row is scanned through a slice, where
	// sqlx allocates the struct each element points to.
	var rows []T
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`, b.table)
	if err := b.db.SelectContext(ctx, &rows, query, id, orgID); err != nil {
		return nil, b.wrapErr(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetRequired fetches a row by ID, failing with errors.NotFound on miss.
func (b *Base[T]) GetRequired(ctx context.Context, id string) (*T, error) {
	row, err := b.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound(b.entityType)
	}
	return row, nil
}

// List returns up to limit rows (capped at MaxQueryLimit) ordered by
// creation time, newest first.
func (b *Base[T]) List(ctx context.Context, limit, offset int) ([]T, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	var rows []T
	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		b.table,
	)
	if err := b.db.SelectContext(ctx, &rows, query, orgID, limit, offset); err != nil {
		return nil, b.wrapErr(err)
	}
	return rows, nil
}

// Count returns the total number of non-deleted rows for the organization.
func (b *Base[T]) Count(ctx context.Context) (int64, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = $1 AND deleted_at IS NULL`, b.table)
	if err := b.db.GetContext(ctx, &total, query, orgID); err != nil {
		return 0, b.wrapErr(err)
	}
	return total, nil
}

// recordAudit appends an audit row for a mutation. Concrete repositories
// call this after the row-specific INSERT/UPDATE executes, inside the same
// transaction (the context-pinned *sqlx.Tx covers both writes atomically).
func (b *Base[T]) recordAudit(ctx context.Context, action AuditActionRecorder) error {
	return b.auditRepo.Append(ctx, action)
}

// softDeleteByID marks a row deleted_at = now and is the common tail of
// every concrete repository's SoftDelete method.
func (b *Base[T]) softDeleteByID(ctx context.Context, id string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`, b.table)
	result, err := b.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return b.wrapErr(err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound(b.entityType)
	}
	return nil
}

func (b *Base[T]) wrapErr(err error) error {
	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return errors.Wrap(err, "INTERNAL_ERROR", "repository operation failed", 500)
}
