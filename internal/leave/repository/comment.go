package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// CommentRepository persists free-form notes attached to a request
// (§4.7 add_comment). Comments are append-only from the caller's
// perspective — there is no Update, only Create and List — but still
// participate in the audit trail like every other mutation.
type CommentRepository struct {
	Base[*domain.Comment]
}

// NewCommentRepository constructs a comment repository.
func NewCommentRepository(db *database.DB, auditRepo *AuditRepository) *CommentRepository {
	return &CommentRepository{Base: NewBase[*domain.Comment](db, auditRepo, "comments", "comment")}
}

// ListForRequest returns every comment on a request, oldest first, capped
// at MaxQueryLimit.
func (r *CommentRepository) ListForRequest(ctx context.Context, requestID string) ([]domain.Comment, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var comments []domain.Comment
	query := `
		SELECT * FROM comments
		WHERE leave_request_id = $1 AND organization_id = $2 AND deleted_at IS NULL
		ORDER BY created_at
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &comments, query, requestID, orgID, MaxQueryLimit); err != nil {
		return nil, r.wrapErr(err)
	}
	return comments, nil
}

// Create inserts a new comment and appends a CREATE audit row.
func (r *CommentRepository) Create(ctx context.Context, c *domain.Comment, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.OrganizationID = orgID

	query := `
		INSERT INTO comments (id, organization_id, leave_request_id, user_id, text, is_internal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		c.ID, c.OrganizationID, c.LeaveRequestID, c.UserID, c.Text, c.IsInternal,
	).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return r.wrapErr(err)
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionCreate,
		EntityType:  "comment",
		EntityID:    c.ID,
		NewValues:   c,
		Description: description,
	})
}
