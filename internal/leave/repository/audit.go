package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/actor"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// AuditActionRecorder is the input every mutating repository call builds to
// append one audit row: the entity touched, the action taken, and its
// before/after snapshots. Diffing old vs. new into Changes happens here,
// not at each call site, so every repository gets it for free.
type AuditActionRecorder struct {
	Action      domain.AuditAction
	EntityType  string
	EntityID    string
	OldValues   any
	NewValues   any
	Description string
}

// AuditRepository appends immutable audit rows — no update, no delete, per
// spec.md's append-only invariant on AuditLog. Grounded on the teacher's
// user/repository/audit.go Create/List pair, generalized to the leave
// domain's entity set and to diff computation between old/new snapshots.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository constructs an audit repository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit row inside the transaction pinned to ctx,
// attributing it to the actor.Context carried by ctx.
func (r *AuditRepository) Append(ctx context.Context, rec AuditActionRecorder) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}
	ac := actor.FromContext(ctx)

	oldJSON, err := marshalOrNil(rec.OldValues)
	if err != nil {
		return errors.BadRequest("audit old_values not JSON-serializable")
	}
	newJSON, err := marshalOrNil(rec.NewValues)
	if err != nil {
		return errors.BadRequest("audit new_values not JSON-serializable")
	}
	changesJSON, err := diffJSON(oldJSON, newJSON)
	if err != nil {
		return errors.BadRequest("audit values could not be diffed")
	}

	var actorID *string
	if ac.ActorID != "" {
		actorID = &ac.ActorID
	}
	var sessionID *string
	if ac.SessionID != "" {
		sessionID = &ac.SessionID
	}
	var requestID *string
	if ac.RequestID != "" {
		requestID = &ac.RequestID
	}
	var description *string
	if rec.Description != "" {
		description = &rec.Description
	}

	query := `
		INSERT INTO audit_logs (
			id, timestamp, actor_id, actor_type, action, entity_type, entity_id,
			old_values, new_values, changes, description, request_id, session_id, organization_id
		) VALUES ($1, NOW(), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		uuid.New().String(), actorID, string(ac.ActorType), rec.Action,
		rec.EntityType, rec.EntityID, oldJSON, newJSON, changesJSON,
		description, requestID, sessionID, orgID,
	)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return errors.Wrap(err, "INTERNAL_ERROR", "failed to append audit log", 500)
	}
	return nil
}

// ListForEntity returns audit rows for one entity, newest first, capped at
// MaxQueryLimit per spec.md §4.2 list_for_entity.
func (r *AuditRepository) ListForEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]domain.AuditLog, error) {
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

	var logs []domain.AuditLog
	query := `
		SELECT id, timestamp, actor_id, actor_type, action, entity_type, entity_id,
		       old_values, new_values, changes, description, request_id, session_id, organization_id
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2 AND organization_id = $3
		ORDER BY timestamp DESC
		LIMIT $4 OFFSET $5
	`
	if err := r.db.SelectContext(ctx, &logs, query, entityType, entityID, orgID, limit, offset); err != nil {
		if err == sql.ErrNoRows {
			return logs, nil
		}
		return nil, errors.Wrap(err, "INTERNAL_ERROR", "failed to list audit logs", 500)
	}
	return logs, nil
}

func marshalOrNil(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// diffJSON computes a shallow key-wise diff between two JSON object
// snapshots: for every key present in either side whose value differs, the
// changes map records {"old": ..., "new": ...}. Either side may be nil
// (pure create or pure delete).
func diffJSON(oldJSON, newJSON []byte) ([]byte, error) {
	oldMap, err := toMap(oldJSON)
	if err != nil {
		return nil, err
	}
	newMap, err := toMap(newJSON)
	if err != nil {
		return nil, err
	}

	type change struct {
		Old json.RawMessage `json:"old,omitempty"`
		New json.RawMessage `json:"new,omitempty"`
	}
	changes := map[string]change{}

	for k, ov := range oldMap {
		nv, ok := newMap[k]
		if !ok || string(ov) != string(nv) {
			c := changes[k]
			c.Old = ov
			changes[k] = c
		}
	}
	for k, nv := range newMap {
		ov, ok := oldMap[k]
		if !ok || string(ov) != string(nv) {
			c := changes[k]
			c.New = nv
			changes[k] = c
		}
	}

	if len(changes) == 0 {
		return nil, nil
	}
	return json.Marshal(changes)
}

func toMap(raw []byte) (map[string]json.RawMessage, error) {
	if len(raw) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
