package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// LeavePolicyRepository persists accrual/eligibility policy configuration.
type LeavePolicyRepository struct {
	Base[*domain.LeavePolicy]
}

// NewLeavePolicyRepository constructs a leave policy repository.
func NewLeavePolicyRepository(db *database.DB, auditRepo *AuditRepository) *LeavePolicyRepository {
	return &LeavePolicyRepository{Base: NewBase[*domain.LeavePolicy](db, auditRepo, "leave_policies", "leave_policy")}
}

// FindCoveringPolicy returns the active policy for leaveTypeID whose
// effective window covers `at`, preferring the most recently effective one
// when more than one matches (PolicyEngine.resolve_policy_for_user, §4.1).
func (r *LeavePolicyRepository) FindCoveringPolicy(ctx context.Context, leaveTypeID string, at time.Time) (*domain.LeavePolicy, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var policies []domain.LeavePolicy
	query := `
		SELECT * FROM leave_policies
		WHERE leave_type_id = $1 AND organization_id = $2 AND active = true AND deleted_at IS NULL
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to >= $3)
		ORDER BY effective_from DESC
		LIMIT 1
	`
	if err := r.db.SelectContext(ctx, &policies, query, leaveTypeID, orgID, at); err != nil {
		return nil, r.wrapErr(err)
	}
	if len(policies) == 0 {
		return nil, nil
	}
	return &policies[0], nil
}

// ListActive returns every active policy across leave types, for the
// scheduled accrual sweep (BalanceEngine.RunScheduledAccrual) to iterate —
// unlike FindCoveringPolicy it is not scoped to one leave type, since the
// sweep runs once per tick across the whole organization's catalog.
func (r *LeavePolicyRepository) ListActive(ctx context.Context) ([]domain.LeavePolicy, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var policies []domain.LeavePolicy
	query := `SELECT * FROM leave_policies WHERE organization_id = $1 AND active = true AND deleted_at IS NULL`
	if err := r.db.SelectContext(ctx, &policies, query, orgID); err != nil {
		return nil, r.wrapErr(err)
	}
	return policies, nil
}

// Create inserts a new policy and appends a CREATE audit row.
func (r *LeavePolicyRepository) Create(ctx context.Context, p *domain.LeavePolicy, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.OrganizationID = orgID

	query := `
		INSERT INTO leave_policies (
			id, organization_id, leave_type_id, name, active, effective_from, effective_to,
			eligibility_type, eligibility_tenure_days, eligibility_rules,
			accrual_frequency, accrual_amount, allow_negative
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.OrganizationID, p.LeaveTypeID, p.Name, p.Active, p.EffectiveFrom, p.EffectiveTo,
		p.EligibilityType, p.EligibilityTenureDays, p.EligibilityRules,
		p.AccrualFrequency, p.AccrualAmount, p.AllowNegative,
	).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return r.wrapErr(err)
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionCreate,
		EntityType:  "leave_policy",
		EntityID:    p.ID,
		NewValues:   p,
		Description: description,
	})
}

// Update persists changed fields on an existing policy.
func (r *LeavePolicyRepository) Update(ctx context.Context, before, after *domain.LeavePolicy, description string) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE leave_policies SET
			name = $3, active = $4, effective_from = $5, effective_to = $6,
			eligibility_type = $7, eligibility_tenure_days = $8, eligibility_rules = $9,
			accrual_frequency = $10, accrual_amount = $11, allow_negative = $12, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		after.ID, orgID, after.Name, after.Active, after.EffectiveFrom, after.EffectiveTo,
		after.EligibilityType, after.EligibilityTenureDays, after.EligibilityRules,
		after.AccrualFrequency, after.AccrualAmount, after.AllowNegative,
	)
	if err != nil {
		return r.wrapErr(err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("leave_policy")
	}

	return r.recordAudit(ctx, AuditActionRecorder{
		Action:      domain.AuditActionUpdate,
		EntityType:  "leave_policy",
		EntityID:    after.ID,
		OldValues:   before,
		NewValues:   after,
		Description: description,
	})
}
