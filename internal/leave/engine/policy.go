// Package engine implements the four core decision-engine components —
// PolicyEngine, BalanceEngine, WorkflowEngine and the LeaveEngine
// orchestrator — on top of the repositories and UnitOfWork the rest of
// this module provides. Engines hold no transaction handles of their
// own: every method takes the open *uow.UnitOfWork for the call and reads
// its repositories and pinned context, the way the teacher's service
// layer takes no database handle of its own and instead calls through the
// repositories it was constructed with.
package engine

import (
	"strconv"
	"time"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/internal/leave/rules"
	"github.com/leaveflow/lms-core/internal/leave/uow"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/logger"
)

// PolicyEngine resolves the applicable LeavePolicy for a (user, leave
// type) pair and evaluates whether the user is eligible under it.
// Grounded on the teacher's AbsenceService (staff/service/absence.go),
// generalized from a single hard-coded vacation-balance rule into
// resolution over a configurable, time-scoped policy table plus a
// pluggable CUSTOM rule evaluator.
type PolicyEngine struct {
	rules  *rules.Evaluator
	logger *logger.Logger
}

// NewPolicyEngine constructs a PolicyEngine.
func NewPolicyEngine(evaluator *rules.Evaluator, log *logger.Logger) *PolicyEngine {
	return &PolicyEngine{rules: evaluator, logger: log}
}

// ResolvePolicyForUser finds the policy covering (user's organization,
// leaveTypeID) at `at`, preferring the most recently effective match
// (§4.4 resolve_policy_for_user). Fails with errors.PolicyNotFound if none
// covers the instant.
func (e *PolicyEngine) ResolvePolicyForUser(u *uow.UnitOfWork, leaveTypeID string, at time.Time) (*domain.LeavePolicy, string, error) {
	policy, err := u.Policies.FindCoveringPolicy(u.Context(), leaveTypeID, at)
	if err != nil {
		return nil, "", err
	}
	if policy == nil {
		return nil, "", errors.PolicyNotFound(leaveTypeID)
	}
	return policy, "most recently effective active policy covering the requested instant", nil
}

// AssertEligible evaluates policy.EligibilityType against user's
// attributes at `at` (§4.4 assert_eligible). Returns an
// errors.EligibilityException carrying the evaluated criteria on failure.
func (e *PolicyEngine) AssertEligible(user *domain.User, policy *domain.LeavePolicy, at time.Time) error {
	switch policy.EligibilityType {
	case domain.EligibilityImmediate:
		return nil

	case domain.EligibilityAfterProbation:
		if user.ProbationEndDate == nil || at.Before(*user.ProbationEndDate) {
			criteria := map[string]string{"eligibility_type": string(policy.EligibilityType)}
			if user.ProbationEndDate != nil {
				criteria["probation_end_date"] = user.ProbationEndDate.Format(time.RFC3339)
			}
			return errors.EligibilityException("user has not completed probation", criteria)
		}
		return nil

	case domain.EligibilityAfterTenure:
		if user.HireDate == nil {
			return errors.EligibilityException("user has no hire date on record", map[string]string{
				"eligibility_type": string(policy.EligibilityType),
			})
		}
		tenureDays := int(at.Sub(*user.HireDate).Hours() / 24)
		if tenureDays < policy.EligibilityTenureDays {
			return errors.EligibilityException("user has not met the required tenure", map[string]string{
				"eligibility_type":     string(policy.EligibilityType),
				"tenure_days":          strconv.Itoa(tenureDays),
				"required_tenure_days": strconv.Itoa(policy.EligibilityTenureDays),
			})
		}
		return nil

	case domain.EligibilityCustom:
		tenureDays := 0
		if user.HireDate != nil {
			tenureDays = int(at.Sub(*user.HireDate).Hours() / 24)
		}
		attrs := rules.BuildAttributes(user, tenureDays)
		ok, err := e.rules.Evaluate(policy.EligibilityRules, attrs)
		if err != nil {
			return errors.EligibilityException(err.Error(), map[string]string{
				"eligibility_type": string(policy.EligibilityType),
			})
		}
		if !ok {
			return errors.EligibilityException("user does not satisfy the custom eligibility rule", map[string]string{
				"eligibility_type": string(policy.EligibilityType),
			})
		}
		return nil

	default:
		return errors.EligibilityException("unknown eligibility type", map[string]string{
			"eligibility_type": string(policy.EligibilityType),
		})
	}
}

// GetBalance is a non-throwing lookup of the current-period balance for
// (userID, leaveTypeID) at onDate; nil, nil when no period balance exists
// yet (§4.4 get_balance).
func (e *PolicyEngine) GetBalance(u *uow.UnitOfWork, userID, leaveTypeID string, onDate time.Time) (*domain.LeaveBalance, error) {
	return u.Balances.GetCurrent(u.Context(), userID, leaveTypeID, onDate)
}
