// Package rules evaluates the opaque CUSTOM eligibility rule document a
// LeavePolicy carries. The rule language itself is an external contract
// (spec.md §1 Non-goals, §9 "CUSTOM eligibility is a stub") — this package
// only fixes a concrete, safe encoding for it: a JSON document holding one
// boolean gval expression, evaluated against a flattened map of user
// attributes. Grounded on _examples/r3e-network-service_layer's use of
// github.com/PaesslerAG/gval for embedded expression evaluation — the same
// "safe, no-code-exec expression language" concern that project solves for
// its own policy/scripting surface.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/gval"

	"github.com/leaveflow/lms-core/internal/leave/domain"
)

// Document is the on-disk shape of LeavePolicy.EligibilityRules for
// EligibilityCustom policies.
type Document struct {
	Expression string `json:"expression"`
}

// Evaluator evaluates CUSTOM eligibility documents. It holds no state
// beyond the gval language instance, so one Evaluator is safely shared
// across requests.
type Evaluator struct {
	lang gval.Language
}

// NewEvaluator constructs an Evaluator using gval's "full" language
// (arithmetic, comparison, boolean logic, string/regex functions) — enough
// to express tenure/attribute conditions without resorting to a
// general-purpose scripting sandbox.
func NewEvaluator() *Evaluator {
	return &Evaluator{lang: gval.Full()}
}

// Evaluate parses rulesJSON as a Document and evaluates its expression
// against attrs, returning the boolean result. A malformed document or a
// non-boolean expression result is reported as an error so
// PolicyEngine.assert_eligible can surface it as an EligibilityException
// rather than silently treating it as ineligible.
func (e *Evaluator) Evaluate(rulesJSON []byte, attrs map[string]interface{}) (bool, error) {
	var doc Document
	if err := json.Unmarshal(rulesJSON, &doc); err != nil {
		return false, fmt.Errorf("eligibility_rules is not a valid rule document: %w", err)
	}
	if doc.Expression == "" {
		return false, fmt.Errorf("eligibility_rules document has no expression")
	}

	result, err := e.lang.Evaluate(doc.Expression, attrs)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate eligibility expression: %w", err)
	}

	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("eligibility expression must evaluate to a boolean, got %T", result)
	}
	return ok, nil
}

// BuildAttributes flattens the subset of User (plus its free-form Metadata)
// that CUSTOM rules are allowed to reference, at the instant `tenureDays`
// was computed by the caller (PolicyEngine already knows `now`).
func BuildAttributes(u *domain.User, tenureDays int) map[string]interface{} {
	attrs := map[string]interface{}{
		"employment_type":   u.EmploymentType,
		"status":            string(u.Status),
		"tenure_days":       tenureDays,
		"has_manager":       u.ManagerID != nil,
		"on_probation":      u.ProbationEndDate != nil,
	}

	if len(u.Metadata) > 0 {
		var extra map[string]interface{}
		if err := json.Unmarshal(u.Metadata, &extra); err == nil {
			for k, v := range extra {
				if _, exists := attrs[k]; !exists {
					attrs[k] = v
				}
			}
		}
	}

	return attrs
}
