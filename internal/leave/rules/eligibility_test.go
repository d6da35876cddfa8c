package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaveflow/lms-core/internal/leave/domain"
)

func TestEvaluateBooleanExpression(t *testing.T) {
	e := NewEvaluator()

	cases := []struct {
		name   string
		doc    string
		attrs  map[string]interface{}
		want   bool
		errMsg string
	}{
		{
			name:  "true comparison",
			doc:   `{"expression": "tenure_days >= 90"}`,
			attrs: map[string]interface{}{"tenure_days": 120},
			want:  true,
		},
		{
			name:  "false comparison",
			doc:   `{"expression": "tenure_days >= 90"}`,
			attrs: map[string]interface{}{"tenure_days": 30},
			want:  false,
		},
		{
			name:  "compound boolean logic",
			doc:   `{"expression": "employment_type == \"full_time\" && has_manager"}`,
			attrs: map[string]interface{}{"employment_type": "full_time", "has_manager": true},
			want:  true,
		},
		{
			name:   "malformed document",
			doc:    `not json`,
			attrs:  map[string]interface{}{},
			errMsg: "not a valid rule document",
		},
		{
			name:   "empty expression",
			doc:    `{"expression": ""}`,
			attrs:  map[string]interface{}{},
			errMsg: "no expression",
		},
		{
			name:   "non-boolean result",
			doc:    `{"expression": "tenure_days"}`,
			attrs:  map[string]interface{}{"tenure_days": 10},
			errMsg: "must evaluate to a boolean",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate([]byte(tc.doc), tc.attrs)
			if tc.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildAttributes(t *testing.T) {
	managerID := "mgr-1"
	u := &domain.User{
		EmploymentType: "full_time",
		Status:         domain.UserStatusActive,
		ManagerID:      &managerID,
		Metadata:       []byte(`{"region": "APAC", "status": "should-not-override"}`),
	}

	attrs := BuildAttributes(u, 365)

	assert.Equal(t, "full_time", attrs["employment_type"])
	assert.Equal(t, "active", attrs["status"], "built-in status must not be overridden by metadata")
	assert.Equal(t, 365, attrs["tenure_days"])
	assert.Equal(t, true, attrs["has_manager"])
	assert.Equal(t, false, attrs["on_probation"])
	assert.Equal(t, "APAC", attrs["region"])
}

func TestBuildAttributesNoManagerNoMetadata(t *testing.T) {
	u := &domain.User{EmploymentType: "part_time", Status: domain.UserStatusActive}
	attrs := BuildAttributes(u, 10)

	assert.Equal(t, false, attrs["has_manager"])
	assert.Equal(t, false, attrs["on_probation"])
}
