package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// LeaveRequestDateRepository persists the per-day breakdown of a request's
// window (one row per calendar day, weekends flagged), written once when
// the request is created and read back for display — no audit trail of its own
// since it is always derived from, and owned by, its parent request.
type LeaveRequestDateRepository struct {
	db *database.DB
}

// NewLeaveRequestDateRepository constructs a leave request date repository.
func NewLeaveRequestDateRepository(db *database.DB) *LeaveRequestDateRepository {
	return &LeaveRequestDateRepository{db: db}
}

// CreateBatch inserts every day row for a request's window, one INSERT per
// day.
func (r *LeaveRequestDateRepository) CreateBatch(ctx context.Context, dates []domain.LeaveRequestDate) error {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leave_request_dates (id, organization_id, leave_request_id, date, day_value, is_weekend, is_holiday)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range dates {
		d := &dates[i]
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.OrganizationID = orgID
		if _, err := r.db.ExecContext(ctx, query,
			d.ID, d.OrganizationID, d.LeaveRequestID, d.Date, d.DayValue, d.IsWeekend, d.IsHoliday,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListForRequest returns every day row belonging to a request, in order.
func (r *LeaveRequestDateRepository) ListForRequest(ctx context.Context, requestID string) ([]domain.LeaveRequestDate, error) {
	orgID, err := tenant.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var dates []domain.LeaveRequestDate
	query := `
		SELECT * FROM leave_request_dates
		WHERE leave_request_id = $1 AND organization_id = $2
		ORDER BY date
	`
	if err := r.db.SelectContext(ctx, &dates, query, requestID, orgID); err != nil {
		return nil, err
	}
	return dates, nil
}
