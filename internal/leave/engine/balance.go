package engine

import (
	"time"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/internal/leave/events"
	"github.com/leaveflow/lms-core/internal/leave/uow"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/logger"
)

// BalanceEngine drives the reserve/consume state machine over a
// LeaveBalance's pending/used components (§4.5). Every trigger locks the
// balance row (the second half of the two-stage request→balance lock
// order the UnitOfWork's callers must respect, see
// repository.LeaveBalanceRepository.GetForUpdate) before reading it, so
// concurrent submit/approve attempts on the same balance serialize at the
// database rather than racing in process memory.
type BalanceEngine struct {
	events *events.LeaveEventPublisher
	logger *logger.Logger
}

// NewBalanceEngine constructs a BalanceEngine.
func NewBalanceEngine(publisher *events.LeaveEventPublisher, log *logger.Logger) *BalanceEngine {
	return &BalanceEngine{events: publisher, logger: log}
}

// OnSubmit reserves request.TotalDays against the balance covering `at`,
// failing with errors.InsufficientBalance if available < requested. A
// missing balance row is treated as zero available, so the reservation is
// always rejected rather than silently skipped (OnApprove also fails on a
// missing row; OnReject and OnWithdraw treat it as a no-op).
func (e *BalanceEngine) OnSubmit(u *uow.UnitOfWork, req *domain.LeaveRequest, leaveTypeCode string, at time.Time) error {
	ctx := u.Context()
	balance, err := u.Balances.GetForUpdate(ctx, req.UserID, req.LeaveTypeID, at)
	if err != nil {
		return err
	}
	if balance == nil {
		return errors.InsufficientBalance("0", req.TotalDays.String(), leaveTypeCode)
	}

	available := balance.Available()
	if available.LessThan(req.TotalDays) {
		return errors.InsufficientBalance(available.String(), req.TotalDays.String(), leaveTypeCode)
	}

	before := *balance
	balance.Pending = balance.Pending.Add(req.TotalDays)
	return u.Balances.UpdateComponents(ctx, &before, balance, "balance reserved on submit of request "+req.RequestNumber)
}

// OnApprove converts a reservation into consumption: pending -= total_days,
// used += total_days (§4.5). The precondition pending >= total_days is
// guaranteed by OnSubmit having run first in the same request's lifecycle;
// a missing balance row here indicates the balance was deleted out from
// under an in-flight request, which is an operational anomaly rather than
// a normal control-flow outcome, so it is surfaced rather than swallowed.
func (e *BalanceEngine) OnApprove(u *uow.UnitOfWork, req *domain.LeaveRequest, at time.Time) error {
	ctx := u.Context()
	balance, err := u.Balances.GetForUpdate(ctx, req.UserID, req.LeaveTypeID, at)
	if err != nil {
		return err
	}
	if balance == nil {
		return errors.Internal("balance row missing for an approved request that already reserved pending days")
	}

	before := *balance
	balance.Pending = balance.Pending.Sub(req.TotalDays)
	balance.Used = balance.Used.Add(req.TotalDays)
	return u.Balances.UpdateComponents(ctx, &before, balance, "balance consumed on approval of request "+req.RequestNumber)
}

// OnReject releases a reservation without consuming it (§4.5). Defensive:
// a missing balance row succeeds as a logged no-op, since there is
// nothing left to release.
func (e *BalanceEngine) OnReject(u *uow.UnitOfWork, req *domain.LeaveRequest, at time.Time) error {
	return e.release(u, req, at, "balance reservation released on rejection of request "+req.RequestNumber)
}

// OnWithdraw releases a reservation without consuming it (§4.5), same
// defensive no-op-on-missing-row behavior as OnReject.
func (e *BalanceEngine) OnWithdraw(u *uow.UnitOfWork, req *domain.LeaveRequest, at time.Time) error {
	return e.release(u, req, at, "balance reservation released on withdrawal of request "+req.RequestNumber)
}

// RunScheduledAccrual posts one accrual cycle's worth of days onto every
// balance row covered by an active policy as of `at`. It is the single
// entry point the scheduled-task runner's cron tick calls into — how and
// when that tick fires is out of this engine's concern. Every call posts
// policy.AccrualAmount again; the method does not record which periods
// were already accrued, so calling it twice for one period accrues twice.
// It returns the number of balance rows accrued, for the caller to log.
func (e *BalanceEngine) RunScheduledAccrual(u *uow.UnitOfWork, at time.Time) (int, error) {
	ctx := u.Context()

	policies, err := u.Policies.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	accrued := 0
	for _, policy := range policies {
		if !policy.CoversInstant(at) {
			continue
		}
		if policy.AccrualAmount.IsZero() {
			continue
		}

		balances, err := u.Balances.ListCoveringInstant(ctx, policy.LeaveTypeID, at)
		if err != nil {
			return accrued, err
		}

		for _, b := range balances {
			locked, err := u.Balances.GetForUpdate(ctx, b.UserID, b.LeaveTypeID, at)
			if err != nil {
				return accrued, err
			}
			if locked == nil {
				continue
			}

			before := *locked
			locked.Accrued = locked.Accrued.Add(policy.AccrualAmount)
			if err := u.Balances.UpdateComponents(ctx, &before, locked, "scheduled accrual under policy "+policy.Name); err != nil {
				return accrued, err
			}
			e.events.PublishBalanceAccrued(ctx, locked, policy.AccrualAmount.String())
			accrued++
		}
	}

	return accrued, nil
}

func (e *BalanceEngine) release(u *uow.UnitOfWork, req *domain.LeaveRequest, at time.Time, description string) error {
	ctx := u.Context()
	balance, err := u.Balances.GetForUpdate(ctx, req.UserID, req.LeaveTypeID, at)
	if err != nil {
		return err
	}
	if balance == nil {
		e.logger.Warn().
			Str("request_id", req.ID).
			Str("user_id", req.UserID).
			Str("leave_type_id", req.LeaveTypeID).
			Msg("no balance row found to release a pending reservation against; treating as a no-op")
		return nil
	}

	before := *balance
	balance.Pending = balance.Pending.Sub(req.TotalDays)
	return u.Balances.UpdateComponents(ctx, &before, balance, description)
}
