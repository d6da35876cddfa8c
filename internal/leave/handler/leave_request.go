package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leaveflow/lms-core/internal/leave/domain"
	"github.com/leaveflow/lms-core/internal/leave/engine"
	"github.com/leaveflow/lms-core/internal/leave/uow"
	"github.com/leaveflow/lms-core/pkg/actor"
	"github.com/leaveflow/lms-core/pkg/errors"
	"github.com/leaveflow/lms-core/pkg/httputil"
	"github.com/leaveflow/lms-core/pkg/logger"
)

const dateLayout = "2006-01-02"

// LeaveRequestHandler is the thin controller over LeaveEngine: every
// method opens one UnitOfWork, delegates to exactly one engine call, and
// translates the result to a response — the same shape as the teacher's
// AbsenceHandler over AbsenceService.
type LeaveRequestHandler struct {
	engine  *engine.LeaveEngine
	factory *uow.Factory
	logger  *logger.Logger
}

// NewLeaveRequestHandler constructs a leave request handler.
func NewLeaveRequestHandler(e *engine.LeaveEngine, factory *uow.Factory, log *logger.Logger) *LeaveRequestHandler {
	return &LeaveRequestHandler{engine: e, factory: factory, logger: log}
}

// Create creates a DRAFT leave request.
func (h *LeaveRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateLeaveRequestBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&body); err != nil {
		httputil.Error(w, err)
		return
	}

	startDate, err := time.Parse(dateLayout, body.StartDate)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid start_date format, expected YYYY-MM-DD"))
		return
	}
	endDate, err := time.Parse(dateLayout, body.EndDate)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid end_date format, expected YYYY-MM-DD"))
		return
	}

	ctx := actor.WithContext(r.Context(), actorFromRequest(r))

	var req *domain.LeaveRequest
	err = uow.Run(ctx, h.factory, func(u *uow.UnitOfWork) error {
		var err error
		req, err = h.engine.CreateLeaveRequest(u, body.UserID, body.LeaveTypeID, startDate, endDate, body.Reason)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, req)
}

// Submit moves a DRAFT request to PENDING_APPROVAL.
func (h *LeaveRequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actorID, ok := requireActorID(r)
	if !ok {
		httputil.Error(w, errors.BadRequest("X-User-ID header is required"))
		return
	}

	ctx := actor.WithContext(r.Context(), actorFromRequest(r))

	var req *domain.LeaveRequest
	err := uow.Run(ctx, h.factory, func(u *uow.UnitOfWork) error {
		var err error
		req, err = h.engine.Submit(u, id, actorID)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Get returns a single leave request by ID.
func (h *LeaveRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req *domain.LeaveRequest
	err := uow.Run(r.Context(), h.factory, func(u *uow.UnitOfWork) error {
		var err error
		req, err = h.engine.GetLeaveRequest(u, id)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// List paginates leave requests for a user, optionally filtered by status.
func (h *LeaveRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")

	page := 1
	if p, _ := strconv.Atoi(q.Get("page")); p > 0 {
		page = p
	}
	perPage := 20
	if pp, _ := strconv.Atoi(q.Get("per_page")); pp > 0 && pp <= 200 {
		perPage = pp
	}

	var status *domain.LeaveRequestStatus
	if s := q.Get("status"); s != "" {
		st := domain.LeaveRequestStatus(s)
		status = &st
	}

	offset := (page - 1) * perPage

	var requests []domain.LeaveRequest
	var total int64
	err := uow.Run(r.Context(), h.factory, func(u *uow.UnitOfWork) error {
		var err error
		requests, err = h.engine.ListLeaveRequests(u, userID, status, perPage, offset)
		if err != nil {
			return err
		}
		total, err = h.engine.CountLeaveRequests(u, userID, status)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, requests, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// ApproveStep actions a workflow step as an approval.
func (h *LeaveRequestHandler) ApproveStep(w http.ResponseWriter, r *http.Request) {
	stepID := chi.URLParam(r, "stepId")
	actorID, ok := requireActorID(r)
	if !ok {
		httputil.Error(w, errors.BadRequest("X-User-ID header is required"))
		return
	}

	var body ApproveRejectBody
	_ = httputil.DecodeJSON(r, &body)

	ctx := actor.WithContext(r.Context(), actorFromRequest(r))

	var req *domain.LeaveRequest
	err := uow.Run(ctx, h.factory, func(u *uow.UnitOfWork) error {
		var err error
		req, err = h.engine.ApproveStep(u, stepID, actorID, body.Comment)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// RejectStep actions a workflow step as a rejection.
func (h *LeaveRequestHandler) RejectStep(w http.ResponseWriter, r *http.Request) {
	stepID := chi.URLParam(r, "stepId")
	actorID, ok := requireActorID(r)
	if !ok {
		httputil.Error(w, errors.BadRequest("X-User-ID header is required"))
		return
	}

	var body ApproveRejectBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.Error(w, err)
		return
	}

	ctx := actor.WithContext(r.Context(), actorFromRequest(r))

	var req *domain.LeaveRequest
	err := uow.Run(ctx, h.factory, func(u *uow.UnitOfWork) error {
		var err error
		req, err = h.engine.RejectStep(u, stepID, actorID, body.Comment)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Withdraw lets the request's owner withdraw it while still pending.
func (h *LeaveRequestHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actorID, ok := requireActorID(r)
	if !ok {
		httputil.Error(w, errors.BadRequest("X-User-ID header is required"))
		return
	}

	var body WithdrawBody
	_ = httputil.DecodeJSON(r, &body)

	ctx := actor.WithContext(r.Context(), actorFromRequest(r))

	var req *domain.LeaveRequest
	err := uow.Run(ctx, h.factory, func(u *uow.UnitOfWork) error {
		var err error
		req, err = h.engine.WithdrawRequest(u, id, actorID, body.Reason)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// AddComment appends a note to a request.
func (h *LeaveRequestHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actorID, ok := requireActorID(r)
	if !ok {
		httputil.Error(w, errors.BadRequest("X-User-ID header is required"))
		return
	}

	var body AddCommentBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&body); err != nil {
		httputil.Error(w, err)
		return
	}

	ctx := actor.WithContext(r.Context(), actorFromRequest(r))

	var comment *domain.Comment
	err := uow.Run(ctx, h.factory, func(u *uow.UnitOfWork) error {
		var err error
		comment, err = h.engine.AddComment(u, id, actorID, body.Text, body.IsInternal)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, comment)
}

// GetBalance returns the balance covering on_date (defaulting to now) for
// (userId, leaveTypeId).
func (h *LeaveRequestHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	leaveTypeID := chi.URLParam(r, "leaveTypeId")

	onDate := time.Now()
	if d := r.URL.Query().Get("on_date"); d != "" {
		if t, err := time.Parse(dateLayout, d); err == nil {
			onDate = t
		}
	}

	var balance *domain.LeaveBalance
	err := uow.Run(r.Context(), h.factory, func(u *uow.UnitOfWork) error {
		var err error
		balance, err = h.engine.GetLeaveBalance(u, userID, leaveTypeID, onDate)
		return err
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if balance == nil {
		httputil.Error(w, errors.NotFound("leave_balance"))
		return
	}

	httputil.JSON(w, http.StatusOK, balance)
}

// ============================================================================
// REQUEST BODIES
// ============================================================================

// CreateLeaveRequestBody is the request body for creating a leave request.
type CreateLeaveRequestBody struct {
	UserID      string  `json:"user_id" validate:"required,uuid"`
	LeaveTypeID string  `json:"leave_type_id" validate:"required,uuid"`
	StartDate   string  `json:"start_date" validate:"required"` // YYYY-MM-DD
	EndDate     string  `json:"end_date" validate:"required"`   // YYYY-MM-DD
	Reason      *string `json:"reason,omitempty"`
}

// ApproveRejectBody is the request body for actioning a workflow step.
type ApproveRejectBody struct {
	Comment *string `json:"comment,omitempty"`
}

// WithdrawBody is the request body for withdrawing a request.
type WithdrawBody struct {
	Reason *string `json:"reason,omitempty"`
}

// AddCommentBody is the request body for adding a comment.
type AddCommentBody struct {
	Text       string `json:"text" validate:"required"`
	IsInternal bool   `json:"is_internal"`
}
