package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/dto"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/repository"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
)

type workflowRequestStore interface {
	Create(ctx context.Context, req *models.EventRequest) error
	GetByID(ctx context.Context, id string) (*models.EventRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.EventRequest, error)
	ReferenceNoExists(ctx context.Context, ref string) (bool, error)
	UpdateWorkflow(ctx context.Context, req *models.EventRequest, expectedVersion int64) error
}

// CompletionHook is invoked after a request reaches the terminal state, outside
// the transition's critical section. Used to warm the approval letter.
type CompletionHook func(requestID string)

type decisionRecorder interface {
	RecordWorkflowDecision(role, decision string)
}

var referenceNoPattern = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

// WorkflowService is the sole mutator of a request's workflow fields. Every
// transition is validated against the actor's resolved claims; client-supplied
// identity or state fields are never trusted.
type WorkflowService struct {
	repo        workflowRequestStore
	validator   *validator.Validate
	logger      *zap.Logger
	onCompleted CompletionHook
	metrics     decisionRecorder
	now         func() time.Time
}

// WorkflowServiceOption configures the service.
type WorkflowServiceOption func(*WorkflowService)

// WithCompletionHook registers a post-completion callback.
func WithCompletionHook(hook CompletionHook) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.onCompleted = hook
	}
}

// WithMetrics registers a decision counter.
func WithMetrics(recorder decisionRecorder) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.metrics = recorder
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWorkflowService constructs the engine.
func NewWorkflowService(repo workflowRequestStore, validate *validator.Validate, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &WorkflowService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit creates a new event request routed to the staff member's HOD.
func (s *WorkflowService) Submit(ctx context.Context, payload dto.CreateRequestPayload, reportPath string, actor *models.JWTClaims) (*dto.RequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStaff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can submit event requests")
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if actor.Department == nil || !models.IsValidDepartment(*actor.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "staff account has no valid department")
	}
	if reportPath == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event report is required")
	}

	req := &models.EventRequest{
		StaffID:       actor.UserID,
		StaffName:     actor.FullName,
		Department:    *actor.Department,
		EventName:     strings.TrimSpace(payload.EventName),
		EventDate:     strings.TrimSpace(payload.EventDate),
		Purpose:       strings.TrimSpace(payload.Purpose),
		ReportPath:    reportPath,
		CurrentRole:   models.RoleHOD,
		WorkflowRoles: models.RoleList{},
		Approvals:     models.ApprovalTrail{},
	}
	req.OverallStatus = req.StatusLabel()

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, s.storeError(err, "failed to create event request")
	}
	s.logger.Info("event request submitted",
		zap.String("request_id", req.ID),
		zap.String("staff_id", req.StaffID),
		zap.String("department", string(req.Department)),
	)
	view := dto.NewRequestView(req, actor.Role)
	return &view, nil
}

// Approve records the current approver's approval and advances the chain.
// IQAC's first approval additionally locks the reference number and the
// dynamically chosen workflow suffix.
func (s *WorkflowService) Approve(ctx context.Context, id string, payload dto.ApprovePayload, actor *models.JWTClaims) (*dto.RequestView, error) {
	req, err := s.loadForDecision(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	expectedVersion := req.Version

	if actor.Role == models.RoleIQAC && len(req.WorkflowRoles) == 0 {
		if err := s.assignFlow(ctx, req, payload); err != nil {
			return nil, err
		}
	}

	req.Approvals = append(req.Approvals, models.Approval{
		Role:      actor.Role,
		Status:    models.DecisionApproved,
		Comments:  strings.TrimSpace(payload.Comments),
		DecidedAt: s.now(),
	})

	if next, ok := req.NextRole(actor.Role); ok {
		req.CurrentRole = next
	} else {
		req.CurrentRole = models.RoleCompleted
		req.IsCompleted = true
	}
	req.OverallStatus = req.StatusLabel()

	if err := s.persistTransition(ctx, req, expectedVersion); err != nil {
		return nil, err
	}
	s.logger.Info("event request approved",
		zap.String("request_id", req.ID),
		zap.String("role", string(actor.Role)),
		zap.String("current_role", string(req.CurrentRole)),
	)
	if s.metrics != nil {
		s.metrics.RecordWorkflowDecision(string(actor.Role), string(models.DecisionApproved))
	}
	if req.IsCompleted && s.onCompleted != nil {
		s.onCompleted(req.ID)
	}
	view := dto.NewRequestView(req, actor.Role)
	return &view, nil
}

// Recreate sends the request back to its staff owner for correction. The
// assigned workflow and reference number stay locked for the next cycle.
func (s *WorkflowService) Recreate(ctx context.Context, id string, payload dto.RecreatePayload, actor *models.JWTClaims) (*dto.RequestView, error) {
	comments := strings.TrimSpace(payload.Comments)
	if comments == "" {
		return nil, appErrors.ErrCommentsRequired
	}
	req, err := s.loadForDecision(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	expectedVersion := req.Version

	by := actor.Role
	req.Approvals = append(req.Approvals, models.Approval{
		Role:        actor.Role,
		Status:      models.DecisionRecreated,
		Comments:    comments,
		DecidedAt:   s.now(),
		RecreatedBy: &by,
	})
	req.CurrentRole = models.RoleNone
	req.IsCompleted = false
	req.OverallStatus = req.StatusLabel()

	if err := s.persistTransition(ctx, req, expectedVersion); err != nil {
		return nil, err
	}
	s.logger.Info("event request sent back for recreation",
		zap.String("request_id", req.ID),
		zap.String("role", string(actor.Role)),
	)
	if s.metrics != nil {
		s.metrics.RecordWorkflowDecision(string(actor.Role), string(models.DecisionRecreated))
	}
	view := dto.NewRequestView(req, actor.Role)
	return &view, nil
}

// Resubmit applies the staff owner's edits after a recreation and restarts the
// chain from HOD. Earlier decisions stay in the trail; the resubmission itself
// is not a decision and appends nothing.
func (s *WorkflowService) Resubmit(ctx context.Context, id string, payload dto.ResubmitPayload, newReportPath string, actor *models.JWTClaims) (*dto.RequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStaff {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the staff owner can resubmit")
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resubmission payload")
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.StaffID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another staff member")
	}
	if req.CurrentRole != models.RoleNone {
		return nil, appErrors.ErrNotInRecreation
	}
	expectedVersion := req.Version

	// One snapshot per recreation cycle: the pre-edit purpose of this cycle
	// replaces whatever an earlier cycle recorded.
	preEdit := req.Purpose
	req.OriginalPurpose = &preEdit

	req.EventName = strings.TrimSpace(payload.EventName)
	req.EventDate = strings.TrimSpace(payload.EventDate)
	req.Purpose = strings.TrimSpace(payload.Purpose)
	if newReportPath != "" {
		req.ReportPath = newReportPath
	}
	req.CurrentRole = models.RoleHOD
	req.OverallStatus = req.StatusLabel()

	if err := s.persistTransition(ctx, req, expectedVersion); err != nil {
		return nil, err
	}
	s.logger.Info("event request resubmitted",
		zap.String("request_id", req.ID),
		zap.String("staff_id", actor.UserID),
	)
	view := dto.NewRequestView(req, actor.Role)
	return &view, nil
}

// Get returns a request projection, enforcing staff ownership scope.
func (s *WorkflowService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.RequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStaff && req.StaffID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	view := dto.NewRequestView(req, actor.Role)
	return &view, nil
}

// ListForActor returns the requests visible to the actor: staff see their own
// submissions, approvers see the queue pending at their role (HODs scoped to
// their department), admins see everything.
func (s *WorkflowService) ListForActor(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]dto.RequestView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RequestFilter{
		Department: query.Department,
		Completed:  query.Completed,
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	switch actor.Role {
	case models.RoleStaff:
		filter.StaffID = actor.UserID
		filter.Department = ""
	case models.RoleHOD:
		filter.CurrentRole = models.RoleHOD
		if actor.Department == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "HOD account has no department")
		}
		filter.Department = *actor.Department
	case models.RoleIQAC, models.RolePrincipal, models.RoleDirector, models.RoleAO, models.RoleCEO:
		filter.CurrentRole = actor.Role
	case models.RoleAdmin:
		// unrestricted, honour caller filters
	default:
		return nil, appErrors.ErrForbidden
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.storeError(err, "failed to list event requests")
	}
	views := make([]dto.RequestView, 0, len(requests))
	for i := range requests {
		views = append(views, dto.NewRequestView(&requests[i], actor.Role))
	}
	return views, nil
}

// loadForDecision loads a request and authorizes a pending decision by actor.
func (s *WorkflowService) loadForDecision(ctx context.Context, id string, actor *models.JWTClaims) (*models.EventRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CurrentRole == models.RoleCompleted {
		return nil, appErrors.ErrAlreadyCompleted
	}
	if req.CurrentRole != actor.Role {
		return nil, appErrors.ErrNotCurrentApprover
	}
	return req, nil
}

// assignFlow validates and locks IQAC's reference number and workflow choice.
func (s *WorkflowService) assignFlow(ctx context.Context, req *models.EventRequest, payload dto.ApprovePayload) error {
	ref := strings.TrimSpace(payload.ReferenceNo)
	if !referenceNoPattern.MatchString(ref) {
		return appErrors.ErrInvalidReference
	}
	exists, err := s.repo.ReferenceNoExists(ctx, ref)
	if err != nil {
		return s.storeError(err, "failed to check reference number")
	}
	if exists {
		return appErrors.ErrDuplicateReference
	}
	flow, ok := models.CanonicalizeFlow(payload.Flow)
	if !ok {
		return appErrors.ErrInvalidFlow
	}
	req.ReferenceNo = &ref
	req.WorkflowRoles = models.RoleList(flow)
	return nil
}

func (s *WorkflowService) persistTransition(ctx context.Context, req *models.EventRequest, expectedVersion int64) error {
	err := s.repo.UpdateWorkflow(ctx, req, expectedVersion)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		// A concurrent actor won the race for this state; this transition is
		// definitively rejected, never retried.
		return appErrors.ErrStaleState
	case errors.Is(err, repository.ErrDuplicateReference):
		return appErrors.ErrDuplicateReference
	default:
		return s.storeError(err, "failed to persist workflow transition")
	}
}

func (s *WorkflowService) load(ctx context.Context, id string) (*models.EventRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, s.storeError(err, "failed to load event request")
	}
	return req, nil
}

func (s *WorkflowService) storeError(err error, message string) error {
	s.logger.Error("request store failure", zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}
