package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/dto"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/export"
)

type dashboardRequestStore interface {
	CountByCurrentRole(ctx context.Context, department models.Department) (map[models.Role]int, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.EventRequest, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService aggregates pending-queue counts for tracking views and
// exports the register of completed requests.
type DashboardService struct {
	requests dashboardRequestStore
	cache    *CacheService
	exporter *export.CSVExporter
	logger   *zap.Logger
	now      func() time.Time
	cfg      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(requests dashboardRequestStore, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		requests: requests,
		cache:    cache,
		exporter: export.NewCSVExporter(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      cfg,
	}
}

// Summary returns pending counts per approver role, optionally scoped to a
// department, and reports whether the payload came from cache.
func (s *DashboardService) Summary(ctx context.Context, department models.Department, actor *models.JWTClaims) (*dto.DashboardSummary, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if department != "" && !models.IsValidDepartment(department) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}

	key := fmt.Sprintf("dashboard:summary:%s", department)
	if department == "" {
		key = "dashboard:summary:all"
	}
	var cached dto.DashboardSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	counts, err := s.requests.CountByCurrentRole(ctx, department)
	if err != nil {
		s.logger.Error("failed to aggregate pending counts", zap.Error(err))
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard summary")
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	summary := &dto.DashboardSummary{
		PendingByRole: counts,
		Total:         total,
		GeneratedAt:   s.now(),
	}
	if err := s.cache.Set(ctx, key, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops cached summaries after a workflow transition.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "dashboard:summary:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

// ExportRegister renders a CSV register of completed requests.
func (s *DashboardService) ExportRegister(ctx context.Context, actor *models.JWTClaims) ([]byte, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleIQAC && actor.Role != models.RoleAdmin {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "register export is limited to IQAC and admins")
	}

	completed := true
	requests, err := s.requests.List(ctx, models.RequestFilter{Completed: &completed})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed requests")
	}

	rows := make([]map[string]string, 0, len(requests))
	for i := range requests {
		req := &requests[i]
		ref := ""
		if req.ReferenceNo != nil {
			ref = *req.ReferenceNo
		}
		chain := ""
		for j, role := range req.EffectiveChain() {
			if j > 0 {
				chain += " > "
			}
			chain += string(role)
		}
		rows = append(rows, map[string]string{
			"Reference No":   ref,
			"Event":          req.EventName,
			"Event Date":     req.EventDate,
			"Department":     string(req.Department),
			"Submitted By":   req.StaffName,
			"Approval Chain": chain,
			"Decisions":      strconv.Itoa(len(req.Approvals)),
			"Completed On":   req.UpdatedAt.Format("2006-01-02"),
		})
	}

	data, err := s.exporter.Render(export.Dataset{
		Headers: []string{"Reference No", "Event", "Event Date", "Department", "Submitted By", "Approval Chain", "Decisions", "Completed On"},
		Rows:    rows,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render register")
	}
	filename := fmt.Sprintf("approved-events-%s.csv", s.now().Format("20060102"))
	return data, filename, nil
}
