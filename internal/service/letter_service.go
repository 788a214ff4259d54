package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/jobs"
)

type letterRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.EventRequest, error)
	UpdateLetterPath(ctx context.Context, id, letterPath string) error
}

type letterRenderer interface {
	Render(req *models.EventRequest) ([]byte, error)
}

type letterFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Exists(filename string) bool
}

type letterSignedURLSigner interface {
	Generate(requestID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (requestID, relPath string, expiresAt time.Time, err error)
}

// LetterDownload bundles an open approval letter for streaming.
type LetterDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
	ExpiresAt time.Time
}

// LetterServiceConfig configures letter rendering.
type LetterServiceConfig struct {
	APIPrefix string
	Metrics   *MetricsService
}

// LetterService renders the final approval letter for completed requests.
// Rendering is lazy and idempotent: the letter is produced on first demand,
// cached on disk, and regenerated only if the cached file disappears. A
// background queue can warm letters right after completion so the first
// download does not pay the render cost.
type LetterService struct {
	requests letterRequestStore
	renderer letterRenderer
	storage  letterFileStorage
	signer   letterSignedURLSigner
	logger   *zap.Logger
	cfg      LetterServiceConfig

	// renderMu serialises renders per process; renders are cheap and rare
	// enough that a single lock beats per-request bookkeeping.
	renderMu sync.Mutex
}

// NewLetterService constructs the service.
func NewLetterService(requests letterRequestStore, renderer letterRenderer, storage letterFileStorage, signer letterSignedURLSigner, logger *zap.Logger, cfg LetterServiceConfig) *LetterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &LetterService{
		requests: requests,
		renderer: renderer,
		storage:  storage,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Ensure guarantees a rendered letter exists for the request and returns its
// stored relative path. Only completed requests have letters.
func (s *LetterService) Ensure(ctx context.Context, requestID string) (string, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return "", err
	}
	return s.ensureRendered(ctx, req)
}

// GetDownloadURL renders the letter if needed and mints a signed URL for it.
func (s *LetterService) GetDownloadURL(ctx context.Context, requestID string, actor *models.JWTClaims) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	if actor == nil {
		return "", time.Time{}, appErrors.ErrUnauthorized
	}
	req, err := s.load(ctx, requestID)
	if err != nil {
		return "", time.Time{}, err
	}
	if actor.Role == models.RoleStaff && req.StaffID != actor.UserID {
		return "", time.Time{}, appErrors.ErrForbidden
	}
	path, err := s.ensureRendered(ctx, req)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(req.ID, path)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate letter token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	url := fmt.Sprintf("%s/requests/%s/letter/download?token=%s", base, req.ID, token)
	return url, expiresAt, nil
}

// Download validates the token and opens the letter for streaming.
func (s *LetterService) Download(ctx context.Context, requestID, token string) (*LetterDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	tokenID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if tokenID != requestID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match request")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "letter file missing")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat letter file")
	}
	return &LetterDownload{
		File:      file,
		Filename:  fmt.Sprintf("approval-letter-%s.pdf", requestID),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

// WarmQueue builds a background queue whose jobs pre-render letters for
// freshly completed requests. Wire its Enqueue side through a CompletionHook.
func (s *LetterService) WarmQueue(workers, buffer int, logger *zap.Logger) *jobs.Queue {
	return jobs.NewQueue("letter-warm", func(ctx context.Context, job jobs.Job) error {
		requestID, _ := job.Payload.(string)
		if requestID == "" {
			return nil
		}
		if _, err := s.Ensure(ctx, requestID); err != nil {
			return fmt.Errorf("warm letter for %s: %w", requestID, err)
		}
		return nil
	}, jobs.QueueConfig{Workers: workers, BufferSize: buffer, Logger: logger})
}

func (s *LetterService) ensureRendered(ctx context.Context, req *models.EventRequest) (string, error) {
	if !req.IsCompleted {
		return "", appErrors.ErrLetterNotReady
	}
	if req.LetterPath != nil && s.storage.Exists(*req.LetterPath) {
		return *req.LetterPath, nil
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	// Re-check under the lock: a concurrent caller may have rendered already.
	fresh, err := s.load(ctx, req.ID)
	if err != nil {
		return "", err
	}
	if fresh.LetterPath != nil && s.storage.Exists(*fresh.LetterPath) {
		return *fresh.LetterPath, nil
	}

	data, err := s.renderer.Render(fresh)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render approval letter")
	}
	path, err := s.storage.Save(fmt.Sprintf("letter-%s.pdf", fresh.ID), data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist approval letter")
	}
	if err := s.requests.UpdateLetterPath(ctx, fresh.ID, path); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record letter path")
	}
	s.cfg.Metrics.RecordLetterRendered()
	s.logger.Info("approval letter rendered", zap.String("request_id", fresh.ID), zap.String("path", path))
	return path, nil
}

func (s *LetterService) load(ctx context.Context, requestID string) (*models.EventRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event request")
	}
	return req, nil
}
