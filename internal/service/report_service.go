package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
)

type reportRequestLoader interface {
	GetByID(ctx context.Context, id string) (*models.EventRequest, error)
}

type reportFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type reportSignedURLSigner interface {
	Generate(requestID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (requestID, relPath string, expiresAt time.Time, err error)
}

// ReportUpload carries the metadata and stream of an uploaded event report.
type ReportUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// ReportDownload bundles an open report file for streaming to the client.
type ReportDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
	ExpiresAt time.Time
}

// ReportServiceConfig holds upload validation parameters.
type ReportServiceConfig struct {
	MaxFileSize int64
	APIPrefix   string
}

// ReportService stores event report PDFs and mints signed download links.
// Only PDF uploads are accepted; the content is sniffed, not trusted by name.
type ReportService struct {
	requests reportRequestLoader
	storage  reportFileStorage
	signer   reportSignedURLSigner
	logger   *zap.Logger
	cfg      ReportServiceConfig
}

// NewReportService constructs the service with defaults.
func NewReportService(requests reportRequestLoader, storage reportFileStorage, signer reportSignedURLSigner, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ReportService{
		requests: requests,
		storage:  storage,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Store validates and persists an uploaded report PDF, returning the stored
// relative path for the workflow record.
func (s *ReportService) Store(upload ReportUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "report file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("report exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	if err := s.sniffPDF(upload.Content); err != nil {
		return "", err
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	path, err := s.storage.SaveStream(s.generateFilename(), upload.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report file")
	}
	s.logger.Info("event report stored", zap.String("path", path), zap.Int64("size_bytes", upload.Size))
	return path, nil
}

// Discard removes a stored report, used when the surrounding transition fails.
func (s *ReportService) Discard(path string) {
	if path == "" {
		return
	}
	if err := s.storage.Delete(path); err != nil {
		s.logger.Warn("failed to discard report file", zap.String("path", path), zap.Error(err))
	}
}

// GetDownloadURL mints a signed, time-limited URL for a request's report.
func (s *ReportService) GetDownloadURL(ctx context.Context, requestID string, actor *models.JWTClaims) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	req, err := s.loadVisible(ctx, requestID, actor)
	if err != nil {
		return "", time.Time{}, err
	}
	if req.ReportPath == "" {
		return "", time.Time{}, appErrors.ErrNotFound
	}
	token, expiresAt, err := s.signer.Generate(req.ID, req.ReportPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	url := fmt.Sprintf("%s/requests/%s/report/download?token=%s", base, req.ID, token)
	return url, expiresAt, nil
}

// Download validates the token and opens the report file for streaming.
func (s *ReportService) Download(ctx context.Context, requestID, token string) (*ReportDownload, error) {
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
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event request")
	}
	if req.ReportPath == "" || req.ReportPath != relPath {
		// The report was replaced after the token was minted.
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token no longer matches stored report")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file missing")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  fmt.Sprintf("event-report-%s.pdf", req.ID),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ReportService) loadVisible(ctx context.Context, requestID string, actor *models.JWTClaims) (*models.EventRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event request")
	}
	if actor.Role == models.RoleStaff && req.StaffID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return req, nil
}

func (s *ReportService) sniffPDF(content io.ReadSeeker) error {
	head := make([]byte, 512)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read report file")
	}
	if detected := http.DetectContentType(head[:n]); !strings.HasPrefix(detected, "application/pdf") {
		return appErrors.Clone(appErrors.ErrValidation, "report must be a PDF")
	}
	return nil
}

func (s *ReportService) generateFilename() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("report-%d.pdf", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf) + ".pdf"
}
