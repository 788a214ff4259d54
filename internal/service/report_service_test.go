package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/storage"
)

func pdfBytes() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 600)...)
}

func newReportService(t *testing.T, store reportRequestLoader) *ReportService {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Minute)
	return NewReportService(store, local, signer, nil, ReportServiceConfig{})
}

func TestReportServiceStoreAndDownload(t *testing.T) {
	requests := newRequestStoreStub()
	svc := newReportService(t, requests)

	path, err := svc.Store(ReportUpload{
		Filename: "report.pdf",
		Size:     int64(len(pdfBytes())),
		Content:  bytes.NewReader(pdfBytes()),
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, ".pdf"))

	dept := models.DeptCSE
	req := &models.EventRequest{
		ID:         "req-1",
		StaffID:    "staff-1",
		Department: dept,
		ReportPath: path,
	}
	require.NoError(t, requests.Create(context.Background(), req))

	url, expiresAt, err := svc.GetDownloadURL(context.Background(), "req-1", staffClaims())
	require.NoError(t, err)
	require.Contains(t, url, "/requests/req-1/report/download?token=")
	require.True(t, expiresAt.After(time.Now()))

	token := url[strings.Index(url, "token=")+len("token="):]
	download, err := svc.Download(context.Background(), "req-1", token)
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, int64(len(pdfBytes())), download.SizeBytes)
	require.Equal(t, "event-report-req-1.pdf", download.Filename)
}

func TestReportServiceStoreRejections(t *testing.T) {
	svc := newReportService(t, newRequestStoreStub())

	_, err := svc.Store(ReportUpload{})
	require.ErrorContains(t, err, "report file is required")

	_, err = svc.Store(ReportUpload{
		Filename: "huge.pdf",
		Size:     100 * 1024 * 1024,
		Content:  bytes.NewReader(pdfBytes()),
	})
	require.ErrorContains(t, err, "bytes limit")

	plain := []byte("just some text, definitely not a pdf document at all......")
	_, err = svc.Store(ReportUpload{
		Filename: "notes.pdf",
		Size:     int64(len(plain)),
		Content:  bytes.NewReader(plain),
	})
	require.ErrorContains(t, err, "must be a PDF")
}

func TestReportServiceDownloadScope(t *testing.T) {
	requests := newRequestStoreStub()
	svc := newReportService(t, requests)
	dept := models.DeptCSE
	require.NoError(t, requests.Create(context.Background(), &models.EventRequest{
		ID:         "req-1",
		StaffID:    "staff-1",
		Department: dept,
		ReportPath: "somewhere.pdf",
	}))

	stranger := staffClaims()
	stranger.UserID = "staff-9"
	_, _, err := svc.GetDownloadURL(context.Background(), "req-1", stranger)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = svc.GetDownloadURL(context.Background(), "missing", staffClaims())
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Download(context.Background(), "req-1", "bogus-token")
	require.ErrorContains(t, err, "invalid or expired")
}
