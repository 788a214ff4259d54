package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/jobs"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/storage"
)

type countingRenderer struct {
	renders int
}

func (r *countingRenderer) Render(req *models.EventRequest) ([]byte, error) {
	r.renders++
	return []byte("%PDF-1.4 rendered letter for " + req.ID), nil
}

func completedRequest(t *testing.T, store *requestStoreStub) *models.EventRequest {
	t.Helper()
	ref := "REF20261"
	req := &models.EventRequest{
		ID:            "req-1",
		StaffID:       "staff-1",
		StaffName:     "Asha Staff",
		Department:    models.DeptCSE,
		EventName:     "Tech Symposium",
		EventDate:     "2026-09-12",
		CurrentRole:   models.RoleCompleted,
		WorkflowRoles: models.RoleList{models.RolePrincipal},
		ReferenceNo:   &ref,
		IsCompleted:   true,
		OverallStatus: "Approved",
	}
	require.NoError(t, store.Create(context.Background(), req))
	return req
}

func newLetterFixture(t *testing.T) (*LetterService, *requestStoreStub, *countingRenderer, *storage.LocalStorage) {
	t.Helper()
	store := newRequestStoreStub()
	renderer := &countingRenderer{}
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("letter-secret", time.Minute)
	svc := NewLetterService(store, renderer, local, signer, nil, LetterServiceConfig{})
	return svc, store, renderer, local
}

func TestLetterServiceEnsureLazyIdempotent(t *testing.T) {
	svc, store, renderer, local := newLetterFixture(t)
	completedRequest(t, store)

	path, err := svc.Ensure(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, "letter-req-1.pdf", path)
	require.Equal(t, 1, renderer.renders)
	require.True(t, local.Exists(path))

	again, err := svc.Ensure(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, path, again)
	require.Equal(t, 1, renderer.renders)

	// A vanished cache file triggers a re-render.
	require.NoError(t, local.Delete(path))
	_, err = svc.Ensure(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, 2, renderer.renders)
}

func TestLetterServiceEnsureRequiresCompletion(t *testing.T) {
	svc, store, _, _ := newLetterFixture(t)
	require.NoError(t, store.Create(context.Background(), &models.EventRequest{
		ID:          "req-2",
		StaffID:     "staff-1",
		CurrentRole: models.RoleHOD,
	}))

	_, err := svc.Ensure(context.Background(), "req-2")
	require.ErrorIs(t, err, appErrors.ErrLetterNotReady)

	_, err = svc.Ensure(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestLetterServiceDownloadRoundTrip(t *testing.T) {
	svc, store, _, _ := newLetterFixture(t)
	completedRequest(t, store)

	url, expiresAt, err := svc.GetDownloadURL(context.Background(), "req-1", staffClaims())
	require.NoError(t, err)
	require.Contains(t, url, "/requests/req-1/letter/download?token=")
	require.True(t, expiresAt.After(time.Now()))

	token := url[strings.Index(url, "token=")+len("token="):]
	download, err := svc.Download(context.Background(), "req-1", token)
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, "approval-letter-req-1.pdf", download.Filename)
	require.Greater(t, download.SizeBytes, int64(0))

	_, err = svc.Download(context.Background(), "req-1", "tampered")
	require.ErrorContains(t, err, "invalid or expired")
}

func TestLetterServiceDownloadURLScope(t *testing.T) {
	svc, store, _, _ := newLetterFixture(t)
	completedRequest(t, store)

	stranger := staffClaims()
	stranger.UserID = "staff-9"
	_, _, err := svc.GetDownloadURL(context.Background(), "req-1", stranger)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = svc.GetDownloadURL(context.Background(), "req-1", roleClaims(models.RolePrincipal))
	require.NoError(t, err)
}

func TestLetterServiceWarmQueue(t *testing.T) {
	svc, store, renderer, _ := newLetterFixture(t)
	completedRequest(t, store)

	queue := svc.WarmQueue(1, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(jobs.Job{ID: "warm-req-1", Type: "letter-warm", Payload: "req-1"}))
	require.Eventually(t, func() bool { return renderer.renders >= 1 }, 2*time.Second, 10*time.Millisecond)
}
