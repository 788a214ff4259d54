package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/dto"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/middleware"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/service"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
)

type workflowMock struct {
	submitted      *dto.CreateRequestPayload
	submitPath     string
	approvePayload *dto.ApprovePayload
	approveErr     error
	recreateWith   *dto.RecreatePayload
	resubmitPath   string
	view           dto.RequestView
}

func (m *workflowMock) Submit(ctx context.Context, payload dto.CreateRequestPayload, reportPath string, actor *models.JWTClaims) (*dto.RequestView, error) {
	m.submitted = &payload
	m.submitPath = reportPath
	return &m.view, nil
}

func (m *workflowMock) Approve(ctx context.Context, id string, payload dto.ApprovePayload, actor *models.JWTClaims) (*dto.RequestView, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	m.approvePayload = &payload
	return &m.view, nil
}

func (m *workflowMock) Recreate(ctx context.Context, id string, payload dto.RecreatePayload, actor *models.JWTClaims) (*dto.RequestView, error) {
	m.recreateWith = &payload
	return &m.view, nil
}

func (m *workflowMock) Resubmit(ctx context.Context, id string, payload dto.ResubmitPayload, newReportPath string, actor *models.JWTClaims) (*dto.RequestView, error) {
	m.resubmitPath = newReportPath
	return &m.view, nil
}

func (m *workflowMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.RequestView, error) {
	return &m.view, nil
}

func (m *workflowMock) ListForActor(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]dto.RequestView, error) {
	return []dto.RequestView{m.view}, nil
}

type reportsMock struct {
	stored    []service.ReportUpload
	discarded []string
	storeErr  error
}

func (m *reportsMock) Store(upload service.ReportUpload) (string, error) {
	if m.storeErr != nil {
		return "", m.storeErr
	}
	m.stored = append(m.stored, upload)
	return "reports/stored.pdf", nil
}

func (m *reportsMock) Discard(path string) {
	m.discarded = append(m.discarded, path)
}

func (m *reportsMock) GetDownloadURL(ctx context.Context, requestID string, actor *models.JWTClaims) (string, time.Time, error) {
	return "/api/v1/requests/" + requestID + "/report/download?token=tok", time.Now().Add(time.Minute), nil
}

func (m *reportsMock) Download(ctx context.Context, requestID, token string) (*service.ReportDownload, error) {
	return nil, appErrors.ErrForbidden
}

func testClaims(role models.Role) *models.JWTClaims {
	dept := models.DeptCSE
	return &models.JWTClaims{UserID: "user-1", Role: role, FullName: "Test User", Department: &dept}
}

func multipartBody(t *testing.T, fields map[string]string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if withFile {
		part, err := writer.CreateFormFile("report", "report.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRequestHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &workflowMock{}
	reports := &reportsMock{}
	handler := NewRequestHandler(workflow, reports)

	body, contentType := multipartBody(t, map[string]string{
		"eventName": "Tech Symposium",
		"eventDate": "2026-09-12",
		"purpose":   "Annual event",
	}, true)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Set(middleware.ContextUserKey, testClaims(models.RoleStaff))

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, workflow.submitted)
	require.Equal(t, "Tech Symposium", workflow.submitted.EventName)
	require.Equal(t, "reports/stored.pdf", workflow.submitPath)
	require.Len(t, reports.stored, 1)
}

func TestRequestHandlerCreateMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&workflowMock{}, &reportsMock{})

	body, contentType := multipartBody(t, map[string]string{
		"eventName": "Tech Symposium",
		"eventDate": "2026-09-12",
		"purpose":   "Annual event",
	}, false)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Set(middleware.ContextUserKey, testClaims(models.RoleStaff))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerCreateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&workflowMock{}, &reportsMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", nil)
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestHandlerApproveTruncatesComments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &workflowMock{}
	handler := NewRequestHandler(workflow, &reportsMock{})

	long := strings.Repeat("x", 450)
	body, _ := json.Marshal(dto.ApprovePayload{Comments: "  " + long + "  "})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/approve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, testClaims(models.RoleHOD))

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, workflow.approvePayload)
	require.Len(t, []rune(workflow.approvePayload.Comments), 400)
}

func TestRequestHandlerApproveServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &workflowMock{approveErr: appErrors.ErrStaleState}
	handler := NewRequestHandler(workflow, &reportsMock{})

	body, _ := json.Marshal(dto.ApprovePayload{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/approve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, testClaims(models.RoleHOD))

	handler.Approve(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRequestHandlerResubmitWithoutFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &workflowMock{}
	reports := &reportsMock{}
	handler := NewRequestHandler(workflow, reports)

	body, contentType := multipartBody(t, map[string]string{
		"eventName": "Tech Symposium",
		"eventDate": "2026-09-19",
		"purpose":   "Revised",
	}, false)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/resubmit", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, testClaims(models.RoleStaff))

	handler.Resubmit(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, workflow.resubmitPath)
	require.Empty(t, reports.stored)
}

func TestRequestHandlerListInvalidCompleted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&workflowMock{}, &reportsMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests?completed=banana", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, testClaims(models.RoleIQAC))

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerReportDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&workflowMock{}, &reportsMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests/req-1/report/download", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.ReportDownload(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
