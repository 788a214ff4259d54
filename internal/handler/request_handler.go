package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/dto"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/service"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/response"
)

// maxCommentRunes caps approver comment lengths at the HTTP boundary.
const maxCommentRunes = 400

type requestWorkflow interface {
	Submit(ctx context.Context, payload dto.CreateRequestPayload, reportPath string, actor *models.JWTClaims) (*dto.RequestView, error)
	Approve(ctx context.Context, id string, payload dto.ApprovePayload, actor *models.JWTClaims) (*dto.RequestView, error)
	Recreate(ctx context.Context, id string, payload dto.RecreatePayload, actor *models.JWTClaims) (*dto.RequestView, error)
	Resubmit(ctx context.Context, id string, payload dto.ResubmitPayload, newReportPath string, actor *models.JWTClaims) (*dto.RequestView, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.RequestView, error)
	ListForActor(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]dto.RequestView, error)
}

type requestReports interface {
	Store(upload service.ReportUpload) (string, error)
	Discard(path string)
	GetDownloadURL(ctx context.Context, requestID string, actor *models.JWTClaims) (string, time.Time, error)
	Download(ctx context.Context, requestID, token string) (*service.ReportDownload, error)
}

// RequestHandler manages event request HTTP endpoints.
type RequestHandler struct {
	workflow requestWorkflow
	reports  requestReports
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(workflow requestWorkflow, reports requestReports) *RequestHandler {
	return &RequestHandler{workflow: workflow, reports: reports}
}

// Create godoc
// @Summary Submit a new event request
// @Tags Requests
// @Accept multipart/form-data
// @Produce json
// @Param eventName formData string true "Event name"
// @Param eventDate formData string true "Event date"
// @Param purpose formData string true "Purpose"
// @Param report formData file true "Event report PDF"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.CreateRequestPayload
	if err := c.ShouldBind(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	upload, err := h.openReport(c, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	reportPath, err := h.reports.Store(*upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.workflow.Submit(c.Request.Context(), payload, reportPath, claims)
	if err != nil {
		h.reports.Discard(reportPath)
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// List godoc
// @Summary List event requests visible to the caller
// @Tags Requests
// @Produce json
// @Param department query string false "Department filter"
// @Param completed query bool false "Completion filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.RequestQuery{
		Department: models.Department(strings.TrimSpace(c.Query("department"))),
	}
	if raw := c.Query("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "completed must be true or false"))
			return
		}
		query.Completed = &completed
	}
	query.Limit = intQuery(c, "limit")
	query.Offset = intQuery(c, "offset")

	views, err := h.workflow.ListForActor(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Get godoc
// @Summary Get one event request with its approval trail
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.workflow.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Approve godoc
// @Summary Approve a pending request as the current approver
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ApprovePayload true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.ApprovePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	payload.Comments = normalizeComments(payload.Comments)

	view, err := h.workflow.Approve(c.Request.Context(), c.Param("id"), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Recreate godoc
// @Summary Send a request back to its staff owner for correction
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RecreatePayload true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests/{id}/recreate [post]
func (h *RequestHandler) Recreate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.RecreatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	payload.Comments = normalizeComments(payload.Comments)

	view, err := h.workflow.Recreate(c.Request.Context(), c.Param("id"), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Resubmit godoc
// @Summary Resubmit a corrected request after recreation
// @Tags Requests
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Request ID"
// @Param eventName formData string true "Event name"
// @Param eventDate formData string true "Event date"
// @Param purpose formData string true "Purpose"
// @Param report formData file false "Replacement report PDF"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/resubmit [post]
func (h *RequestHandler) Resubmit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.ResubmitPayload
	if err := c.ShouldBind(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resubmission payload"))
		return
	}
	reportPath := ""
	upload, err := h.openReport(c, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	if upload != nil {
		reportPath, err = h.reports.Store(*upload)
		if err != nil {
			response.Error(c, err)
			return
		}
	}
	view, err := h.workflow.Resubmit(c.Request.Context(), c.Param("id"), payload, reportPath, claims)
	if err != nil {
		h.reports.Discard(reportPath)
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ReportURL godoc
// @Summary Mint a signed download URL for the request's report
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/report [get]
func (h *RequestHandler) ReportURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	url, expiresAt, err := h.reports.GetDownloadURL(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SignedURLResponse{URL: url, ExpiresAt: expiresAt}, nil)
}

// ReportDownload godoc
// @Summary Stream the report PDF using a signed token
// @Tags Requests
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /requests/{id}/report/download [get]
func (h *RequestHandler) ReportDownload(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.reports.Download(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, "application/pdf", result.File, nil)
}

func (h *RequestHandler) openReport(c *gin.Context, required bool) (*service.ReportUpload, error) {
	fileHeader, err := c.FormFile("report")
	if err != nil {
		if !required {
			return nil, nil
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "report file is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report")
	}
	defer src.Close()
	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer report")
	}
	return &service.ReportUpload{
		Filename: fileHeader.Filename,
		Size:     int64(len(buf)),
		Content:  bytes.NewReader(buf),
	}, nil
}

func normalizeComments(comments string) string {
	comments = strings.TrimSpace(comments)
	runes := []rune(comments)
	if len(runes) > maxCommentRunes {
		return string(runes[:maxCommentRunes])
	}
	return comments
}

func intQuery(c *gin.Context, name string) int {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
