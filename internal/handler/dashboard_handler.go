package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/dto"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/response"
)

type dashboardProvider interface {
	Summary(ctx context.Context, department models.Department, actor *models.JWTClaims) (*dto.DashboardSummary, bool, error)
	ExportRegister(ctx context.Context, actor *models.JWTClaims) ([]byte, string, error)
}

// DashboardHandler exposes tracking and export endpoints.
type DashboardHandler struct {
	dashboard dashboardProvider
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard dashboardProvider) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Pending request counts per approver role
// @Tags Dashboard
// @Produce json
// @Param department query string false "Department filter"
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	department := models.Department(strings.TrimSpace(c.Query("department")))
	summary, cached, err := h.dashboard.Summary(c.Request.Context(), department, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cached": cached})
}

// ExportRegister godoc
// @Summary Download the register of approved events as CSV
// @Tags Dashboard
// @Produce text/csv
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /dashboard/register [get]
func (h *DashboardHandler) ExportRegister(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	data, filename, err := h.dashboard.ExportRegister(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv", data)
}
