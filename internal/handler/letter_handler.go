package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/dto"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/service"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/response"
)

type letterProvider interface {
	GetDownloadURL(ctx context.Context, requestID string, actor *models.JWTClaims) (string, time.Time, error)
	Download(ctx context.Context, requestID, token string) (*service.LetterDownload, error)
}

// LetterHandler exposes approval letter endpoints.
type LetterHandler struct {
	letters letterProvider
}

// NewLetterHandler constructs the handler.
func NewLetterHandler(letters letterProvider) *LetterHandler {
	return &LetterHandler{letters: letters}
}

// LetterURL godoc
// @Summary Mint a signed download URL for the approval letter
// @Tags Letters
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/letter [get]
func (h *LetterHandler) LetterURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	url, expiresAt, err := h.letters.GetDownloadURL(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SignedURLResponse{URL: url, ExpiresAt: expiresAt}, nil)
}

// LetterDownload godoc
// @Summary Stream the approval letter PDF using a signed token
// @Tags Letters
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /requests/{id}/letter/download [get]
func (h *LetterHandler) LetterDownload(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.letters.Download(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, "application/pdf", result.File, nil)
}
