package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/middleware"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
)

// claimsFromContext returns the authenticated actor's claims or nil when the
// request did not pass the JWT middleware. Services treat nil as unauthorized.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
