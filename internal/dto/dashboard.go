package dto

import (
	"time"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
)

// DashboardSummary aggregates pending counts for tracking views.
type DashboardSummary struct {
	PendingByRole map[models.Role]int `json:"pending_by_role"`
	Total         int                 `json:"total"`
	GeneratedAt   time.Time           `json:"generated_at"`
}
