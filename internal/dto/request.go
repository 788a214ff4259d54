package dto

import (
	"time"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
)

// CreateRequestPayload carries the multipart form fields of a new submission.
// The report PDF travels alongside as the "report" file part.
type CreateRequestPayload struct {
	EventName string `form:"eventName" json:"eventName" validate:"required"`
	EventDate string `form:"eventDate" json:"eventDate" validate:"required"`
	Purpose   string `form:"purpose" json:"purpose" validate:"required"`
}

// ApprovePayload carries an approver's decision. ReferenceNo and Flow are only
// honoured on IQAC's first approval; later cycles reuse the locked values.
type ApprovePayload struct {
	Comments    string        `json:"comments"`
	ReferenceNo string        `json:"referenceNo,omitempty"`
	Flow        []models.Role `json:"flow,omitempty"`
}

// RecreatePayload sends a request back to its staff owner.
type RecreatePayload struct {
	Comments string `json:"comments"`
}

// ResubmitPayload carries the staff edit during a recreation cycle. The
// replacement report PDF, when present, travels as the "report" file part.
type ResubmitPayload struct {
	EventName string `form:"eventName" json:"eventName" validate:"required"`
	EventDate string `form:"eventDate" json:"eventDate" validate:"required"`
	Purpose   string `form:"purpose" json:"purpose" validate:"required"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	Department models.Department
	Completed  *bool
	Limit      int
	Offset     int
}

// RequestView is the request projection returned to clients, combining the
// stored record with its derived workflow state.
type RequestView struct {
	models.EventRequest
	State       models.WorkflowState `json:"state"`
	Resubmitted bool                 `json:"resubmitted"`
}

// NewRequestView derives the response projection for an actor. Resubmitted is
// actor-relative: it flags requests the acting role has reviewed before.
func NewRequestView(req *models.EventRequest, actor models.Role) RequestView {
	return RequestView{
		EventRequest: *req,
		State:        req.Status(),
		Resubmitted:  actor != "" && req.HasReviewed(actor),
	}
}

// SignedURLResponse returns a time-limited download link.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
