package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DecisionStatus classifies a single approver decision.
type DecisionStatus string

const (
	DecisionApproved  DecisionStatus = "Approved"
	DecisionRecreated DecisionStatus = "Recreated"
)

// Approval is one immutable entry in a request's decision trail.
type Approval struct {
	Role        Role           `json:"role"`
	Status      DecisionStatus `json:"status"`
	Comments    string         `json:"comments"`
	DecidedAt   time.Time      `json:"decided_at"`
	RecreatedBy *Role          `json:"recreated_by,omitempty"`
}

// ApprovalTrail is stored as a jsonb column. Entries are append-only.
type ApprovalTrail []Approval

// Value implements driver.Valuer.
func (t ApprovalTrail) Value() (driver.Value, error) {
	if t == nil {
		t = ApprovalTrail{}
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *ApprovalTrail) Scan(src interface{}) error {
	return scanJSON(src, t, "approval trail")
}

// RoleList is stored as a jsonb column.
type RoleList []Role

// Value implements driver.Valuer.
func (l RoleList) Value() (driver.Value, error) {
	if l == nil {
		l = RoleList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *RoleList) Scan(src interface{}) error {
	return scanJSON(src, l, "role list")
}

func scanJSON(src, dest interface{}, label string) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported %s source type %T", label, src)
	}
}

// EventRequest is the aggregate root of the approval workflow.
type EventRequest struct {
	ID              string        `db:"id" json:"id"`
	StaffID         string        `db:"staff_id" json:"staff_id"`
	StaffName       string        `db:"staff_name" json:"staff_name"`
	Department      Department    `db:"department" json:"department"`
	EventName       string        `db:"event_name" json:"event_name"`
	EventDate       string        `db:"event_date" json:"event_date"`
	Purpose         string        `db:"purpose" json:"purpose"`
	OriginalPurpose *string       `db:"original_purpose" json:"original_purpose,omitempty"`
	ReportPath      string        `db:"report_path" json:"report_path"`
	CurrentRole     Role          `db:"pending_role" json:"current_role"`
	WorkflowRoles   RoleList      `db:"workflow_roles" json:"workflow_roles"`
	Approvals       ApprovalTrail `db:"approvals" json:"approvals"`
	OverallStatus   string        `db:"overall_status" json:"overall_status"`
	ReferenceNo     *string       `db:"reference_no" json:"reference_no,omitempty"`
	IsCompleted     bool          `db:"is_completed" json:"is_completed"`
	LetterPath      *string       `db:"letter_path" json:"-"`
	Version         int64         `db:"version" json:"version"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// EffectiveChain returns the full ordered approver chain for this request.
// The IQAC-chosen suffix is empty until IQAC's first approval, so IQAC is
// always the second step.
func (r *EventRequest) EffectiveChain() []Role {
	chain := make([]Role, 0, len(fixedPrefix)+len(r.WorkflowRoles))
	chain = append(chain, fixedPrefix...)
	chain = append(chain, r.WorkflowRoles...)
	return chain
}

// NextRole returns the role due after the given one in the effective chain.
// ok is false when the given role is the final step.
func (r *EventRequest) NextRole(after Role) (next Role, ok bool) {
	chain := r.EffectiveChain()
	for i, role := range chain {
		if role == after {
			if i+1 < len(chain) {
				return chain[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// WorkflowStateKind discriminates the derived workflow state.
type WorkflowStateKind string

const (
	StateAwaitingRole  WorkflowStateKind = "AWAITING_ROLE"
	StateAwaitingStaff WorkflowStateKind = "AWAITING_STAFF"
	StateCompleted     WorkflowStateKind = "COMPLETED"
)

// WorkflowState is the single derived view of where a request stands. Every
// consumer reads state through here instead of re-parsing status strings.
type WorkflowState struct {
	Kind WorkflowStateKind `json:"kind"`
	Role Role              `json:"role,omitempty"`
}

// Status derives the workflow state from CurrentRole.
func (r *EventRequest) Status() WorkflowState {
	switch r.CurrentRole {
	case RoleCompleted:
		return WorkflowState{Kind: StateCompleted}
	case RoleNone:
		return WorkflowState{Kind: StateAwaitingStaff}
	default:
		return WorkflowState{Kind: StateAwaitingRole, Role: r.CurrentRole}
	}
}

// StatusLabel renders the stored human-readable projection of Status.
func (r *EventRequest) StatusLabel() string {
	switch state := r.Status(); state.Kind {
	case StateCompleted:
		return "Approved"
	case StateAwaitingStaff:
		if by := r.lastRecreatedBy(); by != "" {
			return fmt.Sprintf("Sent back by %s for recreation", by)
		}
		return "Awaiting resubmission"
	default:
		return fmt.Sprintf("Pending at %s", state.Role)
	}
}

func (r *EventRequest) lastRecreatedBy() Role {
	for i := len(r.Approvals) - 1; i >= 0; i-- {
		if r.Approvals[i].Status == DecisionRecreated {
			return r.Approvals[i].Role
		}
	}
	return ""
}

// HasReviewed reports whether the role already decided on this request in any
// earlier cycle. Callers use it to flag resubmitted requests.
func (r *EventRequest) HasReviewed(role Role) bool {
	for _, a := range r.Approvals {
		if a.Role == role {
			return true
		}
	}
	return false
}

// RequestFilter captures listing criteria for event requests.
type RequestFilter struct {
	CurrentRole Role
	Department  Department
	StaffID     string
	Completed   *bool
	Limit       int
	Offset      int
}
