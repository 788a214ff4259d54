package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
)

const requestColumns = `id, staff_id, staff_name, department, event_name, event_date, purpose, original_purpose,
       report_path, pending_role, workflow_roles, approvals, overall_status, reference_no, is_completed,
       letter_path, version, created_at, updated_at`

// ErrVersionConflict signals that a conditional update observed a stale version.
var ErrVersionConflict = errors.New("request version conflict")

// ErrDuplicateReference signals the reference number unique index rejected a write.
var ErrDuplicateReference = errors.New("duplicate reference number")

// RequestRepository persists event request records.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new event request row.
func (r *RequestRepository) Create(ctx context.Context, req *models.EventRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if req.CurrentRole == "" {
		req.CurrentRole = models.RoleHOD
	}
	if req.Approvals == nil {
		req.Approvals = models.ApprovalTrail{}
	}
	if req.WorkflowRoles == nil {
		req.WorkflowRoles = models.RoleList{}
	}
	if req.Version == 0 {
		req.Version = 1
	}
	const query = `INSERT INTO event_requests
	(id, staff_id, staff_name, department, event_name, event_date, purpose, original_purpose,
	 report_path, pending_role, workflow_roles, approvals, overall_status, reference_no, is_completed,
	 letter_path, version, created_at, updated_at)
	VALUES (:id, :staff_id, :staff_name, :department, :event_name, :event_date, :purpose, :original_purpose,
	 :report_path, :pending_role, :workflow_roles, :approvals, :overall_status, :reference_no, :is_completed,
	 :letter_path, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create event request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.EventRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM event_requests WHERE id = $1`, requestColumns)
	var req models.EventRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.EventRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM event_requests`, requestColumns))

	conditions := make([]string, 0, 4)
	if filter.CurrentRole != "" {
		args = append(args, filter.CurrentRole)
		conditions = append(conditions, fmt.Sprintf("pending_role = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.StaffID != "" {
		args = append(args, filter.StaffID)
		conditions = append(conditions, fmt.Sprintf("staff_id = $%d", len(args)))
	}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		conditions = append(conditions, fmt.Sprintf("is_completed = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.EventRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list event requests: %w", err)
	}
	return requests, nil
}

// ReferenceNoExists reports whether any request already holds the reference number.
func (r *RequestRepository) ReferenceNoExists(ctx context.Context, ref string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM event_requests WHERE reference_no = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, ref); err != nil {
		return false, fmt.Errorf("check reference number: %w", err)
	}
	return exists, nil
}

// UpdateWorkflow persists a workflow transition with optimistic concurrency.
// The row is only written when the stored version still matches; a lost race
// surfaces as ErrVersionConflict so exactly one transition succeeds per state.
// A reference_no unique index violation surfaces as ErrDuplicateReference.
func (r *RequestRepository) UpdateWorkflow(ctx context.Context, req *models.EventRequest, expectedVersion int64) error {
	req.UpdatedAt = time.Now().UTC()
	req.Version = expectedVersion + 1
	const query = `UPDATE event_requests SET
	 event_name = :event_name, event_date = :event_date, purpose = :purpose, original_purpose = :original_purpose,
	 report_path = :report_path, pending_role = :pending_role, workflow_roles = :workflow_roles,
	 approvals = :approvals, overall_status = :overall_status, reference_no = :reference_no,
	 is_completed = :is_completed, letter_path = :letter_path, version = :version, updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               req.ID,
		"event_name":       req.EventName,
		"event_date":       req.EventDate,
		"purpose":          req.Purpose,
		"original_purpose": req.OriginalPurpose,
		"report_path":      req.ReportPath,
		"pending_role":     req.CurrentRole,
		"workflow_roles":   req.WorkflowRoles,
		"approvals":        req.Approvals,
		"overall_status":   req.OverallStatus,
		"reference_no":     req.ReferenceNo,
		"is_completed":     req.IsCompleted,
		"letter_path":      req.LetterPath,
		"version":          req.Version,
		"updated_at":       req.UpdatedAt,
		"expected_version": expectedVersion,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("update event request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

// UpdateLetterPath records the rendered letter location without bumping the
// workflow version; the workflow fields of a completed request never change.
func (r *RequestRepository) UpdateLetterPath(ctx context.Context, id, letterPath string) error {
	const query = `UPDATE event_requests SET letter_path = $1, updated_at = $2 WHERE id = $3 AND is_completed = TRUE`
	result, err := r.db.ExecContext(ctx, query, letterPath, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update letter path: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check letter path rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByCurrentRole aggregates pending request counts grouped by the role the
// request is waiting on. Completed and sent-back requests are not pending at
// any approver and are excluded.
func (r *RequestRepository) CountByCurrentRole(ctx context.Context, department models.Department) (map[models.Role]int, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT pending_role, COUNT(*) AS total FROM event_requests`)
	builder.WriteString(fmt.Sprintf(" WHERE pending_role NOT IN ('%s', '%s')", models.RoleNone, models.RoleCompleted))
	args := make([]interface{}, 0, 1)
	if department != "" {
		args = append(args, department)
		builder.WriteString(" AND department = $1")
	}
	builder.WriteString(" GROUP BY pending_role")

	rows, err := r.db.QueryxContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("count requests by role: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.Role]int)
	for rows.Next() {
		var role models.Role
		var total int
		if err := rows.Scan(&role, &total); err != nil {
			return nil, fmt.Errorf("scan role count: %w", err)
		}
		counts[role] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role counts: %w", err)
	}
	return counts, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
