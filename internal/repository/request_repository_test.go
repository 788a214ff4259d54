package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestRows(req *models.EventRequest) *sqlmock.Rows {
	roles, _ := req.WorkflowRoles.Value()
	trail, _ := req.Approvals.Value()
	return sqlmock.NewRows([]string{
		"id", "staff_id", "staff_name", "department", "event_name", "event_date", "purpose", "original_purpose",
		"report_path", "pending_role", "workflow_roles", "approvals", "overall_status", "reference_no", "is_completed",
		"letter_path", "version", "created_at", "updated_at",
	}).AddRow(
		req.ID, req.StaffID, req.StaffName, req.Department, req.EventName, req.EventDate, req.Purpose, req.OriginalPurpose,
		req.ReportPath, req.CurrentRole, roles, trail, req.OverallStatus, req.ReferenceNo, req.IsCompleted,
		req.LetterPath, req.Version, time.Now(), time.Now(),
	)
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.EventRequest{
		StaffID:    "staff-1",
		StaffName:  "A. Kumar",
		Department: models.DeptCSE,
		EventName:  "Hackathon",
		EventDate:  "2025-04-12",
		Purpose:    "intra-college 24h hackathon",
		ReportPath: "reports/staff-1/hackathon.pdf",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.Equal(t, models.RoleHOD, req.CurrentRole)
	require.EqualValues(t, 1, req.Version)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, staff_id, staff_name, department")).
		WithArgs(req.ID).
		WillReturnRows(requestRows(req))

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, req.ID, found.ID)
	require.Equal(t, models.RoleHOD, found.CurrentRole)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	req := &models.EventRequest{
		ID:          "req-1",
		StaffID:     "staff-1",
		Department:  models.DeptECE,
		CurrentRole: models.RoleHOD,
		Version:     1,
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, staff_id, staff_name, department")).
		WithArgs("HOD", "ECE").
		WillReturnRows(requestRows(req))

	list, err := repo.List(context.Background(), models.RequestFilter{
		CurrentRole: models.RoleHOD,
		Department:  models.DeptECE,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryReferenceNoExists(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("AB12CD34").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ReferenceNoExists(context.Background(), "AB12CD34")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateWorkflowVersionConflict(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := &models.EventRequest{ID: "req-1", CurrentRole: models.RoleIQAC}
	err := repo.UpdateWorkflow(context.Background(), req, 3)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateWorkflowDuplicateReference(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_requests SET")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "event_requests_reference_no_key"})

	ref := "AB12CD34"
	req := &models.EventRequest{ID: "req-1", CurrentRole: models.RolePrincipal, ReferenceNo: &ref}
	err := repo.UpdateWorkflow(context.Background(), req, 2)
	require.ErrorIs(t, err, ErrDuplicateReference)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCountByCurrentRole(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	rows := sqlmock.NewRows([]string{"pending_role", "total"}).
		AddRow("HOD", 3).
		AddRow("IQAC", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pending_role, COUNT(*)")).
		WillReturnRows(rows)

	counts, err := repo.CountByCurrentRole(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 3, counts[models.RoleHOD])
	require.Equal(t, 1, counts[models.RoleIQAC])
	require.NoError(t, mock.ExpectationsWereMet())
}
