package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	appErrors "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/errors"
)

type cacheRepoStub struct {
	entries map[string][]byte
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: make(map[string][]byte)}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func seedDashboardRequests(t *testing.T, store *requestStoreStub) {
	t.Helper()
	fixtures := []struct {
		id        string
		dept      models.Department
		role      models.Role
		completed bool
	}{
		{"req-1", models.DeptCSE, models.RoleHOD, false},
		{"req-2", models.DeptCSE, models.RoleIQAC, false},
		{"req-3", models.DeptECE, models.RoleHOD, false},
		{"req-4", models.DeptECE, models.RoleCompleted, true},
	}
	for _, f := range fixtures {
		ref := "REF" + f.id[4:] + "0026"
		req := &models.EventRequest{
			ID:            f.id,
			StaffID:       "staff-1",
			StaffName:     "Asha Staff",
			Department:    f.dept,
			EventName:     "Event " + f.id,
			EventDate:     "2026-09-12",
			CurrentRole:   f.role,
			IsCompleted:   f.completed,
			WorkflowRoles: models.RoleList{models.RolePrincipal},
			ReferenceNo:   &ref,
		}
		require.NoError(t, store.Create(context.Background(), req))
	}
}

func TestDashboardServiceSummary(t *testing.T) {
	store := newRequestStoreStub()
	seedDashboardRequests(t, store)
	cache := NewCacheService(newCacheRepoStub(), nil, time.Minute, nil, true)
	svc := NewDashboardService(store, cache, nil, DashboardServiceConfig{})

	summary, cached, err := svc.Summary(context.Background(), "", roleClaims(models.RoleIQAC))
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.PendingByRole[models.RoleHOD])
	require.Equal(t, 1, summary.PendingByRole[models.RoleIQAC])

	again, cached, err := svc.Summary(context.Background(), "", roleClaims(models.RoleIQAC))
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, summary.Total, again.Total)

	svc.Invalidate(context.Background())
	_, cached, err = svc.Summary(context.Background(), "", roleClaims(models.RoleIQAC))
	require.NoError(t, err)
	require.False(t, cached)
}

func TestDashboardServiceSummaryDepartmentScope(t *testing.T) {
	store := newRequestStoreStub()
	seedDashboardRequests(t, store)
	cache := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewDashboardService(store, cache, nil, DashboardServiceConfig{})

	summary, _, err := svc.Summary(context.Background(), models.DeptCSE, roleClaims(models.RoleHOD))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)

	_, _, err = svc.Summary(context.Background(), models.Department("ARTS"), roleClaims(models.RoleHOD))
	require.ErrorContains(t, err, "unknown department")
}

func TestDashboardServiceExportRegister(t *testing.T) {
	store := newRequestStoreStub()
	seedDashboardRequests(t, store)
	cache := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewDashboardService(store, cache, nil, DashboardServiceConfig{})

	data, filename, err := svc.ExportRegister(context.Background(), roleClaims(models.RoleIQAC))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filename, "approved-events-"))
	csv := string(data)
	require.Contains(t, csv, "Reference No")
	require.Contains(t, csv, "Event req-4")
	require.Contains(t, csv, "HOD > IQAC > PRINCIPAL")
	require.NotContains(t, csv, "Event req-1")

	_, _, err = svc.ExportRegister(context.Background(), staffClaims())
	require.ErrorContains(t, err, "limited to IQAC")
}
