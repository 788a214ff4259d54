package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeFlowOrdersBySeniority(t *testing.T) {
	flow, ok := CanonicalizeFlow([]Role{RoleAO, RoleCEO, RolePrincipal})
	require.True(t, ok)
	require.Equal(t, []Role{RolePrincipal, RoleAO, RoleCEO}, flow)

	flow, ok = CanonicalizeFlow([]Role{RoleAO, RolePrincipal})
	require.True(t, ok)
	require.Equal(t, []Role{RolePrincipal, RoleAO}, flow)
}

func TestCanonicalizeFlowDropsDuplicates(t *testing.T) {
	flow, ok := CanonicalizeFlow([]Role{RoleDirector, RoleDirector, RoleAO})
	require.True(t, ok)
	require.Equal(t, []Role{RoleDirector, RoleAO}, flow)
}

func TestCanonicalizeFlowRejectsInvalidSelections(t *testing.T) {
	_, ok := CanonicalizeFlow(nil)
	require.False(t, ok)

	_, ok = CanonicalizeFlow([]Role{})
	require.False(t, ok)

	_, ok = CanonicalizeFlow([]Role{RoleHOD})
	require.False(t, ok)

	_, ok = CanonicalizeFlow([]Role{RolePrincipal, RoleStaff})
	require.False(t, ok)
}

func TestIsValidDepartment(t *testing.T) {
	require.True(t, IsValidDepartment(DeptCSE))
	require.True(t, IsValidDepartment(DeptAIDS))
	require.False(t, IsValidDepartment(Department("BIOTECH")))
}
