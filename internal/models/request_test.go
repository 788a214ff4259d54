package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEffectiveChainBeforeFlowAssignment(t *testing.T) {
	req := &EventRequest{CurrentRole: RoleHOD}
	require.Equal(t, []Role{RoleHOD, RoleIQAC}, req.EffectiveChain())

	next, ok := req.NextRole(RoleHOD)
	require.True(t, ok)
	require.Equal(t, RoleIQAC, next)

	_, ok = req.NextRole(RoleIQAC)
	require.False(t, ok)
}

func TestEffectiveChainWithAssignedFlow(t *testing.T) {
	req := &EventRequest{
		CurrentRole:   RolePrincipal,
		WorkflowRoles: RoleList{RolePrincipal, RoleAO},
	}
	require.Equal(t, []Role{RoleHOD, RoleIQAC, RolePrincipal, RoleAO}, req.EffectiveChain())

	next, ok := req.NextRole(RoleIQAC)
	require.True(t, ok)
	require.Equal(t, RolePrincipal, next)

	next, ok = req.NextRole(RolePrincipal)
	require.True(t, ok)
	require.Equal(t, RoleAO, next)

	_, ok = req.NextRole(RoleAO)
	require.False(t, ok)
}

func TestStatusDerivation(t *testing.T) {
	req := &EventRequest{CurrentRole: RoleIQAC}
	require.Equal(t, WorkflowState{Kind: StateAwaitingRole, Role: RoleIQAC}, req.Status())
	require.Equal(t, "Pending at IQAC", req.StatusLabel())

	req.CurrentRole = RoleNone
	req.Approvals = ApprovalTrail{
		{Role: RoleHOD, Status: DecisionApproved, DecidedAt: time.Now()},
		{Role: RoleIQAC, Status: DecisionRecreated, Comments: "incomplete report", DecidedAt: time.Now()},
	}
	require.Equal(t, StateAwaitingStaff, req.Status().Kind)
	require.Equal(t, "Sent back by IQAC for recreation", req.StatusLabel())

	req.CurrentRole = RoleCompleted
	require.Equal(t, StateCompleted, req.Status().Kind)
	require.Equal(t, "Approved", req.StatusLabel())
}

func TestHasReviewed(t *testing.T) {
	req := &EventRequest{
		Approvals: ApprovalTrail{
			{Role: RoleHOD, Status: DecisionApproved},
			{Role: RoleIQAC, Status: DecisionRecreated},
		},
	}
	require.True(t, req.HasReviewed(RoleHOD))
	require.True(t, req.HasReviewed(RoleIQAC))
	require.False(t, req.HasReviewed(RolePrincipal))
}

func TestApprovalTrailRoundTrip(t *testing.T) {
	decided := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	by := RolePrincipal
	trail := ApprovalTrail{
		{Role: RolePrincipal, Status: DecisionRecreated, Comments: "fix budget section", DecidedAt: decided, RecreatedBy: &by},
	}

	raw, err := trail.Value()
	require.NoError(t, err)

	var scanned ApprovalTrail
	require.NoError(t, scanned.Scan(raw))
	require.Len(t, scanned, 1)
	require.Equal(t, trail[0].Role, scanned[0].Role)
	require.Equal(t, trail[0].Comments, scanned[0].Comments)
	require.NotNil(t, scanned[0].RecreatedBy)
	require.Equal(t, RolePrincipal, *scanned[0].RecreatedBy)
}
