package models

// Role identifies an actor in the approval hierarchy.
type Role string

const (
	RoleStaff     Role = "STAFF"
	RoleHOD       Role = "HOD"
	RoleIQAC      Role = "IQAC"
	RolePrincipal Role = "PRINCIPAL"
	RoleDirector  Role = "DIRECTOR"
	RoleAO        Role = "AO"
	RoleCEO       Role = "CEO"
	RoleAdmin     Role = "ADMIN"
)

// Sentinel values for EventRequest.CurrentRole.
const (
	// RoleNone marks a request sent back to its staff owner for recreation.
	RoleNone Role = "NONE"
	// RoleCompleted marks a terminally approved request.
	RoleCompleted Role = "COMPLETED"
)

// flowPriority fixes the hierarchy order for the dynamically assigned suffix.
// Requests always route through the selected roles in this order, no matter
// the order the IQAC reviewer picked them in.
var flowPriority = []Role{RolePrincipal, RoleDirector, RoleAO, RoleCEO}

// fixedPrefix is the mandatory head of every approval chain.
var fixedPrefix = []Role{RoleHOD, RoleIQAC}

// ApproverRoles lists every role that can act on a pending request.
func ApproverRoles() []Role {
	roles := make([]Role, 0, len(fixedPrefix)+len(flowPriority))
	roles = append(roles, fixedPrefix...)
	roles = append(roles, flowPriority...)
	return roles
}

// IsSelectableFlowRole reports whether r may appear in an IQAC-chosen workflow.
func IsSelectableFlowRole(r Role) bool {
	for _, candidate := range flowPriority {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanonicalizeFlow normalises an IQAC workflow selection into the fixed
// priority order, dropping duplicates. Returns false when the selection is
// empty or contains a role outside the selectable superset.
func CanonicalizeFlow(selection []Role) ([]Role, bool) {
	if len(selection) == 0 {
		return nil, false
	}
	picked := make(map[Role]struct{}, len(selection))
	for _, r := range selection {
		if !IsSelectableFlowRole(r) {
			return nil, false
		}
		picked[r] = struct{}{}
	}
	flow := make([]Role, 0, len(picked))
	for _, r := range flowPriority {
		if _, ok := picked[r]; ok {
			flow = append(flow, r)
		}
	}
	return flow, true
}

// Department is the closed set of academic departments.
type Department string

const (
	DeptAIDS  Department = "AI&DS"
	DeptCSE   Department = "CSE"
	DeptECE   Department = "ECE"
	DeptIT    Department = "IT"
	DeptMech  Department = "MECH"
	DeptAIML  Department = "AI&ML"
	DeptCYS   Department = "CYS"
	DeptEEE   Department = "EEE"
	DeptCivil Department = "CIVIL"
)

var departments = map[Department]struct{}{
	DeptAIDS:  {},
	DeptCSE:   {},
	DeptECE:   {},
	DeptIT:    {},
	DeptMech:  {},
	DeptAIML:  {},
	DeptCYS:   {},
	DeptEEE:   {},
	DeptCivil: {},
}

// IsValidDepartment reports whether d belongs to the department enumeration.
func IsValidDepartment(d Department) bool {
	_, ok := departments[d]
	return ok
}
