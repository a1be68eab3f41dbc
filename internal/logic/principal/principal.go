package principal

import "fmt"

// Role is the closed set of caller roles this subsystem accepts. Roles are
// asserted by the API layer from the caller's token; nothing here
// authenticates them.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Capability names an operation class gated at the access-control boundary.
type Capability string

const (
	// CapCrossOwnerAccess allows acting on instances and grants owned by others.
	CapCrossOwnerAccess Capability = "cross-owner-access"
	// CapMaintenance allows batch reconciliation, expiry sweeps and owner teardown.
	CapMaintenance Capability = "maintenance"
)

// capabilities is the single place role powers are defined; per-method role
// checks are not allowed elsewhere.
var capabilities = map[Role]map[Capability]bool{
	RoleStudent: {},
	RoleTeacher: {
		CapCrossOwnerAccess: true,
	},
	RoleAdmin: {
		CapCrossOwnerAccess: true,
		CapMaintenance:      true,
	},
	RoleSuperAdmin: {
		CapCrossOwnerAccess: true,
		CapMaintenance:      true,
	},
}

// ParseRole maps a role claim string to a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if _, ok := capabilities[role]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}

	return role, nil
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// Owner identifies the user a sandbox or credential belongs to.
type Owner struct {
	ID     string
	Handle string
}

// Principal is an authenticated caller: an owner identity plus a role claim.
type Principal struct {
	Owner Owner
	Role  Role
}

// CanAccessOwner reports whether the principal may act on resources owned by
// ownerID: either it is the owner, or it holds cross-owner access.
func (p Principal) CanAccessOwner(ownerID string) bool {
	return p.Owner.ID == ownerID || p.Role.Can(CapCrossOwnerAccess)
}
