package models

type Role string

const (
	RoleParent Role = "parent"
	RoleStaff  Role = "staff"
)

// SystemCallerID identifies work done on behalf of the service itself
// (slot-release intake, offer sweep).
const SystemCallerID = "system"

// Caller is the already-authenticated identity behind a request. Tenant
// resolution and role assignment happen upstream.
type Caller struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
}

func (c Caller) IsStaff() bool {
	return c.Role == RoleStaff
}

func SystemCaller(tenantID string) Caller {
	return Caller{TenantID: tenantID, UserID: SystemCallerID, Role: RoleStaff}
}
