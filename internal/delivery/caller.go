package delivery

import (
	"fmt"
	"strings"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
)

// ParseCaller builds the caller identity forwarded by the gateway. Both
// transports carry the same three values, as headers or as metadata.
func ParseCaller(tenantID, callerID, role string) (models.Caller, error) {
	c := models.Caller{
		TenantID: strings.TrimSpace(tenantID),
		UserID:   strings.TrimSpace(callerID),
		Role:     models.Role(strings.ToLower(strings.TrimSpace(role))),
	}
	if c.TenantID == "" || c.UserID == "" {
		return models.Caller{}, fmt.Errorf("%w: missing caller identity", service.ErrForbidden)
	}
	if c.Role != models.RoleParent && c.Role != models.RoleStaff {
		return models.Caller{}, fmt.Errorf("%w: unknown role %q", service.ErrForbidden, role)
	}
	return c, nil
}
