// Package authorization gates organization writes on the caller's role.
package authorization

import (
	membershipdomain "github.com/smallbiznis/crowdspace/internal/membership/domain"
	"github.com/smallbiznis/crowdspace/internal/role"
)

// HasCapability reports whether membership grants capability. A nil membership
// means the caller is not in the organization and is denied everything.
func HasCapability(catalog *role.Catalog, membership *membershipdomain.Membership, capability role.Capability) bool {
	if membership == nil {
		return false
	}
	return catalog.Allows(membership.Role, capability)
}
