package users

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the role a console user holds. The set is closed for this
// deployment; unknown values are preserved but never satisfy a requirement.
type RoleType string

const (
	RoleAdmin     RoleType = "ADMIN"     // Full access, including user management
	RoleCashier   RoleType = "CASHIER"   // Sales floor: sales, returns, voids
	RoleWarehouse RoleType = "WAREHOUSE" // Stock: inventory and purchasing
)

var knownRoles = []RoleType{RoleAdmin, RoleCashier, RoleWarehouse}

// ParseRole maps a role string onto the closed enumeration. Matching is case-insensitive.
func ParseRole(s string) (RoleType, error) {
	for _, r := range knownRoles {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return RoleType(s), fmt.Errorf("unknown role %q", s)
}

// Valid reports whether the role is one of the known roles.
func (r RoleType) Valid() bool {
	for _, k := range knownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// Requirement is a role specification: absent (any authenticated user), a
// single role, or a set of roles. Checks are set membership, not hierarchical.
type Requirement struct {
	roles map[RoleType]struct{}
}

// AnyRole is the absent requirement.
var AnyRole = Requirement{}

// Require builds a requirement satisfied by any one of the given roles.
func Require(roles ...RoleType) Requirement {
	if len(roles) == 0 {
		return AnyRole
	}
	set := make(map[RoleType]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return Requirement{roles: set}
}

// IsAbsent reports whether no role is required.
func (req Requirement) IsAbsent() bool {
	return len(req.roles) == 0
}

// Allows reports whether role satisfies the requirement. An absent
// requirement allows every role.
func (req Requirement) Allows(role RoleType) bool {
	if req.IsAbsent() {
		return true
	}
	_, ok := req.roles[role]
	return ok
}

// Roles returns the required roles in a stable order.
func (req Requirement) Roles() []RoleType {
	roles := make([]RoleType, 0, len(req.roles))
	for r := range req.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

func (req Requirement) String() string {
	if req.IsAbsent() {
		return "any"
	}
	parts := make([]string, 0, len(req.roles))
	for _, r := range req.Roles() {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, "|")
}

// Profile is a user record as returned by the backend's user listing.
type Profile struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Role     RoleType `json:"role"`
	FullName string   `json:"full_name"`
	IsActive bool     `json:"is_active"`
}

// Identity is the user the current session acts as.
type Identity struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Role      RoleType `json:"role"`
	FullName  string   `json:"full_name,omitempty"`
	IsActive  bool     `json:"is_active"`
	IsOffline bool     `json:"isOffline"` // Built from token claims because the profile lookup failed
}

// IdentityFromProfile builds an authoritative identity from a backend profile.
func IdentityFromProfile(p Profile) *Identity {
	return &Identity{
		ID:       p.ID,
		Username: p.Username,
		Role:     p.Role,
		FullName: p.FullName,
		IsActive: p.IsActive,
	}
}

// FindByUsername returns the profile whose username matches exactly.
func FindByUsername(profiles []Profile, username string) (Profile, bool) {
	for _, p := range profiles {
		if p.Username == username {
			return p, true
		}
	}
	return Profile{}, false
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
