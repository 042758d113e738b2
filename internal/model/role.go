package model

import (
	"sort"
	"strings"
)

// Role is an enumerated user role. Roles are stored comma-joined in the
// users.roles column but are always handled as a typed set in code.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// knownRoles maps the lowercase role name to its canonical value.
var knownRoles = map[string]Role{
	string(RoleAdmin):   RoleAdmin,
	string(RoleManager): RoleManager,
	string(RoleUser):    RoleUser,
}

// ParseRole resolves a single role name case-insensitively. The second
// return value reports whether the name is a known role.
func ParseRole(name string) (Role, bool) {
	r, ok := knownRoles[strings.ToLower(strings.TrimSpace(name))]
	return r, ok
}

// RoleSet is a set of roles. The zero value (nil) is an empty set and is
// safe to query.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// ParseRoles splits a comma-joined role string into a set. Unknown names are
// collected and returned so callers can decide whether they are an error;
// they are never silently added to the set.
func ParseRoles(joined string) (RoleSet, []string) {
	s := make(RoleSet)
	var unknown []string
	for _, part := range strings.Split(joined, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if r, ok := ParseRole(part); ok {
			s[r] = struct{}{}
		} else {
			unknown = append(unknown, part)
		}
	}
	return s, unknown
}

// Has reports whether the set contains r.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Union returns a new set containing every role of s plus the given roles.
// The receiver is never mutated; elevation rules only ever add roles.
func (s RoleSet) Union(roles ...Role) RoleSet {
	out := make(RoleSet, len(s)+len(roles))
	for r := range s {
		out[r] = struct{}{}
	}
	for _, r := range roles {
		out[r] = struct{}{}
	}
	return out
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	for r := range other {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles in stable (sorted) order.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String serializes the set comma-joined in stable order for storage.
func (s RoleSet) String() string {
	roles := s.Slice()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
