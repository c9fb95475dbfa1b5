// Package permission manages the minterm columns of permission editors. A permission is granted
// by any of its minterms, a minterm by holding all of its roles.
package permission

import (
	"sort"
	"strings"
)

const SuperadminRole = "superadmin"

// Minterm is a set of role xids. The zero value is the empty minterm.
type Minterm struct {
	roles []string
}

// NewMinterm returns the minterm of the given roles, duplicates and empty names are dropped.
func NewMinterm(roles ...string) Minterm {
	seen := make(map[string]struct{}, len(roles))
	unique := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		unique = append(unique, role)
	}
	sort.Strings(unique)
	return Minterm{roles: unique}
}

// Roles returns the roles sorted by name.
func (t Minterm) Roles() []string {
	return append([]string(nil), t.roles...)
}

func (t Minterm) Size() int {
	return len(t.roles)
}

// Equal ignores the order the roles were given in.
func (t Minterm) Equal(other Minterm) bool {
	if len(t.roles) != len(other.roles) {
		return false
	}
	for i := range t.roles {
		if t.roles[i] != other.roles[i] {
			return false
		}
	}
	return true
}

func (t Minterm) Contains(role string) bool {
	i := sort.SearchStrings(t.roles, role)
	return i < len(t.roles) && t.roles[i] == role
}

// GrantedTo reports whether every role of the minterm is held. The empty minterm grants nothing.
func (t Minterm) GrantedTo(held map[string]struct{}) bool {
	if len(t.roles) == 0 {
		return false
	}
	for _, role := range t.roles {
		if _, ok := held[role]; !ok {
			return false
		}
	}
	return true
}

func (t Minterm) String() string {
	return strings.Join(t.roles, " & ")
}

// Permission is a disjunction of minterms.
type Permission []Minterm

// ParsePermission converts the wire form, a list of role lists.
func ParsePermission(raw [][]string) Permission {
	p := make(Permission, 0, len(raw))
	for _, roles := range raw {
		p = p.Add(NewMinterm(roles...))
	}
	return p
}

// Add returns the permission with the minterm added, unless an equal one is already present.
func (p Permission) Add(t Minterm) Permission {
	if t.Size() == 0 || p.index(t) >= 0 {
		return p
	}
	return append(p, t)
}

// Remove returns the permission without the minterm.
func (p Permission) Remove(t Minterm) Permission {
	i := p.index(t)
	if i < 0 {
		return p
	}
	result := make(Permission, 0, len(p)-1)
	result = append(result, p[:i]...)
	return append(result, p[i+1:]...)
}

func (p Permission) Has(t Minterm) bool {
	return p.index(t) >= 0
}

func (p Permission) index(t Minterm) int {
	for i, existing := range p {
		if existing.Equal(t) {
			return i
		}
	}
	return -1
}

// Allows reports whether a user holding roles is granted the permission. Superadmins are granted
// everything.
func (p Permission) Allows(roles ...string) bool {
	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role] = struct{}{}
	}
	if _, ok := held[SuperadminRole]; ok {
		return true
	}
	for _, t := range p {
		if t.GrantedTo(held) {
			return true
		}
	}
	return false
}

// ToArray returns the wire form.
func (p Permission) ToArray() [][]string {
	result := make([][]string, len(p))
	for i, t := range p {
		result[i] = t.Roles()
	}
	return result
}
