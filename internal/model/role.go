package model

// ProgramRoleType is a functional role a user holds inside one program.
type ProgramRoleType string

const (
	RoleNone       ProgramRoleType = ""
	RoleProgrammer ProgramRoleType = "PROGRAMMER"
	RoleStaff      ProgramRoleType = "STAFF"
	RoleSubmitter  ProgramRoleType = "SUBMITTER"
)

// rolePrecedence orders roles for RoleSet.Primary.
var rolePrecedence = []ProgramRoleType{RoleProgrammer, RoleStaff, RoleSubmitter}

// ParseProgramRoleType validates a raw role string.  RoleNone is rejected.
func ParseProgramRoleType(s string) (ProgramRoleType, bool) {
	for _, r := range rolePrecedence {
		if string(r) == s {
			return r, true
		}
	}
	return RoleNone, false
}

// RoleSet is every role one user holds in one program.
type RoleSet uint8

func roleBit(r ProgramRoleType) RoleSet {
	switch r {
	case RoleProgrammer:
		return 1 << 0
	case RoleStaff:
		return 1 << 1
	case RoleSubmitter:
		return 1 << 2
	}
	return 0
}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...ProgramRoleType) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= roleBit(r)
	}
	return s
}

// Has reports whether r is in the set.  RoleNone is never held.
func (s RoleSet) Has(r ProgramRoleType) bool {
	b := roleBit(r)
	return b != 0 && s&b != 0
}

// With returns the set plus r.
func (s RoleSet) With(r ProgramRoleType) RoleSet { return s | roleBit(r) }

// Empty reports whether the set holds no role.
func (s RoleSet) Empty() bool { return s == 0 }

// Primary returns the highest-precedence role: PROGRAMMER, then STAFF,
// then SUBMITTER.  RoleNone when empty.
func (s RoleSet) Primary() ProgramRoleType {
	for _, r := range rolePrecedence {
		if s.Has(r) {
			return r
		}
	}
	return RoleNone
}

// Roles lists the held roles in precedence order.
func (s RoleSet) Roles() []ProgramRoleType {
	var out []ProgramRoleType
	for _, r := range rolePrecedence {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}
