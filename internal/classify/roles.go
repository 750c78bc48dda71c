package classify

import "taller/internal/core"

// RoleDivision maps employee role labels to the division they work for.
type RoleDivision struct {
	roles Table
}

func NewRoleDivision(t Tables) *RoleDivision {
	return &RoleDivision{roles: t.Roles}
}

// Division returns the division for a role, or general when none matches.
func (r *RoleDivision) Division(role string) core.Division {
	if label, _, ok := r.roles.Match(role); ok {
		return core.Division(label)
	}
	return core.DivisionGeneral
}

// StaffCount counts active employees in div; general counts everyone active.
func (r *RoleDivision) StaffCount(emps []core.Employee, div core.Division) int {
	n := 0
	for _, e := range emps {
		if !e.Active {
			continue
		}
		if div == core.DivisionGeneral || r.Division(e.RoleLabel) == div {
			n++
		}
	}
	return n
}
