package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramStateAdvancesOneStepAtATime(t *testing.T) {
	states := ProgramStates()
	require.Len(t, states, 8)

	for i, from := range states {
		for j, to := range states {
			want := j == i+1
			assert.Equalf(t, want, from.CanAdvanceTo(to), "%s -> %s", from, to)
		}
	}
}

func TestProgramStateTerminal(t *testing.T) {
	_, ok := ProgramAnnounced.Next()
	assert.False(t, ok)

	next, ok := ProgramDecision.Next()
	require.True(t, ok)
	assert.Equal(t, ProgramAnnounced, next)
}

func TestParseProgramState(t *testing.T) {
	st, ok := ParseProgramState("FINAL_PUBLICATION")
	require.True(t, ok)
	assert.Equal(t, ProgramFinalPublication, st)

	_, ok = ParseProgramState("final_publication")
	assert.False(t, ok)
	_, ok = ParseProgramState("")
	assert.False(t, ok)
}

func TestProgramActionStates(t *testing.T) {
	assert.True(t, ProgramActionUpdate.AllowedIn(ProgramDecision))
	assert.False(t, ProgramActionUpdate.AllowedIn(ProgramAnnounced))

	assert.True(t, ProgramActionDelete.AllowedIn(ProgramCreated))
	assert.False(t, ProgramActionDelete.AllowedIn(ProgramSubmission))

	assert.True(t, ProgramActionAddStaff.AllowedIn(ProgramCreated))
	assert.True(t, ProgramActionAddStaff.AllowedIn(ProgramSubmission))
	assert.False(t, ProgramActionAddStaff.AllowedIn(ProgramAssignment))

	for _, st := range ProgramStates() {
		assert.True(t, ProgramActionAddProgrammer.AllowedIn(st))
	}
	assert.False(t, ProgramAction("unknown").AllowedIn(ProgramCreated))
}

func TestRoleSet(t *testing.T) {
	var empty RoleSet
	assert.True(t, empty.Empty())
	assert.Equal(t, RoleNone, empty.Primary())
	assert.False(t, empty.Has(RoleNone))

	s := NewRoleSet(RoleSubmitter, RoleStaff)
	assert.True(t, s.Has(RoleStaff))
	assert.True(t, s.Has(RoleSubmitter))
	assert.False(t, s.Has(RoleProgrammer))
	assert.Equal(t, RoleStaff, s.Primary())
	assert.Equal(t, []ProgramRoleType{RoleStaff, RoleSubmitter}, s.Roles())

	s = s.With(RoleProgrammer)
	assert.Equal(t, RoleProgrammer, s.Primary())

	_, ok := ParseProgramRoleType("")
	assert.False(t, ok)
	r, ok := ParseProgramRoleType("STAFF")
	require.True(t, ok)
	assert.Equal(t, RoleStaff, r)
}
