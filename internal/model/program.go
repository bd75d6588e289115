package model

import "time"

// ProgramState is a step of the program lifecycle.  The string values are
// persisted and returned over the API unchanged.
type ProgramState string

const (
	ProgramCreated          ProgramState = "CREATED"
	ProgramSubmission       ProgramState = "SUBMISSION"
	ProgramAssignment       ProgramState = "ASSIGNMENT"
	ProgramReview           ProgramState = "REVIEW"
	ProgramScheduling       ProgramState = "SCHEDULING"
	ProgramFinalPublication ProgramState = "FINAL_PUBLICATION"
	ProgramDecision         ProgramState = "DECISION"
	ProgramAnnounced        ProgramState = "ANNOUNCED"
)

// programSequence is the only path a program may take.  Each state may
// advance to the one directly after it; ANNOUNCED is terminal.
var programSequence = []ProgramState{
	ProgramCreated,
	ProgramSubmission,
	ProgramAssignment,
	ProgramReview,
	ProgramScheduling,
	ProgramFinalPublication,
	ProgramDecision,
	ProgramAnnounced,
}

// programNext is built from programSequence so the two never disagree.
var programNext = func() map[ProgramState]ProgramState {
	m := make(map[ProgramState]ProgramState, len(programSequence))
	for i := 0; i+1 < len(programSequence); i++ {
		m[programSequence[i]] = programSequence[i+1]
	}
	return m
}()

// ProgramStates returns the lifecycle in order.
func ProgramStates() []ProgramState {
	out := make([]ProgramState, len(programSequence))
	copy(out, programSequence)
	return out
}

// ParseProgramState validates a raw state string.
func ParseProgramState(s string) (ProgramState, bool) {
	for _, st := range programSequence {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Next returns the state that follows s, or false when s is terminal or
// unknown.
func (s ProgramState) Next() (ProgramState, bool) {
	n, ok := programNext[s]
	return n, ok
}

// CanAdvanceTo reports whether target is exactly the next state.
func (s ProgramState) CanAdvanceTo(target ProgramState) bool {
	n, ok := s.Next()
	return ok && n == target
}

// ProgramAction names a program-level operation gated by program state.
type ProgramAction string

const (
	ProgramActionUpdate        ProgramAction = "update"
	ProgramActionDelete        ProgramAction = "delete"
	ProgramActionAddProgrammer ProgramAction = "add_programmer"
	ProgramActionAddStaff      ProgramAction = "add_staff"
	ProgramActionChangeState   ProgramAction = "change_state"
)

// programActionStates lists the program states in which an action is
// allowed.  A nil entry means any state.  Every action requires the caller
// to be a PROGRAMMER of the program.
var programActionStates = map[ProgramAction][]ProgramState{
	ProgramActionUpdate: {
		ProgramCreated, ProgramSubmission, ProgramAssignment, ProgramReview,
		ProgramScheduling, ProgramFinalPublication, ProgramDecision,
	},
	ProgramActionDelete:        {ProgramCreated},
	ProgramActionAddProgrammer: nil,
	ProgramActionAddStaff:      {ProgramCreated, ProgramSubmission},
	ProgramActionChangeState:   nil,
}

// AllowedIn reports whether the action may run while the program is in
// state s.
func (a ProgramAction) AllowedIn(s ProgramState) bool {
	states, ok := programActionStates[a]
	if !ok {
		return false
	}
	return states == nil || containsProgramState(states, s)
}

// States returns the states in which the action is allowed, nil for any.
func (a ProgramAction) States() []ProgramState { return programActionStates[a] }

func containsProgramState(list []ProgramState, s ProgramState) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Program represents a festival program as stored in the `programs` table.
// StartDate and EndDate carry only a calendar date (UTC midnight).
type Program struct {
	ID          int64                                      // programs.id
	Name        string       `validate:"required,max=200"` // programs.name (unique)
	Description string                                     // programs.description
	StartDate   time.Time                                  // programs.start_date
	EndDate     time.Time                                  // programs.end_date
	State       ProgramState                               // programs.state
	CreatedAt   time.Time                                  // programs.created_at
	UpdatedAt   time.Time                                  // programs.updated_at
}

// ProgramRole is a (user, program, role) grant from the `program_roles`
// table.  The triple is unique; a user may hold several different roles in
// the same program.
type ProgramRole struct {
	ID         int64           // program_roles.id
	UserID     int64           // program_roles.user_id
	ProgramID  int64           // program_roles.program_id
	Role       ProgramRoleType // program_roles.role
	AssignedAt time.Time       // program_roles.assigned_at
}
