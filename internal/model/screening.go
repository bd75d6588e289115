package model

import "time"

// ScreeningState is the state of a single film submission.
type ScreeningState string

const (
	ScreeningCreated   ScreeningState = "CREATED"
	ScreeningSubmitted ScreeningState = "SUBMITTED"
	ScreeningReviewed  ScreeningState = "REVIEWED"
	ScreeningApproved  ScreeningState = "APPROVED"
	ScreeningScheduled ScreeningState = "SCHEDULED"
	ScreeningRejected  ScreeningState = "REJECTED"
)

// AutoRejectReason is recorded on screenings rejected by the sweep.
const AutoRejectReason = "Automatic rejection - not finally submitted"

// Screening represents a row of the `screenings` table.  Optional columns
// use zero values ("" / 0) or nil pointers when unset.
type Screening struct {
	ID                 int64                                        // screenings.id
	ProgramID          int64                                        // screenings.program_id
	SubmitterID        int64                                        // screenings.submitter_id
	HandlerID          *int64                                       // screenings.handler_id (nullable)
	FilmTitle          string         `validate:"required,max=200"` // screenings.film_title
	FilmCast           string                                       // screenings.film_cast
	FilmGenre          string         `validate:"max=100"`          // screenings.film_genre
	FilmDuration       int            `validate:"gte=0"`            // screenings.film_duration, minutes; 0 when unset
	Venue              string         `validate:"max=100"`          // screenings.venue
	StartTime          *time.Time                                   // screenings.start_time
	EndTime            *time.Time                                   // screenings.end_time
	State              ScreeningState                               // screenings.state
	ReviewScore        *float64                                     // screenings.review_score
	ReviewComments     string                                       // screenings.review_comments
	RejectionReason    string                                       // screenings.rejection_reason
	ApprovalNotes      string                                       // screenings.approval_notes
	IsFinallySubmitted bool                                         // screenings.is_finally_submitted
	CreatedAt          time.Time                                    // screenings.created_at
	UpdatedAt          time.Time                                    // screenings.updated_at
}

// Complete reports whether every field needed for submission is set.
func (s Screening) Complete() bool {
	return s.FilmTitle != "" && s.FilmDuration > 0 && s.Venue != "" &&
		s.StartTime != nil && s.EndTime != nil
}

// ScheduleFits checks the time invariant: the slot must end after it starts
// and be long enough for the film.  Unset parts are not checked.
func (s Screening) ScheduleFits() bool {
	if s.StartTime == nil || s.EndTime == nil {
		return true
	}
	if !s.EndTime.After(*s.StartTime) {
		return false
	}
	if s.FilmDuration > 0 && s.EndTime.Sub(*s.StartTime) < time.Duration(s.FilmDuration)*time.Minute {
		return false
	}
	return true
}

// ScreeningAction names an operation on a screening.
type ScreeningAction string

const (
	ScreeningActionUpdate        ScreeningAction = "update"
	ScreeningActionSubmit        ScreeningAction = "submit"
	ScreeningActionWithdraw      ScreeningAction = "withdraw"
	ScreeningActionAssignHandler ScreeningAction = "assign_handler"
	ScreeningActionReview        ScreeningAction = "review"
	ScreeningActionApprove       ScreeningAction = "approve"
	ScreeningActionReject        ScreeningAction = "reject"
	ScreeningActionFinalSubmit   ScreeningAction = "final_submit"
	ScreeningActionAccept        ScreeningAction = "accept"
)

// Actor identifies who may run a screening action.
type Actor int

const (
	// ActorSubmitter is the user who created the screening.
	ActorSubmitter Actor = iota + 1
	// ActorHandler is the staff member assigned to the screening.
	ActorHandler
	// ActorProgrammer is any PROGRAMMER of the screening's program.
	ActorProgrammer
)

func (a Actor) String() string {
	switch a {
	case ActorSubmitter:
		return "submitter"
	case ActorHandler:
		return "assigned handler"
	case ActorProgrammer:
		return "programmer"
	}
	return "unknown"
}

// ScreeningRule is one row of the screening transition table.
//
//  Actor          – who may run the action.
//  From           – screening states the action starts from; nil means any.
//  ProgramStates  – program states the action is allowed in; nil means any.
//  To             – resulting screening state; "" leaves it unchanged.
//  NeedsFinal     – the screening must be finally submitted.
type ScreeningRule struct {
	Actor         Actor
	From          []ScreeningState
	ProgramStates []ProgramState
	To            ScreeningState
	NeedsFinal    bool
}

var screeningRules = map[ScreeningAction]ScreeningRule{
	ScreeningActionUpdate: {
		Actor: ActorSubmitter,
		From:  []ScreeningState{ScreeningCreated},
	},
	ScreeningActionSubmit: {
		Actor:         ActorSubmitter,
		From:          []ScreeningState{ScreeningCreated},
		ProgramStates: []ProgramState{ProgramSubmission},
		To:            ScreeningSubmitted,
	},
	ScreeningActionWithdraw: {
		Actor: ActorSubmitter,
		From:  []ScreeningState{ScreeningCreated},
	},
	ScreeningActionAssignHandler: {
		Actor:         ActorProgrammer,
		ProgramStates: []ProgramState{ProgramAssignment},
	},
	ScreeningActionReview: {
		Actor:         ActorHandler,
		ProgramStates: []ProgramState{ProgramReview},
		To:            ScreeningReviewed,
	},
	ScreeningActionApprove: {
		Actor:         ActorSubmitter,
		ProgramStates: []ProgramState{ProgramScheduling},
		To:            ScreeningApproved,
	},
	ScreeningActionReject: {
		Actor:         ActorProgrammer,
		ProgramStates: []ProgramState{ProgramScheduling, ProgramDecision},
		To:            ScreeningRejected,
	},
	ScreeningActionFinalSubmit: {
		Actor:         ActorSubmitter,
		From:          []ScreeningState{ScreeningApproved},
		ProgramStates: []ProgramState{ProgramFinalPublication},
	},
	ScreeningActionAccept: {
		Actor:         ActorProgrammer,
		From:          []ScreeningState{ScreeningApproved},
		ProgramStates: []ProgramState{ProgramDecision},
		To:            ScreeningScheduled,
		NeedsFinal:    true,
	},
}

// Rule returns the transition table row for an action.
func (a ScreeningAction) Rule() (ScreeningRule, bool) {
	r, ok := screeningRules[a]
	return r, ok
}

// AllowsScreening reports whether the rule may start from state s.
func (r ScreeningRule) AllowsScreening(s ScreeningState) bool {
	if r.From == nil {
		return true
	}
	for _, v := range r.From {
		if v == s {
			return true
		}
	}
	return false
}

// AllowsProgram reports whether the rule may run in program state s.
func (r ScreeningRule) AllowsProgram(s ProgramState) bool {
	return r.ProgramStates == nil || containsProgramState(r.ProgramStates, s)
}
