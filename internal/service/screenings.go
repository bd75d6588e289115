package service

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/queue"
	"github.com/iliyamo/cinema-festival/internal/repository"
	"github.com/iliyamo/cinema-festival/internal/utils"
)

const maxScore = 10.0

// ScreeningService runs the screening workflow.  Every action is checked
// against its model.ScreeningRule: who may run it, the screening states it
// starts from and the program states it is allowed in.
type ScreeningService struct {
	store  *repository.Store
	events events
	logger *zap.Logger
	now    func() time.Time
}

// NewScreeningService wires a ScreeningService.  A nil publisher drops
// events.
func NewScreeningService(store *repository.Store, pub queue.Publisher, logger *zap.Logger) *ScreeningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScreeningService{store: store, events: newEvents(pub, logger), logger: logger, now: time.Now}
}

// ScreeningInput creates a screening.  Zero values leave optional fields
// unset.
type ScreeningInput struct {
	ProgramID    int64
	FilmTitle    string
	FilmCast     string
	FilmGenre    string
	FilmDuration int
	Venue        string
	StartTime    *time.Time
	EndTime      *time.Time
}

// UpdateScreeningInput carries optional changes; nil fields are kept.
type UpdateScreeningInput struct {
	FilmTitle    *string
	FilmCast     *string
	FilmGenre    *string
	FilmDuration *int
	Venue        *string
	StartTime    *time.Time
	EndTime      *time.Time
}

func validateScreening(sc model.Screening) error {
	if err := validate(sc); err != nil {
		return err
	}
	if !sc.ScheduleFits() {
		return errorf(ErrConflict, "end time must be after start time and leave room for the film duration")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Second)
	return &u
}

// Create adds a screening in state CREATED with the caller as submitter
// and grants the caller SUBMITTER in the program when not yet held.  A
// PROGRAMMER of the program may not submit into it.
func (s *ScreeningService) Create(ctx context.Context, actor *model.User, in ScreeningInput) (model.Screening, error) {
	if actor == nil {
		return model.Screening{}, errorf(ErrAuthFailed, "authentication required")
	}
	sc := model.Screening{
		ProgramID:    in.ProgramID,
		SubmitterID:  actor.ID,
		FilmTitle:    strings.TrimSpace(in.FilmTitle),
		FilmCast:     strings.TrimSpace(in.FilmCast),
		FilmGenre:    strings.TrimSpace(in.FilmGenre),
		FilmDuration: in.FilmDuration,
		Venue:        strings.TrimSpace(in.Venue),
		StartTime:    utcPtr(in.StartTime),
		EndTime:      utcPtr(in.EndTime),
		State:        model.ScreeningCreated,
	}
	if err := validateScreening(sc); err != nil {
		return model.Screening{}, err
	}

	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Programs.GetByID(ctx, in.ProgramID); err != nil {
			return translate(err, "program")
		}
		roles, err := NewRoleResolver(tx).RolesOf(ctx, actor.ID, in.ProgramID)
		if err != nil {
			return err
		}
		if roles.Has(model.RoleProgrammer) {
			return errorf(ErrForbidden, "programmers cannot submit screenings in their own program")
		}
		now := s.now()
		id, err := tx.Screenings.Create(ctx, sc, now)
		if err != nil {
			return err
		}
		if !roles.Has(model.RoleSubmitter) {
			if _, err := tx.Roles.Grant(ctx, actor.ID, in.ProgramID, model.RoleSubmitter, now); err != nil {
				return translate(err, "submitter role")
			}
		}
		sc, err = tx.Screenings.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Screening{}, err
	}
	s.logger.Info("screening created",
		zap.Int64("screening_id", sc.ID), zap.Int64("program_id", sc.ProgramID), zap.Int64("user_id", actor.ID))
	s.events.emit(ctx, queue.WorkflowEvent{
		Kind: queue.KindScreeningCreated, ProgramID: sc.ProgramID, ScreeningID: sc.ID,
		ActorID: actor.ID, To: string(sc.State),
	})
	return sc, nil
}

// authorize loads the screening and its program and checks action's rule
// for actor.  It must be called with the Store the mutation runs on.
func (s *ScreeningService) authorize(ctx context.Context, st *repository.Store, actor *model.User, id int64, action model.ScreeningAction) (model.Screening, model.Program, error) {
	if actor == nil {
		return model.Screening{}, model.Program{}, errorf(ErrAuthFailed, "authentication required")
	}
	rule, ok := action.Rule()
	if !ok {
		return model.Screening{}, model.Program{}, errorf(ErrForbidden, "unknown action %s", action)
	}
	sc, err := st.Screenings.GetByID(ctx, id)
	if err != nil {
		return model.Screening{}, model.Program{}, translate(err, "screening")
	}
	p, err := st.Programs.GetByID(ctx, sc.ProgramID)
	if err != nil {
		return model.Screening{}, model.Program{}, translate(err, "program")
	}

	switch rule.Actor {
	case model.ActorSubmitter:
		if sc.SubmitterID != actor.ID {
			return sc, p, errorf(ErrForbidden, "only the submitter can %s this screening", action)
		}
	case model.ActorHandler:
		if sc.HandlerID == nil || *sc.HandlerID != actor.ID {
			return sc, p, errorf(ErrForbidden, "only the assigned handler can %s this screening", action)
		}
	case model.ActorProgrammer:
		if err := NewRoleResolver(st).Require(ctx, actor.ID, p.ID, model.RoleProgrammer); err != nil {
			return sc, p, err
		}
	}
	if !rule.AllowsProgram(p.State) {
		return sc, p, errorf(ErrForbidden, "cannot %s while program is %s", action, p.State)
	}
	if !rule.AllowsScreening(sc.State) {
		return sc, p, errorf(ErrForbidden, "cannot %s a screening in state %s", action, sc.State)
	}
	if rule.NeedsFinal && !sc.IsFinallySubmitted {
		return sc, p, errorf(ErrForbidden, "screening has not been finally submitted")
	}
	return sc, p, nil
}

// transition runs action on screening id in one transaction.  apply
// mutates the loaded screening; the rule's target state is applied after
// it.
func (s *ScreeningService) transition(ctx context.Context, actor *model.User, id int64, action model.ScreeningAction, apply func(tx *repository.Store, sc *model.Screening) error) (model.Screening, error) {
	rule, _ := action.Rule()
	var (
		out  model.Screening
		from model.ScreeningState
	)
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		sc, _, err := s.authorize(ctx, tx, actor, id, action)
		if err != nil {
			return err
		}
		from = sc.State
		if apply != nil {
			if err := apply(tx, &sc); err != nil {
				return err
			}
		}
		if rule.To != "" {
			sc.State = rule.To
		}
		if err := tx.Screenings.Update(ctx, sc, s.now()); err != nil {
			return translate(err, "screening")
		}
		out, err = tx.Screenings.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Screening{}, err
	}

	fields := []zap.Field{
		zap.Int64("screening_id", id), zap.Int64("program_id", out.ProgramID),
		zap.Int64("user_id", actor.ID), zap.String("action", string(action)),
	}
	if from != out.State {
		s.logger.Info("screening state changed",
			append(fields, zap.String("from", string(from)), zap.String("to", string(out.State)))...)
		s.events.emit(ctx, queue.WorkflowEvent{
			Kind: queue.KindScreeningStateChanged, ProgramID: out.ProgramID, ScreeningID: id,
			ActorID: actor.ID, From: string(from), To: string(out.State),
		})
	} else {
		s.logger.Info("screening updated", fields...)
	}
	return out, nil
}

// Get returns one screening if viewer may see it.
func (s *ScreeningService) Get(ctx context.Context, viewer *model.User, id int64) (model.Screening, error) {
	sc, err := s.store.Screenings.GetByID(ctx, id)
	if err != nil {
		return model.Screening{}, translate(err, "screening")
	}
	p, err := s.store.Programs.GetByID(ctx, sc.ProgramID)
	if err != nil {
		return model.Screening{}, translate(err, "program")
	}
	var roles model.RoleSet
	if viewer != nil {
		if roles, err = NewRoleResolver(s.store).RolesOf(ctx, viewer.ID, p.ID); err != nil {
			return model.Screening{}, err
		}
	}
	if !CanViewScreening(viewer, p, sc, roles) {
		return model.Screening{}, errorf(ErrForbidden, "screening %d is not accessible", id)
	}
	return sc, nil
}

// Search filters the program's screenings and drops those viewer may not
// see.  Results are ordered by (genre, title).
func (s *ScreeningService) Search(ctx context.Context, viewer *model.User, programID int64, f repository.ScreeningFilter) ([]model.Screening, error) {
	p, err := s.store.Programs.GetByID(ctx, programID)
	if err != nil {
		return nil, translate(err, "program")
	}
	var roles model.RoleSet
	if viewer != nil {
		if roles, err = NewRoleResolver(s.store).RolesOf(ctx, viewer.ID, programID); err != nil {
			return nil, err
		}
	}
	if (viewer == nil || roles.Empty()) && p.State != model.ProgramAnnounced {
		return []model.Screening{}, nil
	}
	all, err := s.store.Screenings.Search(ctx, programID, f)
	if err != nil {
		return nil, err
	}
	out := make([]model.Screening, 0, len(all))
	for _, sc := range all {
		if CanViewScreening(viewer, p, sc, roles) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// Update changes film, venue or time fields while the screening is still
// CREATED.
func (s *ScreeningService) Update(ctx context.Context, actor *model.User, id int64, in UpdateScreeningInput) (model.Screening, error) {
	return s.transition(ctx, actor, id, model.ScreeningActionUpdate, func(_ *repository.Store, sc *model.Screening) error {
		if in.FilmTitle != nil {
			sc.FilmTitle = strings.TrimSpace(*in.FilmTitle)
		}
		if in.FilmCast != nil {
			sc.FilmCast = strings.TrimSpace(*in.FilmCast)
		}
		if in.FilmGenre != nil {
			sc.FilmGenre = strings.TrimSpace(*in.FilmGenre)
		}
		if in.FilmDuration != nil {
			if err := utils.ValidateVar("film_duration", *in.FilmDuration, "gt=0"); err != nil {
				return errorf(ErrValidation, "%s", err.Error())
			}
			sc.FilmDuration = *in.FilmDuration
		}
		if in.Venue != nil {
			sc.Venue = strings.TrimSpace(*in.Venue)
		}
		if in.StartTime != nil {
			sc.StartTime = utcPtr(in.StartTime)
		}
		if in.EndTime != nil {
			sc.EndTime = utcPtr(in.EndTime)
		}
		return validateScreening(*sc)
	})
}

// Submit moves a complete CREATED screening to SUBMITTED while the program
// accepts submissions.
func (s *ScreeningService) Submit(ctx context.Context, actor *model.User, id int64) (model.Screening, error) {
	return s.transition(ctx, actor, id, model.ScreeningActionSubmit, func(_ *repository.Store, sc *model.Screening) error {
		if !sc.Complete() {
			return errorf(ErrValidation, "screening must be complete: film title, duration, venue, start and end time are required")
		}
		return validateScreening(*sc)
	})
}

// Withdraw deletes a screening that was never submitted.
func (s *ScreeningService) Withdraw(ctx context.Context, actor *model.User, id int64) error {
	var sc model.Screening
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		if sc, _, err = s.authorize(ctx, tx, actor, id, model.ScreeningActionWithdraw); err != nil {
			return err
		}
		return translate(tx.Screenings.Delete(ctx, id), "screening")
	})
	if err != nil {
		return err
	}
	s.logger.Info("screening withdrawn", zap.Int64("screening_id", id), zap.Int64("user_id", actor.ID))
	s.events.emit(ctx, queue.WorkflowEvent{
		Kind: queue.KindScreeningWithdrawn, ProgramID: sc.ProgramID, ScreeningID: id,
		ActorID: actor.ID, From: string(sc.State),
	})
	return nil
}

// AssignHandler sets the reviewer of a screening.  The handler must hold
// the STAFF role in the screening's program.
func (s *ScreeningService) AssignHandler(ctx context.Context, actor *model.User, id, handlerID int64) (model.Screening, error) {
	return s.transition(ctx, actor, id, model.ScreeningActionAssignHandler, func(tx *repository.Store, sc *model.Screening) error {
		if _, err := tx.Users.GetByID(ctx, handlerID); err != nil {
			return translate(err, "handler")
		}
		roles, err := NewRoleResolver(tx).RolesOf(ctx, handlerID, sc.ProgramID)
		if err != nil {
			return err
		}
		if !roles.Has(model.RoleStaff) {
			return errorf(ErrValidation, "handler must be a staff member of this program")
		}
		sc.HandlerID = &handlerID
		return nil
	})
}

// Review records the handler's score, rounded to two decimals and then
// checked against [0, 10], and comments.
func (s *ScreeningService) Review(ctx context.Context, actor *model.User, id int64, score float64, comments string) (model.Screening, error) {
	if math.IsNaN(score) {
		return model.Screening{}, errorf(ErrValidation, "review score must be a number")
	}
	score = math.Round(score*100) / 100
	if score < 0 || score > maxScore {
		return model.Screening{}, errorf(ErrValidation, "review score must be between 0 and 10")
	}
	comments = strings.TrimSpace(comments)
	if err := utils.ValidateVar("comments", comments, "required"); err != nil {
		return model.Screening{}, errorf(ErrValidation, "%s", err.Error())
	}
	return s.transition(ctx, actor, id, model.ScreeningActionReview, func(_ *repository.Store, sc *model.Screening) error {
		sc.ReviewScore = &score
		sc.ReviewComments = comments
		return nil
	})
}

// Approve is the submitter's confirmation during SCHEDULING.
func (s *ScreeningService) Approve(ctx context.Context, actor *model.User, id int64, notes string) (model.Screening, error) {
	return s.transition(ctx, actor, id, model.ScreeningActionApprove, func(_ *repository.Store, sc *model.Screening) error {
		sc.ApprovalNotes = strings.TrimSpace(notes)
		return nil
	})
}

// Reject records a programmer's rejection with a reason.
func (s *ScreeningService) Reject(ctx context.Context, actor *model.User, id int64, reason string) (model.Screening, error) {
	reason = strings.TrimSpace(reason)
	if err := utils.ValidateVar("reason", reason, "required"); err != nil {
		return model.Screening{}, errorf(ErrValidation, "%s", err.Error())
	}
	return s.transition(ctx, actor, id, model.ScreeningActionReject, func(_ *repository.Store, sc *model.Screening) error {
		sc.RejectionReason = reason
		return nil
	})
}

// FinalSubmit marks an approved screening as finally submitted during
// FINAL_PUBLICATION.
func (s *ScreeningService) FinalSubmit(ctx context.Context, actor *model.User, id int64) (model.Screening, error) {
	return s.transition(ctx, actor, id, model.ScreeningActionFinalSubmit, func(_ *repository.Store, sc *model.Screening) error {
		sc.IsFinallySubmitted = true
		return nil
	})
}

// Accept schedules an approved, finally submitted screening during
// DECISION.
func (s *ScreeningService) Accept(ctx context.Context, actor *model.User, id int64) (model.Screening, error) {
	return s.transition(ctx, actor, id, model.ScreeningActionAccept, nil)
}

// AutoRejectNonSubmitted rejects every APPROVED screening of the program
// that was never finally submitted, in one transaction, and returns how
// many were rejected.  The caller's authority is checked by the route;
// actorID only attributes the event.
func (s *ScreeningService) AutoRejectNonSubmitted(ctx context.Context, programID, actorID int64) (int, error) {
	var n int
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Programs.GetByID(ctx, programID); err != nil {
			return translate(err, "program")
		}
		ids, err := tx.Screenings.ListNonFinalApproved(ctx, programID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, id := range ids {
			if err := tx.Screenings.Reject(ctx, id, model.AutoRejectReason, now); err != nil {
				return translate(err, "screening")
			}
		}
		n = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("non-finalized screenings auto-rejected",
		zap.Int64("program_id", programID), zap.Int64("user_id", actorID), zap.Int("count", n))
	s.events.emit(ctx, queue.WorkflowEvent{
		Kind: queue.KindScreeningAutoRejected, ProgramID: programID, ActorID: actorID,
		To: string(model.ScreeningRejected), Count: n,
	})
	return n, nil
}

// SweepDecisionPrograms runs AutoRejectNonSubmitted for every program in
// DECISION and returns the total number of rejected screenings.  A failing
// program is logged and skipped.
func (s *ScreeningService) SweepDecisionPrograms(ctx context.Context) (int, error) {
	programs, err := s.store.Programs.ListByState(ctx, model.ProgramDecision)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range programs {
		n, err := s.AutoRejectNonSubmitted(ctx, p.ID, 0)
		if err != nil {
			s.logger.Warn("auto-reject sweep failed", zap.Int64("program_id", p.ID), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}
