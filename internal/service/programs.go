package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/queue"
	"github.com/iliyamo/cinema-festival/internal/repository"
)

// ProgramService runs the program lifecycle.  Every mutation requires the
// caller to be a PROGRAMMER of the program and is gated by the program
// state through model.ProgramAction.
type ProgramService struct {
	store  *repository.Store
	events events
	logger *zap.Logger
	now    func() time.Time
}

// NewProgramService wires a ProgramService.  A nil publisher drops events.
func NewProgramService(store *repository.Store, pub queue.Publisher, logger *zap.Logger) *ProgramService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{store: store, events: newEvents(pub, logger), logger: logger, now: time.Now}
}

// ProgramInput creates a program.
type ProgramInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// UpdateProgramInput carries optional changes; nil fields are kept.
type UpdateProgramInput struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// ProgramDetail is a program as seen by one viewer.  Roles is filled only
// for admins and viewers holding a role in the program.
type ProgramDetail struct {
	model.Program
	Roles []model.ProgramRole
}

func validateProgram(p model.Program) error {
	if err := validate(p); err != nil {
		return err
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return errorf(ErrValidation, "start and end dates are required")
	}
	if repository.DateOnly(p.EndDate).Before(repository.DateOnly(p.StartDate)) {
		return errorf(ErrConflict, "end date must not be before start date")
	}
	return nil
}

// ensureNameFree fails with ErrConflict when another program uses name.
func ensureNameFree(ctx context.Context, st *repository.Store, selfID int64, name string) error {
	other, err := st.Programs.GetByName(ctx, name)
	if err == nil && other.ID != selfID {
		return errorf(ErrConflict, "program name already exists")
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

// Create inserts a program in state CREATED and grants the creator the
// PROGRAMMER role in the same transaction.
func (s *ProgramService) Create(ctx context.Context, actor *model.User, in ProgramInput) (model.Program, error) {
	if actor == nil {
		return model.Program{}, errorf(ErrAuthFailed, "authentication required")
	}
	p := model.Program{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		StartDate:   repository.DateOnly(in.StartDate),
		EndDate:     repository.DateOnly(in.EndDate),
		State:       model.ProgramCreated,
	}
	if err := validateProgram(p); err != nil {
		return model.Program{}, err
	}

	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := ensureNameFree(ctx, tx, 0, p.Name); err != nil {
			return err
		}
		now := s.now()
		id, err := tx.Programs.Create(ctx, p, now)
		if err != nil {
			return translate(err, "program")
		}
		if _, err := tx.Roles.Grant(ctx, actor.ID, id, model.RoleProgrammer, now); err != nil {
			return translate(err, "programmer role")
		}
		p, err = tx.Programs.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Program{}, err
	}
	s.logger.Info("program created", zap.Int64("program_id", p.ID), zap.Int64("user_id", actor.ID))
	s.events.emit(ctx, queue.WorkflowEvent{
		Kind: queue.KindProgramCreated, ProgramID: p.ID, ActorID: actor.ID, To: string(p.State),
	})
	return p, nil
}

// authorize loads the program and checks that actor is one of its
// programmers and that action is allowed in its current state.  It must be
// called with the Store the mutation runs on.
func (s *ProgramService) authorize(ctx context.Context, st *repository.Store, actor *model.User, id int64, action model.ProgramAction) (model.Program, error) {
	if actor == nil {
		return model.Program{}, errorf(ErrAuthFailed, "authentication required")
	}
	p, err := st.Programs.GetByID(ctx, id)
	if err != nil {
		return model.Program{}, translate(err, "program")
	}
	if err := NewRoleResolver(st).Require(ctx, actor.ID, id, model.RoleProgrammer); err != nil {
		return model.Program{}, err
	}
	if !action.AllowedIn(p.State) {
		return model.Program{}, errorf(ErrForbidden, "%s is not allowed while program is %s", action, p.State)
	}
	return p, nil
}

// Get returns one program if viewer may see it.  viewer is nil for
// anonymous callers.
func (s *ProgramService) Get(ctx context.Context, viewer *model.User, id int64) (ProgramDetail, error) {
	p, err := s.store.Programs.GetByID(ctx, id)
	if err != nil {
		return ProgramDetail{}, translate(err, "program")
	}
	var roles model.RoleSet
	if viewer != nil {
		if roles, err = NewRoleResolver(s.store).RolesOf(ctx, viewer.ID, id); err != nil {
			return ProgramDetail{}, err
		}
	}
	if !CanViewProgram(viewer, p, roles) {
		return ProgramDetail{}, errorf(ErrForbidden, "program %d is not visible", id)
	}
	out := ProgramDetail{Program: p}
	if viewer != nil && (viewer.IsAdmin() || !roles.Empty()) {
		if out.Roles, err = s.store.Roles.ListForProgram(ctx, id); err != nil {
			return ProgramDetail{}, err
		}
	}
	return out, nil
}

// Search filters programs and then drops those viewer may not see.
// Results are ordered by (start_date, name).
func (s *ProgramService) Search(ctx context.Context, viewer *model.User, f repository.ProgramFilter) ([]model.Program, error) {
	all, err := s.store.Programs.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	var byProgram map[int64]model.RoleSet
	if viewer != nil && !viewer.IsAdmin() {
		if byProgram, err = s.store.Roles.RolesByUser(ctx, viewer.ID); err != nil {
			return nil, err
		}
	}
	out := make([]model.Program, 0, len(all))
	for _, p := range all {
		if CanViewProgram(viewer, p, byProgram[p.ID]) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Update changes name, description or dates.  Not allowed once the
// program is ANNOUNCED.  Name uniqueness and date order are re-checked.
func (s *ProgramService) Update(ctx context.Context, actor *model.User, id int64, in UpdateProgramInput) (model.Program, error) {
	var out model.Program
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		p, err := s.authorize(ctx, tx, actor, id, model.ProgramActionUpdate)
		if err != nil {
			return err
		}
		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			p.Description = strings.TrimSpace(*in.Description)
		}
		if in.StartDate != nil {
			p.StartDate = repository.DateOnly(*in.StartDate)
		}
		if in.EndDate != nil {
			p.EndDate = repository.DateOnly(*in.EndDate)
		}
		if err := validateProgram(p); err != nil {
			return err
		}
		if err := ensureNameFree(ctx, tx, id, p.Name); err != nil {
			return err
		}
		if err := tx.Programs.Update(ctx, p, s.now()); err != nil {
			return translate(err, "program")
		}
		out, err = tx.Programs.GetByID(ctx, id)
		return err
	})
	return out, err
}

// Delete removes a program with its roles and screenings.  Only allowed
// while the program is still CREATED.
func (s *ProgramService) Delete(ctx context.Context, actor *model.User, id int64) error {
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if _, err := s.authorize(ctx, tx, actor, id, model.ProgramActionDelete); err != nil {
			return err
		}
		return translate(tx.Programs.Delete(ctx, id), "program")
	})
	if err != nil {
		return err
	}
	s.logger.Info("program deleted", zap.Int64("program_id", id), zap.Int64("user_id", actor.ID))
	return nil
}

// ChangeState advances the program to target, which must be exactly the
// next state of the lifecycle.
func (s *ProgramService) ChangeState(ctx context.Context, actor *model.User, id int64, target string) (model.Program, error) {
	var (
		out  model.Program
		from model.ProgramState
	)
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		p, err := s.authorize(ctx, tx, actor, id, model.ProgramActionChangeState)
		if err != nil {
			return err
		}
		to, ok := model.ParseProgramState(strings.ToUpper(strings.TrimSpace(target)))
		if !ok {
			return errorf(ErrInvalidTransition, "unknown program state %q", target)
		}
		if !p.State.CanAdvanceTo(to) {
			return errorf(ErrInvalidTransition, "cannot move program from %s to %s", p.State, to)
		}
		if err := tx.Programs.SetState(ctx, id, to, s.now()); err != nil {
			return translate(err, "program")
		}
		from = p.State
		out, err = tx.Programs.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Program{}, err
	}
	s.logger.Info("program state changed",
		zap.Int64("program_id", id), zap.Int64("user_id", actor.ID),
		zap.String("from", string(from)), zap.String("to", string(out.State)))
	s.events.emit(ctx, queue.WorkflowEvent{
		Kind: queue.KindProgramStateChanged, ProgramID: id, ActorID: actor.ID,
		From: string(from), To: string(out.State),
	})
	return out, nil
}

// AddProgrammer grants userID the PROGRAMMER role.  Allowed in any state.
func (s *ProgramService) AddProgrammer(ctx context.Context, actor *model.User, programID, userID int64) (model.ProgramRole, error) {
	return s.grant(ctx, actor, programID, userID, model.RoleProgrammer, model.ProgramActionAddProgrammer)
}

// AddStaff grants userID the STAFF role.  The staff roster freezes once
// the program leaves SUBMISSION.
func (s *ProgramService) AddStaff(ctx context.Context, actor *model.User, programID, userID int64) (model.ProgramRole, error) {
	return s.grant(ctx, actor, programID, userID, model.RoleStaff, model.ProgramActionAddStaff)
}

func (s *ProgramService) grant(ctx context.Context, actor *model.User, programID, userID int64, role model.ProgramRoleType, action model.ProgramAction) (model.ProgramRole, error) {
	var out model.ProgramRole
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		if _, err := s.authorize(ctx, tx, actor, programID, action); err != nil {
			return err
		}
		if _, err := tx.Users.GetByID(ctx, userID); err != nil {
			return translate(err, "user")
		}
		var err error
		out, err = tx.Roles.Grant(ctx, userID, programID, role, s.now())
		if errors.Is(err, repository.ErrDuplicate) {
			return errorf(ErrConflict, "user %d already holds %s in program %d", userID, role, programID)
		}
		return err
	})
	if err != nil {
		return model.ProgramRole{}, err
	}
	s.logger.Info("program role granted",
		zap.Int64("program_id", programID), zap.Int64("user_id", userID),
		zap.String("role", string(role)), zap.Int64("actor_id", actor.ID))
	return out, nil
}

// ListRoles returns every role grant of the program.  Programmers only.
func (s *ProgramService) ListRoles(ctx context.Context, actor *model.User, programID int64) ([]model.ProgramRole, error) {
	if actor == nil {
		return nil, errorf(ErrAuthFailed, "authentication required")
	}
	if _, err := s.store.Programs.GetByID(ctx, programID); err != nil {
		return nil, translate(err, "program")
	}
	if err := NewRoleResolver(s.store).Require(ctx, actor.ID, programID, model.RoleProgrammer); err != nil {
		return nil, err
	}
	return s.store.Roles.ListForProgram(ctx, programID)
}
