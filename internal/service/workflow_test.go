package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/queue"
)

func TestScreeningReachesScheduled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	c := f.user(t, "carol_c", model.UserRoleUser)

	p := f.program(t, a, "Spring Festival")

	_, err := f.screenings.Create(ctx, a, completeScreening(p.ID, "Own Film"))
	assert.ErrorIs(t, err, ErrForbidden)

	s, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Solaris"))
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningCreated, s.State)
	role, err := NewRoleResolver(f.store).RoleOf(ctx, b.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSubmitter, role)

	_, err = f.programs.AddStaff(ctx, a, p.ID, c.ID)
	require.NoError(t, err)

	f.advance(t, a, p.ID, model.ProgramSubmission)
	s, err = f.screenings.Submit(ctx, b, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningSubmitted, s.State)

	f.advance(t, a, p.ID, model.ProgramAssignment)
	s, err = f.screenings.AssignHandler(ctx, a, s.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, s.HandlerID)
	assert.Equal(t, c.ID, *s.HandlerID)

	f.advance(t, a, p.ID, model.ProgramReview)
	_, err = f.screenings.Review(ctx, b, s.ID, 9, "self review")
	assert.ErrorIs(t, err, ErrForbidden)
	s, err = f.screenings.Review(ctx, c, s.ID, 8.5, "Strong programme fit")
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningReviewed, s.State)
	require.NotNil(t, s.ReviewScore)
	assert.InDelta(t, 8.5, *s.ReviewScore, 0.001)

	f.advance(t, a, p.ID, model.ProgramScheduling)
	s, err = f.screenings.Approve(ctx, b, s.ID, "ready")
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningApproved, s.State)

	f.advance(t, a, p.ID, model.ProgramFinalPublication)
	s, err = f.screenings.FinalSubmit(ctx, b, s.ID)
	require.NoError(t, err)
	assert.True(t, s.IsFinallySubmitted)

	f.advance(t, a, p.ID, model.ProgramDecision)
	s, err = f.screenings.Accept(ctx, a, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningScheduled, s.State)

	assert.Contains(t, f.pub.kinds(), queue.KindScreeningStateChanged)
	assert.Contains(t, f.pub.kinds(), queue.KindProgramStateChanged)
}

func TestAutoRejectNonSubmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)

	q := f.program(t, a, "Autumn Festival")
	s1, err := f.screenings.Create(ctx, b, completeScreening(q.ID, "Stalker"))
	require.NoError(t, err)
	s2, err := f.screenings.Create(ctx, b, completeScreening(q.ID, "Mirror"))
	require.NoError(t, err)

	f.advance(t, a, q.ID, model.ProgramSubmission)
	for _, id := range []int64{s1.ID, s2.ID} {
		_, err = f.screenings.Submit(ctx, b, id)
		require.NoError(t, err)
	}
	f.advance(t, a, q.ID, model.ProgramScheduling)
	for _, id := range []int64{s1.ID, s2.ID} {
		_, err = f.screenings.Approve(ctx, b, id, "")
		require.NoError(t, err)
	}
	f.advance(t, a, q.ID, model.ProgramFinalPublication)
	_, err = f.screenings.FinalSubmit(ctx, b, s1.ID)
	require.NoError(t, err)
	f.advance(t, a, q.ID, model.ProgramDecision)

	n, err := f.screenings.AutoRejectNonSubmitted(ctx, q.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got1, err := f.store.Screenings.GetByID(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningApproved, got1.State)
	got2, err := f.store.Screenings.GetByID(ctx, s2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningRejected, got2.State)
	assert.Equal(t, model.AutoRejectReason, got2.RejectionReason)

	n, err = f.screenings.AutoRejectNonSubmitted(ctx, q.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.screenings.AutoRejectNonSubmitted(ctx, 9999, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepDecisionPrograms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)

	q := f.program(t, a, "Sweep Festival")
	s, err := f.screenings.Create(ctx, b, completeScreening(q.ID, "Nostalghia"))
	require.NoError(t, err)
	f.advance(t, a, q.ID, model.ProgramSubmission)
	_, err = f.screenings.Submit(ctx, b, s.ID)
	require.NoError(t, err)
	f.advance(t, a, q.ID, model.ProgramScheduling)
	_, err = f.screenings.Approve(ctx, b, s.ID, "")
	require.NoError(t, err)

	total, err := f.screenings.SweepDecisionPrograms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	f.advance(t, a, q.ID, model.ProgramDecision)
	total, err = f.screenings.SweepDecisionPrograms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestAcceptRequiresFinalSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)

	p := f.program(t, a, "Winter Festival")
	s, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Ivan's Childhood"))
	require.NoError(t, err)
	f.advance(t, a, p.ID, model.ProgramSubmission)
	_, err = f.screenings.Submit(ctx, b, s.ID)
	require.NoError(t, err)
	f.advance(t, a, p.ID, model.ProgramScheduling)
	_, err = f.screenings.Approve(ctx, b, s.ID, "")
	require.NoError(t, err)

	_, err = f.screenings.Accept(ctx, a, s.ID)
	assert.ErrorIs(t, err, ErrForbidden, "program not in DECISION")

	f.advance(t, a, p.ID, model.ProgramDecision)
	_, err = f.screenings.Accept(ctx, a, s.ID)
	assert.ErrorIs(t, err, ErrForbidden, "not finally submitted")

	_, err = f.screenings.Accept(ctx, b, s.ID)
	assert.ErrorIs(t, err, ErrForbidden, "not a programmer")

	got, err := f.store.Screenings.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningApproved, got.State)
}

func TestSubmitPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	p := f.program(t, a, "Summer Festival")

	incomplete, err := f.screenings.Create(ctx, b, ScreeningInput{ProgramID: p.ID, FilmTitle: "Draft"})
	require.NoError(t, err)
	complete, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Andrei Rublev"))
	require.NoError(t, err)

	_, err = f.screenings.Submit(ctx, b, complete.ID)
	assert.ErrorIs(t, err, ErrForbidden, "program still CREATED")

	f.advance(t, a, p.ID, model.ProgramSubmission)
	_, err = f.screenings.Submit(ctx, b, incomplete.ID)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.screenings.Submit(ctx, a, complete.ID)
	assert.ErrorIs(t, err, ErrForbidden, "not the submitter")

	_, err = f.screenings.Submit(ctx, b, complete.ID)
	require.NoError(t, err)
	_, err = f.screenings.Submit(ctx, b, complete.ID)
	assert.ErrorIs(t, err, ErrForbidden, "already submitted")

	title := "Changed"
	_, err = f.screenings.Update(ctx, b, complete.ID, UpdateScreeningInput{FilmTitle: &title})
	assert.ErrorIs(t, err, ErrForbidden, "update only while CREATED")
	assert.ErrorIs(t, f.screenings.Withdraw(ctx, b, complete.ID), ErrForbidden)

	require.NoError(t, f.screenings.Withdraw(ctx, b, incomplete.ID))
	_, err = f.store.Screenings.GetByID(ctx, incomplete.ID)
	assert.Error(t, err)
}

func TestScreeningTimeInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	p := f.program(t, a, "Time Festival")

	in := completeScreening(p.ID, "Too Long")
	in.FilmDuration = 200
	_, err := f.screenings.Create(ctx, b, in)
	assert.ErrorIs(t, err, ErrConflict)

	s, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Fits"))
	require.NoError(t, err)
	early := s.StartTime.Add(-time.Hour)
	_, err = f.screenings.Update(ctx, b, s.ID, UpdateScreeningInput{EndTime: &early})
	assert.ErrorIs(t, err, ErrConflict)

	zero := 0
	_, err = f.screenings.Update(ctx, b, s.ID, UpdateScreeningInput{FilmDuration: &zero})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReviewAndRejectValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	c := f.user(t, "carol_c", model.UserRoleUser)
	d := f.user(t, "dave_d", model.UserRoleUser)
	p := f.program(t, a, "Review Festival")

	s, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Zerkalo"))
	require.NoError(t, err)
	_, err = f.programs.AddStaff(ctx, a, p.ID, c.ID)
	require.NoError(t, err)

	f.advance(t, a, p.ID, model.ProgramAssignment)
	_, err = f.screenings.AssignHandler(ctx, a, s.ID, d.ID)
	assert.ErrorIs(t, err, ErrValidation, "handler must be staff")
	_, err = f.screenings.AssignHandler(ctx, a, s.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.screenings.AssignHandler(ctx, b, s.ID, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.screenings.AssignHandler(ctx, a, s.ID, c.ID)
	require.NoError(t, err)

	f.advance(t, a, p.ID, model.ProgramReview)
	_, err = f.screenings.Review(ctx, c, s.ID, 10.5, "too high")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.screenings.Review(ctx, c, s.ID, 7, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	got, err := f.screenings.Review(ctx, c, s.ID, 7.456, "fine")
	require.NoError(t, err)
	assert.InDelta(t, 7.46, *got.ReviewScore, 0.001)

	f.advance(t, a, p.ID, model.ProgramScheduling)
	_, err = f.screenings.Reject(ctx, a, s.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
	got, err = f.screenings.Reject(ctx, a, s.ID, "Out of scope")
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningRejected, got.State)
	assert.Equal(t, "Out of scope", got.RejectionReason)
}

func TestProgramLifecycleRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	p := f.program(t, a, "Lifecycle")

	roles, err := f.store.Roles.ListForProgram(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, a.ID, roles[0].UserID)
	assert.Equal(t, model.RoleProgrammer, roles[0].Role)

	_, err = f.programs.ChangeState(ctx, a, p.ID, "REVIEW")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.programs.ChangeState(ctx, a, p.ID, "PUBLISHED")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.programs.ChangeState(ctx, b, p.ID, "SUBMISSION")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.programs.ChangeState(ctx, a, 9999, "SUBMISSION")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.programs.ChangeState(ctx, a, p.ID, "submission")
	require.NoError(t, err)
	assert.Equal(t, model.ProgramSubmission, got.State)
	_, err = f.programs.ChangeState(ctx, a, p.ID, "CREATED")
	assert.ErrorIs(t, err, ErrInvalidTransition, "no rewind")

	assert.ErrorIs(t, f.programs.Delete(ctx, a, p.ID), ErrForbidden, "delete only while CREATED")

	f.advance(t, a, p.ID, model.ProgramAnnounced)
	_, err = f.programs.ChangeState(ctx, a, p.ID, "DECISION")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	name := "Renamed"
	_, err = f.programs.Update(ctx, a, p.ID, UpdateProgramInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden, "announced programs are immutable")
}

func TestProgramCreateAndUpdateConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	f.program(t, a, "Taken")
	other := f.program(t, a, "Other")

	_, err := f.programs.Create(ctx, a, ProgramInput{
		Name:      "Taken",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.programs.Create(ctx, a, ProgramInput{
		Name:      "Backwards",
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrConflict)

	name := "Taken"
	_, err = f.programs.Update(ctx, a, other.ID, UpdateProgramInput{Name: &name})
	assert.ErrorIs(t, err, ErrConflict)

	desc := "new description"
	got, err := f.programs.Update(ctx, a, other.ID, UpdateProgramInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "new description", got.Description)
	assert.Equal(t, "Other", got.Name)
}

func TestRosterRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	c := f.user(t, "carol_c", model.UserRoleUser)
	p := f.program(t, a, "Roster")

	_, err := f.programs.AddStaff(ctx, a, p.ID, c.ID)
	require.NoError(t, err)
	_, err = f.programs.AddStaff(ctx, a, p.ID, c.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.programs.AddStaff(ctx, b, p.ID, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.programs.AddStaff(ctx, a, p.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	roles, err := f.store.Roles.ListForProgram(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	_, err = f.programs.AddProgrammer(ctx, a, p.ID, b.ID)
	require.NoError(t, err)
	_, err = f.programs.AddProgrammer(ctx, a, p.ID, b.ID)
	assert.ErrorIs(t, err, ErrConflict)

	f.advance(t, a, p.ID, model.ProgramAssignment)
	_, err = f.programs.AddStaff(ctx, b, p.ID, a.ID)
	assert.ErrorIs(t, err, ErrForbidden, "staff roster frozen after SUBMISSION")

	d := f.user(t, "dave_d", model.UserRoleUser)
	_, err = f.programs.AddProgrammer(ctx, b, p.ID, d.ID)
	require.NoError(t, err, "programmers can be added in any state")

	list, err := f.programs.ListRoles(ctx, a, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 4)
	_, err = f.programs.ListRoles(ctx, c, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestProgramDeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	p := f.program(t, a, "Short Lived")
	s, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Gone"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.programs.Delete(ctx, b, p.ID), ErrForbidden)
	require.NoError(t, f.programs.Delete(ctx, a, p.ID))

	_, err = f.programs.Get(ctx, a, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.screenings.Get(ctx, b, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminHasNoImplicitProgramRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	c := f.user(t, "carol_c", model.UserRoleUser)
	admin := f.user(t, "admin_user", model.UserRoleAdmin)
	p := f.program(t, a, "Guarded Festival")

	s, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Nostalghia"))
	require.NoError(t, err)

	_, err = f.programs.ChangeState(ctx, admin, p.ID, "SUBMISSION")
	assert.ErrorIs(t, err, ErrForbidden)
	name := "Taken Over"
	_, err = f.programs.Update(ctx, admin, p.ID, UpdateProgramInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.programs.AddStaff(ctx, admin, p.ID, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.programs.AddProgrammer(ctx, admin, p.ID, admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	f.advance(t, a, p.ID, model.ProgramScheduling)
	_, err = f.screenings.Reject(ctx, admin, s.ID, "not on my watch")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.store.Screenings.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScreeningCreated, got.State)
	stored, err := f.store.Programs.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Guarded Festival", stored.Name)
}

func TestTextLimitsCountCharacters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	p := f.program(t, a, "Ωmega Festival")

	in := completeScreening(p.ID, strings.Repeat("Ω", 150))
	in.FilmGenre = strings.Repeat("é", 100)
	in.Venue = strings.Repeat("ü", 100)
	s, err := f.screenings.Create(ctx, b, in)
	require.NoError(t, err)
	assert.Equal(t, 150, utf8.RuneCountInString(s.FilmTitle))

	in.FilmTitle = strings.Repeat("Ω", 201)
	_, err = f.screenings.Create(ctx, b, in)
	assert.ErrorIs(t, err, ErrValidation)

	long := strings.Repeat("ß", 200)
	_, err = f.programs.Create(ctx, a, ProgramInput{
		Name:      long,
		StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	tooLong := long + "ß"
	_, err = f.programs.Update(ctx, a, p.ID, UpdateProgramInput{Name: &tooLong})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReviewScoreRoundsBeforeRangeCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	c := f.user(t, "carol_c", model.UserRoleUser)
	p := f.program(t, a, "Rounding Festival")

	s, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Ivan's Childhood"))
	require.NoError(t, err)
	_, err = f.programs.AddStaff(ctx, a, p.ID, c.ID)
	require.NoError(t, err)
	f.advance(t, a, p.ID, model.ProgramAssignment)
	_, err = f.screenings.AssignHandler(ctx, a, s.ID, c.ID)
	require.NoError(t, err)
	f.advance(t, a, p.ID, model.ProgramReview)

	_, err = f.screenings.Review(ctx, c, s.ID, 10.006, "just over")
	assert.ErrorIs(t, err, ErrValidation)
	got, err := f.screenings.Review(ctx, c, s.ID, 10.004, "rounds down to ten")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, *got.ReviewScore, 0.0001)
}
