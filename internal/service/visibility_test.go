package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/repository"
)

func TestCanViewScreeningRules(t *testing.T) {
	viewer := &model.User{ID: 7}
	other := int64(8)
	mine := int64(7)
	open := model.Program{State: model.ProgramReview}
	announced := model.Program{State: model.ProgramAnnounced}

	handled := model.Screening{SubmitterID: other, HandlerID: &mine, State: model.ScreeningSubmitted}
	submitted := model.Screening{SubmitterID: mine, State: model.ScreeningSubmitted}
	foreign := model.Screening{SubmitterID: other, HandlerID: &other, State: model.ScreeningSubmitted}
	scheduled := model.Screening{SubmitterID: other, State: model.ScreeningScheduled}

	staff := model.NewRoleSet(model.RoleStaff)
	submitter := model.NewRoleSet(model.RoleSubmitter)
	both := model.NewRoleSet(model.RoleStaff, model.RoleSubmitter)

	assert.True(t, CanViewScreening(viewer, open, foreign, model.NewRoleSet(model.RoleProgrammer)))

	assert.True(t, CanViewScreening(viewer, open, handled, staff))
	assert.False(t, CanViewScreening(viewer, open, submitted, staff))
	assert.True(t, CanViewScreening(viewer, open, submitted, submitter))
	assert.False(t, CanViewScreening(viewer, open, handled, submitter))
	assert.True(t, CanViewScreening(viewer, open, handled, both))
	assert.True(t, CanViewScreening(viewer, open, submitted, both))
	assert.False(t, CanViewScreening(viewer, open, foreign, both))

	assert.False(t, CanViewScreening(nil, open, scheduled, 0))
	assert.True(t, CanViewScreening(nil, announced, scheduled, 0))
	assert.False(t, CanViewScreening(nil, announced, foreign, 0))
	assert.True(t, CanViewScreening(viewer, announced, scheduled, 0))

	admin := &model.User{ID: 1, Role: model.UserRoleAdmin}
	assert.False(t, CanViewScreening(admin, open, foreign, 0), "admins get no implicit screening access")
	assert.True(t, CanViewProgram(admin, open, 0))
	assert.False(t, CanViewProgram(viewer, open, 0))
	assert.True(t, CanViewProgram(viewer, open, staff))
	assert.True(t, CanViewProgram(nil, announced, 0))
}

func TestProgramSearchVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	admin := f.user(t, "admin_user", model.UserRoleAdmin)

	hidden := f.program(t, a, "Festival Draft")
	public := f.program(t, a, "Festival Public")
	f.advance(t, a, public.ID, model.ProgramAnnounced)

	filter := repository.ProgramFilter{Name: "festival"}

	anon, err := f.programs.Search(ctx, nil, filter)
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Equal(t, public.ID, anon[0].ID)

	plain, err := f.programs.Search(ctx, b, filter)
	require.NoError(t, err)
	assert.Len(t, plain, 1)

	owner, err := f.programs.Search(ctx, a, filter)
	require.NoError(t, err)
	assert.Len(t, owner, 2)

	all, err := f.programs.Search(ctx, admin, repository.ProgramFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.programs.Get(ctx, nil, hidden.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.programs.Get(ctx, b, hidden.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.programs.Get(ctx, nil, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	detail, err := f.programs.Get(ctx, nil, public.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Roles, "anonymous viewers do not see the roster")

	detail, err = f.programs.Get(ctx, a, hidden.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Roles, 1)
}

func TestScreeningSearchVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice_a", model.UserRoleUser)
	b := f.user(t, "bob_b", model.UserRoleUser)
	c := f.user(t, "carol_c", model.UserRoleUser)
	d := f.user(t, "dave_d", model.UserRoleUser)
	p := f.program(t, a, "Visible Festival")

	sb, err := f.screenings.Create(ctx, b, completeScreening(p.ID, "Solaris"))
	require.NoError(t, err)
	sd, err := f.screenings.Create(ctx, d, completeScreening(p.ID, "Stalker"))
	require.NoError(t, err)
	_, err = f.programs.AddStaff(ctx, a, p.ID, c.ID)
	require.NoError(t, err)

	f.advance(t, a, p.ID, model.ProgramSubmission)
	for _, s := range []struct {
		who *model.User
		id  int64
	}{{b, sb.ID}, {d, sd.ID}} {
		_, err = f.screenings.Submit(ctx, s.who, s.id)
		require.NoError(t, err)
	}
	f.advance(t, a, p.ID, model.ProgramAssignment)
	_, err = f.screenings.AssignHandler(ctx, a, sd.ID, c.ID)
	require.NoError(t, err)

	ids := func(list []model.Screening) []int64 {
		out := []int64{}
		for _, s := range list {
			out = append(out, s.ID)
		}
		return out
	}

	got, err := f.screenings.Search(ctx, a, p.ID, repository.ScreeningFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{sb.ID, sd.ID}, ids(got))

	got, err = f.screenings.Search(ctx, b, p.ID, repository.ScreeningFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{sb.ID}, ids(got))

	got, err = f.screenings.Search(ctx, c, p.ID, repository.ScreeningFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{sd.ID}, ids(got))

	got, err = f.screenings.Search(ctx, nil, p.ID, repository.ScreeningFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.screenings.Search(ctx, nil, 9999, repository.ScreeningFilter{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.screenings.Get(ctx, c, sb.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.screenings.Get(ctx, nil, sb.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	s, err := f.screenings.Get(ctx, c, sd.ID)
	require.NoError(t, err)
	assert.Equal(t, sd.ID, s.ID)
}
