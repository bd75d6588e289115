package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreeningScheduleFits(t *testing.T) {
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	before := start.Add(-time.Minute)

	cases := []struct {
		name string
		s    Screening
		want bool
	}{
		{"unset", Screening{}, true},
		{"only start", Screening{StartTime: &start}, true},
		{"fits", Screening{StartTime: &start, EndTime: &end, FilmDuration: 120}, true},
		{"too short", Screening{StartTime: &start, EndTime: &end, FilmDuration: 121}, false},
		{"end before start", Screening{StartTime: &start, EndTime: &before}, false},
		{"end equals start", Screening{StartTime: &start, EndTime: &start}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.s.ScheduleFits())
		})
	}
}

func TestScreeningComplete(t *testing.T) {
	start := time.Now().UTC()
	end := start.Add(time.Hour)
	s := Screening{FilmTitle: "Stalker", FilmDuration: 60, Venue: "Main", StartTime: &start, EndTime: &end}
	assert.True(t, s.Complete())

	s.Venue = ""
	assert.False(t, s.Complete())
}

func TestScreeningRules(t *testing.T) {
	accept, ok := ScreeningActionAccept.Rule()
	require.True(t, ok)
	assert.Equal(t, ActorProgrammer, accept.Actor)
	assert.True(t, accept.NeedsFinal)
	assert.True(t, accept.AllowsScreening(ScreeningApproved))
	assert.False(t, accept.AllowsScreening(ScreeningReviewed))
	assert.True(t, accept.AllowsProgram(ProgramDecision))
	assert.False(t, accept.AllowsProgram(ProgramFinalPublication))
	assert.Equal(t, ScreeningScheduled, accept.To)

	reject, ok := ScreeningActionReject.Rule()
	require.True(t, ok)
	for _, st := range []ScreeningState{ScreeningCreated, ScreeningSubmitted, ScreeningApproved} {
		assert.True(t, reject.AllowsScreening(st))
	}
	assert.True(t, reject.AllowsProgram(ProgramScheduling))
	assert.True(t, reject.AllowsProgram(ProgramDecision))
	assert.False(t, reject.AllowsProgram(ProgramReview))

	review, ok := ScreeningActionReview.Rule()
	require.True(t, ok)
	assert.Equal(t, ActorHandler, review.Actor)

	_, ok = ScreeningAction("nope").Rule()
	assert.False(t, ok)
}
