package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) PurgeSessions(context.Context) (int64, error) {
	f.calls++
	return 3, f.err
}

type fakeSweeper struct {
	calls int
}

func (f *fakeSweeper) SweepDecisionPrograms(context.Context) (int, error) {
	f.calls++
	return 2, nil
}

func TestStartRegistersConfiguredJobs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"purge only", Config{TokenPurge: "@hourly"}, 1},
		{"both", Config{TokenPurge: "@hourly", AutoReject: "*/5 * * * *"}, 2},
		{"none", Config{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.cfg, &fakePurger{}, &fakeSweeper{}, zaptest.NewLogger(t))
			require.NoError(t, s.Start())
			defer s.Stop()
			assert.Equal(t, tt.want, s.Jobs())
		})
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(Config{AutoReject: "not a schedule"}, &fakePurger{}, &fakeSweeper{}, zaptest.NewLogger(t))
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto-reject schedule")
}

func TestJobsCallServices(t *testing.T) {
	p := &fakePurger{}
	w := &fakeSweeper{}
	s := New(Config{}, p, w, zaptest.NewLogger(t))

	s.PurgeSessions()
	s.SweepDecisions()
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 1, w.calls)

	p.err = errors.New("db gone")
	s.PurgeSessions()
	assert.Equal(t, 2, p.calls)
}
