package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/queue"
	"github.com/iliyamo/cinema-festival/internal/repository"
	"github.com/iliyamo/cinema-festival/internal/testutil"
	"github.com/iliyamo/cinema-festival/internal/utils"
)

const testPassword = "Sup3r!secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.WorkflowEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.WorkflowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	store      *repository.Store
	pub        *recordingPublisher
	auth       *AuthService
	users      *UserService
	programs   *ProgramService
	screenings *ScreeningService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewStore(testutil.TestDB(t))
	logger := testutil.TestLogger(t)
	pub := &recordingPublisher{}
	return &fixture{
		store:      store,
		pub:        pub,
		auth:       NewAuthService(store, AuthConfig{Secret: "test-secret", TTLMin: 30, BcryptCost: bcrypt.MinCost}, logger),
		users:      NewUserService(store, bcrypt.MinCost, logger),
		programs:   NewProgramService(store, pub, logger),
		screenings: NewScreeningService(store, pub, logger),
	}
}

// user inserts an active account whose password is testPassword.
func (f *fixture) user(t *testing.T, name string, role model.UserRole) *model.User {
	t.Helper()
	ctx := context.Background()
	hash, err := utils.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	id, err := f.store.Users.Create(ctx, model.User{
		Username:     name,
		PasswordHash: hash,
		FullName:     name,
		Email:        name + "@example.com",
		Role:         role,
		IsActive:     true,
	}, time.Now())
	require.NoError(t, err)
	u, err := f.store.Users.GetByID(ctx, id)
	require.NoError(t, err)
	return &u
}

func (f *fixture) program(t *testing.T, owner *model.User, name string) model.Program {
	t.Helper()
	p, err := f.programs.Create(context.Background(), owner, ProgramInput{
		Name:      name,
		StartDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return p
}

// completeScreening returns input for a screening that can be submitted.
func completeScreening(programID int64, title string) ScreeningInput {
	start := time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC)
	end := start.Add(150 * time.Minute)
	return ScreeningInput{
		ProgramID:    programID,
		FilmTitle:    title,
		FilmCast:     "Natalya Bondarchuk",
		FilmGenre:    "science fiction",
		FilmDuration: 120,
		Venue:        "Main Hall",
		StartTime:    &start,
		EndTime:      &end,
	}
}

// advance moves the program forward until it reaches target.
func (f *fixture) advance(t *testing.T, actor *model.User, programID int64, target model.ProgramState) {
	t.Helper()
	ctx := context.Background()
	p, err := f.store.Programs.GetByID(ctx, programID)
	require.NoError(t, err)
	for p.State != target {
		next, ok := p.State.Next()
		require.True(t, ok, "no state after %s", p.State)
		p, err = f.programs.ChangeState(ctx, actor, programID, string(next))
		require.NoError(t, err)
	}
}
