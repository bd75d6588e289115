package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-festival/internal/config"
	"github.com/iliyamo/cinema-festival/internal/testutil"
)

const password = "Sup3r!secret"

type server struct {
	t *testing.T
	e *echo.Echo
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      "app-test-secret",
		AccessTTLMin:   30,
		BcryptCost:     bcrypt.MinCost,
		AdminUsername:  "root_admin",
		AdminPassword:  password,
		AdminEmail:     "root@example.com",
		AdminFullName:  "Root",
		TokenPurgeCron: "@hourly",
	}
	a := New(cfg, testutil.TestDB(t), nil, nil, testutil.TestLogger(t))
	require.NoError(t, a.Init(context.Background()))

	e := echo.New()
	a.Routes(e)
	return &server{t: t, e: e}
}

// do sends a JSON request and decodes a JSON response into out when given.
func (s *server) do(method, path, token string, body any, out any) int {
	s.t.Helper()
	var payload *strings.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(s.t, err)
		payload = strings.NewReader(string(bs))
	} else {
		payload = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (s *server) login(username string) string {
	s.t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	code := s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"username": username, "password": password}, &resp)
	require.Equal(s.t, http.StatusOK, code)
	return resp.Token
}

// signup registers a user, activates it as admin and logs in.
func (s *server) signup(admin, username string) (int64, string) {
	s.t.Helper()
	var u struct {
		ID       int64 `json:"id"`
		IsActive bool  `json:"is_active"`
	}
	code := s.do(http.MethodPost, "/v1/auth/register", "", echo.Map{
		"username": username, "password": password, "full_name": username, "email": username + "@example.com",
	}, &u)
	require.Equal(s.t, http.StatusCreated, code)
	require.False(s.t, u.IsActive)

	code = s.do(http.MethodPut, fmt.Sprintf("/v1/users/%d/activate", u.ID), admin, nil, nil)
	require.Equal(s.t, http.StatusOK, code)
	return u.ID, s.login(username)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/", "", nil, nil))
	var body map[string]string
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAuthEndpoints(t *testing.T) {
	s := newServer(t)
	admin := s.login("root_admin")
	aliceID, alice := s.signup(admin, "alice_a")

	var me struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/users/me", alice, nil, &me))
	assert.Equal(t, aliceID, me.ID)

	var valid map[string]bool
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/auth/validate-token", alice, nil, &valid))
	assert.True(t, valid["valid"])

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/users/me", "", nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/users", alice, nil, nil))
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/users?skip=0&limit=10", admin, nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/users?limit=abc", admin, nil, nil))

	var errBody map[string]string
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/login", "",
		echo.Map{"username": "alice_a", "password": "wrong"}, &errBody))
	assert.NotEmpty(t, errBody["error"])

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/auth/logout", alice, nil, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/auth/validate-token", alice, nil, &valid))
	assert.False(t, valid["valid"])
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/users/me", alice, nil, nil))
}

func TestProgramAndScreeningEndpoints(t *testing.T) {
	s := newServer(t)
	admin := s.login("root_admin")
	_, alice := s.signup(admin, "alice_a")
	bobID, bob := s.signup(admin, "bob_b")

	var p struct {
		ID        int64  `json:"id"`
		State     string `json:"state"`
		StartDate string `json:"start_date"`
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/programs", alice, echo.Map{
		"name": "Autumn Festival", "description": "films", "start_date": "2026-05-01", "end_date": "2026-05-10",
	}, &p))
	assert.Equal(t, "CREATED", p.State)
	assert.Equal(t, "2026-05-01", p.StartDate)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/programs", alice, echo.Map{
		"name": "Bad Dates", "start_date": "May 1", "end_date": "2026-05-10",
	}, nil))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/v1/programs", alice, echo.Map{
		"name": "Backwards", "start_date": "2026-05-10", "end_date": "2026-05-01",
	}, nil))

	programPath := fmt.Sprintf("/v1/programs/%d", p.ID)
	var list []map[string]any
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/programs/search?name=autumn", "", nil, &list))
	assert.Empty(t, list)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/programs/search?name=autumn", alice, nil, &list))
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, programPath, "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, programPath, "not-a-token", nil, nil))

	var detail struct {
		Roles []struct {
			Role string `json:"role"`
		} `json:"roles"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, programPath, alice, nil, &detail))
	require.Len(t, detail.Roles, 1)
	assert.Equal(t, "PROGRAMMER", detail.Roles[0].Role)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, programPath+"/state", alice, echo.Map{"state": "ANNOUNCED"}, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, programPath+"/state", bob, echo.Map{"state": "SUBMISSION"}, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, programPath+"/state", alice, echo.Map{"state": "submission"}, &p))
	assert.Equal(t, "SUBMISSION", p.State)

	var sc struct {
		ID          int64  `json:"id"`
		State       string `json:"state"`
		SubmitterID int64  `json:"submitter_id"`
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/screenings", bob, echo.Map{
		"program_id": p.ID, "film_title": "Solaris", "film_cast": "Banionis", "film_genre": "Drama",
		"film_duration": 120, "venue": "Main Hall",
		"start_time": "2026-05-02T18:00:00Z", "end_time": "2026-05-02T20:30:00Z",
	}, &sc))
	assert.Equal(t, bobID, sc.SubmitterID)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/v1/screenings", alice, echo.Map{
		"program_id": p.ID, "film_title": "Mine",
	}, nil))

	screeningPath := fmt.Sprintf("/v1/screenings/%d", sc.ID)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, screeningPath+"/submit", bob, nil, &sc))
	assert.Equal(t, "SUBMITTED", sc.State)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, screeningPath, "", nil, nil))
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, screeningPath, alice, nil, nil))

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, programPath+"/screenings/search?title=solaris", bob, nil, &list))
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, programPath+"/screenings/search?start_from=yesterday", bob, nil, nil))

	var roles []map[string]any
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, programPath+"/roles", alice, nil, &roles))
	assert.Len(t, roles, 2)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, programPath+"/roles", bob, nil, nil))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, programPath+"/auto-reject", bob, nil, nil))
	var rejected map[string]int64
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, programPath+"/auto-reject", alice, nil, &rejected))
	assert.Equal(t, int64(0), rejected["rejected"])
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/programs/9999/auto-reject", alice, nil, nil))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/screenings/abc", alice, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/screenings/9999", alice, nil, nil))
}
