package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/usecase"
)

type mockMatches struct {
	mock.Mock
}

func (that *mockMatches) StartMatch(ctx context.Context, x, o usecase.MoveProvider) (*entity.Match, error) {
	args := that.Called(ctx, x.Name(), o.Name())
	return args.Get(0).(*entity.Match), args.Error(1)
}

func (that *mockMatches) ResumeMatch(ctx context.Context, id string, x, o usecase.MoveProvider) (*entity.Match, error) {
	args := that.Called(ctx, id, x.Name(), o.Name())
	return args.Get(0).(*entity.Match), args.Error(1)
}

func (that *mockMatches) GetMatch(ctx context.Context, id string) (*entity.Match, error) {
	args := that.Called(ctx, id)
	return args.Get(0).(*entity.Match), args.Error(1)
}

func (that *mockMatches) GetLog(ctx context.Context, id string) ([]entity.LogEntry, error) {
	args := that.Called(ctx, id)
	return args.Get(0).([]entity.LogEntry), args.Error(1)
}

func (that *mockMatches) ListMatches(ctx context.Context, offset, limit int64) ([]*entity.Match, error) {
	args := that.Called(ctx, offset, limit)
	return args.Get(0).([]*entity.Match), args.Error(1)
}

func (that *mockMatches) StopMatch(id string) error {
	return that.Called(id).Error(0)
}

type staticResults struct {
	results   []entity.MatchResult
	standings []entity.Standing
	limit     int
}

func (that *staticResults) List(_ context.Context, limit int) ([]entity.MatchResult, error) {
	that.limit = limit
	return that.results, nil
}

func (that *staticResults) Standings(context.Context) ([]entity.Standing, error) {
	return that.standings, nil
}

type namedProvider string

func (that namedProvider) Name() string { return string(that) }

func (that namedProvider) Propose(context.Context, entity.Observation) (entity.Proposal, error) {
	return entity.Proposal{}, errors.New("not playable")
}

var errNoSuchKind = errors.New("no such kind")

func testFactory(conf config.Player) (usecase.MoveProvider, error) {
	if conf.Kind == "broken" {
		return nil, errNoSuchKind
	}

	return namedProvider(conf.Kind + ":" + conf.Model), nil
}

type routerFixture struct {
	matches *mockMatches
	results *staticResults
	server  *httptest.Server
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	fixture := &routerFixture{
		matches: &mockMatches{},
		results: &staticResults{},
	}

	defaults := config.Players{
		X: config.Player{Kind: "random"},
		O: config.Player{Kind: "openai", Model: "gpt-4o-mini"},
	}

	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	fixture.server = httptest.NewServer(NewRouter(logger, fixture.matches, fixture.results, testFactory, defaults, ws))
	t.Cleanup(fixture.server.Close)
	t.Cleanup(func() { fixture.matches.AssertExpectations(t) })

	return fixture
}

func (that *routerFixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	request, err := http.NewRequestWithContext(context.Background(), method, that.server.URL+path, reader)
	require.NoError(t, err)

	response, err := that.server.Client().Do(request)
	require.NoError(t, err)
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	return response, raw
}

func TestRouter_Ping(t *testing.T) {
	fixture := newRouterFixture(t)

	response, body := fixture.do(t, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestRouter_WebsocketMounted(t *testing.T) {
	fixture := newRouterFixture(t)

	response, _ := fixture.do(t, http.MethodGet, "/ws", "")

	assert.Equal(t, http.StatusTeapot, response.StatusCode)
}

func TestRouter_StartMatch(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		fixture := newRouterFixture(t)

		// Given: no body
		fixture.matches.On("StartMatch", mock.Anything, "random:", "openai:gpt-4o-mini").
			Return(&entity.Match{ID: "m1", Status: entity.MatchRunning}, nil)

		// When: a match is started
		response, body := fixture.do(t, http.MethodPost, "/matches", "")

		// Then: both seats use the configured players
		require.Equal(t, http.StatusCreated, response.StatusCode)

		var match entity.Match
		require.NoError(t, json.Unmarshal(body, &match))
		assert.Equal(t, "m1", match.ID)
	})

	t.Run("OverrideOneSeat", func(t *testing.T) {
		fixture := newRouterFixture(t)

		fixture.matches.On("StartMatch", mock.Anything, "anthropic:claude", "openai:gpt-4o-mini").
			Return(&entity.Match{ID: "m2"}, nil)

		response, _ := fixture.do(t, http.MethodPost, "/matches", `{"x": {"kind": "anthropic", "model": "claude"}}`)

		assert.Equal(t, http.StatusCreated, response.StatusCode)
	})

	t.Run("BadProvider", func(t *testing.T) {
		fixture := newRouterFixture(t)

		response, body := fixture.do(t, http.MethodPost, "/matches", `{"o": {"kind": "broken"}}`)

		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
		assert.Contains(t, string(body), "player o")
	})

	t.Run("BadBody", func(t *testing.T) {
		fixture := newRouterFixture(t)

		response, _ := fixture.do(t, http.MethodPost, "/matches", `{"x":`)

		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	})
}

func TestRouter_MatchErrors(t *testing.T) {
	fixture := newRouterFixture(t)

	fixture.matches.On("GetMatch", mock.Anything, "missing").
		Return((*entity.Match)(nil), fmt.Errorf("failed to get match: %w", apperror.ErrMatchNotFound))
	fixture.matches.On("ResumeMatch", mock.Anything, "done", "random:", "openai:gpt-4o-mini").
		Return((*entity.Match)(nil), fmt.Errorf("match done: %w", apperror.ErrGameFinished))
	fixture.matches.On("StopMatch", "idle").
		Return(fmt.Errorf("%w: idle", apperror.ErrMatchNotFound))
	fixture.matches.On("StopMatch", "m1").Return(nil)
	fixture.matches.On("GetLog", mock.Anything, "m1").
		Return([]entity.LogEntry{{Player: entity.X, Kind: entity.LogAnnotation, Message: "center"}}, nil)

	response, _ := fixture.do(t, http.MethodGet, "/matches/missing", "")
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response, _ = fixture.do(t, http.MethodPost, "/matches/done/resume", "")
	assert.Equal(t, http.StatusConflict, response.StatusCode)

	response, _ = fixture.do(t, http.MethodPost, "/matches/idle/stop", "")
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response, _ = fixture.do(t, http.MethodPost, "/matches/m1/stop", "")
	assert.Equal(t, http.StatusAccepted, response.StatusCode)

	response, body := fixture.do(t, http.MethodGet, "/matches/m1/log", "")
	require.Equal(t, http.StatusOK, response.StatusCode)

	var entries []entity.LogEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	assert.Equal(t, "center", entries[0].Message)
}

func TestRouter_Lists(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.results.results = []entity.MatchResult{{ID: "m1", Winner: entity.X}}
	fixture.results.standings = []entity.Standing{{Provider: "random", Played: 1, Wins: 1}}

	fixture.matches.On("ListMatches", mock.Anything, int64(5), int64(maxPageSize)).
		Return([]*entity.Match{{ID: "m9"}}, nil)

	// When: the page size exceeds the cap
	response, body := fixture.do(t, http.MethodGet, "/matches?offset=5&limit=1000", "")

	// Then: it is clamped
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), "m9")

	response, _ = fixture.do(t, http.MethodGet, "/matches?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, body = fixture.do(t, http.MethodGet, "/results", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, defaultPageSize, fixture.results.limit)

	var results []entity.MatchResult
	require.NoError(t, json.Unmarshal(body, &results))
	assert.Equal(t, entity.X, results[0].Winner)

	response, body = fixture.do(t, http.MethodGet, "/standings", "")
	require.Equal(t, http.StatusOK, response.StatusCode)

	var standings []entity.Standing
	require.NoError(t, json.Unmarshal(body, &standings))
	assert.Equal(t, 1, standings[0].Wins)
}
