package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/usecase"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errBadRequest = errors.New("bad request")

type matchUseCase interface {
	StartMatch(ctx context.Context, x, o usecase.MoveProvider) (*entity.Match, error)
	ResumeMatch(ctx context.Context, id string, x, o usecase.MoveProvider) (*entity.Match, error)
	GetMatch(ctx context.Context, id string) (*entity.Match, error)
	GetLog(ctx context.Context, id string) ([]entity.LogEntry, error)
	ListMatches(ctx context.Context, offset, limit int64) ([]*entity.Match, error)
	StopMatch(id string) error
}

type resultsRepo interface {
	List(ctx context.Context, limit int) ([]entity.MatchResult, error)
	Standings(ctx context.Context) ([]entity.Standing, error)
}

// ProviderFactory builds the move provider for one seat.
type ProviderFactory func(conf config.Player) (usecase.MoveProvider, error)

type playerRequest struct {
	Kind      string `json:"kind"`
	Model     string `json:"model"`
	BaseURL   string `json:"base_url"`
	MaxTokens int    `json:"max_tokens"`
}

// matchRequest - a missing side plays with the configured default.
type matchRequest struct {
	X *playerRequest `json:"x"`
	O *playerRequest `json:"o"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	logger    *slog.Logger
	matches   matchUseCase
	results   resultsRepo
	providers ProviderFactory
	defaults  config.Players
}

func (that *handlers) startMatch(w http.ResponseWriter, r *http.Request) {
	x, o, err := that.seatProviders(r)
	if err != nil {
		that.writeError(w, err)
		return
	}

	match, err := that.matches.StartMatch(r.Context(), x, o)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, match)
}

func (that *handlers) resumeMatch(w http.ResponseWriter, r *http.Request) {
	x, o, err := that.seatProviders(r)
	if err != nil {
		that.writeError(w, err)
		return
	}

	match, err := that.matches.ResumeMatch(r.Context(), chi.URLParam(r, "id"), x, o)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, match)
}

func (that *handlers) listMatches(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0, 0)
	if err != nil {
		that.writeError(w, err)
		return
	}

	limit, err := queryLimit(r)
	if err != nil {
		that.writeError(w, err)
		return
	}

	matches, err := that.matches.ListMatches(r.Context(), int64(offset), int64(limit))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, matches)
}

func (that *handlers) getMatch(w http.ResponseWriter, r *http.Request) {
	match, err := that.matches.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, match)
}

func (that *handlers) getLog(w http.ResponseWriter, r *http.Request) {
	entries, err := that.matches.GetLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, entries)
}

func (that *handlers) stopMatch(w http.ResponseWriter, r *http.Request) {
	if err := that.matches.StopMatch(chi.URLParam(r, "id")); err != nil {
		that.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (that *handlers) listResults(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		that.writeError(w, err)
		return
	}

	results, err := that.results.List(r.Context(), limit)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, results)
}

func (that *handlers) standings(w http.ResponseWriter, r *http.Request) {
	standings, err := that.results.Standings(r.Context())
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, standings)
}

// seatProviders - an empty body starts both seats with the configured defaults.
func (that *handlers) seatProviders(r *http.Request) (usecase.MoveProvider, usecase.MoveProvider, error) {
	var request matchRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: invalid body: %w", errBadRequest, err)
	}

	x, err := that.provider(request.X, that.defaults.X)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: player x: %w", errBadRequest, err)
	}

	o, err := that.provider(request.O, that.defaults.O)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: player o: %w", errBadRequest, err)
	}

	return x, o, nil
}

func (that *handlers) provider(request *playerRequest, fallback config.Player) (usecase.MoveProvider, error) {
	conf := fallback
	if request != nil {
		conf = config.Player{
			Kind:      request.Kind,
			Model:     request.Model,
			BaseURL:   request.BaseURL,
			MaxTokens: request.MaxTokens,
		}
	}

	return that.providers(conf)
}

func (that *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrMatchAlreadyRunning), errors.Is(err, apperror.ErrGameFinished):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "error", err)
	}

	that.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}

// queryInt - reads a non-negative integer parameter; ceiling caps it when positive.
func queryInt(r *http.Request, name string, fallback, ceiling int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}

	if ceiling > 0 && value > ceiling {
		return ceiling, nil
	}

	return value, nil
}

// queryLimit - a zero limit means the default page size.
func queryLimit(r *http.Request) (int, error) {
	limit, err := queryInt(r, "limit", defaultPageSize, maxPageSize)
	if err != nil {
		return 0, err
	}

	if limit == 0 {
		return defaultPageSize, nil
	}

	return limit, nil
}
