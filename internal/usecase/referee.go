package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/tictactoe"
)

const DefaultMaxRetries = 3

// MoveProvider - an untrusted source of moves for one seat.
type MoveProvider interface {
	Name() string
	Propose(ctx context.Context, observation entity.Observation) (entity.Proposal, error)
}

// Referee - asks providers for moves and enforces the retry-then-fallback policy.
type Referee struct {
	logger      *slog.Logger
	maxRetries  int
	moveTimeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewReferee - a zero moveTimeout leaves provider calls bounded only by the caller's context.
func NewReferee(logger *slog.Logger, maxRetries int, moveTimeout time.Duration, rng *rand.Rand) *Referee {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Referee{
		logger:      logger.With("component", "referee"),
		maxRetries:  maxRetries,
		moveTimeout: moveTimeout,
		rng:         rng,
	}
}

// AcquireMove - obtains the next move for the player to move and returns the resulting state
// together with the log entries produced while getting it.
//
// The provider gets maxRetries+1 attempts. Errors and illegal proposals both count as attempts.
// When every attempt fails a uniformly random legal move is played instead.
func (that *Referee) AcquireMove(
	ctx context.Context,
	state entity.State,
	provider MoveProvider,
) (entity.State, []entity.LogEntry, error) {
	log := that.logger.With("method", "AcquireMove", "player", state.NextPlayer, "provider", provider.Name())

	if !state.IsPlaying() {
		return state, nil, apperror.ErrGameFinished
	}

	var entries []entity.LogEntry

	maxAttempts := that.maxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return state, entries, err
		}

		next, annotation, err := that.attempt(ctx, state, provider)
		if err == nil {
			move := next.History[len(next.History)-1]
			entries = append(entries, entity.LogEntry{
				Player:  state.NextPlayer,
				Kind:    entity.LogAnnotation,
				Message: annotation,
				Attempt: attempt,
				Move:    &move,
			})

			return next, entries, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return state, entries, ctxErr
		}

		log.Warn("move attempt rejected", "attempt", attempt, "error", err)

		if attempt < maxAttempts {
			entries = append(entries, entity.LogEntry{
				Player:      state.NextPlayer,
				Kind:        entity.LogRetry,
				Message:     fmt.Sprintf("retry %d of %d: %v", attempt, that.maxRetries, err),
				Attempt:     attempt,
				MaxAttempts: that.maxRetries,
			})
		}
	}

	next, move, err := that.fallback(state)
	if err != nil {
		log.Error("fallback failed", "error", err)

		return state, entries, err
	}

	log.Info("random fallback move applied", "board", move.Board, "cell", move.Cell)

	entries = append(entries, entity.LogEntry{
		Player:  state.NextPlayer,
		Kind:    entity.LogFallback,
		Message: fmt.Sprintf("%s failed after %d retries, random move applied", provider.Name(), that.maxRetries),
		Move:    &move,
	})

	return next, entries, nil
}

func (that *Referee) attempt(
	ctx context.Context,
	state entity.State,
	provider MoveProvider,
) (entity.State, string, error) {
	if that.moveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, that.moveTimeout)
		defer cancel()
	}

	proposal, err := provider.Propose(ctx, tictactoe.Observe(state))
	if err != nil {
		return state, "", fmt.Errorf("%w: %w", apperror.ErrProviderFailure, err)
	}

	board, cell, err := proposal.Coords()
	if err != nil {
		return state, "", fmt.Errorf("%w: %w", apperror.ErrInvalidMove, err)
	}

	if !tictactoe.IsLegalMove(state, board, cell) {
		return state, "", tictactoe.ValidateMove(state, board, cell)
	}

	next, err := tictactoe.ApplyMove(state, board, cell)
	if err != nil {
		return state, "", fmt.Errorf("failed apply move: %w", err)
	}

	return next, proposal.Annotation, nil
}

func (that *Referee) fallback(state entity.State) (entity.State, entity.Move, error) {
	moves := tictactoe.LegalMoves(state)
	if len(moves) == 0 {
		return state, entity.Move{}, apperror.ErrNoLegalMoveAvailable
	}

	that.mu.Lock()
	move := moves[that.rng.Intn(len(moves))]
	that.mu.Unlock()

	next, err := tictactoe.ApplyMove(state, move.Board, move.Cell)
	if err != nil {
		return state, entity.Move{}, fmt.Errorf("failed apply fallback move: %w", err)
	}

	return next, move, nil
}

// IsAbandoned reports whether err came from a cancelled or expired context.
func IsAbandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
