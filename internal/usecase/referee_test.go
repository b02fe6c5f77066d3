package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/tictactoe"
)

type mockProvider struct {
	mock.Mock
}

func (that *mockProvider) Name() string {
	return "mock"
}

func (that *mockProvider) Propose(ctx context.Context, observation entity.Observation) (entity.Proposal, error) {
	args := that.Called(ctx, observation)

	return args.Get(0).(entity.Proposal), args.Error(1)
}

// firstLegalProvider always proposes the first legal move it is shown.
type firstLegalProvider struct{}

func (firstLegalProvider) Name() string {
	return "first-legal"
}

func (firstLegalProvider) Propose(_ context.Context, observation entity.Observation) (entity.Proposal, error) {
	move := observation.Legal[0]

	return entity.Proposal{
		BoardIndex: move.Board.Index(),
		CellIndex:  move.Cell.Index(),
		Annotation: "first",
	}, nil
}

// blockingProvider never answers before its context ends.
type blockingProvider struct{}

func (blockingProvider) Name() string {
	return "blocking"
}

func (blockingProvider) Propose(ctx context.Context, _ entity.Observation) (entity.Proposal, error) {
	<-ctx.Done()

	return entity.Proposal{}, ctx.Err()
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestReferee(maxRetries int, seed int64) *Referee {
	return NewReferee(newTestLogger(), maxRetries, 0, rand.New(rand.NewSource(seed))) //nolint: gosec // it's ok
}

func TestReferee_AcquireMove(t *testing.T) {
	t.Run("LegalFirstProposal", func(t *testing.T) {
		referee := newTestReferee(DefaultMaxRetries, 1)
		provider := &mockProvider{}

		// Given: a provider proposing a legal move with an annotation
		provider.On("Propose", mock.Anything, mock.Anything).
			Return(entity.Proposal{BoardIndex: 4, CellIndex: 8, Annotation: "center first"}, nil).Once()

		// When: AcquireMove is called on a new game
		next, entries, err := referee.AcquireMove(context.Background(), tictactoe.NewGame(), provider)

		// Then: the move is applied and annotated
		require.NoError(t, err)
		assert.Equal(t, entity.X, next.Cell(entity.Coord{Row: 1, Col: 1}, entity.Coord{Row: 2, Col: 2}))
		require.Len(t, entries, 1)
		assert.Equal(t, entity.LogAnnotation, entries[0].Kind)
		assert.Equal(t, "center first", entries[0].Message)
		assert.Equal(t, entity.X, entries[0].Player)
		assert.Equal(t, 1, entries[0].Attempt)
		provider.AssertNumberOfCalls(t, "Propose", 1)
	})

	t.Run("ObservationDescribesState", func(t *testing.T) {
		referee := newTestReferee(DefaultMaxRetries, 1)
		provider := &mockProvider{}

		state, err := tictactoe.ApplyMove(tictactoe.NewGame(), entity.Coord{Row: 0, Col: 0}, entity.Coord{Row: 1, Col: 2})
		require.NoError(t, err)

		// Given: a provider that expects to be sent to board 5 as O
		provider.On("Propose", mock.Anything, mock.MatchedBy(func(observation entity.Observation) bool {
			return observation.Player == entity.O &&
				observation.ActiveBoard != nil && *observation.ActiveBoard == 5 &&
				len(observation.Legal) == 9 &&
				observation.Rules != ""
		})).Return(entity.Proposal{BoardIndex: 5, CellIndex: 0}, nil).Once()

		// When: AcquireMove is called
		_, _, err = referee.AcquireMove(context.Background(), state, provider)

		// Then: the provider saw the routed board
		require.NoError(t, err)
		provider.AssertExpectations(t)
	})

	t.Run("RetryThenLegal", func(t *testing.T) {
		referee := newTestReferee(DefaultMaxRetries, 1)
		provider := &mockProvider{}

		state, err := tictactoe.ApplyMove(tictactoe.NewGame(), entity.Coord{Row: 0, Col: 0}, entity.Coord{Row: 1, Col: 1})
		require.NoError(t, err)

		// Given: the first proposal targets the wrong board, the second is legal
		provider.On("Propose", mock.Anything, mock.Anything).
			Return(entity.Proposal{BoardIndex: 0, CellIndex: 0}, nil).Once()
		provider.On("Propose", mock.Anything, mock.Anything).
			Return(entity.Proposal{BoardIndex: 4, CellIndex: 0, Annotation: "ok"}, nil).Once()

		// When: AcquireMove is called
		next, entries, err := referee.AcquireMove(context.Background(), state, provider)

		// Then: one retry is logged and the second proposal is applied
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, entity.LogRetry, entries[0].Kind)
		assert.Equal(t, 1, entries[0].Attempt)
		assert.Equal(t, DefaultMaxRetries, entries[0].MaxAttempts)
		assert.Contains(t, entries[0].Message, "retry 1 of 3")
		assert.Equal(t, entity.LogAnnotation, entries[1].Kind)
		assert.Equal(t, 2, entries[1].Attempt)
		assert.Equal(t, entity.O, next.Cell(entity.Coord{Row: 1, Col: 1}, entity.Coord{Row: 0, Col: 0}))
		provider.AssertNumberOfCalls(t, "Propose", 2)
	})

	t.Run("FallbackAfterAllAttemptsFail", func(t *testing.T) {
		provider := &mockProvider{}
		state := tictactoe.NewGame()

		// Given: a provider that always proposes an out-of-range cell
		provider.On("Propose", mock.Anything, mock.Anything).
			Return(entity.Proposal{BoardIndex: 9, CellIndex: 0}, nil)

		// When: AcquireMove is called twice with identically seeded referees
		first, entries, err := newTestReferee(DefaultMaxRetries, 42).AcquireMove(context.Background(), state, provider)
		require.NoError(t, err)
		second, _, err := newTestReferee(DefaultMaxRetries, 42).AcquireMove(context.Background(), state, provider)
		require.NoError(t, err)

		// Then: four attempts per call, three retries and a random legal move are logged
		provider.AssertNumberOfCalls(t, "Propose", 2*(DefaultMaxRetries+1))
		require.Len(t, entries, DefaultMaxRetries+1)
		for i := 0; i < DefaultMaxRetries; i++ {
			assert.Equal(t, entity.LogRetry, entries[i].Kind)
			assert.Equal(t, i+1, entries[i].Attempt)
		}

		fallback := entries[DefaultMaxRetries]
		assert.Equal(t, entity.LogFallback, fallback.Kind)
		require.NotNil(t, fallback.Move)
		assert.Contains(t, tictactoe.LegalMoves(state), *fallback.Move)

		require.Len(t, first.History, 1)
		assert.Equal(t, first.History, second.History)
		assert.Empty(t, state.History)
	})

	t.Run("ProviderErrorsCountAsAttempts", func(t *testing.T) {
		referee := newTestReferee(DefaultMaxRetries, 7)
		provider := &mockProvider{}

		// Given: a provider that always fails
		provider.On("Propose", mock.Anything, mock.Anything).
			Return(entity.Proposal{}, errors.New("connection reset"))

		// When: AcquireMove is called
		next, entries, err := referee.AcquireMove(context.Background(), tictactoe.NewGame(), provider)

		// Then: the failures are retried, then the fallback move is played
		require.NoError(t, err)
		provider.AssertNumberOfCalls(t, "Propose", DefaultMaxRetries+1)
		assert.Contains(t, entries[0].Message, apperror.ErrProviderFailure.Error())
		assert.Equal(t, entity.LogFallback, entries[len(entries)-1].Kind)
		assert.Len(t, next.History, 1)
	})

	t.Run("ZeroRetries", func(t *testing.T) {
		referee := newTestReferee(0, 3)
		provider := &mockProvider{}

		// Given: no retries allowed
		provider.On("Propose", mock.Anything, mock.Anything).
			Return(entity.Proposal{BoardIndex: -1, CellIndex: 0}, nil)

		// When: the only attempt fails
		_, entries, err := referee.AcquireMove(context.Background(), tictactoe.NewGame(), provider)

		// Then: the fallback follows immediately
		require.NoError(t, err)
		provider.AssertNumberOfCalls(t, "Propose", 1)
		require.Len(t, entries, 1)
		assert.Equal(t, entity.LogFallback, entries[0].Kind)
	})

	t.Run("FinishedGame", func(t *testing.T) {
		referee := newTestReferee(DefaultMaxRetries, 1)
		provider := &mockProvider{}

		// Given: a decided game
		state := tictactoe.NewGame()
		state.Status = entity.StatusWon
		state.Winner = entity.X

		// When: AcquireMove is called
		_, entries, err := referee.AcquireMove(context.Background(), state, provider)

		// Then: the provider is never asked
		require.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Empty(t, entries)
		provider.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything)
	})

	t.Run("NoLegalMoveAvailable", func(t *testing.T) {
		referee := newTestReferee(DefaultMaxRetries, 1)
		provider := &mockProvider{}

		// Given: an inconsistent state that is playing but has every board decided
		state := tictactoe.NewGame()
		for i := range state.SubOutcomes {
			state.SubOutcomes[i] = entity.Drawn
		}

		provider.On("Propose", mock.Anything, mock.Anything).
			Return(entity.Proposal{BoardIndex: 0, CellIndex: 0}, nil)

		// When: AcquireMove is called
		next, _, err := referee.AcquireMove(context.Background(), state, provider)

		// Then: the fallback reports that no move exists and the state is unchanged
		require.ErrorIs(t, err, apperror.ErrNoLegalMoveAvailable)
		assert.Equal(t, state, next)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		referee := newTestReferee(DefaultMaxRetries, 1)
		ctx, cancel := context.WithCancel(context.Background())

		// Given: a provider that blocks until cancelled
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		// When: AcquireMove is waiting on it
		state := tictactoe.NewGame()
		next, entries, err := referee.AcquireMove(ctx, state, blockingProvider{})

		// Then: the call is abandoned without a fallback move
		require.ErrorIs(t, err, context.Canceled)
		assert.True(t, IsAbandoned(err))
		assert.Empty(t, entries)
		assert.Empty(t, next.History)
	})

	t.Run("MoveTimeoutCountsAsAttempt", func(t *testing.T) {
		referee := NewReferee(newTestLogger(), 1, 5*time.Millisecond, rand.New(rand.NewSource(5))) //nolint: gosec // it's ok

		// Given: a provider slower than the move timeout
		// When: AcquireMove is called
		next, entries, err := referee.AcquireMove(context.Background(), tictactoe.NewGame(), blockingProvider{})

		// Then: both attempts time out and a fallback move is played
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, entity.LogRetry, entries[0].Kind)
		assert.Equal(t, entity.LogFallback, entries[1].Kind)
		assert.Len(t, next.History, 1)
	})
}
