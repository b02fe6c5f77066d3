package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/tictactoe"
)

type matchRepo interface {
	CreateOrUpdate(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	List(ctx context.Context, offset, limit int64) ([]*entity.Match, error)
	AppendLog(ctx context.Context, id string, entries ...entity.LogEntry) error
	GetLog(ctx context.Context, id string) ([]entity.LogEntry, error)
}

type archiveRepo interface {
	Save(ctx context.Context, match *entity.Match) error
}

type publisher interface {
	Publish(match entity.Match)
}

type MatchManager struct {
	logger    *slog.Logger
	referee   *Referee
	matchRepo matchRepo
	archive   archiveRepo
	publisher publisher
	moveDelay time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewMatchManager(
	logger *slog.Logger,
	referee *Referee,
	matchRepo matchRepo,
	archive archiveRepo,
	publisher publisher,
	moveDelay time.Duration,
) *MatchManager {
	return &MatchManager{
		logger: logger.With("component", "match-manager"),

		referee:   referee,
		matchRepo: matchRepo,
		archive:   archive,
		publisher: publisher,
		moveDelay: moveDelay,

		running: make(map[string]context.CancelFunc),
	}
}

// StartMatch - creates a match between x and o and plays it in the background.
// The match outlives the request that created it; StopMatch or Shutdown stop it.
func (that *MatchManager) StartMatch(ctx context.Context, x, o MoveProvider) (*entity.Match, error) {
	match, err := that.createMatch(ctx, x, o)
	if err != nil {
		return nil, fmt.Errorf("failed create match: %w", err)
	}

	return that.launch(ctx, match, x, o)
}

// ResumeMatch - continues an aborted match from its stored history.
func (that *MatchManager) ResumeMatch(ctx context.Context, id string, x, o MoveProvider) (*entity.Match, error) {
	that.mu.Lock()
	_, ok := that.running[id]
	that.mu.Unlock()

	if ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrMatchAlreadyRunning, id)
	}

	match, err := that.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	state, err := tictactoe.Replay(match.State.History)
	if err != nil {
		return nil, fmt.Errorf("stored history of match %s is corrupt: %w", id, err)
	}

	if !state.IsPlaying() {
		return nil, fmt.Errorf("match %s: %w", id, apperror.ErrGameFinished)
	}

	match.State = state
	match.Status = entity.MatchRunning
	match.Error = ""
	match.Seats = []entity.Seat{
		{Mark: entity.X, Provider: x.Name()},
		{Mark: entity.O, Provider: o.Name()},
	}

	if err = that.updateMatch(ctx, match); err != nil {
		return nil, err
	}

	return that.launch(ctx, match, x, o)
}

func (that *MatchManager) launch(ctx context.Context, match *entity.Match, x, o MoveProvider) (*entity.Match, error) {
	matchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	that.mu.Lock()
	if _, ok := that.running[match.ID]; ok {
		that.mu.Unlock()
		cancel()

		return nil, fmt.Errorf("%w: %s", apperror.ErrMatchAlreadyRunning, match.ID)
	}
	that.running[match.ID] = cancel
	that.mu.Unlock()

	snapshot := snapshotOf(match)

	that.wg.Add(1)
	go func() {
		defer that.wg.Done()
		defer that.forget(match.ID)

		_, err := that.PlayMatch(matchCtx, match, x, o)
		switch {
		case IsAbandoned(err):
			that.logger.Info("match stopped", "match_id", match.ID)
		case err != nil:
			that.logger.Error("match failed", "match_id", match.ID, "error", err)
		}
	}()

	return &snapshot, nil
}

// PlayMatch - alternates the providers until the game is decided. Every accepted state is
// stored and published before the next provider is asked. Cancelling ctx abandons the
// pending provider call and leaves the last stored state untouched.
func (that *MatchManager) PlayMatch(ctx context.Context, match *entity.Match, x, o MoveProvider) (*entity.Match, error) {
	log := that.logger.With("method", "PlayMatch", "match_id", match.ID)

	for match.State.IsPlaying() {
		provider := x
		if match.State.NextPlayer == entity.O {
			provider = o
		}

		next, entries, err := that.referee.AcquireMove(ctx, match.State, provider)
		if err != nil {
			if IsAbandoned(err) {
				log.Info("match abandoned", "moves", len(match.State.History))

				return match, that.abandon(ctx, match, err)
			}

			if ferr := that.finish(ctx, match, entity.MatchAborted, err); ferr != nil {
				return match, errors.Join(err, ferr)
			}

			return match, fmt.Errorf("failed acquire move: %w", err)
		}

		match.State = next
		match.Log = append(match.Log, entries...)
		match.UpdatedAt = time.Now().UTC()

		if err = that.matchRepo.AppendLog(ctx, match.ID, entries...); err != nil {
			return match, fmt.Errorf("failed append log: %w", err)
		}

		if next.IsFinished() {
			break
		}

		if err = that.updateMatch(ctx, match); err != nil {
			return match, err
		}

		that.publisher.Publish(snapshotOf(match))

		if err = that.sleep(ctx); err != nil {
			log.Info("match abandoned during move delay")

			return match, that.abandon(ctx, match, err)
		}
	}

	log.Info("match finished", "status", match.State.Status, "winner", match.State.Winner)

	if err := that.finish(ctx, match, entity.MatchFinished, nil); err != nil {
		return match, err
	}

	return match, nil
}

func (that *MatchManager) GetMatch(ctx context.Context, id string) (*entity.Match, error) {
	match, err := that.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	entries, err := that.matchRepo.GetLog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match log: %w", err)
	}

	match.Log = entries

	return match, nil
}

// ListMatches - newest first, without logs.
func (that *MatchManager) ListMatches(ctx context.Context, offset, limit int64) ([]*entity.Match, error) {
	matches, err := that.matchRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	return matches, nil
}

// IsRunning - reports whether the match is being played by this process.
func (that *MatchManager) IsRunning(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.running[id]

	return ok
}

func (that *MatchManager) GetLog(ctx context.Context, id string) ([]entity.LogEntry, error) {
	if _, err := that.matchRepo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	entries, err := that.matchRepo.GetLog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match log: %w", err)
	}

	return entries, nil
}

// StopMatch - cancels a running match. Its last applied state stays stored.
func (that *MatchManager) StopMatch(id string) error {
	that.mu.Lock()
	cancel, ok := that.running[id]
	that.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrMatchNotFound, id)
	}

	cancel()

	return nil
}

// Shutdown - cancels every running match and waits for them to store their final state.
func (that *MatchManager) Shutdown() {
	that.mu.Lock()
	for _, cancel := range that.running {
		cancel()
	}
	that.mu.Unlock()

	that.Wait()
}

// Wait - blocks until every running match has stopped.
func (that *MatchManager) Wait() {
	that.wg.Wait()
}

func (that *MatchManager) createMatch(ctx context.Context, x, o MoveProvider) (*entity.Match, error) {
	now := time.Now().UTC()

	match := &entity.Match{
		ID:     uuid.NewString(),
		Status: entity.MatchRunning,
		State:  tictactoe.NewGame(),
		Seats: []entity.Seat{
			{Mark: entity.X, Provider: x.Name()},
			{Mark: entity.O, Provider: o.Name()},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	that.publisher.Publish(snapshotOf(match))

	return match, nil
}

func (that *MatchManager) finish(ctx context.Context, match *entity.Match, status string, cause error) error {
	match.Status = status
	match.UpdatedAt = time.Now().UTC()
	if cause != nil {
		match.Error = cause.Error()
	}

	if err := that.updateMatch(ctx, match); err != nil {
		return err
	}

	that.publisher.Publish(snapshotOf(match))

	if status != entity.MatchFinished {
		return nil
	}

	if err := that.archive.Save(ctx, match); err != nil {
		that.logger.Error("failed to archive match", "match_id", match.ID, "error", err)
	}

	return nil
}

// abandon - stores the aborted match with a context that ignores the cancellation that caused it.
func (that *MatchManager) abandon(ctx context.Context, match *entity.Match, cause error) error {
	if err := that.finish(context.WithoutCancel(ctx), match, entity.MatchAborted, cause); err != nil {
		return errors.Join(cause, err)
	}

	return cause
}

func (that *MatchManager) updateMatch(ctx context.Context, match *entity.Match) error {
	if err := that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	return nil
}

func (that *MatchManager) sleep(ctx context.Context) error {
	if that.moveDelay <= 0 {
		return nil
	}

	timer := time.NewTimer(that.moveDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (that *MatchManager) forget(id string) {
	that.mu.Lock()
	delete(that.running, id)
	that.mu.Unlock()
}

// snapshotOf - subscribers get a copy that later moves never touch.
func snapshotOf(match *entity.Match) entity.Match {
	snapshot := *match
	snapshot.State = match.State.Clone()
	snapshot.Seats = append([]entity.Seat(nil), match.Seats...)
	snapshot.Log = append([]entity.LogEntry(nil), match.Log...)

	return snapshot
}
