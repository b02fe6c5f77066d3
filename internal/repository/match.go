package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

const matchIndexKey = "matches"

type MatchRepository interface {
	CreateOrUpdate(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	List(ctx context.Context, offset, limit int64) ([]*entity.Match, error)
	AppendLog(ctx context.Context, id string, entries ...entity.LogEntry) error
	GetLog(ctx context.Context, id string) ([]entity.LogEntry, error)
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

func matchKey(id string) string {
	return "match:" + id
}

func logKey(id string) string {
	return "match:" + id + ":log"
}

// CreateOrUpdate - stores the snapshot without its log, which lives in its own list.
func (that *dbMatch) CreateOrUpdate(ctx context.Context, match *entity.Match) error {
	stored := *match
	stored.Log = nil

	matchJSON, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("could not marshal match: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKey(match.ID), matchJSON, 0)
		pipe.ZAddNX(ctx, matchIndexKey, redis.Z{
			Score:  float64(match.CreatedAt.UnixMilli()),
			Member: match.ID,
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set match: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	response, err := that.client.Get(ctx, matchKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return &entity.Match{}, apperror.ErrMatchNotFound
	}

	if err != nil {
		return &entity.Match{}, fmt.Errorf("%w by id", err)
	}

	var existingMatch entity.Match
	if err = json.Unmarshal([]byte(response), &existingMatch); err != nil {
		return &entity.Match{}, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &existingMatch, nil
}

// List - newest matches first.
func (that *dbMatch) List(ctx context.Context, offset, limit int64) ([]*entity.Match, error) {
	ids, err := that.client.ZRevRange(ctx, matchIndexKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	if len(ids) == 0 {
		return []*entity.Match{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, matchKey(id))
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	matches := make([]*entity.Match, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var match entity.Match
		if err = json.Unmarshal([]byte(raw), &match); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match: %w", err)
		}

		matches = append(matches, &match)
	}

	return matches, nil
}

func (that *dbMatch) AppendLog(ctx context.Context, id string, entries ...entity.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, len(entries))
	for _, entry := range entries {
		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("could not marshal log entry: %w", err)
		}

		values = append(values, entryJSON)
	}

	if err := that.client.RPush(ctx, logKey(id), values...).Err(); err != nil {
		return fmt.Errorf("failed to append match log: %w", err)
	}

	return nil
}

func (that *dbMatch) GetLog(ctx context.Context, id string) ([]entity.LogEntry, error) {
	values, err := that.client.LRange(ctx, logKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get match log: %w", err)
	}

	entries := make([]entity.LogEntry, 0, len(values))
	for _, value := range values {
		var entry entity.LogEntry
		if err = json.Unmarshal([]byte(value), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
