package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

const (
	KindRandom     = "random"
	KindOpenAI     = "openai"
	KindOpenRouter = "openrouter"
	KindAnthropic  = "anthropic"
)

var ErrUnknownKind = errors.New("unknown provider kind")

// Provider - a source of moves for one seat.
type Provider interface {
	Name() string
	Propose(ctx context.Context, observation entity.Observation) (entity.Proposal, error)
}

// New - builds the provider a player config describes. rng is only used by random players
// and must not be shared with other goroutines.
func New(conf config.Player, client *http.Client, rng *rand.Rand) (Provider, error) {
	switch kind := strings.ToLower(strings.TrimSpace(conf.Kind)); kind {
	case KindRandom, "":
		return NewRandom(rng), nil
	case KindOpenAI, KindOpenRouter:
		apiConf, err := ResolveOpenAIConfig(kind, conf.Model, conf.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed resolve %s config: %w", kind, err)
		}

		apiConf.MaxTokens = conf.MaxTokens

		return NewOpenAI(apiConf, client), nil
	case KindAnthropic:
		apiConf, err := ResolveAnthropicConfig(conf.Model, conf.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed resolve %s config: %w", kind, err)
		}

		if conf.MaxTokens > 0 {
			apiConf.MaxTokens = conf.MaxTokens
		}

		return NewAnthropic(apiConf, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, conf.Kind)
	}
}
