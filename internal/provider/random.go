package provider

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// Random plays a uniformly random legal move.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

func (that *Random) Name() string {
	return KindRandom
}

func (that *Random) Propose(_ context.Context, observation entity.Observation) (entity.Proposal, error) {
	if len(observation.Legal) == 0 {
		return entity.Proposal{}, ErrNoAvailableMoves
	}

	that.mu.Lock()
	move := observation.Legal[that.rng.Intn(len(observation.Legal))]
	that.mu.Unlock()

	return entity.Proposal{
		BoardIndex: move.Board.Index(),
		CellIndex:  move.Cell.Index(),
		Annotation: "random move",
	}, nil
}
