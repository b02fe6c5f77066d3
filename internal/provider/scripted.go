package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

var ErrScriptExhausted = errors.New("script has no more steps")

// Step is one scripted answer: a proposal, or an error when Err is set.
type Step struct {
	Proposal entity.Proposal
	Err      error
}

// Scripted answers with a fixed sequence of steps, one per call.
type Scripted struct {
	name string

	mu    sync.Mutex
	steps []Step
	calls int
}

func NewScripted(name string, steps ...Step) *Scripted {
	return &Scripted{name: name, steps: steps}
}

func (that *Scripted) Name() string {
	return that.name
}

func (that *Scripted) Propose(ctx context.Context, _ entity.Observation) (entity.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return entity.Proposal{}, err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.calls >= len(that.steps) {
		that.calls++
		return entity.Proposal{}, ErrScriptExhausted
	}

	step := that.steps[that.calls]
	that.calls++

	if step.Err != nil {
		return entity.Proposal{}, step.Err
	}

	return step.Proposal, nil
}

// Calls reports how many times Propose was invoked.
func (that *Scripted) Calls() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.calls
}
