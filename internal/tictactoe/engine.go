package tictactoe

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

var (
	ErrInvalidCell  = fmt.Errorf("%w: coordinates out of range", apperror.ErrInvalidMove)
	ErrWrongBoard   = fmt.Errorf("%w: board is not the active board", apperror.ErrInvalidMove)
	ErrBoardDecided = fmt.Errorf("%w: board is already decided", apperror.ErrInvalidMove)
	ErrCellOccupied = fmt.Errorf("%w: cell is already occupied", apperror.ErrInvalidMove)
	ErrGameFinished = fmt.Errorf("%w: %w", apperror.ErrInvalidMove, apperror.ErrGameFinished)
	ErrWrongPlayer  = errors.New("move player does not match the player to move")
)

// NewGame returns the initial state: empty boards, X to move, any board playable.
func NewGame() entity.State {
	return entity.State{
		NextPlayer: entity.X,
		Status:     entity.StatusPlaying,
		History:    []entity.Move{},
	}
}

// IsLegalMove reports whether the player to move may play cell inside board.
func IsLegalMove(state entity.State, board, cell entity.Coord) bool {
	return ValidateMove(state, board, cell) == nil
}

// ValidateMove - explains why a move is illegal. Every error wraps apperror.ErrInvalidMove.
func ValidateMove(state entity.State, board, cell entity.Coord) error {
	if !state.IsPlaying() {
		return ErrGameFinished
	}

	if !board.Valid() || !cell.Valid() {
		return fmt.Errorf("%w: board %+v cell %+v", ErrInvalidCell, board, cell)
	}

	if state.ActiveBoard != nil && *state.ActiveBoard != board {
		return fmt.Errorf("%w: must play board %+v", ErrWrongBoard, *state.ActiveBoard)
	}

	if state.Outcome(board).IsDecided() {
		return ErrBoardDecided
	}

	if state.Cell(board, cell) != entity.Empty {
		return ErrCellOccupied
	}

	return nil
}

// ApplyMove - plays the next player's mark and returns the resulting state.
// The input state is never modified; an illegal move returns the validation error.
func ApplyMove(state entity.State, board, cell entity.Coord) (entity.State, error) {
	if err := ValidateMove(state, board, cell); err != nil {
		return state, err
	}

	next := state.Clone()
	player := state.NextPlayer

	next.Boards[board.Index()][cell.Index()] = player
	next.History = append(next.History, entity.Move{Player: player, Board: board, Cell: cell})

	if outcome := BoardOutcome(next.Boards[board.Index()]); outcome.IsDecided() {
		next.SubOutcomes[board.Index()] = outcome
	}

	switch meta := MetaOutcome(next.SubOutcomes); meta {
	case entity.WonByX, entity.WonByO:
		next.Winner = meta.Mark()
		next.Status = entity.StatusWon
	case entity.Drawn:
		next.Winner = entity.Empty
		next.Status = entity.StatusDrawn
	}

	next.NextPlayer = player.Opponent()
	next.ActiveBoard = routeActiveBoard(next.SubOutcomes, cell)

	return next, nil
}

// routeActiveBoard - the cell just played selects the sub-board at the same position,
// unless that board is decided, in which case the next player may choose freely.
func routeActiveBoard(outcomes [9]entity.Outcome, cell entity.Coord) *entity.Coord {
	if outcomes[cell.Index()].IsDecided() {
		return nil
	}

	target := cell
	return &target
}

// LegalMoves - every legal move for the player to move, board-major then cell order.
func LegalMoves(state entity.State) []entity.Move {
	if !state.IsPlaying() {
		return nil
	}

	moves := make([]entity.Move, 0, 9)
	for boardIndex := range state.Boards {
		board, _ := entity.CoordFromIndex(boardIndex)
		if state.ActiveBoard != nil && *state.ActiveBoard != board {
			continue
		}

		if state.SubOutcomes[boardIndex].IsDecided() {
			continue
		}

		for cellIndex, mark := range state.Boards[boardIndex] {
			if mark != entity.Empty {
				continue
			}

			cell, _ := entity.CoordFromIndex(cellIndex)
			moves = append(moves, entity.Move{Player: state.NextPlayer, Board: board, Cell: cell})
		}
	}

	return moves
}

// Replay rebuilds a state by applying history from the initial position.
func Replay(history []entity.Move) (entity.State, error) {
	state := NewGame()

	for i, move := range history {
		if move.Player != state.NextPlayer {
			return state, fmt.Errorf("move %d: %w: got %s, want %s", i, ErrWrongPlayer, move.Player, state.NextPlayer)
		}

		next, err := ApplyMove(state, move.Board, move.Cell)
		if err != nil {
			return state, fmt.Errorf("move %d: %w", i, err)
		}

		state = next
	}

	return state, nil
}

// Observe builds the provider-facing view of a state.
func Observe(state entity.State) entity.Observation {
	observation := entity.Observation{
		Boards:     state.Boards,
		MainBoard:  state.SubOutcomes,
		Player:     state.NextPlayer,
		Legal:      LegalMoves(state),
		Rules:      entity.RulesText,
		MoveNumber: len(state.History) + 1,
	}

	if state.ActiveBoard != nil {
		active := state.ActiveBoard.Index()
		observation.ActiveBoard = &active
	}

	return observation
}
