package tictactoe

import "github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"

// BoardOutcome - checks a single sub-board. A winning line takes precedence over a full board.
func BoardOutcome(board entity.SubBoard) entity.Outcome {
	for _, combo := range entity.WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.Empty && a == b && b == c {
			return entity.OutcomeFor(a)
		}
	}

	if board.IsFull() {
		return entity.Drawn
	}

	return entity.Unresolved
}

// MetaOutcome - checks the grid of sub-board outcomes. Drawn boards block lines for both
// players but count as decided when looking for a drawn game.
func MetaOutcome(outcomes [9]entity.Outcome) entity.Outcome {
	for _, combo := range entity.WinCombos {
		a, b, c := outcomes[combo[0]], outcomes[combo[1]], outcomes[combo[2]]
		if a.Mark() != entity.Empty && a == b && b == c {
			return a
		}
	}

	for _, outcome := range outcomes {
		if !outcome.IsDecided() {
			return entity.Unresolved
		}
	}

	return entity.Drawn
}
