package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

const systemPrompt = "You are an expert Ultimate Tic-Tac-Toe player. Always answer with a legal move."

type promptState struct {
	Boards      [9]entity.SubBoard `json:"boards"`
	MainBoard   [9]entity.Outcome  `json:"mainBoard"`
	ActiveBoard *int               `json:"activeBoard"`
	Player      entity.Mark        `json:"player"`
	LegalMoves  [][2]int           `json:"legalMoves"`
}

// buildPrompt renders the observation the way both language model providers expect it.
// Boards and cells are indexed 0..8 row by row; empty cells are "".
func buildPrompt(observation entity.Observation, instructions string) string {
	state := promptState{
		Boards:      observation.Boards,
		MainBoard:   observation.MainBoard,
		ActiveBoard: observation.ActiveBoard,
		Player:      observation.Player,
		LegalMoves:  make([][2]int, 0, len(observation.Legal)),
	}

	for _, move := range observation.Legal {
		state.LegalMoves = append(state.LegalMoves, [2]int{move.Board.Index(), move.Cell.Index()})
	}

	encoded, _ := json.Marshal(state)

	active := "any board"
	if observation.ActiveBoard != nil {
		active = fmt.Sprintf("board %d", *observation.ActiveBoard)
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are playing Ultimate Tic-Tac-Toe as %s. %s\n", observation.Player, strings.TrimSpace(observation.Rules))
	fmt.Fprintf(&prompt, "Here's the current game state (move %d): %s\n", observation.MoveNumber, encoded)
	fmt.Fprintf(&prompt, "The move must be in an active board (%s) and in an empty cell. ", active)
	prompt.WriteString("legalMoves lists every allowed [boardIndex, cellIndex] pair.\n")
	prompt.WriteString(instructions)

	return prompt.String()
}
