package entity

// RulesText primes move providers that reason about the game in natural language.
const RulesText = `
Ultimate Tic-Tac-Toe Rules:
1. The game consists of 9 smaller tic-tac-toe boards arranged in a 3x3 grid.
2. Each move determines which board the opponent must play in next.
3. When a player wins a small board, they claim that board.
4. If sent to a board that's already won or drawn, the player can choose any available board.
5. To win the game, a player must win three small boards in a row.
`

// Observation is what a move provider sees. Boards and cells are flattened 0..8.
type Observation struct {
	Boards      [9]SubBoard `json:"boards"`
	MainBoard   [9]Outcome  `json:"main_board"`
	ActiveBoard *int        `json:"active_board"`
	Player      Mark        `json:"player"`
	Legal       []Move      `json:"-"`
	Rules       string      `json:"-"`
	MoveNumber  int         `json:"move_number"`
}

// Proposal is a move suggested by a provider, not yet validated.
type Proposal struct {
	BoardIndex int    `json:"boardIndex"`
	CellIndex  int    `json:"cellIndex"`
	Annotation string `json:"message"`
}

// Coords converts the flattened indices, failing on out-of-range values.
func (that Proposal) Coords() (Coord, Coord, error) {
	board, err := CoordFromIndex(that.BoardIndex)
	if err != nil {
		return Coord{}, Coord{}, err
	}

	cell, err := CoordFromIndex(that.CellIndex)
	if err != nil {
		return Coord{}, Coord{}, err
	}

	return board, cell, nil
}
