package entity

import "errors"

type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

// Opponent returns the other player's mark.
func (that Mark) Opponent() Mark {
	if that == X {
		return O
	}
	return X
}

type Outcome string

const (
	Unresolved Outcome = ""
	WonByX     Outcome = "X"
	WonByO     Outcome = "O"
	Drawn      Outcome = "draw"
)

// IsDecided reports whether the board is won or drawn.
func (that Outcome) IsDecided() bool {
	return that != Unresolved
}

// Mark returns the winning mark, or Empty for drawn and unresolved boards.
func (that Outcome) Mark() Mark {
	switch that {
	case WonByX:
		return X
	case WonByO:
		return O
	default:
		return Empty
	}
}

// OutcomeFor returns the outcome of a board won by mark.
func OutcomeFor(mark Mark) Outcome {
	switch mark {
	case X:
		return WonByX
	case O:
		return WonByO
	default:
		return Unresolved
	}
}

type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusDrawn   Status = "draw"
)

const BoardSide = 3

var (
	ErrInvalidCoord = errors.New("coordinate out of range")

	WinCombos = [8][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Coord addresses a sub-board in the meta-grid or a cell inside a sub-board.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (that Coord) Valid() bool {
	return that.Row >= 0 && that.Row < BoardSide && that.Col >= 0 && that.Col < BoardSide
}

// Index returns the row-major flattened position 0..8.
func (that Coord) Index() int {
	return that.Row*BoardSide + that.Col
}

func CoordFromIndex(index int) (Coord, error) {
	if index < 0 || index >= BoardSide*BoardSide {
		return Coord{}, ErrInvalidCoord
	}

	return Coord{Row: index / BoardSide, Col: index % BoardSide}, nil
}

// SubBoard is one 3x3 board stored row-major.
type SubBoard [9]Mark

func (that SubBoard) At(cell Coord) Mark {
	return that[cell.Index()]
}

func (that SubBoard) IsFull() bool {
	for _, mark := range that {
		if mark == Empty {
			return false
		}
	}
	return true
}

type Move struct {
	Player Mark  `json:"player"`
	Board  Coord `json:"board"`
	Cell   Coord `json:"cell"`
}
