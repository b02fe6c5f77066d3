package entity

// State is one immutable snapshot of a game. Boards and outcomes are arrays so a
// plain assignment copies them; History is never shared between snapshots.
type State struct {
	Boards      [9]SubBoard `json:"boards"`
	SubOutcomes [9]Outcome  `json:"sub_outcomes"`
	NextPlayer  Mark        `json:"next_player"`
	ActiveBoard *Coord      `json:"active_board"`
	Winner      Mark        `json:"winner"`
	Status      Status      `json:"status"`
	History     []Move      `json:"history"`
}

func (that State) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that State) IsFinished() bool {
	return that.Status == StatusWon || that.Status == StatusDrawn
}

func (that State) Board(board Coord) SubBoard {
	return that.Boards[board.Index()]
}

func (that State) Outcome(board Coord) Outcome {
	return that.SubOutcomes[board.Index()]
}

func (that State) Cell(board, cell Coord) Mark {
	return that.Boards[board.Index()][cell.Index()]
}

// Clone returns a copy that shares no memory with the receiver.
func (that State) Clone() State {
	clone := that

	if that.ActiveBoard != nil {
		active := *that.ActiveBoard
		clone.ActiveBoard = &active
	}

	clone.History = make([]Move, len(that.History), len(that.History)+1)
	copy(clone.History, that.History)

	return clone
}
