package entity

import "time"

const (
	MatchRunning  = "running"
	MatchFinished = "finished"
	MatchAborted  = "aborted"
)

type LogKind string

const (
	LogAnnotation LogKind = "annotation"
	LogRetry      LogKind = "retry"
	LogFallback   LogKind = "fallback"
)

// LogEntry is one line of the match log shown next to the board.
type LogEntry struct {
	Player      Mark    `json:"player"`
	Kind        LogKind `json:"kind"`
	Message     string  `json:"message"`
	Attempt     int     `json:"attempt,omitempty"`
	MaxAttempts int     `json:"max_attempts,omitempty"`
	Move        *Move   `json:"move,omitempty"`
}

// Seat describes who is playing one side of a match.
type Seat struct {
	Mark     Mark   `json:"mark"`
	Provider string `json:"provider"`
}

// Match is the persisted view of a game between two move providers.
type Match struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	State     State      `json:"state"`
	Seats     []Seat     `json:"seats"`
	Log       []LogEntry `json:"log,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (that *Match) IsRunning() bool {
	return that.Status == MatchRunning
}

// MatchResult is the archived summary of a finished match.
type MatchResult struct {
	ID         string    `json:"id"`
	XProvider  string    `json:"x_provider"`
	OProvider  string    `json:"o_provider"`
	Status     Status    `json:"status"`
	Winner     Mark      `json:"winner"`
	Moves      int       `json:"moves"`
	History    []Move    `json:"history,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Standing aggregates archived results for one provider across both seats.
type Standing struct {
	Provider string `json:"provider"`
	Played   int    `json:"played"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// SeatProvider returns the provider name playing mark, or "" when the seat is unknown.
func (that *Match) SeatProvider(mark Mark) string {
	for _, seat := range that.Seats {
		if seat.Mark == mark {
			return seat.Provider
		}
	}

	return ""
}
