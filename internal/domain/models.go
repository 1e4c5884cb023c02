package domain

import "time"

const (
	PollStatusActive    = "active"
	PollStatusResolved  = "resolved"
	PollStatusCancelled = "cancelled"
	PollStatusAbandoned = "abandoned"
)

// PollRecord is the archived row of a poll. The live countdown is kept by
// the engine, not here.
type PollRecord struct {
	ID            string
	ChatID        int64
	CreatorUserID int64
	MessageID     int
	Title         string
	SymbolCount   int
	TotalMinutes  int
	Status        string
	Outcome       string
	CreatedAt     time.Time
	FinishedAt    *time.Time
}
