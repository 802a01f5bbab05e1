package app

import (
	"context"
	"time"
)

// MaxRecordsPageSize bounds a single leaderboard read.
const MaxRecordsPageSize = 100

// PlayerRecord is one finished player's leaderboard entry.
type PlayerRecord struct {
	Name     string
	Score    int
	PlayTime time.Duration
}

// RecordRepository is the unit-of-work over the leaderboard store. SaveAll
// appends a whole eviction batch in one transaction; List reads a page in
// canonical order (score descending, then play time, then name).
type RecordRepository interface {
	SaveAll(ctx context.Context, records []PlayerRecord) error
	List(ctx context.Context, start, maxItems int) ([]PlayerRecord, error)
}
