// Package postgres implements the leaderboard store over a pgx connection
// pool. Each call is a single unit of work; reads and writes never share a
// connection.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivolkov/loothound/game/app"
)

const schema = `
CREATE TABLE IF NOT EXISTS hall_of_fame (
    id SERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    score INTEGER NOT NULL CONSTRAINT score_non_negative CHECK (score >= 0),
    play_time_ms INTEGER NOT NULL CONSTRAINT play_time_non_negative CHECK (play_time_ms >= 0)
);
CREATE INDEX IF NOT EXISTS hall_of_fame_index ON hall_of_fame (score DESC, play_time_ms, name);
`

// RecordStore persists finished-player records to the hall_of_fame table.
// It implements app.RecordRepository.
type RecordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore connects to url and ensures the schema exists.
func NewRecordStore(ctx context.Context, url string) (*RecordStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &RecordStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *RecordStore) Close() {
	s.pool.Close()
}

// SaveAll appends a batch of records in one transaction.
func (s *RecordStore) SaveAll(ctx context.Context, records []app.PlayerRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(
			`INSERT INTO hall_of_fame (name, score, play_time_ms) VALUES ($1, $2, $3)`,
			record.Name, record.Score, record.PlayTime.Milliseconds(),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	return tx.Commit(ctx)
}

// List reads one page in canonical leaderboard order.
func (s *RecordStore) List(ctx context.Context, start, maxItems int) ([]app.PlayerRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, score, play_time_ms
		FROM hall_of_fame
		ORDER BY score DESC, play_time_ms ASC, name ASC
		LIMIT $1 OFFSET $2
	`, maxItems, start)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]app.PlayerRecord, 0, maxItems)
	for rows.Next() {
		var name string
		var score int
		var playTimeMS int64
		if err := rows.Scan(&name, &score, &playTimeMS); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, app.PlayerRecord{
			Name:     name,
			Score:    score,
			PlayTime: time.Duration(playTimeMS) * time.Millisecond,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return records, nil
}
