// Package journal keeps an append-only SQLite record of committed
// placements. It is an audit trail only: nothing reads it back into the
// live grid at startup.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robalobadob/gridboard/apps/go-server/assets"
	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
)

// Entry is one journaled placement.
type Entry struct {
	Seq int `json:"seq"`
	grid.PlacementRecord
}

// Journal is a SQLite-backed placement log.
type Journal struct{ db *sql.DB }

// Open opens the database at dsn and applies migrations.
func Open(dsn string) (*Journal, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := migrate(db, assets.Migrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database.
func (j *Journal) Close() error { return j.db.Close() }

// Append records rec at history position seq. Re-appending a seq is ignored.
func (j *Journal) Append(ctx context.Context, seq int, rec grid.PlacementRecord) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO placements(seq, ts_ms, participant_id, cell_index, char)
		 VALUES(?,?,?,?,?)`, seq, rec.Timestamp, rec.ParticipantID, rec.CellIndex, rec.Char,
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, ts_ms, participant_id, cell_index, char
		 FROM placements
		 ORDER BY seq DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.ParticipantID, &e.CellIndex, &e.Char); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of journaled placements.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM placements`).Scan(&n)
	return n, err
}
