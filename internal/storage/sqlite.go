package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"strings"
	"time"

	"github.com/maaaruch/tg-poll-bot/internal/domain"
)

//go:embed schema.sql
var embeddedSchema embed.FS

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return err
	}

	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}

	schema := strings.TrimSpace(string(b))
	_, err = s.db.Exec(schema)
	return err
}

// ---------- Polls ----------

func (s *Store) CreatePoll(p domain.PollRecord) error {
	_, err := s.db.Exec(`
INSERT INTO polls(id, chat_id, creator_user_id, message_id, title, symbol_count, total_minutes, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, p.ID, p.ChatID, p.CreatorUserID, p.MessageID, p.Title, p.SymbolCount, p.TotalMinutes, domain.PollStatusActive, p.CreatedAt)
	return err
}

func (s *Store) SetPollMessage(pollID string, messageID int) error {
	res, err := s.db.Exec(`UPDATE polls SET message_id = ? WHERE id = ?`, messageID, pollID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const pollColumns = `id, chat_id, creator_user_id, message_id, title, symbol_count, total_minutes, status, outcome, created_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (*domain.PollRecord, error) {
	var p domain.PollRecord
	var finished sql.NullTime
	if err := row.Scan(&p.ID, &p.ChatID, &p.CreatorUserID, &p.MessageID, &p.Title, &p.SymbolCount,
		&p.TotalMinutes, &p.Status, &p.Outcome, &p.CreatedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		p.FinishedAt = &t
	}
	return &p, nil
}

func (s *Store) GetPoll(pollID string) (*domain.PollRecord, error) {
	p, err := scanPoll(s.db.QueryRow(`SELECT `+pollColumns+` FROM polls WHERE id = ?`, pollID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) GetPollByMessage(ctx context.Context, chatID int64, messageID int) (*domain.PollRecord, error) {
	p, err := scanPoll(s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE chat_id = ? AND message_id = ?`, chatID, messageID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// FinishPoll archives the poll with its final status and drops its votes.
func (s *Store) FinishPoll(pollID, status, outcome string, finishedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE polls SET status = ?, outcome = ?, finished_at = ? WHERE id = ? AND status = ?`,
		status, outcome, finishedAt, pollID, domain.PollStatusActive)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM votes WHERE poll_id = ?`, pollID); err != nil {
		return err
	}
	return tx.Commit()
}

// AbandonActivePolls closes polls a previous process left running.
func (s *Store) AbandonActivePolls(at time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM votes WHERE poll_id IN (SELECT id FROM polls WHERE status = ?)`, domain.PollStatusActive); err != nil {
		return 0, err
	}
	res, err := tx.Exec(`UPDATE polls SET status = ?, finished_at = ? WHERE status = ?`,
		domain.PollStatusAbandoned, at, domain.PollStatusActive)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, tx.Commit()
}

func (s *Store) RecentPolls(chatID int64, limit int) ([]domain.PollRecord, error) {
	rows, err := s.db.Query(`
SELECT `+pollColumns+`
FROM polls
WHERE chat_id = ? AND status != ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, chatID, domain.PollStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var polls []domain.PollRecord
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		polls = append(polls, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return polls, nil
}

// ---------- Votes ----------

// RecordVote stores the participant's current choice. A new choice replaces
// the previous one. ErrNotFound means the poll is not active or the symbol
// index is out of range.
func (s *Store) RecordVote(userHash, pollID string, symbolIndex int, createdAt time.Time) error {
	res, err := s.db.Exec(`
INSERT INTO votes(user_hash, poll_id, symbol_index, created_at)
SELECT ?, p.id, ?, ?
FROM polls p
WHERE p.id = ? AND p.status = ? AND ? >= 0 AND ? < p.symbol_count
ON CONFLICT(user_hash, poll_id) DO UPDATE SET
    symbol_index = excluded.symbol_index,
    created_at = excluded.created_at
`, userHash, symbolIndex, createdAt, pollID, domain.PollStatusActive, symbolIndex, symbolIndex)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts returns n counters, counts[i] being the votes for symbol i.
func (s *Store) Counts(ctx context.Context, pollID string, n int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT symbol_index, COUNT(1)
FROM votes
WHERE poll_id = ?
GROUP BY symbol_index
`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]int, n)
	for rows.Next() {
		var idx, cnt int
		if err := rows.Scan(&idx, &cnt); err != nil {
			return nil, err
		}
		if idx >= 0 && idx < n {
			counts[idx] = cnt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
