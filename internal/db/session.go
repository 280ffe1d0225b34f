package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maxdollinger/zapret.io/pkg/utils"
)

// Session is one tracked worker lifetime, spawned or recovered.
type Session struct {
	ID        string
	Pid       int
	Origin    string
	Args      []string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Journal persists worker sessions.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// originRecover matches the supervisor's origin for adopted workers.
const originRecover = "recover"

// SessionStarted opens a session. Recovering a pid that already has an open
// session keeps that session, any other open session of the pid is closed.
func (j *Journal) SessionStarted(ctx context.Context, pid int, args []string, origin string) error {
	id, err := utils.NewUUID7()
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}

	if args == nil {
		args = []string{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}

	now := time.Now().Unix()
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if origin == originRecover {
		var open int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sessions WHERE pid = ? AND ended_at IS NULL`, pid).Scan(&open); err != nil {
			return err
		}
		if open > 0 {
			return tx.Commit()
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE pid = ? AND ended_at IS NULL`, now, pid); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, pid, origin, args, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, pid, origin, string(encoded), now); err != nil {
		return err
	}

	return tx.Commit()
}

// SessionEnded closes the open session of pid, if any.
func (j *Journal) SessionEnded(ctx context.Context, pid int) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE pid = ? AND ended_at IS NULL`,
		time.Now().Unix(), pid)
	return err
}

// ListSessions returns the most recent sessions first.
func (j *Journal) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	query := `SELECT id, pid, origin, args, started_at, ended_at FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var (
			args      string
			startedAt int64
			endedAt   sql.NullInt64
		)
		s := &Session{}
		if err := rows.Scan(&s.ID, &s.Pid, &s.Origin, &args, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(args), &s.Args); err != nil {
			return nil, fmt.Errorf("decode args of session %s: %w", s.ID, err)
		}
		s.StartedAt = time.Unix(startedAt, 0)
		if endedAt.Valid {
			t := time.Unix(endedAt.Int64, 0)
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}
