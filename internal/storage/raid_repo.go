package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type RaidRepo struct {
	db DBTX
}

func NewRaidRepo(db DBTX) *RaidRepo {
	return &RaidRepo{db: db}
}

const raidColumns = `id, user_id, duration_minutes, rank, status, xp_earned, started_at, ended_at`

// Active returns the user's active raid, or nil.
func (r *RaidRepo) Active(ctx context.Context, userID string) (*Raid, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+raidColumns+` FROM raids WHERE user_id = ? AND status = 'active'`, userID)
	raid, err := scanRaid(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("raid active: %w", err)
	}
	return raid, nil
}

func (r *RaidRepo) Get(ctx context.Context, userID string, id int64) (*Raid, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+raidColumns+` FROM raids WHERE id = ? AND user_id = ?`, id, userID)
	raid, err := scanRaid(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("raid get: %w", err)
	}
	return raid, nil
}

// Insert stores a new active raid. A second active raid for the same user
// violates the partial unique index and yields ErrConflict.
func (r *RaidRepo) Insert(ctx context.Context, raid *Raid) error {
	if raid.StartedAt.IsZero() {
		raid.StartedAt = time.Now().UTC()
	}
	raid.Status = "active"
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO raids (user_id, duration_minutes, rank, status, started_at)
		VALUES (?, ?, ?, 'active', ?)
	`, raid.UserID, raid.DurationMinutes, raid.Rank, formatTime(raid.StartedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrConflict
		}
		return fmt.Errorf("raid insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("raid last insert id: %w", err)
	}
	raid.ID = id
	return nil
}

// Finish moves an active raid to status. ErrConflict means it had already ended.
func (r *RaidRepo) Finish(ctx context.Context, raid *Raid, status string, xp int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE raids SET status = ?, xp_earned = ?, ended_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active'
	`, status, xp, formatTime(at), raid.ID, raid.UserID)
	if err != nil {
		return fmt.Errorf("raid finish: %w", err)
	}
	if err := expectOneRow(res, "raid finish"); err != nil {
		return err
	}
	raid.Status = status
	raid.XPEarned = xp
	ended := at.UTC()
	raid.EndedAt = &ended
	return nil
}

// History returns the user's most recent raids, newest first.
func (r *RaidRepo) History(ctx context.Context, userID string, limit int) ([]Raid, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+raidColumns+` FROM raids WHERE user_id = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("raid history: %w", err)
	}
	defer rows.Close()

	var out []Raid
	for rows.Next() {
		raid, err := scanRaid(rows)
		if err != nil {
			return nil, fmt.Errorf("raid scan: %w", err)
		}
		out = append(out, *raid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("raid rows: %w", err)
	}
	return out, nil
}

func (r *RaidRepo) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM raids WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("raid delete all: %w", err)
	}
	return nil
}

func scanRaid(row scanner) (*Raid, error) {
	var (
		raid      Raid
		startedAt string
		endedAt   sql.NullString
	)
	if err := row.Scan(&raid.ID, &raid.UserID, &raid.DurationMinutes, &raid.Rank, &raid.Status,
		&raid.XPEarned, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	var err error
	if raid.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if raid.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, err
	}
	return &raid, nil
}
