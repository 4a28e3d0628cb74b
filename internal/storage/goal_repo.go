package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type GoalRepo struct {
	db DBTX
}

func NewGoalRepo(db DBTX) *GoalRepo {
	return &GoalRepo{db: db}
}

const goalColumns = `id, user_id, title, description, type, stat_type, target_value, current_value, unit,
	start_date, end_date, milestones, is_completed, completed_at, created_at, updated_at`

func (r *GoalRepo) Insert(ctx context.Context, g *Goal) error {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	milestones, err := encodeMilestones(g.Milestones)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (
			user_id, title, description, type, stat_type, target_value, current_value, unit,
			start_date, end_date, milestones, is_completed, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.UserID, g.Title, g.Description, g.Type, g.StatType, g.TargetValue, g.CurrentValue, g.Unit,
		formatTime(g.StartDate), formatTime(g.EndDate), milestones, boolToInt(g.IsCompleted),
		formatTimePtr(g.CompletedAt), formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("goal insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("goal last insert id: %w", err)
	}
	g.ID = id
	return nil
}

// Get loads a goal with its achievements.
func (r *GoalRepo) Get(ctx context.Context, userID string, id int64) (*Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("goal get: %w", err)
	}
	if g.Achievements, err = r.achievements(ctx, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns the user's goals without achievements attached.
func (r *GoalRepo) List(ctx context.Context, userID string) ([]Goal, error) {
	return r.query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ?
		ORDER BY is_completed ASC, end_date ASC, id ASC`, userID)
}

// ListActive returns open goals whose window contains now.
func (r *GoalRepo) ListActive(ctx context.Context, userID string, now time.Time) ([]Goal, error) {
	ts := formatTime(now)
	return r.query(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = ? AND is_completed = 0 AND start_date <= ? AND end_date >= ?
		ORDER BY id ASC`, userID, ts, ts)
}

func (r *GoalRepo) Update(ctx context.Context, g *Goal) error {
	g.UpdatedAt = time.Now().UTC()
	milestones, err := encodeMilestones(g.Milestones)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE goals
		SET title = ?, description = ?, target_value = ?, current_value = ?, end_date = ?, milestones = ?,
			is_completed = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, g.Title, g.Description, g.TargetValue, g.CurrentValue, formatTime(g.EndDate), milestones,
		boolToInt(g.IsCompleted), formatTimePtr(g.CompletedAt), formatTime(g.UpdatedAt), g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("goal update: %w", err)
	}
	return expectOneRow(res, "goal update")
}

// AppendAchievements inserts new achievement rows. Existing rows are never rewritten.
func (r *GoalRepo) AppendAchievements(ctx context.Context, goalID int64, achievements []GoalAchievement) error {
	for i := range achievements {
		a := &achievements[i]
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO goal_achievements (goal_id, title, description, unlocked_at, milestone_value)
			VALUES (?, ?, ?, ?, ?)
		`, goalID, a.Title, a.Description, formatTime(a.UnlockedAt), a.MilestoneValue)
		if err != nil {
			return fmt.Errorf("goal achievement insert: %w", err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("goal achievement last insert id: %w", err)
		}
		a.GoalID = goalID
	}
	return nil
}

func (r *GoalRepo) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("goal delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("goal delete rows: %w", err)
	}
	return n > 0, nil
}

func (r *GoalRepo) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("goal delete all: %w", err)
	}
	return nil
}

func (r *GoalRepo) achievements(ctx context.Context, goalID int64) ([]GoalAchievement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, goal_id, title, description, unlocked_at, milestone_value
		FROM goal_achievements WHERE goal_id = ? ORDER BY id ASC
	`, goalID)
	if err != nil {
		return nil, fmt.Errorf("goal achievements: %w", err)
	}
	defer rows.Close()

	var out []GoalAchievement
	for rows.Next() {
		var (
			a          GoalAchievement
			unlockedAt string
		)
		if err := rows.Scan(&a.ID, &a.GoalID, &a.Title, &a.Description, &unlockedAt, &a.MilestoneValue); err != nil {
			return nil, fmt.Errorf("goal achievement scan: %w", err)
		}
		if a.UnlockedAt, err = parseTime(unlockedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("goal achievement rows: %w", err)
	}
	return out, nil
}

func (r *GoalRepo) query(ctx context.Context, q string, args ...any) ([]Goal, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("goal list: %w", err)
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("goal scan: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("goal rows: %w", err)
	}
	return out, nil
}

func encodeMilestones(ms []Milestone) (any, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(ms)
	if err != nil {
		return nil, fmt.Errorf("encode milestones: %w", err)
	}
	return string(b), nil
}

func scanGoal(row scanner) (*Goal, error) {
	var (
		g           Goal
		startDate   string
		endDate     string
		milestones  sql.NullString
		isCompleted int
		completedAt sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.Type, &g.StatType, &g.TargetValue,
		&g.CurrentValue, &g.Unit, &startDate, &endDate, &milestones, &isCompleted, &completedAt,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.IsCompleted = isCompleted != 0
	if milestones.Valid && milestones.String != "" {
		if err := json.Unmarshal([]byte(milestones.String), &g.Milestones); err != nil {
			return nil, fmt.Errorf("decode milestones: %w", err)
		}
	}

	var err error
	if g.StartDate, err = parseTime(startDate); err != nil {
		return nil, err
	}
	if g.EndDate, err = parseTime(endDate); err != nil {
		return nil, err
	}
	if g.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}
