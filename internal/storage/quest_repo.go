package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type QuestRepo struct {
	db DBTX
}

func NewQuestRepo(db DBTX) *QuestRepo {
	return &QuestRepo{db: db}
}

// QuestFilter narrows List. Zero values mean "no constraint".
type QuestFilter struct {
	Completed      *bool
	StatType       string
	SkillCategory  string
	TemplateID     *int64
	CreatedFrom    *time.Time
	CreatedBefore  *time.Time
	CompletedSince *time.Time
	DeadlineAfter  *time.Time
	DeadlineBefore *time.Time
	OverdueOnly    bool
	Limit          int
}

const questColumns = `id, user_id, title, description, stat_type, skill_category, difficulty,
	time_estimated_minutes, time_actual_minutes, time_actual_seconds, timer_state, time_started, time_paused,
	paused_duration_ms, distraction_count, deadline, is_overdue, accuracy_score, productivity_score, focus_rating,
	xp_reward, xp_earned, date_created, date_completed, completion_time_of_day, is_completed, streak_at_completion,
	template_id, is_template_instance`

func (r *QuestRepo) Insert(ctx context.Context, q *Quest) error {
	if q.DateCreated.IsZero() {
		q.DateCreated = time.Now().UTC()
	}
	if q.TimerState == "" {
		q.TimerState = "not_started"
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO quests (
			user_id, title, description, stat_type, skill_category, difficulty,
			time_estimated_minutes, timer_state, deadline, xp_reward, date_created,
			template_id, is_template_instance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.UserID, q.Title, q.Description, q.StatType, q.SkillCategory, q.Difficulty,
		q.TimeEstimatedMinutes, q.TimerState, formatTimePtr(q.Deadline), q.XPReward, formatTime(q.DateCreated),
		q.TemplateID, boolToInt(q.IsTemplateInstance))
	if err != nil {
		return fmt.Errorf("quest insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("quest last insert id: %w", err)
	}
	q.ID = id
	return nil
}

func (r *QuestRepo) Get(ctx context.Context, userID string, id int64) (*Quest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+questColumns+` FROM quests WHERE id = ? AND user_id = ?`, id, userID)
	q, err := scanQuest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("quest get: %w", err)
	}
	return q, nil
}

func (r *QuestRepo) List(ctx context.Context, userID string, f QuestFilter) ([]Quest, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.Completed != nil {
		where = append(where, "is_completed = ?")
		args = append(args, boolToInt(*f.Completed))
	}
	if f.StatType != "" {
		where = append(where, "stat_type = ?")
		args = append(args, f.StatType)
	}
	if f.SkillCategory != "" {
		where = append(where, "skill_category = ?")
		args = append(args, f.SkillCategory)
	}
	if f.TemplateID != nil {
		where = append(where, "template_id = ?")
		args = append(args, *f.TemplateID)
	}
	if f.CreatedFrom != nil {
		where = append(where, "date_created >= ?")
		args = append(args, formatTime(*f.CreatedFrom))
	}
	if f.CreatedBefore != nil {
		where = append(where, "date_created < ?")
		args = append(args, formatTime(*f.CreatedBefore))
	}
	if f.CompletedSince != nil {
		where = append(where, "date_completed >= ?")
		args = append(args, formatTime(*f.CompletedSince))
	}
	if f.DeadlineAfter != nil {
		where = append(where, "deadline IS NOT NULL AND deadline >= ?")
		args = append(args, formatTime(*f.DeadlineAfter))
	}
	if f.DeadlineBefore != nil {
		where = append(where, "deadline IS NOT NULL AND deadline < ?")
		args = append(args, formatTime(*f.DeadlineBefore))
	}
	if f.OverdueOnly {
		where = append(where, "is_overdue = 1")
	}

	q := `SELECT ` + questColumns + ` FROM quests WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY is_completed ASC, date_created DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("quest list: %w", err)
	}
	defer rows.Close()

	var out []Quest
	for rows.Next() {
		qq, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("quest scan: %w", err)
		}
		out = append(out, *qq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quest rows: %w", err)
	}
	return out, nil
}

// UpdateDetails rewrites the user-editable fields of an open quest.
func (r *QuestRepo) UpdateDetails(ctx context.Context, q *Quest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quests
		SET title = ?, description = ?, stat_type = ?, skill_category = ?, difficulty = ?,
			time_estimated_minutes = ?, deadline = ?, is_overdue = ?, xp_reward = ?
		WHERE id = ? AND user_id = ? AND is_completed = 0
	`, q.Title, q.Description, q.StatType, q.SkillCategory, q.Difficulty,
		q.TimeEstimatedMinutes, formatTimePtr(q.Deadline), boolToInt(q.IsOverdue), q.XPReward, q.ID, q.UserID)
	if err != nil {
		return fmt.Errorf("quest update: %w", err)
	}
	return expectOneRow(res, "quest update")
}

// UpdateTimer persists the timer fields, but only if the stored timer state
// still equals from and the quest is open.
func (r *QuestRepo) UpdateTimer(ctx context.Context, q *Quest, from string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quests
		SET timer_state = ?, time_started = ?, time_paused = ?, paused_duration_ms = ?,
			time_actual_minutes = ?, time_actual_seconds = ?, focus_rating = ?, distraction_count = ?,
			accuracy_score = ?, productivity_score = ?
		WHERE id = ? AND user_id = ? AND timer_state = ? AND is_completed = 0
	`, q.TimerState, formatTimePtr(q.TimeStarted), formatTimePtr(q.TimePaused), q.PausedDurationMs,
		q.TimeActualMinutes, q.TimeActualSeconds, q.FocusRating, q.DistractionCount,
		q.AccuracyScore, q.ProductivityScore, q.ID, q.UserID, from)
	if err != nil {
		return fmt.Errorf("quest timer update: %w", err)
	}
	return expectOneRow(res, "quest timer update")
}

// MarkCompleted flips an open quest to completed. ErrConflict means another
// caller completed it first.
func (r *QuestRepo) MarkCompleted(ctx context.Context, q *Quest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quests
		SET is_completed = 1, timer_state = 'completed', date_completed = ?, completion_time_of_day = ?,
			streak_at_completion = ?, xp_earned = ?, is_overdue = ?, accuracy_score = ?, productivity_score = ?
		WHERE id = ? AND user_id = ? AND is_completed = 0
	`, formatTimePtr(q.DateCompleted), q.CompletionTimeOfDay, q.StreakAtCompletion,
		q.XPEarned, boolToInt(q.IsOverdue), q.AccuracyScore, q.ProductivityScore, q.ID, q.UserID)
	if err != nil {
		return fmt.Errorf("quest complete: %w", err)
	}
	return expectOneRow(res, "quest complete")
}

// MarkOverdue flags open quests whose deadline has passed and returns how many changed.
func (r *QuestRepo) MarkOverdue(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quests SET is_overdue = 1
		WHERE user_id = ? AND is_completed = 0 AND is_overdue = 0
			AND deadline IS NOT NULL AND deadline < ?
	`, userID, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("quest mark overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("quest mark overdue rows: %w", err)
	}
	return n, nil
}

// CountCompleted counts completed quests since the given instant. An empty
// statType counts every stat.
func (r *QuestRepo) CountCompleted(ctx context.Context, userID, statType string, since time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM quests WHERE user_id = ? AND is_completed = 1 AND date_completed >= ?`
	args := []any{userID, formatTime(since)}
	if statType != "" {
		q += ` AND stat_type = ?`
		args = append(args, statType)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("quest count completed: %w", err)
	}
	return n, nil
}

func (r *QuestRepo) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quests WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("quest delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("quest delete rows: %w", err)
	}
	return n > 0, nil
}

func (r *QuestRepo) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM quests WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("quest delete all: %w", err)
	}
	return nil
}

func scanQuest(row scanner) (*Quest, error) {
	var (
		q                   Quest
		skillCategory       sql.NullString
		actualMinutes       sql.NullInt64
		actualSeconds       sql.NullInt64
		timeStarted         sql.NullString
		timePaused          sql.NullString
		deadline            sql.NullString
		isOverdue           int
		accuracy            sql.NullInt64
		productivity        sql.NullInt64
		focus               sql.NullInt64
		xpEarned            sql.NullInt64
		dateCreated         string
		dateCompleted       sql.NullString
		completionTimeOfDay sql.NullInt64
		isCompleted         int
		templateID          sql.NullInt64
		isInstance          int
	)
	if err := row.Scan(&q.ID, &q.UserID, &q.Title, &q.Description, &q.StatType, &skillCategory, &q.Difficulty,
		&q.TimeEstimatedMinutes, &actualMinutes, &actualSeconds, &q.TimerState, &timeStarted, &timePaused,
		&q.PausedDurationMs, &q.DistractionCount, &deadline, &isOverdue, &accuracy, &productivity, &focus,
		&q.XPReward, &xpEarned, &dateCreated, &dateCompleted, &completionTimeOfDay, &isCompleted,
		&q.StreakAtCompletion, &templateID, &isInstance); err != nil {
		return nil, err
	}

	q.SkillCategory = strPtr(skillCategory)
	q.TimeActualMinutes = intPtr(actualMinutes)
	q.TimeActualSeconds = intPtr(actualSeconds)
	q.IsOverdue = isOverdue != 0
	q.AccuracyScore = intPtr(accuracy)
	q.ProductivityScore = intPtr(productivity)
	q.FocusRating = intPtr(focus)
	q.XPEarned = intPtr(xpEarned)
	q.CompletionTimeOfDay = intPtr(completionTimeOfDay)
	q.IsCompleted = isCompleted != 0
	q.TemplateID = int64Ptr(templateID)
	q.IsTemplateInstance = isInstance != 0

	var err error
	if q.TimeStarted, err = parseNullTime(timeStarted); err != nil {
		return nil, err
	}
	if q.TimePaused, err = parseNullTime(timePaused); err != nil {
		return nil, err
	}
	if q.Deadline, err = parseNullTime(deadline); err != nil {
		return nil, err
	}
	if q.DateCompleted, err = parseNullTime(dateCompleted); err != nil {
		return nil, err
	}
	if q.DateCreated, err = parseTime(dateCreated); err != nil {
		return nil, err
	}
	return &q, nil
}
