package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type TemplateRepo struct {
	db DBTX
}

func NewTemplateRepo(db DBTX) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = `id, user_id, title, description, time_minutes, difficulty, stat_type, skill_category,
	recurrence_type, weekdays, custom_days, is_active, last_generated_date, created_at,
	is_habit, habit_streak, habit_last_completed_date`

func (r *TemplateRepo) Insert(ctx context.Context, t *QuestTemplate) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	weekdays, err := encodeWeekdays(t.Weekdays)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO quest_templates (
			user_id, title, description, time_minutes, difficulty, stat_type, skill_category,
			recurrence_type, weekdays, custom_days, is_active, created_at, is_habit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.UserID, t.Title, t.Description, t.TimeMinutes, t.Difficulty, t.StatType, t.SkillCategory,
		t.RecurrenceType, weekdays, t.CustomDays, boolToInt(t.IsActive), formatTime(t.CreatedAt), boolToInt(t.IsHabit))
	if err != nil {
		return fmt.Errorf("template insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("template last insert id: %w", err)
	}
	t.ID = id
	return nil
}

func (r *TemplateRepo) Get(ctx context.Context, userID string, id int64) (*QuestTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM quest_templates WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("template get: %w", err)
	}
	if t.IsHabit {
		if t.HabitCompletionHistory, err = r.history(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// List returns the user's templates, newest first. activeOnly restricts to is_active = 1.
func (r *TemplateRepo) List(ctx context.Context, userID string, activeOnly bool) ([]QuestTemplate, error) {
	q := `SELECT ` + templateColumns + ` FROM quest_templates WHERE user_id = ?`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("template list: %w", err)
	}
	defer rows.Close()

	var out []QuestTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("template scan: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("template rows: %w", err)
	}
	return out, nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *QuestTemplate) error {
	weekdays, err := encodeWeekdays(t.Weekdays)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE quest_templates
		SET title = ?, description = ?, time_minutes = ?, difficulty = ?, stat_type = ?, skill_category = ?,
			recurrence_type = ?, weekdays = ?, custom_days = ?, is_active = ?, is_habit = ?
		WHERE id = ? AND user_id = ?
	`, t.Title, t.Description, t.TimeMinutes, t.Difficulty, t.StatType, t.SkillCategory,
		t.RecurrenceType, weekdays, t.CustomDays, boolToInt(t.IsActive), boolToInt(t.IsHabit), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("template update: %w", err)
	}
	return expectOneRow(res, "template update")
}

// ClaimGeneration records that the template generated a quest at now. It
// returns ErrConflict when a generation was already recorded on or after
// dayStart, so only one caller per day wins.
func (r *TemplateRepo) ClaimGeneration(ctx context.Context, userID string, id int64, dayStart, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quest_templates SET last_generated_date = ?
		WHERE id = ? AND user_id = ? AND is_active = 1
			AND (last_generated_date IS NULL OR last_generated_date < ?)
	`, formatTime(now), id, userID, formatTime(dayStart))
	if err != nil {
		return fmt.Errorf("template claim generation: %w", err)
	}
	return expectOneRow(res, "template claim generation")
}

// RecordHabitCompletion stores the new streak state and appends at to the history.
func (r *TemplateRepo) RecordHabitCompletion(ctx context.Context, t *QuestTemplate, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE quest_templates SET habit_streak = ?, habit_last_completed_date = ?
		WHERE id = ? AND user_id = ?
	`, t.HabitStreak, formatTimePtr(t.HabitLastCompletedDate), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("template habit update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO habit_completions (template_id, completed_at) VALUES (?, ?)
	`, t.ID, formatTime(at)); err != nil {
		return fmt.Errorf("habit completion insert: %w", err)
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quest_templates WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("template delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("template delete rows: %w", err)
	}
	return n > 0, nil
}

func (r *TemplateRepo) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM quest_templates WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("template delete all: %w", err)
	}
	return nil
}

func (r *TemplateRepo) history(ctx context.Context, templateID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT completed_at FROM habit_completions WHERE template_id = ? ORDER BY completed_at ASC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("habit history: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("habit history scan: %w", err)
		}
		t, err := parseTime(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("habit history rows: %w", err)
	}
	return out, nil
}

func encodeWeekdays(days []int) (any, error) {
	if len(days) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("encode weekdays: %w", err)
	}
	return string(b), nil
}

func scanTemplate(row scanner) (*QuestTemplate, error) {
	var (
		t             QuestTemplate
		skillCategory sql.NullString
		weekdays      sql.NullString
		isActive      int
		lastGenerated sql.NullString
		createdAt     string
		isHabit       int
		habitLast     sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.TimeMinutes, &t.Difficulty, &t.StatType,
		&skillCategory, &t.RecurrenceType, &weekdays, &t.CustomDays, &isActive, &lastGenerated, &createdAt,
		&isHabit, &t.HabitStreak, &habitLast); err != nil {
		return nil, err
	}
	t.SkillCategory = strPtr(skillCategory)
	t.IsActive = isActive != 0
	t.IsHabit = isHabit != 0
	if weekdays.Valid && weekdays.String != "" {
		if err := json.Unmarshal([]byte(weekdays.String), &t.Weekdays); err != nil {
			return nil, fmt.Errorf("decode weekdays: %w", err)
		}
	}

	var err error
	if t.LastGeneratedDate, err = parseNullTime(lastGenerated); err != nil {
		return nil, err
	}
	if t.HabitLastCompletedDate, err = parseNullTime(habitLast); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}
