package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			user_id TEXT PRIMARY KEY,
			level INTEGER NOT NULL DEFAULT 0,
			total_xp INTEGER NOT NULL DEFAULT 0,
			strength INTEGER NOT NULL DEFAULT 0,
			intelligence INTEGER NOT NULL DEFAULT 0,
			discipline INTEGER NOT NULL DEFAULT 0,
			wealth INTEGER NOT NULL DEFAULT 0,
			charisma INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			last_activity_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS skills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			current_xp INTEGER NOT NULL DEFAULT 0,
			current_level INTEGER NOT NULL DEFAULT 1,
			total_xp INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS perks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			skill_required TEXT NOT NULL,
			level_required INTEGER NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			feature_key TEXT NOT NULL,
			is_unlocked INTEGER NOT NULL DEFAULT 0,
			unlocked_at TEXT,
			created_at TEXT NOT NULL,
			UNIQUE(user_id, feature_key)
		);`,
		`CREATE TABLE IF NOT EXISTS quest_templates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			time_minutes INTEGER NOT NULL,
			difficulty INTEGER NOT NULL DEFAULT 1,
			stat_type TEXT NOT NULL,
			skill_category TEXT,
			recurrence_type TEXT NOT NULL,
			weekdays TEXT,
			custom_days INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			last_generated_date TEXT,
			created_at TEXT NOT NULL,
			is_habit INTEGER NOT NULL DEFAULT 0,
			habit_streak INTEGER NOT NULL DEFAULT 0,
			habit_last_completed_date TEXT
		);`,
		// Append-only habit completion history.
		`CREATE TABLE IF NOT EXISTS habit_completions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			template_id INTEGER NOT NULL,
			completed_at TEXT NOT NULL,
			FOREIGN KEY(template_id) REFERENCES quest_templates(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS quests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			stat_type TEXT NOT NULL,
			skill_category TEXT,
			difficulty INTEGER NOT NULL DEFAULT 1,

			time_estimated_minutes INTEGER NOT NULL,
			time_actual_minutes INTEGER,
			time_actual_seconds INTEGER,
			timer_state TEXT NOT NULL DEFAULT 'not_started',
			time_started TEXT,
			time_paused TEXT,
			paused_duration_ms INTEGER NOT NULL DEFAULT 0,
			distraction_count INTEGER NOT NULL DEFAULT 0,

			deadline TEXT,
			is_overdue INTEGER NOT NULL DEFAULT 0,

			accuracy_score INTEGER,
			productivity_score INTEGER,
			focus_rating INTEGER,

			xp_reward INTEGER NOT NULL,
			date_created TEXT NOT NULL,
			date_completed TEXT,
			completion_time_of_day INTEGER,
			is_completed INTEGER NOT NULL DEFAULT 0,
			streak_at_completion INTEGER NOT NULL DEFAULT 0,

			template_id INTEGER,
			is_template_instance INTEGER NOT NULL DEFAULT 0,

			FOREIGN KEY(template_id) REFERENCES quest_templates(id) ON DELETE SET NULL
		);`,
		`CREATE TABLE IF NOT EXISTS goals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			stat_type TEXT NOT NULL,
			target_value INTEGER NOT NULL,
			current_value INTEGER NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT 'quests',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			milestones TEXT,
			is_completed INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS goal_achievements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			goal_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			unlocked_at TEXT NOT NULL,
			milestone_value INTEGER NOT NULL,
			FOREIGN KEY(goal_id) REFERENCES goals(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS raids (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			rank TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			xp_earned INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			ended_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quests_user_completed ON quests(user_id, is_completed);`,
		`CREATE INDEX IF NOT EXISTS idx_quests_user_created ON quests(user_id, date_created);`,
		`CREATE INDEX IF NOT EXISTS idx_quests_template ON quests(template_id);`,
		`CREATE INDEX IF NOT EXISTS idx_templates_user_active ON quest_templates(user_id, is_active);`,
		`CREATE INDEX IF NOT EXISTS idx_habit_completions_template ON habit_completions(template_id, completed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id, is_completed);`,
		`CREATE INDEX IF NOT EXISTS idx_goal_achievements_goal ON goal_achievements(goal_id);`,
		// At most one active raid per user.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_raids_one_active ON raids(user_id) WHERE status = 'active';`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Columns added after the first schema; ignore if already present.
	alterStmts := []string{
		`ALTER TABLE quests ADD COLUMN xp_earned INTEGER;`,
	}
	for _, stmt := range alterStmts {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("migrate alter: %w", err)
		}
	}

	return nil
}
