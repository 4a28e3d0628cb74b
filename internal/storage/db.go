package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrConflict reports that a guarded update matched no row because the stored
// state no longer satisfied its precondition.
var ErrConflict = errors.New("storage: conflicting update")

// DefaultDBPath returns the default levelup DB location.
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "levelup", "levelup.db"), nil
}

// ResolveDBPath returns LEVELUP_DB_PATH when set, otherwise DefaultDBPath.
func ResolveDBPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("LEVELUP_DB_PATH")); p != "" {
		return p, nil
	}
	return DefaultDBPath()
}

// Open opens (and creates if missing) the SQLite database at path and applies migrations.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// DBTX is the subset of *sql.DB and *sql.Tx the repos need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos bundles every repository bound to the same handle.
type Repos struct {
	Players   *PlayerRepo
	Skills    *SkillRepo
	Perks     *PerkRepo
	Quests    *QuestRepo
	Templates *TemplateRepo
	Goals     *GoalRepo
	Raids     *RaidRepo
}

func NewRepos(db DBTX) *Repos {
	return &Repos{
		Players:   NewPlayerRepo(db),
		Skills:    NewSkillRepo(db),
		Perks:     NewPerkRepo(db),
		Quests:    NewQuestRepo(db),
		Templates: NewTemplateRepo(db),
		Goals:     NewGoalRepo(db),
		Raids:     NewRaidRepo(db),
	}
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
