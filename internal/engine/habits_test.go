package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordHabitCompletion(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	habit, err := svc.CreateTemplate(ctx, testUser, TemplateInput{
		Title: "Meditate", TimeMinutes: 10, Difficulty: DifficultyEasy,
		StatType: StatDiscipline, RecurrenceType: RecurDaily, IsHabit: true,
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	steps := []struct {
		advance time.Duration
		streak  int
		total   int
	}{
		{0, 1, 1},
		{2 * time.Hour, 1, 1}, // same day
		{24 * time.Hour, 2, 2},
		{24 * time.Hour, 3, 3},
		{72 * time.Hour, 1, 4}, // gap resets
	}
	for i, s := range steps {
		clock.Advance(s.advance)
		got, err := svc.RecordHabitCompletion(ctx, testUser, habit.ID)
		if err != nil {
			t.Fatalf("step %d: RecordHabitCompletion: %v", i, err)
		}
		if got.HabitStreak != s.streak {
			t.Fatalf("step %d: streak=%d, want %d", i, got.HabitStreak, s.streak)
		}
		stored, err := svc.GetTemplate(ctx, testUser, habit.ID)
		if err != nil {
			t.Fatalf("GetTemplate: %v", err)
		}
		if len(stored.HabitCompletionHistory) != s.total {
			t.Fatalf("step %d: history=%d, want %d", i, len(stored.HabitCompletionHistory), s.total)
		}
	}

	stats, err := svc.HabitStats(ctx, testUser)
	if err != nil {
		t.Fatalf("HabitStats: %v", err)
	}
	if len(stats) != 1 || stats[0].TotalCompletions != 4 || stats[0].Streak != 1 {
		t.Fatalf("stats=%+v", stats)
	}
	// 4 completions over 5 whole days since creation
	if stats[0].CompletionRate != 80 {
		t.Fatalf("CompletionRate=%d, want 80", stats[0].CompletionRate)
	}
}

func TestRecordHabitCompletionRejectsPlainTemplate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tmpl, err := svc.CreateTemplate(ctx, testUser, TemplateInput{
		Title: "Read", TimeMinutes: 30, Difficulty: DifficultyMedium,
		StatType: StatIntelligence, RecurrenceType: RecurDaily,
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if _, err := svc.RecordHabitCompletion(ctx, testUser, tmpl.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want not found", err)
	}
}
