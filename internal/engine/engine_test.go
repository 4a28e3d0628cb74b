package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"levelup/internal/storage"
)

const testUser = "tester"

// testClock is a settable clock. Monday 2026-03-02 09:00 UTC is the default start.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, opts ...Option) (*Service, *testClock) {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	all := append([]Option{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	return NewService(db, all...), clock
}

func mustQuest(t *testing.T, svc *Service, in CreateQuestInput) *storage.Quest {
	t.Helper()
	if in.Title == "" {
		in.Title = "Write tests"
	}
	if in.StatType == "" {
		in.StatType = StatIntelligence
	}
	if in.Difficulty == 0 {
		in.Difficulty = DifficultyMedium
	}
	if in.EstimatedMinutes == 0 {
		in.EstimatedMinutes = 30
	}
	q, err := svc.CreateQuest(context.Background(), testUser, in)
	if err != nil {
		t.Fatalf("CreateQuest: %v", err)
	}
	return q
}

func intp(v int) *int { return &v }

func TestCreateQuestValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []CreateQuestInput{
		{Title: "  ", StatType: StatStrength, Difficulty: DifficultyEasy, EstimatedMinutes: 10},
		{Title: "x", StatType: "luck", Difficulty: DifficultyEasy, EstimatedMinutes: 10},
		{Title: "x", StatType: StatStrength, Difficulty: 9, EstimatedMinutes: 10},
		{Title: "x", StatType: StatStrength, Difficulty: DifficultyEasy, EstimatedMinutes: 0},
		{Title: "x", StatType: StatStrength, Difficulty: DifficultyEasy, EstimatedMinutes: 10, SkillCategory: "Cooking"},
	}
	for i, in := range cases {
		if _, err := svc.CreateQuest(ctx, testUser, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: err=%v, want validation error", i, err)
		}
	}
	if _, err := svc.CreateQuest(ctx, "", CreateQuestInput{Title: "x", StatType: StatStrength, Difficulty: 1, EstimatedMinutes: 5}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty user err=%v, want validation error", err)
	}
}

func TestCreateQuestDerivesReward(t *testing.T) {
	svc, _ := newTestService(t)
	q := mustQuest(t, svc, CreateQuestInput{Difficulty: DifficultyMedium, EstimatedMinutes: 45})
	if q.XPReward != 34 {
		t.Fatalf("XPReward=%d, want 34", q.XPReward)
	}
	if q.TimerState != string(TimerNotStarted) {
		t.Fatalf("TimerState=%q, want not_started", q.TimerState)
	}

	explicit := mustQuest(t, svc, CreateQuestInput{XPReward: 200})
	if explicit.XPReward != 200 {
		t.Fatalf("explicit XPReward=%d, want 200", explicit.XPReward)
	}
}

func TestUpdateQuestRederivesRewardAndRejectsCompleted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{Difficulty: DifficultyEasy, EstimatedMinutes: 10})

	d := DifficultyEpic
	updated, err := svc.UpdateQuest(ctx, testUser, q.ID, UpdateQuestInput{Difficulty: &d})
	if err != nil {
		t.Fatalf("UpdateQuest: %v", err)
	}
	if updated.XPReward != 51 {
		t.Fatalf("XPReward=%d, want 51", updated.XPReward)
	}

	if _, err := svc.CompleteQuest(ctx, testUser, q.ID); err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}
	title := "renamed"
	if _, err := svc.UpdateQuest(ctx, testUser, q.ID, UpdateQuestInput{Title: &title}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit completed err=%v, want invalid transition", err)
	}
}

func TestQuestsAreScopedByUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{})

	if _, err := svc.GetQuest(ctx, "someone-else", q.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetQuest other user err=%v, want not found", err)
	}
	if _, err := svc.CompleteQuest(ctx, "someone-else", q.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteQuest other user err=%v, want not found", err)
	}
	if err := svc.DeleteQuest(ctx, testUser, q.ID); err != nil {
		t.Fatalf("DeleteQuest: %v", err)
	}
	if err := svc.DeleteQuest(ctx, testUser, q.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteQuest err=%v, want not found", err)
	}
}

func TestOverdueQuests(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	soon := clock.Now().Add(2 * time.Hour)
	later := clock.Now().Add(72 * time.Hour)
	q := mustQuest(t, svc, CreateQuestInput{Deadline: &soon})
	mustQuest(t, svc, CreateQuestInput{Deadline: &later})

	due, err := svc.DueSoonQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("DueSoonQuests: %v", err)
	}
	if len(due) != 1 || due[0].ID != q.ID {
		t.Fatalf("DueSoonQuests=%v, want only quest %d", due, q.ID)
	}

	clock.Advance(3 * time.Hour)
	overdue, err := svc.OverdueQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("OverdueQuests: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != q.ID || !overdue[0].IsOverdue {
		t.Fatalf("OverdueQuests=%v, want quest %d flagged", overdue, q.ID)
	}
}

func TestResetPlayer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{XPReward: 500, SkillCategory: SkillCoding})
	if _, err := svc.CompleteQuest(ctx, testUser, q.ID); err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}

	p, err := svc.ResetPlayer(ctx, testUser)
	if err != nil {
		t.Fatalf("ResetPlayer: %v", err)
	}
	if p.TotalXP != 0 || p.Level != 0 || p.CurrentStreak != 0 {
		t.Fatalf("reset player=%+v, want zeroed", p)
	}
	qs, err := svc.ListQuests(ctx, testUser, QuestFilter{})
	if err != nil {
		t.Fatalf("ListQuests: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("quests after reset=%d, want 0", len(qs))
	}
	sk, err := svc.GetSkill(ctx, testUser, SkillCoding)
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if sk.TotalXP != 0 {
		t.Fatalf("skill TotalXP=%d, want 0", sk.TotalXP)
	}
}

func TestAchievements(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{XPReward: 120})
	if _, err := svc.CompleteQuest(ctx, testUser, q.ID); err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}

	got, err := svc.Achievements(ctx, testUser)
	if err != nil {
		t.Fatalf("Achievements: %v", err)
	}
	earned := map[string]bool{}
	for _, a := range got {
		earned[a.ID] = a.Earned
	}
	if !earned["first_steps"] || !earned["first_quest"] {
		t.Fatalf("earned=%v, want first_steps and first_quest", earned)
	}
	if earned["productive"] || earned["first_perk"] {
		t.Fatalf("earned=%v, want productive and first_perk unearned", earned)
	}
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustQuest(t, svc, CreateQuestInput{})
	if _, err := svc.CreateTemplate(ctx, testUser, TemplateInput{
		Title: "Stretch", TimeMinutes: 10, Difficulty: DifficultyEasy,
		StatType: StatStrength, RecurrenceType: RecurDaily,
	}); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	d, err := svc.Dashboard(ctx, testUser)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Player == nil || d.NextLevelXP != 100 {
		t.Fatalf("Player=%v NextLevelXP=%d, want player and 100", d.Player, d.NextLevelXP)
	}
	if len(d.Today) != 2 {
		t.Fatalf("Today=%d, want 2", len(d.Today))
	}
	if len(d.Skills) != len(AllSkills) {
		t.Fatalf("Skills=%d, want %d", len(d.Skills), len(AllSkills))
	}
	if d.ActiveRaid != nil {
		t.Fatalf("ActiveRaid=%v, want nil", d.ActiveRaid)
	}
}

func TestGetPlayerRepairsLevelWithoutRewritingProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetPlayer(ctx, testUser); err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if _, err := svc.db.ExecContext(ctx,
		`UPDATE players SET level = 0, total_xp = 450, wealth = 450, current_streak = 3 WHERE user_id = ?`, testUser); err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	p, err := svc.GetPlayer(ctx, testUser)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.Level != 2 || p.TotalXP != 450 {
		t.Fatalf("level=%d total=%d, want 2/450", p.Level, p.TotalXP)
	}
	stored, err := svc.stores.Players.Get(ctx, testUser)
	if err != nil {
		t.Fatalf("Players.Get: %v", err)
	}
	if stored.Level != 2 || stored.Wealth != 450 || stored.CurrentStreak != 3 {
		t.Fatalf("stored=%+v, want level 2 with wealth and streak kept", stored)
	}
}
