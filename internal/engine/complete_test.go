package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"levelup/internal/storage"
)

func TestCompleteQuestAwardsXPOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{Difficulty: DifficultyMedium, EstimatedMinutes: 30})

	res, err := svc.CompleteQuest(ctx, testUser, q.ID)
	if err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}
	if res.XPEarned != 33 || res.Multiplier != 1.0 || res.PerformanceMessage != "" {
		t.Fatalf("result xp=%d mult=%v msg=%q, want 33 x1 and no message", res.XPEarned, res.Multiplier, res.PerformanceMessage)
	}
	if res.AlreadyCompleted || res.OpID == "" {
		t.Fatalf("AlreadyCompleted=%v OpID=%q", res.AlreadyCompleted, res.OpID)
	}
	if !res.Quest.IsCompleted || res.Quest.XPEarned == nil || *res.Quest.XPEarned != 33 {
		t.Fatalf("stored quest=%+v, want completed with 33 xp", res.Quest)
	}
	if res.Quest.StreakAtCompletion != 0 || res.Player.CurrentStreak != 1 {
		t.Fatalf("streakAtCompletion=%d streak=%d, want 0 and 1", res.Quest.StreakAtCompletion, res.Player.CurrentStreak)
	}

	again, err := svc.CompleteQuest(ctx, testUser, q.ID)
	if err != nil {
		t.Fatalf("second CompleteQuest: %v", err)
	}
	if !again.AlreadyCompleted || again.XPEarned != 33 || again.Skill != nil {
		t.Fatalf("second result=%+v, want stored outcome", again)
	}

	p, err := svc.GetPlayer(ctx, testUser)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.TotalXP != 33 || p.Intelligence != 33 || p.Strength != 0 {
		t.Fatalf("player total=%d int=%d str=%d, want 33/33/0", p.TotalXP, p.Intelligence, p.Strength)
	}
}

func TestCompleteQuestConcurrentCallsAwardOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{XPReward: 40})

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteQuest(ctx, testUser, q.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("CompleteQuest: %v", err)
		}
	}

	p, err := svc.GetPlayer(ctx, testUser)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.TotalXP != 40 {
		t.Fatalf("TotalXP=%d, want 40", p.TotalXP)
	}
}

func TestCompleteQuestWithTimerAppliesMultiplier(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{EstimatedMinutes: 60, XPReward: 100})

	if _, err := svc.StartQuestTimer(ctx, testUser, q.ID); err != nil {
		t.Fatalf("StartQuestTimer: %v", err)
	}
	clock.Advance(60 * time.Minute)

	res, err := svc.CompleteQuestWithTimer(ctx, testUser, q.ID, intp(5))
	if err != nil {
		t.Fatalf("CompleteQuestWithTimer: %v", err)
	}
	if res.XPEarned != 130 || res.Multiplier != 1.3 {
		t.Fatalf("xp=%d mult=%v, want 130 x1.3", res.XPEarned, res.Multiplier)
	}
	if res.PerformanceMessage == "" {
		t.Fatalf("expected a performance message")
	}
	if res.Quest.ProductivityScore == nil || *res.Quest.ProductivityScore != 100 {
		t.Fatalf("ProductivityScore=%v, want 100", res.Quest.ProductivityScore)
	}
	if res.Quest.TimerState != string(TimerCompleted) || res.Quest.CompletionTimeOfDay == nil || *res.Quest.CompletionTimeOfDay != 10 {
		t.Fatalf("quest timer=%q hour=%v, want completed at 10", res.Quest.TimerState, res.Quest.CompletionTimeOfDay)
	}
}

func TestCompleteUsesStoppedTimerScores(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{EstimatedMinutes: 30, XPReward: 100})

	if _, err := svc.StartQuestTimer(ctx, testUser, q.ID); err != nil {
		t.Fatalf("StartQuestTimer: %v", err)
	}
	clock.Advance(60 * time.Minute)
	if _, err := svc.StopQuestTimer(ctx, testUser, q.ID, nil); err != nil {
		t.Fatalf("StopQuestTimer: %v", err)
	}

	// accuracy 50, unrated focus, no pauses: 20+20+20 = 60
	res, err := svc.CompleteQuest(ctx, testUser, q.ID)
	if err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}
	if res.XPEarned != 100 || res.PerformanceMessage != "Decent performance" {
		t.Fatalf("xp=%d msg=%q, want 100 and decent", res.XPEarned, res.PerformanceMessage)
	}
}

func TestCompleteQuestLevelUp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{XPReward: 450})

	res, err := svc.CompleteQuest(ctx, testUser, q.ID)
	if err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}
	if res.LevelBefore != 0 || res.LevelAfter != 2 || !res.LevelUp {
		t.Fatalf("levels %d -> %d up=%v, want 0 -> 2", res.LevelBefore, res.LevelAfter, res.LevelUp)
	}
}

func TestCompleteQuestUnlocksPerksOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first := mustQuest(t, svc, CreateQuestInput{XPReward: 1250, SkillCategory: SkillCoding})

	res, err := svc.CompleteQuest(ctx, testUser, first.ID)
	if err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}
	if res.Skill == nil || !res.Skill.LeveledUp || res.Skill.NewLevel != 5 {
		t.Fatalf("skill result=%+v, want level up to 5", res.Skill)
	}
	if len(res.Skill.NewPerks) != 1 || res.Skill.NewPerks[0].FeatureKey != "code_sprint" {
		t.Fatalf("NewPerks=%v, want code_sprint only", res.Skill.NewPerks)
	}

	second := mustQuest(t, svc, CreateQuestInput{XPReward: 10, SkillCategory: SkillCoding})
	res, err = svc.CompleteQuest(ctx, testUser, second.ID)
	if err != nil {
		t.Fatalf("CompleteQuest second: %v", err)
	}
	if res.Skill == nil || res.Skill.LeveledUp || len(res.Skill.NewPerks) != 0 {
		t.Fatalf("second skill result=%+v, want no new perks", res.Skill)
	}

	ok, err := svc.FeatureUnlocked(ctx, testUser, "code_sprint")
	if err != nil || !ok {
		t.Fatalf("FeatureUnlocked(code_sprint)=%v err=%v, want true", ok, err)
	}
	ok, _ = svc.FeatureUnlocked(ctx, testUser, "deep_work_mode")
	if ok {
		t.Fatalf("deep_work_mode unlocked at level 5")
	}
	unlocked, err := svc.UnlockedPerks(ctx, testUser)
	if err != nil {
		t.Fatalf("UnlockedPerks: %v", err)
	}
	if len(unlocked) != 1 {
		t.Fatalf("unlocked perks=%d, want 1", len(unlocked))
	}
}

func TestAwardSkillXPSkippingLevelsUnlocksEveryPerk(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.AwardSkillXP(ctx, testUser, SkillFitness, SkillXPRequiredForLevel(15))
	if err != nil {
		t.Fatalf("AwardSkillXP: %v", err)
	}
	if res.NewLevel != 15 || len(res.NewPerks) != 3 {
		t.Fatalf("level=%d perks=%d, want 15 and 3", res.NewLevel, len(res.NewPerks))
	}
}

type failingGoals struct {
	GoalStore
}

func (failingGoals) ListActive(context.Context, string, time.Time) ([]storage.Goal, error) {
	return nil, errors.New("goal store offline")
}

func TestGoalSyncFailureKeepsCompletion(t *testing.T) {
	svc, clock := newTestService(t, WithGoalStore(func(g GoalStore) GoalStore {
		return failingGoals{GoalStore: g}
	}))
	ctx := context.Background()
	q := mustQuest(t, svc, CreateQuestInput{XPReward: 25})
	if _, err := svc.CreateGoal(ctx, testUser, CreateGoalInput{
		Title: "Ship", Type: GoalCustom, Unit: UnitQuests, TargetValue: 1,
		StartDate: clock.Now().Add(-time.Hour), EndDate: clock.Now().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	res, err := svc.CompleteQuest(ctx, testUser, q.ID)
	if err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("Diagnostics=%v, want one entry", res.Diagnostics)
	}
	var se *StageError
	if !errors.As(res.Diagnostics[0], &se) || se.Stage != "sync-goals" {
		t.Fatalf("diagnostic=%v, want sync-goals stage error", res.Diagnostics[0])
	}

	p, err := svc.GetPlayer(ctx, testUser)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p.TotalXP != 25 {
		t.Fatalf("TotalXP=%d, want 25 despite goal failure", p.TotalXP)
	}
	got, err := svc.GetQuest(ctx, testUser, q.ID)
	if err != nil || !got.IsCompleted {
		t.Fatalf("quest completed=%v err=%v, want completed", got != nil && got.IsCompleted, err)
	}
}

func TestCompleteMissingQuest(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CompleteQuest(context.Background(), testUser, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want not found", err)
	}
}

func TestNextStreak(t *testing.T) {
	day := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	if got := NextStreak(nil, 0, day, time.UTC); got != 1 {
		t.Fatalf("first activity streak=%d, want 1", got)
	}
	if got := NextStreak(&day, 3, day.Add(time.Hour), time.UTC); got != 4 {
		t.Fatalf("next calendar day streak=%d, want 4", got)
	}
	if got := NextStreak(&day, 3, day.Add(10*time.Minute), time.UTC); got != 3 {
		t.Fatalf("same day streak=%d, want 3", got)
	}
	if got := NextStreak(&day, 3, day.Add(49*time.Hour), time.UTC); got != 1 {
		t.Fatalf("after a gap streak=%d, want 1", got)
	}
}
