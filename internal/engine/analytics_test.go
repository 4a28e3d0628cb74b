package engine

import (
	"context"
	"testing"
	"time"

	"levelup/internal/storage"
)

func TestBestCompletionHours(t *testing.T) {
	var qs []storage.Quest
	for _, h := range []int{9, 14, 14, 21, 7, 14, 21} {
		qs = append(qs, storage.Quest{CompletionTimeOfDay: intp(h)})
	}
	qs = append(qs, storage.Quest{}, storage.Quest{CompletionTimeOfDay: intp(24)})

	got := BestCompletionHours(qs)
	if got.Distribution[14] != 3 || got.Distribution[21] != 2 || got.Distribution[7] != 1 || got.Distribution[9] != 1 {
		t.Fatalf("Distribution=%v", got.Distribution)
	}
	sum := 0
	for _, n := range got.Distribution {
		sum += n
	}
	if sum != 7 {
		t.Fatalf("histogram total=%d, want 7", sum)
	}
	want := []HourCount{{14, 3}, {21, 2}, {7, 1}}
	if len(got.Best) != len(want) {
		t.Fatalf("Best=%v, want %v", got.Best, want)
	}
	for i := range want {
		if got.Best[i] != want[i] {
			t.Fatalf("Best[%d]=%v, want %v", i, got.Best[i], want[i])
		}
	}
	if got.Recommendation != "You're most productive in the afternoon (14:00)" {
		t.Fatalf("Recommendation=%q", got.Recommendation)
	}

	empty := BestCompletionHours(nil)
	if len(empty.Best) != 0 || empty.Recommendation != "" {
		t.Fatalf("empty=%+v", empty)
	}
	if r := hourRecommendation(6); r != "You're most productive in the morning (06:00)" {
		t.Fatalf("morning=%q", r)
	}
	if r := hourRecommendation(17); r != "You're most productive in the evening (17:00)" {
		t.Fatalf("evening=%q", r)
	}
}

func TestStatBalanceRating(t *testing.T) {
	cases := []struct {
		strength int
		rating   string
		average  int
	}{
		{0, "Excellent", 0},
		{250, "Good", 50},
		{1000, "Fair", 200},
		{2000, "Unbalanced", 400},
	}
	for _, c := range cases {
		b := StatBalanceOf(&storage.Player{Strength: c.strength})
		if b.Rating != c.rating || b.Average != c.average || b.Total != c.strength {
			t.Fatalf("strength=%d: rating=%q avg=%d total=%d, want %q/%d/%d",
				c.strength, b.Rating, b.Average, b.Total, c.rating, c.average, c.strength)
		}
	}

	b := StatBalanceOf(&storage.Player{Strength: 10, Intelligence: 300, Wealth: 300, Charisma: 5})
	if b.MostDeveloped != StatIntelligence || b.LeastDeveloped != StatDiscipline {
		t.Fatalf("most=%s least=%s, want intelligence/discipline", b.MostDeveloped, b.LeastDeveloped)
	}
	if got := StatBalanceOf(nil); got.Rating != "" || len(got.Stats) != 0 {
		t.Fatalf("nil player=%+v", got)
	}
}

func TestRecentWeekdayPatternWindow(t *testing.T) {
	at := func(d time.Time) *time.Time { return &d }
	monday := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	qs := []storage.Quest{
		{DateCompleted: at(monday)},
		{DateCompleted: at(monday.AddDate(0, 0, -7))},
		{DateCompleted: at(monday.AddDate(0, 0, 2))},
		{DateCompleted: at(monday.AddDate(0, 0, -40))},
		{},
	}
	p := RecentWeekdayPattern(qs, monday.AddDate(0, 0, -30), time.UTC)
	if p.Most.Weekday != time.Monday || p.Most.Count != 2 {
		t.Fatalf("Most=%+v, want Monday x2", p.Most)
	}
	if p.Days[1].Weekday != time.Wednesday || p.Days[1].Count != 1 {
		t.Fatalf("second=%+v, want Wednesday x1", p.Days[1])
	}
	if p.Least.Weekday != time.Sunday || p.Least.Count != 0 {
		t.Fatalf("Least=%+v, want Sunday x0", p.Least)
	}

	// 23:30 UTC Monday is Tuesday in Tokyo.
	tokyo := time.FixedZone("JST", 9*3600)
	p = RecentWeekdayPattern(qs[:1], monday.AddDate(0, 0, -30), tokyo)
	if p.Most.Weekday != time.Tuesday {
		t.Fatalf("JST Most=%+v, want Tuesday", p.Most)
	}
}

func TestProductivityDashboard(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	q1 := mustQuest(t, svc, CreateQuestInput{Title: "Plan sprint"})
	q2 := mustQuest(t, svc, CreateQuestInput{Title: "Fix bug", Difficulty: DifficultyHard, EstimatedMinutes: 60})
	q3 := mustQuest(t, svc, CreateQuestInput{Title: "Run", StatType: StatStrength, Difficulty: DifficultyEasy, EstimatedMinutes: 20})

	if _, err := svc.CompleteQuest(ctx, testUser, q1.ID); err != nil {
		t.Fatalf("complete q1: %v", err)
	}
	clock.Advance(5 * time.Hour)
	if _, err := svc.CompleteQuest(ctx, testUser, q2.ID); err != nil {
		t.Fatalf("complete q2: %v", err)
	}
	clock.Advance(24 * time.Hour)
	if _, err := svc.CompleteQuest(ctx, testUser, q3.ID); err != nil {
		t.Fatalf("complete q3: %v", err)
	}

	r, err := svc.ProductivityDashboard(ctx, testUser)
	if err != nil {
		t.Fatalf("ProductivityDashboard: %v", err)
	}
	if r.Hours.Distribution[9] != 1 || r.Hours.Distribution[14] != 2 || r.Hours.Best[0].Hour != 14 {
		t.Fatalf("Hours=%+v", r.Hours)
	}
	if r.Weekdays.Most.Weekday != time.Monday || r.Weekdays.Most.Count != 2 {
		t.Fatalf("Weekdays.Most=%+v, want Monday x2", r.Weekdays.Most)
	}
	if len(r.ByDifficulty) != 5 {
		t.Fatalf("ByDifficulty=%d rows, want 5", len(r.ByDifficulty))
	}
	if hard := r.ByDifficulty[DifficultyHard-1]; hard.Completed != 1 || hard.TotalMinutes != 60 || hard.AverageMinutes != 60 {
		t.Fatalf("hard=%+v", hard)
	}
	if r.Balance.MostDeveloped != StatIntelligence || r.Balance.Total != 101 || r.Balance.Rating != "Excellent" {
		t.Fatalf("Balance=%+v", r.Balance)
	}
	if r.Week.QuestsCompleted != 3 || r.Week.XPEarned != 101 {
		t.Fatalf("Week=%+v, want 3 quests 101 XP", r.Week)
	}
	if !r.Week.Since.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Week.Since=%v, want Monday 2026-03-02", r.Week.Since)
	}
	if r.Month.QuestsCompleted != 3 || !r.Month.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Month=%+v", r.Month)
	}
}
