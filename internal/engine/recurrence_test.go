package engine

import (
	"context"
	"testing"
	"time"

	"levelup/internal/storage"
)

func TestIsDue(t *testing.T) {
	monday := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	sunday := monday.AddDate(0, 0, 6)
	fromMonday := monday

	cases := []struct {
		name string
		tmpl storage.QuestTemplate
		now  time.Time
		want bool
	}{
		{"daily never generated", storage.QuestTemplate{IsActive: true, RecurrenceType: "daily"}, monday, true},
		{"daily already today", storage.QuestTemplate{IsActive: true, RecurrenceType: "daily", LastGeneratedDate: &fromMonday}, monday.Add(3 * time.Hour), false},
		{"daily next day", storage.QuestTemplate{IsActive: true, RecurrenceType: "daily", LastGeneratedDate: &fromMonday}, tuesday, true},
		{"inactive", storage.QuestTemplate{IsActive: false, RecurrenceType: "daily"}, monday, false},
		{"weekday match", storage.QuestTemplate{IsActive: true, RecurrenceType: "specific_days", Weekdays: []int{1, 3}}, monday, true},
		{"weekday miss", storage.QuestTemplate{IsActive: true, RecurrenceType: "specific_days", Weekdays: []int{1, 3}}, tuesday, false},
		{"sunday is 7", storage.QuestTemplate{IsActive: true, RecurrenceType: "weekly", Weekdays: []int{7}}, sunday, true},
		{"interval too soon", storage.QuestTemplate{IsActive: true, RecurrenceType: "interval", CustomDays: 3, LastGeneratedDate: &fromMonday}, monday.AddDate(0, 0, 2), false},
		{"interval elapsed", storage.QuestTemplate{IsActive: true, RecurrenceType: "interval", CustomDays: 3, LastGeneratedDate: &fromMonday}, monday.AddDate(0, 0, 3), true},
	}
	for _, c := range cases {
		if got := IsDue(&c.tmpl, c.now, time.UTC); got != c.want {
			t.Fatalf("%s: IsDue=%v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsDueUsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2026-03-02 20:00 UTC is already Tuesday in Tokyo.
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	tmpl := storage.QuestTemplate{IsActive: true, RecurrenceType: "specific_days", Weekdays: []int{2}}
	if !IsDue(&tmpl, now, tokyo) {
		t.Fatalf("expected Tuesday template due in JST")
	}
	if IsDue(&tmpl, now, time.UTC) {
		t.Fatalf("expected Tuesday template not due in UTC on Monday")
	}
}

func TestGenerateDueQuestsIsIdempotentPerDay(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	tmpl, err := svc.CreateTemplate(ctx, testUser, TemplateInput{
		Title: "Morning run", TimeMinutes: 20, Difficulty: DifficultyHard,
		StatType: StatStrength, SkillCategory: SkillFitness, RecurrenceType: RecurDaily,
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	created, err := svc.GenerateDueQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("GenerateDueQuests: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created=%d, want 1", len(created))
	}
	q := created[0]
	if q.XPReward != 40 || !q.IsTemplateInstance || q.TemplateID == nil || *q.TemplateID != tmpl.ID {
		t.Fatalf("instance=%+v, want 40 xp linked to template %d", q, tmpl.ID)
	}
	if q.SkillCategory == nil || *q.SkillCategory != string(SkillFitness) {
		t.Fatalf("SkillCategory=%v, want Fitness", q.SkillCategory)
	}

	again, err := svc.GenerateDueQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("GenerateDueQuests again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second call created=%d, want 0", len(again))
	}

	// Without the in-memory marker the stored claim still blocks a duplicate.
	svc.forgetGenerated(testUser)
	again, err = svc.GenerateDueQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("GenerateDueQuests after forget: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("after forget created=%d, want 0", len(again))
	}

	clock.Advance(24 * time.Hour)
	next, err := svc.GenerateDueQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("GenerateDueQuests next day: %v", err)
	}
	if len(next) != 1 {
		t.Fatalf("next day created=%d, want 1", len(next))
	}

	id := tmpl.ID
	all, err := svc.ListQuests(ctx, testUser, QuestFilter{TemplateID: &id})
	if err != nil {
		t.Fatalf("ListQuests: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("template instances=%d, want 2", len(all))
	}
}

func TestGenerateSkipsInactiveAndOffDays(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	off, err := svc.CreateTemplate(ctx, testUser, TemplateInput{
		Title: "Review", TimeMinutes: 15, Difficulty: DifficultyEasy,
		StatType: StatDiscipline, RecurrenceType: RecurSpecificDays, Weekdays: []int{2, 4},
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	paused, err := svc.CreateTemplate(ctx, testUser, TemplateInput{
		Title: "Journal", TimeMinutes: 10, Difficulty: DifficultyEasy,
		StatType: StatDiscipline, RecurrenceType: RecurDaily,
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	toggled, err := svc.ToggleTemplate(ctx, testUser, paused.ID)
	if err != nil {
		t.Fatalf("ToggleTemplate: %v", err)
	}
	if toggled.IsActive {
		t.Fatalf("template still active after toggle")
	}

	created, err := svc.GenerateDueQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("GenerateDueQuests: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("created=%d on Monday for %v, want 0", len(created), off.Weekdays)
	}
}

func TestTemplateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	base := TemplateInput{Title: "x", TimeMinutes: 5, Difficulty: DifficultyEasy, StatType: StatWealth}

	bad := []TemplateInput{}
	noDays := base
	noDays.RecurrenceType = RecurSpecificDays
	bad = append(bad, noDays)
	badDay := base
	badDay.RecurrenceType = RecurWeekly
	badDay.Weekdays = []int{0}
	bad = append(bad, badDay)
	noInterval := base
	noInterval.RecurrenceType = RecurInterval
	bad = append(bad, noInterval)
	unknown := base
	unknown.RecurrenceType = "monthly"
	bad = append(bad, unknown)

	for i, in := range bad {
		if _, err := svc.CreateTemplate(ctx, testUser, in); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestTemplateWritesWaitForRunningGeneration(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Hold the user's lock as a generation scan would, with today's marker set.
	unlock := svc.lockUser(testUser)
	svc.generated.Add(svc.generatedKey(testUser, svc.clock()), struct{}{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateTemplate(ctx, testUser, TemplateInput{
			Title: "Evening stretch", TimeMinutes: 10, Difficulty: DifficultyEasy,
			StatType: StatStrength, RecurrenceType: RecurDaily,
		})
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("CreateTemplate finished while generation held the lock (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	if err := <-done; err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	// The marker was cleared after the scan, so the new template is generated today.
	created, err := svc.GenerateDueQuests(ctx, testUser)
	if err != nil {
		t.Fatalf("GenerateDueQuests: %v", err)
	}
	if len(created) != 1 || created[0].Title != "Evening stretch" {
		t.Fatalf("created=%+v, want the new template's instance", created)
	}
}
