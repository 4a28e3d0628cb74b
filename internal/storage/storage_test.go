package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "levelup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('quests') WHERE name = 'xp_earned'`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestPlayerGetOrCreate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPlayerRepo(db)

	missing, err := repo.Get(ctx, MainPlayerKey)
	require.NoError(t, err)
	require.Nil(t, missing)

	p, err := repo.GetOrCreate(ctx, MainPlayerKey)
	require.NoError(t, err)
	require.Equal(t, 0, p.TotalXP)

	p.TotalXP = 450
	p.Level = 2
	p.Wealth = 450
	last := testNow
	p.LastActivityDate = &last
	require.NoError(t, repo.Update(ctx, p))

	again, err := repo.GetOrCreate(ctx, MainPlayerKey)
	require.NoError(t, err)
	require.Equal(t, 450, again.TotalXP)
	require.Equal(t, 450, again.Wealth)
	require.NotNil(t, again.LastActivityDate)
	require.True(t, again.LastActivityDate.Equal(testNow))
}

func TestPlayerSetLevelOnlyTouchesLevel(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPlayerRepo(db)

	stale, err := repo.GetOrCreate(ctx, MainPlayerKey)
	require.NoError(t, err)
	stale.TotalXP = 500
	stale.Intelligence = 500
	require.NoError(t, repo.Update(ctx, stale))

	// A newer write lands between the stale read and the level repair.
	fresh, err := repo.Get(ctx, MainPlayerKey)
	require.NoError(t, err)
	fresh.TotalXP = 900
	fresh.Intelligence = 900
	fresh.Level = 3
	require.NoError(t, repo.Update(ctx, fresh))

	require.ErrorIs(t, repo.SetLevel(ctx, MainPlayerKey, 2, 500), ErrConflict)
	got, err := repo.Get(ctx, MainPlayerKey)
	require.NoError(t, err)
	require.Equal(t, 900, got.TotalXP)
	require.Equal(t, 900, got.Intelligence)
	require.Equal(t, 3, got.Level)

	require.NoError(t, repo.SetLevel(ctx, MainPlayerKey, 5, 900))
	got, err = repo.Get(ctx, MainPlayerKey)
	require.NoError(t, err)
	require.Equal(t, 5, got.Level)
	require.Equal(t, 900, got.TotalXP)
}

func TestQuestGuardedWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewQuestRepo(db)

	skill := "Coding"
	q := &Quest{
		UserID: "u1", Title: "Refactor", StatType: "intelligence", SkillCategory: &skill,
		Difficulty: 3, TimeEstimatedMinutes: 30, TimerState: "not_started", XPReward: 33, DateCreated: testNow,
	}
	require.NoError(t, repo.Insert(ctx, q))
	require.NotZero(t, q.ID)

	other, err := repo.Get(ctx, "u2", q.ID)
	require.NoError(t, err)
	require.Nil(t, other)

	started := testNow.Add(time.Minute)
	q.TimerState = "running"
	q.TimeStarted = &started
	require.NoError(t, repo.UpdateTimer(ctx, q, "not_started"))
	require.ErrorIs(t, repo.UpdateTimer(ctx, q, "not_started"), ErrConflict)

	xp := 33
	done := testNow.Add(time.Hour)
	hour := 10
	q.IsCompleted = true
	q.DateCompleted = &done
	q.CompletionTimeOfDay = &hour
	q.XPEarned = &xp
	require.NoError(t, repo.MarkCompleted(ctx, q))
	require.ErrorIs(t, repo.MarkCompleted(ctx, q), ErrConflict)
	require.ErrorIs(t, repo.UpdateDetails(ctx, q), ErrConflict)

	stored, err := repo.Get(ctx, "u1", q.ID)
	require.NoError(t, err)
	require.True(t, stored.IsCompleted)
	require.Equal(t, "completed", stored.TimerState)
	require.Equal(t, 33, *stored.XPEarned)
	require.Equal(t, "Coding", *stored.SkillCategory)

	n, err := repo.CountCompleted(ctx, "u1", "", testNow)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = repo.CountCompleted(ctx, "u1", "strength", time.Time{})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestMarkOverdueSkipsCompleted(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewQuestRepo(db)

	deadline := testNow.Add(-time.Hour)
	open := &Quest{UserID: "u1", Title: "late", StatType: "wealth", Difficulty: 1, TimeEstimatedMinutes: 5,
		TimerState: "not_started", Deadline: &deadline, DateCreated: testNow.Add(-2 * time.Hour)}
	require.NoError(t, repo.Insert(ctx, open))

	n, err := repo.MarkOverdue(ctx, "u1", testNow)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = repo.MarkOverdue(ctx, "u1", testNow)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	qs, err := repo.List(ctx, "u1", QuestFilter{OverdueOnly: true})
	require.NoError(t, err)
	require.Len(t, qs, 1)
}

func TestClaimGenerationOncePerDay(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewTemplateRepo(db)

	tmpl := &QuestTemplate{UserID: "u1", Title: "Push-ups", TimeMinutes: 10, Difficulty: 2, StatType: "strength",
		RecurrenceType: "specific_days", Weekdays: []int{1, 5}, IsActive: true, CreatedAt: testNow}
	require.NoError(t, repo.Insert(ctx, tmpl))

	dayStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ClaimGeneration(ctx, "u1", tmpl.ID, dayStart, testNow))
	require.ErrorIs(t, repo.ClaimGeneration(ctx, "u1", tmpl.ID, dayStart, testNow.Add(time.Hour)), ErrConflict)
	require.NoError(t, repo.ClaimGeneration(ctx, "u1", tmpl.ID, dayStart.AddDate(0, 0, 1), testNow.AddDate(0, 0, 1)))

	got, err := repo.Get(ctx, "u1", tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1, 5}, got.Weekdays)
	require.NotNil(t, got.LastGeneratedDate)
}

func TestHabitHistoryAppends(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewTemplateRepo(db)

	tmpl := &QuestTemplate{UserID: "u1", Title: "Floss", TimeMinutes: 2, Difficulty: 1, StatType: "discipline",
		RecurrenceType: "daily", IsActive: true, IsHabit: true, CreatedAt: testNow}
	require.NoError(t, repo.Insert(ctx, tmpl))

	for i := 0; i < 3; i++ {
		at := testNow.AddDate(0, 0, i)
		tmpl.HabitStreak = i + 1
		tmpl.HabitLastCompletedDate = &at
		require.NoError(t, repo.RecordHabitCompletion(ctx, tmpl, at))
	}

	got, err := repo.Get(ctx, "u1", tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.HabitStreak)
	require.Len(t, got.HabitCompletionHistory, 3)
	require.True(t, got.HabitCompletionHistory[0].Before(got.HabitCompletionHistory[2]))
}

func TestOneActiveRaidPerUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRaidRepo(db)

	first := &Raid{UserID: "u1", DurationMinutes: 30, Rank: "C", StartedAt: testNow}
	require.NoError(t, repo.Insert(ctx, first))
	require.ErrorIs(t, repo.Insert(ctx, &Raid{UserID: "u1", DurationMinutes: 10, Rank: "E", StartedAt: testNow}), ErrConflict)
	require.NoError(t, repo.Insert(ctx, &Raid{UserID: "u2", DurationMinutes: 10, Rank: "E", StartedAt: testNow}))

	require.NoError(t, repo.Finish(ctx, first, "completed", 150, testNow.Add(30*time.Minute)))
	require.ErrorIs(t, repo.Finish(ctx, first, "failed", 0, testNow.Add(time.Hour)), ErrConflict)

	active, err := repo.Active(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, active)
	require.NoError(t, repo.Insert(ctx, &Raid{UserID: "u1", DurationMinutes: 10, Rank: "S", StartedAt: testNow.Add(time.Hour)}))
}

func TestGoalRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewGoalRepo(db)

	g := &Goal{UserID: "u1", Title: "Read", Type: "monthly", StatType: "total", TargetValue: 10, Unit: "quests",
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.AddDate(0, 1, 0),
		Milestones: []Milestone{{Value: 5, Label: "halfway"}}}
	require.NoError(t, repo.Insert(ctx, g))

	g.CurrentValue = 5
	reached := testNow
	g.Milestones[0].Reached = true
	g.Milestones[0].ReachedAt = &reached
	require.NoError(t, repo.Update(ctx, g))
	require.NoError(t, repo.AppendAchievements(ctx, g.ID, []GoalAchievement{{
		GoalID: g.ID, Title: "halfway Milestone Reached!", UnlockedAt: testNow, MilestoneValue: 5,
	}}))

	active, err := repo.ListActive(ctx, "u1", testNow)
	require.NoError(t, err)
	require.Len(t, active, 1)

	got, err := repo.Get(ctx, "u1", g.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.CurrentValue)
	require.True(t, got.Milestones[0].Reached)
	require.Len(t, got.Achievements, 1)

	later, err := repo.ListActive(ctx, "u1", testNow.AddDate(0, 2, 0))
	require.NoError(t, err)
	require.Empty(t, later)
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := NewPlayerRepo(tx).GetOrCreate(ctx, "u1"); err != nil {
			return err
		}
		return ErrConflict
	})
	require.ErrorIs(t, err, ErrConflict)

	p, err := NewPlayerRepo(db).Get(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, p)
}
