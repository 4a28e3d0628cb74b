package engine

import (
	"context"
	"math"
	"time"

	"levelup/internal/storage"
)

// NextHabitStreak returns the streak after a completion at now, and false
// when the habit was already completed on now's calendar day.
func NextHabitStreak(t *storage.QuestTemplate, now time.Time, loc *time.Location) (int, bool) {
	if t.HabitLastCompletedDate == nil {
		return 1, true
	}
	switch daysBetween(*t.HabitLastCompletedDate, now, loc) {
	case 0:
		return t.HabitStreak, false
	case 1:
		return t.HabitStreak + 1, true
	default:
		return 1, true
	}
}

// RecordHabitCompletion marks a habit done for today. A second call on the
// same day returns the template unchanged.
func (s *Service) RecordHabitCompletion(ctx context.Context, userID string, templateID int64) (*storage.QuestTemplate, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	t, err := s.stores.Templates.Get(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.IsHabit {
		return nil, notFound("habit", templateID)
	}

	now := s.clock()
	streak, changed := NextHabitStreak(t, now, s.loc)
	if !changed {
		return t, nil
	}

	at := now.UTC()
	t.HabitStreak = streak
	t.HabitLastCompletedDate = &at
	err = s.inTx(ctx, func(st Stores) error {
		return st.Templates.RecordHabitCompletion(ctx, t, at)
	})
	if err != nil {
		return nil, err
	}
	t.HabitCompletionHistory = append(t.HabitCompletionHistory, at)
	s.log.Debugw("habit completed", "userID", userID, "templateID", templateID, "streak", streak)
	return t, nil
}

type HabitStat struct {
	TemplateID       int64
	Title            string
	Streak           int
	CompletionRate   int
	LastCompleted    *time.Time
	TotalCompletions int
}

// HabitCompletionRate compares completions with days since creation, capped at 100.
func HabitCompletionRate(t *storage.QuestTemplate, now time.Time) int {
	n := len(t.HabitCompletionHistory)
	if n == 0 {
		return 0
	}
	days := int(now.Sub(t.CreatedAt).Hours() / 24)
	if days < 1 {
		days = 1
	}
	rate := int(math.Round(100 * float64(n) / float64(days)))
	if rate > 100 {
		return 100
	}
	return rate
}

func (s *Service) HabitStats(ctx context.Context, userID string) ([]HabitStat, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	templates, err := s.stores.Templates.List(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var out []HabitStat
	for _, summary := range templates {
		if !summary.IsHabit {
			continue
		}
		t, err := s.stores.Templates.Get(ctx, userID, summary.ID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		out = append(out, HabitStat{
			TemplateID:       t.ID,
			Title:            t.Title,
			Streak:           t.HabitStreak,
			CompletionRate:   HabitCompletionRate(t, now),
			LastCompleted:    t.HabitLastCompletedDate,
			TotalCompletions: len(t.HabitCompletionHistory),
		})
	}
	return out, nil
}
