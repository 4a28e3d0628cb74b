package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"levelup/internal/storage"
)

const weekdayWindowDays = 30

type HourCount struct {
	Hour  int
	Count int
}

// CompletionHours is a histogram of completions by local hour of day.
type CompletionHours struct {
	Distribution   [24]int
	Best           []HourCount // up to three busiest hours, busiest first
	Recommendation string
}

type WeekdayCount struct {
	Weekday time.Weekday
	Count   int
}

// WeekdayPattern counts recent completions per weekday, busiest first.
type WeekdayPattern struct {
	Days  []WeekdayCount
	Most  WeekdayCount
	Least WeekdayCount
}

type DifficultyStats struct {
	Difficulty     Difficulty
	Completed      int
	TotalMinutes   int
	AverageMinutes int
}

type StatValue struct {
	Stat StatType
	XP   int
}

// StatBalance summarizes how evenly XP is spread over the stat buckets.
type StatBalance struct {
	Stats          []StatValue
	Total          int
	Average        int
	MostDeveloped  StatType
	LeastDeveloped StatType
	StdDev         float64
	Rating         string
}

type PeriodProgress struct {
	Since           time.Time
	QuestsCompleted int
	XPEarned        int
}

type ProductivityReport struct {
	Hours        CompletionHours
	Weekdays     WeekdayPattern
	ByDifficulty []DifficultyStats
	Balance      StatBalance
	Week         PeriodProgress
	Month        PeriodProgress
}

// ProductivityDashboard analyses the user's completed quests and stat spread.
func (s *Service) ProductivityDashboard(ctx context.Context, userID string) (*ProductivityReport, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}

	now := s.clock().In(s.loc)
	weekStart := startOfISOWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	done := true

	var (
		completed []storage.Quest
		player    *storage.Player
		week      []storage.Quest
		month     []storage.Quest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		completed, err = s.stores.Quests.List(gctx, userID, storage.QuestFilter{Completed: &done})
		return err
	})
	g.Go(func() error {
		var err error
		player, err = s.GetPlayer(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		week, err = s.stores.Quests.List(gctx, userID, storage.QuestFilter{Completed: &done, CompletedSince: &weekStart})
		return err
	})
	g.Go(func() error {
		var err error
		month, err = s.stores.Quests.List(gctx, userID, storage.QuestFilter{Completed: &done, CompletedSince: &monthStart})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ProductivityReport{
		Hours:        BestCompletionHours(completed),
		Weekdays:     RecentWeekdayPattern(completed, now.AddDate(0, 0, -weekdayWindowDays), s.loc),
		ByDifficulty: QuestsByDifficulty(completed),
		Balance:      StatBalanceOf(player),
		Week:         PeriodProgressOf(week, weekStart),
		Month:        PeriodProgressOf(month, monthStart),
	}, nil
}

// BestCompletionHours buckets quests by their recorded completion hour.
// Quests without one are ignored.
func BestCompletionHours(quests []storage.Quest) CompletionHours {
	var out CompletionHours
	for i := range quests {
		h := quests[i].CompletionTimeOfDay
		if h == nil || *h < 0 || *h > 23 {
			continue
		}
		out.Distribution[*h]++
	}
	for hour, n := range out.Distribution {
		if n > 0 {
			out.Best = append(out.Best, HourCount{Hour: hour, Count: n})
		}
	}
	sort.SliceStable(out.Best, func(i, j int) bool { return out.Best[i].Count > out.Best[j].Count })
	if len(out.Best) > 3 {
		out.Best = out.Best[:3]
	}
	if len(out.Best) > 0 {
		out.Recommendation = hourRecommendation(out.Best[0].Hour)
	}
	return out
}

func hourRecommendation(hour int) string {
	part := "evening"
	switch {
	case hour < 12:
		part = "morning"
	case hour < 17:
		part = "afternoon"
	}
	return fmt.Sprintf("You're most productive in the %s (%02d:00)", part, hour)
}

// RecentWeekdayPattern counts completions at or after since per local weekday.
// Ties keep Monday-first order.
func RecentWeekdayPattern(quests []storage.Quest, since time.Time, loc *time.Location) WeekdayPattern {
	counts := map[time.Weekday]int{}
	for i := range quests {
		at := quests[i].DateCompleted
		if at == nil || at.Before(since) {
			continue
		}
		counts[at.In(loc).Weekday()]++
	}
	days := make([]WeekdayCount, 0, 7)
	for iso := 1; iso <= 7; iso++ {
		wd := time.Weekday(iso % 7)
		days = append(days, WeekdayCount{Weekday: wd, Count: counts[wd]})
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Count > days[j].Count })
	return WeekdayPattern{Days: days, Most: days[0], Least: days[len(days)-1]}
}

// QuestsByDifficulty reports count and time per difficulty. Time is the
// measured duration when the quest was timed, else the estimate.
func QuestsByDifficulty(quests []storage.Quest) []DifficultyStats {
	out := make([]DifficultyStats, 0, int(DifficultyEpic))
	for d := DifficultyTrivial; d <= DifficultyEpic; d++ {
		st := DifficultyStats{Difficulty: d}
		for i := range quests {
			q := &quests[i]
			if q.Difficulty != int(d) {
				continue
			}
			st.Completed++
			if q.TimeActualMinutes != nil {
				st.TotalMinutes += *q.TimeActualMinutes
			} else {
				st.TotalMinutes += q.TimeEstimatedMinutes
			}
		}
		if st.Completed > 0 {
			st.AverageMinutes = int(math.Round(float64(st.TotalMinutes) / float64(st.Completed)))
		}
		out = append(out, st)
	}
	return out
}

// StatBalanceOf rates the spread of the five stat buckets by their standard
// deviation: under 100 Excellent, under 300 Good, under 500 Fair, else Unbalanced.
func StatBalanceOf(p *storage.Player) StatBalance {
	var b StatBalance
	if p == nil {
		return b
	}
	for _, stat := range AllStats {
		v := StatXP(p, stat)
		b.Stats = append(b.Stats, StatValue{Stat: stat, XP: v})
		b.Total += v
	}
	avg := float64(b.Total) / float64(len(AllStats))
	b.Average = int(math.Round(avg))

	most, least := b.Stats[0], b.Stats[0]
	var variance float64
	for _, sv := range b.Stats {
		if sv.XP > most.XP {
			most = sv
		}
		if sv.XP < least.XP {
			least = sv
		}
		d := float64(sv.XP) - avg
		variance += d * d
	}
	b.MostDeveloped = most.Stat
	b.LeastDeveloped = least.Stat
	b.StdDev = math.Sqrt(variance / float64(len(b.Stats)))
	b.Rating = balanceRating(b.StdDev)
	return b
}

func balanceRating(stdDev float64) string {
	switch {
	case stdDev < 100:
		return "Excellent"
	case stdDev < 300:
		return "Good"
	case stdDev < 500:
		return "Fair"
	default:
		return "Unbalanced"
	}
}

// PeriodProgressOf totals completions and earned XP; quests completed before
// XP was recorded count their reward.
func PeriodProgressOf(quests []storage.Quest, since time.Time) PeriodProgress {
	p := PeriodProgress{Since: since}
	for i := range quests {
		q := &quests[i]
		p.QuestsCompleted++
		if q.XPEarned != nil {
			p.XPEarned += *q.XPEarned
		} else {
			p.XPEarned += q.XPReward
		}
	}
	return p
}

func startOfISOWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}
