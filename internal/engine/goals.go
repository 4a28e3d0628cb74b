package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"levelup/internal/storage"
)

type CreateGoalInput struct {
	Title       string
	Description string
	Type        GoalType
	StatType    StatType // StatTotal or a stat bucket
	Unit        GoalUnit
	TargetValue int
	StartDate   time.Time
	EndDate     time.Time
	Milestones  []storage.Milestone
}

func (s *Service) CreateGoal(ctx context.Context, userID string, in CreateGoalInput) (*storage.Goal, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if _, err := ParseGoalType(string(in.Type)); err != nil {
		return nil, err
	}
	if _, err := ParseGoalUnit(string(in.Unit)); err != nil {
		return nil, err
	}
	stat := in.StatType
	if stat == "" {
		stat = StatTotal
	}
	if stat != StatTotal && !stat.IsValid() {
		return nil, invalid("statType", fmt.Sprintf("unknown stat %q", in.StatType))
	}
	if in.TargetValue <= 0 {
		return nil, invalid("targetValue", "must be positive")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, invalid("dates", "start and end are required")
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, invalid("dates", "end is before start")
	}

	milestones := make([]storage.Milestone, 0, len(in.Milestones))
	for _, m := range in.Milestones {
		if m.Value <= 0 {
			return nil, invalid("milestones", "values must be positive")
		}
		label := strings.TrimSpace(m.Label)
		if label == "" {
			label = fmt.Sprintf("%d %s", m.Value, in.Unit)
		}
		milestones = append(milestones, storage.Milestone{Value: m.Value, Label: label})
	}
	sort.SliceStable(milestones, func(i, j int) bool { return milestones[i].Value < milestones[j].Value })

	g := &storage.Goal{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Type:        string(in.Type),
		StatType:    string(stat),
		TargetValue: in.TargetValue,
		Unit:        string(in.Unit),
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Milestones:  milestones,
	}
	if err := s.stores.Goals.Insert(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) GetGoal(ctx context.Context, userID string, id int64) (*storage.Goal, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	g, err := s.stores.Goals.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, notFound("goal", id)
	}
	return g, nil
}

type GoalFilter struct {
	Type      GoalType
	StatType  StatType
	Completed *bool
}

func (s *Service) ListGoals(ctx context.Context, userID string, f GoalFilter) ([]storage.Goal, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	all, err := s.stores.Goals.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []storage.Goal
	for _, g := range all {
		if f.Type != "" && g.Type != string(f.Type) {
			continue
		}
		if f.StatType != "" && g.StatType != string(f.StatType) {
			continue
		}
		if f.Completed != nil && g.IsCompleted != *f.Completed {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// ActiveGoals returns open goals whose window contains now.
func (s *Service) ActiveGoals(ctx context.Context, userID string) ([]storage.Goal, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	return s.stores.Goals.ListActive(ctx, userID, s.clock())
}

func (s *Service) DeleteGoal(ctx context.Context, userID string, id int64) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	ok, err := s.stores.Goals.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("goal", id)
	}
	return nil
}

// GoalPeriod returns the calendar month or year containing now in loc.
// Custom goals have no implied period and report ok=false.
func GoalPeriod(t GoalType, now time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	switch t {
	case GoalMonthly:
		start = time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	case GoalYearly:
		start = time.Date(n.Year(), time.January, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	default:
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// GoalProgressPercent is current/target as a 0-100 integer.
func GoalProgressPercent(g *storage.Goal) int {
	if g == nil || g.TargetValue <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(g.CurrentValue) / float64(g.TargetValue)))
	if pct > 100 {
		return 100
	}
	return pct
}

// ApplyGoalProgress sets the goal's value and returns the achievements it
// newly earned. Every unreached milestone at or below newValue is marked
// reached, and the goal completes once newValue meets the target. Reached
// milestones and completion are never undone.
func ApplyGoalProgress(g *storage.Goal, newValue int, now time.Time) []storage.GoalAchievement {
	g.CurrentValue = newValue
	at := now.UTC()

	var earned []storage.GoalAchievement
	for i := range g.Milestones {
		m := &g.Milestones[i]
		if m.Reached || newValue < m.Value {
			continue
		}
		m.Reached = true
		reachedAt := at
		m.ReachedAt = &reachedAt
		earned = append(earned, storage.GoalAchievement{
			GoalID:         g.ID,
			Title:          fmt.Sprintf("%s Milestone Reached!", m.Label),
			Description:    fmt.Sprintf("You've reached %d %s for %q", m.Value, g.Unit, g.Title),
			UnlockedAt:     at,
			MilestoneValue: m.Value,
		})
	}

	if newValue >= g.TargetValue && !g.IsCompleted {
		g.IsCompleted = true
		completedAt := at
		g.CompletedAt = &completedAt
		earned = append(earned, storage.GoalAchievement{
			GoalID:         g.ID,
			Title:          fmt.Sprintf("🏆 Goal Completed: %s", g.Title),
			Description:    fmt.Sprintf("Congratulations! You've completed your %s goal!", g.Type),
			UnlockedAt:     at,
			MilestoneValue: g.TargetValue,
		})
	}
	g.Achievements = append(g.Achievements, earned...)
	return earned
}

// SyncGoals recomputes every active goal from the current player and quest data.
func (s *Service) SyncGoals(ctx context.Context, userID string) (int, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return 0, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	var n int
	err = s.inTx(ctx, func(st Stores) error {
		p, err := s.loadPlayer(ctx, st, userID)
		if err != nil {
			return err
		}
		n, err = s.syncGoals(ctx, st, userID, p, s.clock())
		return err
	})
	return n, err
}

// syncGoals updates active goals against the given player snapshot and
// returns how many changed.
func (s *Service) syncGoals(ctx context.Context, st Stores, userID string, p *storage.Player, now time.Time) (int, error) {
	goals, err := st.Goals.ListActive(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range goals {
		g := &goals[i]
		newValue, err := s.goalValue(ctx, st, userID, g, p)
		if err != nil {
			return changed, fmt.Errorf("goal %d: %w", g.ID, err)
		}
		if newValue == g.CurrentValue {
			continue
		}

		earned := ApplyGoalProgress(g, newValue, now)
		if err := st.Goals.Update(ctx, g); err != nil {
			return changed, fmt.Errorf("goal %d: %w", g.ID, err)
		}
		if len(earned) > 0 {
			if err := st.Goals.AppendAchievements(ctx, g.ID, earned); err != nil {
				return changed, fmt.Errorf("goal %d: %w", g.ID, err)
			}
			for _, a := range earned {
				s.log.Infow("goal achievement", "userID", userID, "goalID", g.ID, "title", a.Title)
			}
		}
		changed++
	}
	return changed, nil
}

func (s *Service) goalValue(ctx context.Context, st Stores, userID string, g *storage.Goal, p *storage.Player) (int, error) {
	stat := StatType(g.StatType)
	switch GoalUnit(g.Unit) {
	case UnitXP:
		return StatXP(p, stat), nil
	case UnitQuests:
		filter := ""
		if stat != StatTotal && stat != "" {
			filter = string(stat)
		}
		return st.Quests.CountCompleted(ctx, userID, filter, g.StartDate)
	case UnitStreak:
		return p.CurrentStreak, nil
	default:
		return g.CurrentValue, nil
	}
}
