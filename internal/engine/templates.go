package engine

import (
	"context"
	"sort"
	"strings"

	"levelup/internal/storage"
)

type TemplateInput struct {
	Title          string
	Description    string
	TimeMinutes    int
	Difficulty     Difficulty
	StatType       StatType
	SkillCategory  SkillName
	RecurrenceType RecurrenceType
	Weekdays       []int // Monday=1 ... Sunday=7
	CustomDays     int
	IsHabit        bool
}

func validateTemplate(in TemplateInput) (*storage.QuestTemplate, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if in.TimeMinutes <= 0 {
		return nil, invalid("timeMinutes", "must be positive")
	}
	if !in.Difficulty.IsValid() {
		return nil, invalid("difficulty", "must be between 1 and 5")
	}
	if !in.StatType.IsValid() {
		return nil, invalid("statType", "unknown stat "+string(in.StatType))
	}
	skill, err := optionalSkill(in.SkillCategory)
	if err != nil {
		return nil, err
	}
	recur, err := ParseRecurrenceType(string(in.RecurrenceType))
	if err != nil {
		return nil, err
	}

	var weekdays []int
	switch recur {
	case RecurSpecificDays, RecurWeekly:
		seen := map[int]bool{}
		for _, d := range in.Weekdays {
			if d < 1 || d > 7 {
				return nil, invalid("weekdays", "days must be 1 (Monday) to 7 (Sunday)")
			}
			if !seen[d] {
				seen[d] = true
				weekdays = append(weekdays, d)
			}
		}
		if len(weekdays) == 0 {
			return nil, invalid("weekdays", "at least one day is required")
		}
		sort.Ints(weekdays)
	case RecurInterval:
		if in.CustomDays < 1 {
			return nil, invalid("customDays", "must be at least 1")
		}
	}

	return &storage.QuestTemplate{
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		TimeMinutes:    in.TimeMinutes,
		Difficulty:     int(in.Difficulty),
		StatType:       string(in.StatType),
		SkillCategory:  skill,
		RecurrenceType: string(recur),
		Weekdays:       weekdays,
		CustomDays:     in.CustomDays,
		IsActive:       true,
		IsHabit:        in.IsHabit,
	}, nil
}

func (s *Service) CreateTemplate(ctx context.Context, userID string, in TemplateInput) (*storage.QuestTemplate, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	t, err := validateTemplate(in)
	if err != nil {
		return nil, err
	}
	t.UserID = userID
	t.CreatedAt = s.clock().UTC()

	unlock := s.lockUser(userID)
	defer unlock()
	if err := s.stores.Templates.Insert(ctx, t); err != nil {
		return nil, err
	}
	s.forgetGenerated(userID)
	return t, nil
}

// UpdateTemplate replaces a template's rule and seed fields. Generation and
// habit history are kept.
func (s *Service) UpdateTemplate(ctx context.Context, userID string, id int64, in TemplateInput) (*storage.QuestTemplate, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	cur, err := s.GetTemplate(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	next, err := validateTemplate(in)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	next.ID = cur.ID
	next.UserID = userID
	next.IsActive = cur.IsActive
	next.CreatedAt = cur.CreatedAt
	next.LastGeneratedDate = cur.LastGeneratedDate
	next.HabitStreak = cur.HabitStreak
	next.HabitLastCompletedDate = cur.HabitLastCompletedDate
	next.HabitCompletionHistory = cur.HabitCompletionHistory
	if err := s.stores.Templates.Update(ctx, next); err != nil {
		return nil, err
	}
	s.forgetGenerated(userID)
	return next, nil
}

func (s *Service) GetTemplate(ctx context.Context, userID string, id int64) (*storage.QuestTemplate, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	t, err := s.stores.Templates.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, notFound("template", id)
	}
	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context, userID string, activeOnly bool) ([]storage.QuestTemplate, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	return s.stores.Templates.List(ctx, userID, activeOnly)
}

// ToggleTemplate flips is_active and returns the updated template.
func (s *Service) ToggleTemplate(ctx context.Context, userID string, id int64) (*storage.QuestTemplate, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	t, err := s.GetTemplate(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	t.IsActive = !t.IsActive
	if err := s.stores.Templates.Update(ctx, t); err != nil {
		return nil, err
	}
	s.forgetGenerated(userID)
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, userID string, id int64) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	ok, err := s.stores.Templates.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("template", id)
	}
	return nil
}
