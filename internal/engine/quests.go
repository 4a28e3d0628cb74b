package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"levelup/internal/storage"
)

type CreateQuestInput struct {
	Title            string
	Description      string
	StatType         StatType
	SkillCategory    SkillName // optional
	Difficulty       Difficulty
	EstimatedMinutes int
	Deadline         *time.Time
	XPReward         int // 0 means derive from difficulty and estimate
}

func (s *Service) CreateQuest(ctx context.Context, userID string, in CreateQuestInput) (*storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if !in.StatType.IsValid() {
		return nil, invalid("statType", "unknown stat "+string(in.StatType))
	}
	if !in.Difficulty.IsValid() {
		return nil, invalid("difficulty", "must be between 1 and 5")
	}
	if in.EstimatedMinutes <= 0 {
		return nil, invalid("estimatedMinutes", "must be positive")
	}
	if in.XPReward < 0 {
		return nil, invalid("xpReward", "must not be negative")
	}
	skill, err := optionalSkill(in.SkillCategory)
	if err != nil {
		return nil, err
	}

	reward := in.XPReward
	if reward == 0 {
		reward = DefaultXPReward(in.Difficulty, in.EstimatedMinutes)
	}

	q := &storage.Quest{
		UserID:               userID,
		Title:                title,
		Description:          strings.TrimSpace(in.Description),
		StatType:             string(in.StatType),
		SkillCategory:        skill,
		Difficulty:           int(in.Difficulty),
		TimeEstimatedMinutes: in.EstimatedMinutes,
		TimerState:           string(TimerNotStarted),
		Deadline:             utcPtr(in.Deadline),
		XPReward:             reward,
		DateCreated:          s.clock().UTC(),
	}
	if err := s.stores.Quests.Insert(ctx, q); err != nil {
		return nil, err
	}
	s.log.Debugw("quest created", "userID", userID, "questID", q.ID, "xpReward", reward)
	return q, nil
}

func (s *Service) GetQuest(ctx context.Context, userID string, id int64) (*storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	q, err := s.stores.Quests.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, notFound("quest", id)
	}
	return q, nil
}

type QuestFilter struct {
	Completed   *bool
	StatType    StatType
	Skill       SkillName
	TemplateID  *int64
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
}

// ListQuests materializes due recurring quests and flags overdue ones before reading.
func (s *Service) ListQuests(ctx context.Context, userID string, f QuestFilter) ([]storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, userID); err != nil {
		return nil, err
	}
	return s.stores.Quests.List(ctx, userID, storage.QuestFilter{
		Completed:     f.Completed,
		StatType:      string(f.StatType),
		SkillCategory: string(f.Skill),
		TemplateID:    f.TemplateID,
		CreatedFrom:   f.CreatedFrom,
		CreatedBefore: f.CreatedTo,
		Limit:         f.Limit,
	})
}

// TodayQuests returns quests created on the current calendar day.
func (s *Service) TodayQuests(ctx context.Context, userID string) ([]storage.Quest, error) {
	now := s.clock()
	from := startOfDay(now)
	to := from.AddDate(0, 0, 1)
	return s.ListQuests(ctx, userID, QuestFilter{CreatedFrom: &from, CreatedTo: &to})
}

// OverdueQuests flags open quests past their deadline and returns them, earliest deadline first.
func (s *Service) OverdueQuests(ctx context.Context, userID string) ([]storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, userID); err != nil {
		return nil, err
	}
	open := false
	qs, err := s.stores.Quests.List(ctx, userID, storage.QuestFilter{Completed: &open, OverdueOnly: true})
	if err != nil {
		return nil, err
	}
	sortByDeadline(qs)
	return qs, nil
}

// DueSoonQuests returns open quests due within the next 24 hours.
func (s *Service) DueSoonQuests(ctx context.Context, userID string) ([]storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	until := now.Add(24 * time.Hour)
	open := false
	qs, err := s.stores.Quests.List(ctx, userID, storage.QuestFilter{
		Completed:      &open,
		DeadlineAfter:  &now,
		DeadlineBefore: &until,
	})
	if err != nil {
		return nil, err
	}
	sortByDeadline(qs)
	return qs, nil
}

// CompletedCount counts completed quests, optionally for one stat.
func (s *Service) CompletedCount(ctx context.Context, userID string, stat StatType) (int, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return 0, err
	}
	filter := ""
	if stat != "" && stat != StatTotal {
		filter = string(stat)
	}
	return s.stores.Quests.CountCompleted(ctx, userID, filter, time.Time{})
}

// UpdateQuestInput holds optional edits; nil fields are left unchanged.
type UpdateQuestInput struct {
	Title            *string
	Description      *string
	StatType         *StatType
	SkillCategory    *SkillName // pointer to "" clears it
	Difficulty       *Difficulty
	EstimatedMinutes *int
	Deadline         *time.Time
	ClearDeadline    bool
	XPReward         *int
}

// UpdateQuest edits an open quest. Changing difficulty or estimate re-derives
// the reward unless one is given explicitly.
func (s *Service) UpdateQuest(ctx context.Context, userID string, id int64, in UpdateQuestInput) (*storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	q, err := s.stores.Quests.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, notFound("quest", id)
	}
	if q.IsCompleted {
		return nil, &InvalidTransitionError{Entity: "quest", ID: id, From: string(TimerCompleted), Action: "edit"}
	}

	rederive := false
	if in.Title != nil {
		if q.Title, err = normalizeTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		q.Description = strings.TrimSpace(*in.Description)
	}
	if in.StatType != nil {
		if !in.StatType.IsValid() {
			return nil, invalid("statType", "unknown stat "+string(*in.StatType))
		}
		q.StatType = string(*in.StatType)
	}
	if in.SkillCategory != nil {
		if q.SkillCategory, err = optionalSkill(*in.SkillCategory); err != nil {
			return nil, err
		}
	}
	if in.Difficulty != nil {
		if !in.Difficulty.IsValid() {
			return nil, invalid("difficulty", "must be between 1 and 5")
		}
		q.Difficulty = int(*in.Difficulty)
		rederive = true
	}
	if in.EstimatedMinutes != nil {
		if *in.EstimatedMinutes <= 0 {
			return nil, invalid("estimatedMinutes", "must be positive")
		}
		q.TimeEstimatedMinutes = *in.EstimatedMinutes
		rederive = true
	}
	if in.ClearDeadline {
		q.Deadline = nil
		q.IsOverdue = false
	} else if in.Deadline != nil {
		q.Deadline = utcPtr(in.Deadline)
		q.IsOverdue = q.Deadline.Before(s.clock())
	}
	switch {
	case in.XPReward != nil:
		if *in.XPReward < 0 {
			return nil, invalid("xpReward", "must not be negative")
		}
		q.XPReward = *in.XPReward
	case rederive:
		q.XPReward = DefaultXPReward(Difficulty(q.Difficulty), q.TimeEstimatedMinutes)
	}

	if err := s.stores.Quests.UpdateDetails(ctx, q); err != nil {
		return nil, conflictAsTransition(err, "quest", id, string(TimerCompleted), "edit")
	}
	return q, nil
}

func (s *Service) DeleteQuest(ctx context.Context, userID string, id int64) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	ok, err := s.stores.Quests.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("quest", id)
	}
	return nil
}

// refresh runs the lazy, read-path maintenance: recurring generation and overdue marking.
func (s *Service) refresh(ctx context.Context, userID string) error {
	if _, err := s.GenerateDueQuests(ctx, userID); err != nil {
		return err
	}
	n, err := s.stores.Quests.MarkOverdue(ctx, userID, s.clock())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Debugw("quests marked overdue", "userID", userID, "count", n)
	}
	return nil
}

func optionalSkill(name SkillName) (*string, error) {
	if name == "" {
		return nil, nil
	}
	canonical, err := ParseSkillName(string(name))
	if err != nil {
		return nil, err
	}
	v := string(canonical)
	return &v, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func sortByDeadline(qs []storage.Quest) {
	sort.SliceStable(qs, func(i, j int) bool {
		a, b := qs[i].Deadline, qs[j].Deadline
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})
}
