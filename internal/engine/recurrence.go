package engine

import (
	"context"
	"errors"
	"time"

	"levelup/internal/storage"
)

// IsDue reports whether an active template should spawn a quest on now's
// calendar day. Weekdays use Monday=1 ... Sunday=7.
func IsDue(t *storage.QuestTemplate, now time.Time, loc *time.Location) bool {
	if !t.IsActive {
		return false
	}
	if t.LastGeneratedDate != nil && daysBetween(*t.LastGeneratedDate, now, loc) <= 0 {
		return false
	}

	switch RecurrenceType(t.RecurrenceType) {
	case RecurDaily:
		return true
	case RecurSpecificDays, RecurWeekly:
		today := isoWeekday(now.In(loc))
		for _, d := range t.Weekdays {
			if d == today {
				return true
			}
		}
		return false
	case RecurInterval:
		if t.LastGeneratedDate == nil {
			return true
		}
		every := t.CustomDays
		if every < 1 {
			every = 1
		}
		return daysBetween(*t.LastGeneratedDate, now, loc) >= every
	default:
		return false
	}
}

// QuestFromTemplate seeds a quest instance from a template.
func QuestFromTemplate(t *storage.QuestTemplate, now time.Time) *storage.Quest {
	id := t.ID
	var skill *string
	if t.SkillCategory != nil {
		v := *t.SkillCategory
		skill = &v
	}
	return &storage.Quest{
		UserID:               t.UserID,
		Title:                t.Title,
		Description:          t.Description,
		StatType:             t.StatType,
		SkillCategory:        skill,
		Difficulty:           t.Difficulty,
		TimeEstimatedMinutes: t.TimeMinutes,
		TimerState:           string(TimerNotStarted),
		XPReward:             TemplateXPReward(Difficulty(t.Difficulty)),
		DateCreated:          now.UTC(),
		TemplateID:           &id,
		IsTemplateInstance:   true,
	}
}

// GenerateDueQuests creates today's instances for every due template of the
// user. Each template is claimed for the day in the same transaction that
// inserts its quest, so repeated calls on one day generate nothing new.
func (s *Service) GenerateDueQuests(ctx context.Context, userID string) ([]storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	key := s.generatedKey(userID, now)
	if s.generated.Contains(key) {
		return nil, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	templates, err := s.stores.Templates.List(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	var created []storage.Quest
	dayStart := startOfDay(now)
	for i := range templates {
		t := &templates[i]
		if !IsDue(t, now, s.loc) {
			continue
		}
		q := QuestFromTemplate(t, now)
		err := s.inTx(ctx, func(st Stores) error {
			if err := st.Templates.ClaimGeneration(ctx, userID, t.ID, dayStart, now); err != nil {
				return err
			}
			return st.Quests.Insert(ctx, q)
		})
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, *q)
		s.log.Debugw("recurring quest generated", "userID", userID, "templateID", t.ID, "questID", q.ID)
	}

	s.generated.Add(key, struct{}{})
	if len(created) > 0 {
		s.log.Infow("recurring quests generated", "userID", userID, "count", len(created))
	}
	return created, nil
}

func (s *Service) generatedKey(userID string, now time.Time) string {
	return userID + "|" + now.In(s.loc).Format("2006-01-02")
}

// forgetGenerated drops today's marker so the next read rescans templates.
func (s *Service) forgetGenerated(userID string) {
	s.generated.Remove(s.generatedKey(userID, s.clock()))
}
