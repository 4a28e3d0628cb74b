package engine

import (
	"context"
	"errors"
	"time"

	"levelup/internal/storage"
)

type SkillDef struct {
	Name        SkillName
	Description string
	Icon        string
	Color       string
}

type PerkDef struct {
	Name          string
	Description   string
	Skill         SkillName
	LevelRequired int
	Icon          string
	FeatureKey    string
}

func builtinSkills() []SkillDef {
	return []SkillDef{
		{SkillCoding, "Programming and technical skills", "💻", "#3498DB"},
		{SkillFitness, "Physical health and exercise", "💪", "#E74C3C"},
		{SkillCommunication, "Social skills and networking", "✨", "#E91E63"},
		{SkillDiscipline, "Consistency and habit building", "🎯", "#9B59B6"},
		{SkillLearning, "Knowledge acquisition and growth", "🧠", "#F39C12"},
	}
}

func builtinPerks() []PerkDef {
	return []PerkDef{
		{"Code Sprint", "2x XP for coding quests on weekends", SkillCoding, 5, "⚡", "code_sprint"},
		{"Deep Work Mode", "Distraction-free coding sessions with a Pomodoro timer", SkillCoding, 10, "🧘", "deep_work_mode"},
		{"Mentor Mode", "Create coding challenges for others", SkillCoding, 15, "👨‍🏫", "mentor_mode"},

		{"Iron Will", "Streak protection: one missed day won't break a streak", SkillFitness, 5, "🛡️", "iron_will"},
		{"Beast Mode", "2x difficulty quests with 3x rewards", SkillFitness, 10, "🦁", "beast_mode"},
		{"Recovery Master", "Rest day scheduling without penalty", SkillFitness, 15, "😴", "recovery_master"},

		{"Networker", "Social quest templates", SkillCommunication, 5, "🤝", "networker"},
		{"Influencer", "Quest sharing and leaderboards", SkillCommunication, 10, "📢", "influencer"},
		{"Mentor", "Guide other players", SkillCommunication, 15, "🌟", "mentor"},

		{"Hard Mode", "Penalty system for failed quests", SkillDiscipline, 5, "⚔️", "hard_mode"},
		{"Consistency King", "Weekly quest chains with bonus rewards", SkillDiscipline, 10, "👑", "consistency_king"},
		{"Shadow Mode", "Stealth mode, hidden from leaderboards", SkillDiscipline, 15, "🥷", "shadow_mode"},

		{"Quick Learner", "XP bonus for completing quests early", SkillLearning, 5, "⏱️", "quick_learner"},
		{"Knowledge Base", "Quest notes and reflection journal", SkillLearning, 10, "📚", "knowledge_base"},
		{"Master Teacher", "Create custom quest templates", SkillLearning, 15, "🎓", "master_teacher"},
	}
}

// EnsureProgressionDefaults creates the skill set and perk catalog for the
// user. Rows that already exist are left untouched.
func (s *Service) EnsureProgressionDefaults(ctx context.Context, userID string) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(st Stores) error {
		return ensureDefaults(ctx, st, userID)
	})
}

func ensureDefaults(ctx context.Context, st Stores, userID string) error {
	var skills []storage.Skill
	for _, d := range builtinSkills() {
		skills = append(skills, storage.Skill{Name: string(d.Name), Description: d.Description, Icon: d.Icon, Color: d.Color})
	}
	if err := st.Skills.InsertDefaults(ctx, userID, skills); err != nil {
		return err
	}

	var perks []storage.Perk
	for _, d := range builtinPerks() {
		perks = append(perks, storage.Perk{
			Name:          d.Name,
			Description:   d.Description,
			SkillRequired: string(d.Skill),
			LevelRequired: d.LevelRequired,
			Icon:          d.Icon,
			FeatureKey:    d.FeatureKey,
		})
	}
	return st.Perks.InsertDefaults(ctx, userID, perks)
}

// SkillResult describes what a skill XP award did.
type SkillResult struct {
	Skill     storage.Skill
	LeveledUp bool
	OldLevel  int
	NewLevel  int
	NewPerks  []storage.Perk
}

// ApplySkillXP adds amount to the skill and recomputes its level and
// in-level progress. It reports the level before the award.
func ApplySkillXP(sk *storage.Skill, amount int) (oldLevel int) {
	oldLevel = sk.CurrentLevel
	sk.TotalXP += amount
	sk.CurrentLevel = SkillLevel(sk.TotalXP)
	sk.CurrentXP = SkillCurrentXP(sk.CurrentLevel, sk.TotalXP)
	return oldLevel
}

// awardSkillXP credits a skill and unlocks every still-locked perk the new
// level qualifies for.
func (s *Service) awardSkillXP(ctx context.Context, st Stores, userID string, name SkillName, amount int, now time.Time) (*SkillResult, error) {
	sk, err := st.Skills.GetByName(ctx, userID, string(name))
	if err != nil {
		return nil, err
	}
	if sk == nil {
		if err := ensureDefaults(ctx, st, userID); err != nil {
			return nil, err
		}
		if sk, err = st.Skills.GetByName(ctx, userID, string(name)); err != nil {
			return nil, err
		}
		if sk == nil {
			return nil, &NotFoundError{Entity: "skill " + string(name)}
		}
	}

	oldLevel := ApplySkillXP(sk, amount)
	if err := st.Skills.Update(ctx, sk); err != nil {
		return nil, err
	}

	res := &SkillResult{
		Skill:     *sk,
		LeveledUp: sk.CurrentLevel > oldLevel,
		OldLevel:  oldLevel,
		NewLevel:  sk.CurrentLevel,
	}
	if !res.LeveledUp {
		return res, nil
	}

	locked, err := st.Perks.ListLockedUpTo(ctx, userID, string(name), sk.CurrentLevel)
	if err != nil {
		return nil, err
	}
	for _, p := range locked {
		if err := st.Perks.Unlock(ctx, userID, p.ID, now); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return nil, err
		}
		p.IsUnlocked = true
		at := now.UTC()
		p.UnlockedAt = &at
		res.NewPerks = append(res.NewPerks, p)
	}
	return res, nil
}

// AwardSkillXP credits a skill outside of quest completion.
func (s *Service) AwardSkillXP(ctx context.Context, userID string, name SkillName, amount int) (*SkillResult, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if !name.IsValid() {
		return nil, invalid("skill", string(name))
	}
	if amount < 0 {
		return nil, invalid("amount", "must not be negative")
	}
	unlock := s.lockUser(userID)
	defer unlock()

	var res *SkillResult
	err = s.inTx(ctx, func(st Stores) error {
		r, err := s.awardSkillXP(ctx, st, userID, name, amount, s.clock())
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) ListSkills(ctx context.Context, userID string) ([]storage.Skill, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureProgressionDefaults(ctx, userID); err != nil {
		return nil, err
	}
	return s.stores.Skills.List(ctx, userID)
}

func (s *Service) GetSkill(ctx context.Context, userID string, name SkillName) (*storage.Skill, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureProgressionDefaults(ctx, userID); err != nil {
		return nil, err
	}
	sk, err := s.stores.Skills.GetByName(ctx, userID, string(name))
	if err != nil {
		return nil, err
	}
	if sk == nil {
		return nil, &NotFoundError{Entity: "skill " + string(name)}
	}
	return sk, nil
}

// ListPerks returns the catalog, optionally restricted to one skill.
func (s *Service) ListPerks(ctx context.Context, userID string, skill SkillName) ([]storage.Perk, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureProgressionDefaults(ctx, userID); err != nil {
		return nil, err
	}
	if skill == "" {
		return s.stores.Perks.List(ctx, userID)
	}
	return s.stores.Perks.ListBySkill(ctx, userID, string(skill))
}

func (s *Service) UnlockedPerks(ctx context.Context, userID string) ([]storage.Perk, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	return s.stores.Perks.ListUnlocked(ctx, userID)
}

// FeatureUnlocked reports whether the perk gating featureKey is unlocked.
func (s *Service) FeatureUnlocked(ctx context.Context, userID, featureKey string) (bool, error) {
	perks, err := s.UnlockedPerks(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perks {
		if p.FeatureKey == featureKey {
			return true, nil
		}
	}
	return false, nil
}
