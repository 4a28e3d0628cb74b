package engine

import (
	"context"
	"fmt"

	"levelup/internal/storage"
)

// Achievement represents a badge the player can earn.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Earned      bool
}

// AchievementChecker calculates which achievements the player has earned.
type AchievementChecker struct {
	player          *storage.Player
	skills          []storage.Skill
	perks           []storage.Perk
	templates       []storage.QuestTemplate
	completedQuests int
}

func NewAchievementChecker(player *storage.Player, skills []storage.Skill, perks []storage.Perk, templates []storage.QuestTemplate, completedQuests int) *AchievementChecker {
	return &AchievementChecker{
		player:          player,
		skills:          skills,
		perks:           perks,
		templates:       templates,
		completedQuests: completedQuests,
	}
}

// GetAchievements returns all achievements with their earned status.
func (c *AchievementChecker) GetAchievements() []Achievement {
	achievements := []Achievement{
		// Level milestones
		c.levelAchievement("first_steps", "First Steps", "Reach level 1", "🌱", 1),
		c.levelAchievement("getting_started", "Getting Started", "Reach level 3", "🌿", 3),
		c.levelAchievement("on_the_path", "On the Path", "Reach level 5", "🌳", 5),
		c.levelAchievement("seasoned", "Seasoned Hunter", "Reach level 10", "⭐", 10),
		c.levelAchievement("veteran", "Veteran", "Reach level 15", "🌟", 15),
		c.levelAchievement("master", "Master", "Reach level 20", "💫", 20),

		// Quest completion milestones
		c.questCountAchievement("first_quest", "First Quest", "Complete 1 quest", "✓", 1),
		c.questCountAchievement("productive", "Productive", "Complete 10 quests", "📋", 10),
		c.questCountAchievement("achiever", "Achiever", "Complete 50 quests", "🏅", 50),
		c.questCountAchievement("powerhouse", "Powerhouse", "Complete 100 quests", "🏆", 100),

		// Streaks
		c.streakAchievement("on_fire", "On Fire", "Keep a 7 day streak", "🔥", 7),
		c.streakAchievement("unstoppable", "Unstoppable", "Keep a 30 day streak", "☄️", 30),
	}

	// Skill level achievements
	for _, d := range builtinSkills() {
		achievements = append(achievements, c.skillLevelAchievement(d.Name, d.Icon, 5))
	}

	achievements = append(achievements,
		c.perkAchievement("first_perk", "Awakened", "Unlock any perk", "🗝️"),
		c.habitAchievement("habit_former", "Habit Former", "Build a 3 day habit streak", "🔁", 3),
	)
	return achievements
}

// CountEarned returns how many achievements have been earned.
func (c *AchievementChecker) CountEarned() int {
	count := 0
	for _, a := range c.GetAchievements() {
		if a.Earned {
			count++
		}
	}
	return count
}

// CountTotal returns total number of achievements.
func (c *AchievementChecker) CountTotal() int {
	return len(c.GetAchievements())
}

func (c *AchievementChecker) levelAchievement(id, name, desc, icon string, level int) Achievement {
	earned := PlayerLevel(c.player.TotalXP) >= level
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: earned}
}

func (c *AchievementChecker) questCountAchievement(id, name, desc, icon string, count int) Achievement {
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: c.completedQuests >= count}
}

func (c *AchievementChecker) streakAchievement(id, name, desc, icon string, days int) Achievement {
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: c.player.CurrentStreak >= days}
}

func (c *AchievementChecker) skillLevelAchievement(skill SkillName, icon string, level int) Achievement {
	earned := false
	for _, s := range c.skills {
		if s.Name == string(skill) && SkillLevel(s.TotalXP) >= level {
			earned = true
			break
		}
	}
	return Achievement{
		ID:          fmt.Sprintf("skill_%s_%d", skill, level),
		Name:        fmt.Sprintf("%s Adept", skill),
		Description: fmt.Sprintf("%s level %d", skill, level),
		Icon:        icon,
		Earned:      earned,
	}
}

func (c *AchievementChecker) perkAchievement(id, name, desc, icon string) Achievement {
	earned := false
	for _, p := range c.perks {
		if p.IsUnlocked {
			earned = true
			break
		}
	}
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: earned}
}

func (c *AchievementChecker) habitAchievement(id, name, desc, icon string, streak int) Achievement {
	earned := false
	for _, t := range c.templates {
		if t.IsHabit && t.HabitStreak >= streak {
			earned = true
			break
		}
	}
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: earned}
}

// Achievements evaluates badges against the user's current snapshot.
func (s *Service) Achievements(ctx context.Context, userID string) ([]Achievement, error) {
	player, err := s.GetPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	skills, err := s.stores.Skills.List(ctx, player.UserID)
	if err != nil {
		return nil, err
	}
	perks, err := s.stores.Perks.ListUnlocked(ctx, player.UserID)
	if err != nil {
		return nil, err
	}
	templates, err := s.stores.Templates.List(ctx, player.UserID, false)
	if err != nil {
		return nil, err
	}
	completed, err := s.CompletedCount(ctx, player.UserID, "")
	if err != nil {
		return nil, err
	}
	return NewAchievementChecker(player, skills, perks, templates, completed).GetAchievements(), nil
}
