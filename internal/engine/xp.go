package engine

import "math"

const (
	// PlayerXPCoef: the player reaches level L at PlayerXPCoef * L^2 total XP.
	PlayerXPCoef = 100

	// SkillXPCoef: a skill reaches level L at SkillXPCoef * L^2 total XP.
	SkillXPCoef = 50
)

// XPRequiredForLevel returns the total XP at which the player reaches level.
func XPRequiredForLevel(level int) int {
	if level <= 0 {
		return 0
	}
	return PlayerXPCoef * level * level
}

// PlayerLevel returns floor(sqrt(totalXP/100)). Below 100 XP the level is 0.
func PlayerLevel(totalXP int) int {
	if totalXP <= 0 {
		return 0
	}
	l := int(math.Sqrt(float64(totalXP) / PlayerXPCoef))
	// Correct for float error at exact squares.
	for XPRequiredForLevel(l+1) <= totalXP {
		l++
	}
	for l > 0 && XPRequiredForLevel(l) > totalXP {
		l--
	}
	return l
}

// SkillXPRequiredForLevel returns the total skill XP at which level is reached.
func SkillXPRequiredForLevel(level int) int {
	if level <= 0 {
		return 0
	}
	return SkillXPCoef * level * level
}

// SkillLevel returns the greatest L >= 1 with L^2 * 50 <= totalXP. Skills start at 1.
func SkillLevel(totalXP int) int {
	level := 1
	for SkillXPRequiredForLevel(level+1) <= totalXP {
		level++
	}
	return level
}

// XPToNextSkillLevel is how much more XP the skill needs to leave currentLevel.
func XPToNextSkillLevel(currentLevel, totalXP int) int {
	return SkillXPRequiredForLevel(currentLevel+1) - totalXP
}

// SkillCurrentXP is the XP earned inside the current level band. The entry
// level consumes nothing, so it counts the whole total until level 2.
func SkillCurrentXP(level, totalXP int) int {
	if level <= 1 {
		return totalXP
	}
	consumed := SkillXPRequiredForLevel(level)
	if consumed > totalXP {
		return 0
	}
	return totalXP - consumed
}

// DefaultXPReward is used when a quest is created without an explicit reward.
func DefaultXPReward(d Difficulty, estimatedMinutes int) int {
	return int(d)*10 + estimatedMinutes/10
}

// TemplateXPReward seeds quests materialized from a template.
func TemplateXPReward(d Difficulty) int {
	return 10 * int(d)
}
