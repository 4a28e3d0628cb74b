package engine

import (
	"fmt"
	"strings"
)

type StatType string

const (
	StatStrength     StatType = "strength"
	StatIntelligence StatType = "intelligence"
	StatDiscipline   StatType = "discipline"
	StatWealth       StatType = "wealth"
	StatCharisma     StatType = "charisma"
)

// StatTotal is accepted by goals to mean the player's total XP or all quests.
const StatTotal StatType = "total"

var AllStats = []StatType{StatStrength, StatIntelligence, StatDiscipline, StatWealth, StatCharisma}

func (s StatType) IsValid() bool {
	switch s {
	case StatStrength, StatIntelligence, StatDiscipline, StatWealth, StatCharisma:
		return true
	default:
		return false
	}
}

func ParseStatType(input string) (StatType, error) {
	s := StatType(strings.TrimSpace(strings.ToLower(input)))
	if !s.IsValid() {
		return "", invalid("statType", fmt.Sprintf("unknown stat %q", input))
	}
	return s, nil
}

type SkillName string

const (
	SkillCoding        SkillName = "Coding"
	SkillFitness       SkillName = "Fitness"
	SkillCommunication SkillName = "Communication"
	SkillDiscipline    SkillName = "Discipline"
	SkillLearning      SkillName = "Learning"
)

var AllSkills = []SkillName{SkillCoding, SkillFitness, SkillCommunication, SkillDiscipline, SkillLearning}

func (n SkillName) IsValid() bool {
	for _, s := range AllSkills {
		if s == n {
			return true
		}
	}
	return false
}

// ParseSkillName matches case-insensitively and returns the canonical spelling.
func ParseSkillName(input string) (SkillName, error) {
	in := strings.TrimSpace(input)
	for _, s := range AllSkills {
		if strings.EqualFold(string(s), in) {
			return s, nil
		}
	}
	return "", invalid("skillCategory", fmt.Sprintf("unknown skill %q", input))
}

type Difficulty int

const (
	DifficultyTrivial Difficulty = 1
	DifficultyEasy    Difficulty = 2
	DifficultyMedium  Difficulty = 3
	DifficultyHard    Difficulty = 4
	DifficultyEpic    Difficulty = 5
)

func (d Difficulty) IsValid() bool {
	return d >= DifficultyTrivial && d <= DifficultyEpic
}

func ParseDifficulty(input string) (Difficulty, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	switch s {
	case "1", "trivial":
		return DifficultyTrivial, nil
	case "2", "easy":
		return DifficultyEasy, nil
	case "3", "medium":
		return DifficultyMedium, nil
	case "4", "hard":
		return DifficultyHard, nil
	case "5", "epic":
		return DifficultyEpic, nil
	default:
		return 0, invalid("difficulty", fmt.Sprintf("%q (use 1-5 or trivial/easy/medium/hard/epic)", input))
	}
}

type TimerState string

const (
	TimerNotStarted TimerState = "not_started"
	TimerRunning    TimerState = "running"
	TimerPaused     TimerState = "paused"
	TimerCompleted  TimerState = "completed"
)

type RecurrenceType string

const (
	RecurDaily        RecurrenceType = "daily"
	RecurSpecificDays RecurrenceType = "specific_days"
	RecurWeekly       RecurrenceType = "weekly"
	RecurInterval     RecurrenceType = "interval"
)

func ParseRecurrenceType(input string) (RecurrenceType, error) {
	r := RecurrenceType(strings.TrimSpace(strings.ToLower(input)))
	switch r {
	case RecurDaily, RecurSpecificDays, RecurWeekly, RecurInterval:
		return r, nil
	default:
		return "", invalid("recurrenceType", fmt.Sprintf("unknown recurrence %q", input))
	}
}

type GoalType string

const (
	GoalMonthly GoalType = "monthly"
	GoalYearly  GoalType = "yearly"
	GoalCustom  GoalType = "custom"
)

func ParseGoalType(input string) (GoalType, error) {
	g := GoalType(strings.TrimSpace(strings.ToLower(input)))
	switch g {
	case GoalMonthly, GoalYearly, GoalCustom:
		return g, nil
	default:
		return "", invalid("type", fmt.Sprintf("unknown goal type %q", input))
	}
}

type GoalUnit string

const (
	UnitXP     GoalUnit = "xp"
	UnitQuests GoalUnit = "quests"
	UnitStreak GoalUnit = "streak"
)

func ParseGoalUnit(input string) (GoalUnit, error) {
	u := GoalUnit(strings.TrimSpace(strings.ToLower(input)))
	switch u {
	case UnitXP, UnitQuests, UnitStreak:
		return u, nil
	default:
		return "", invalid("unit", fmt.Sprintf("unknown unit %q", input))
	}
}

type RaidRank string

const (
	RankE RaidRank = "E"
	RankC RaidRank = "C"
	RankA RaidRank = "A"
	RankS RaidRank = "S"
)

// RaidXP is the reward for clearing a raid of each rank.
var RaidXP = map[RaidRank]int{
	RankE: 50,
	RankC: 150,
	RankA: 300,
	RankS: 500,
}

func ParseRaidRank(input string) (RaidRank, error) {
	r := RaidRank(strings.TrimSpace(strings.ToUpper(input)))
	if _, ok := RaidXP[r]; !ok {
		return "", invalid("rank", fmt.Sprintf("unknown rank %q (use E, C, A or S)", input))
	}
	return r, nil
}

const (
	RaidActive    = "active"
	RaidCompleted = "completed"
	RaidFailed    = "failed"
)
