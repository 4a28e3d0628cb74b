package storage

import "time"

type Player struct {
	UserID  string
	Level   int
	TotalXP int
	// Stat buckets, each accumulating XP independently.
	Strength     int
	Intelligence int
	Discipline   int
	Wealth       int
	Charisma     int

	CurrentStreak    int
	LastActivityDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Skill struct {
	ID           int64
	UserID       string
	Name         string
	Description  string
	Icon         string
	Color        string
	CurrentXP    int
	CurrentLevel int
	TotalXP      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Perk struct {
	ID            int64
	UserID        string
	Name          string
	Description   string
	SkillRequired string
	LevelRequired int
	Icon          string
	FeatureKey    string
	IsUnlocked    bool
	UnlockedAt    *time.Time
	CreatedAt     time.Time
}

type Quest struct {
	ID            int64
	UserID        string
	Title         string
	Description   string
	StatType      string
	SkillCategory *string
	Difficulty    int

	TimeEstimatedMinutes int
	TimeActualMinutes    *int
	TimeActualSeconds    *int
	TimerState           string
	TimeStarted          *time.Time
	TimePaused           *time.Time
	PausedDurationMs     int64
	DistractionCount     int

	Deadline  *time.Time
	IsOverdue bool

	AccuracyScore     *int
	ProductivityScore *int
	FocusRating       *int

	XPReward            int
	XPEarned            *int
	DateCreated         time.Time
	DateCompleted       *time.Time
	CompletionTimeOfDay *int
	IsCompleted         bool
	StreakAtCompletion  int

	TemplateID         *int64
	IsTemplateInstance bool
}

type QuestTemplate struct {
	ID                int64
	UserID            string
	Title             string
	Description       string
	TimeMinutes       int
	Difficulty        int
	StatType          string
	SkillCategory     *string
	RecurrenceType    string
	Weekdays          []int // ISO weekdays, Monday=1 ... Sunday=7
	CustomDays        int
	IsActive          bool
	LastGeneratedDate *time.Time
	CreatedAt         time.Time

	IsHabit                bool
	HabitStreak            int
	HabitLastCompletedDate *time.Time
	HabitCompletionHistory []time.Time
}

type Milestone struct {
	Value     int        `json:"value"`
	Label     string     `json:"label"`
	Reached   bool       `json:"reached"`
	ReachedAt *time.Time `json:"reachedAt,omitempty"`
}

type GoalAchievement struct {
	ID             int64
	GoalID         int64
	Title          string
	Description    string
	UnlockedAt     time.Time
	MilestoneValue int
}

type Goal struct {
	ID           int64
	UserID       string
	Title        string
	Description  string
	Type         string
	StatType     string
	TargetValue  int
	CurrentValue int
	Unit         string
	StartDate    time.Time
	EndDate      time.Time
	Milestones   []Milestone
	Achievements []GoalAchievement
	IsCompleted  bool
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Raid struct {
	ID              int64
	UserID          string
	DurationMinutes int
	Rank            string
	Status          string
	XPEarned        int
	StartedAt       time.Time
	EndedAt         *time.Time
}
