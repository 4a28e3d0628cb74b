package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"levelup/internal/storage"
)

// FailurePolicy decides what a failing completion stage does to the whole completion.
type FailurePolicy int

const (
	// HardFail stages share one transaction; any error rolls all of them back.
	HardFail FailurePolicy = iota
	// BestEffort stages run after the commit, each in its own transaction.
	// Errors are logged and returned as diagnostics.
	BestEffort
)

func (p FailurePolicy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "hard-fail"
}

// stage is one step of the completion pipeline.
type stage struct {
	Name   string
	Policy FailurePolicy
	Run    func(ctx context.Context, st Stores, c *completion) error
}

// StageError wraps a best-effort stage failure.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type CompleteResult struct {
	OpID               string
	Quest              *storage.Quest
	Player             *storage.Player
	Skill              *SkillResult
	XPEarned           int
	Multiplier         float64
	PerformanceMessage string
	LevelBefore        int
	LevelAfter         int
	LevelUp            bool
	AlreadyCompleted   bool
	GoalsUpdated       int
	Diagnostics        []error
}

// completion carries state between pipeline stages.
type completion struct {
	opID      string
	userID    string
	now       time.Time
	stopTimer bool
	focus     *int

	quest  *storage.Quest
	player *storage.Player
	res    *CompleteResult
}

var errAlreadyCompleted = errors.New("quest already completed")

func (s *Service) completionStages() []stage {
	return []stage{
		{Name: "stop-timer", Policy: HardFail, Run: s.stageStopTimer},
		{Name: "mark-complete", Policy: HardFail, Run: s.stageMarkComplete},
		{Name: "award-player", Policy: HardFail, Run: s.stageAwardPlayer},
		{Name: "award-skill", Policy: HardFail, Run: s.stageAwardSkill},
		{Name: "sync-goals", Policy: BestEffort, Run: s.stageSyncGoals},
	}
}

// CompleteQuest marks a quest done and runs the progression pipeline.
// Completing an already completed quest returns the stored outcome with no
// side effects.
func (s *Service) CompleteQuest(ctx context.Context, userID string, questID int64) (*CompleteResult, error) {
	return s.complete(ctx, userID, questID, false, nil)
}

// CompleteQuestWithTimer stops a running or paused timer, then completes the quest.
func (s *Service) CompleteQuestWithTimer(ctx context.Context, userID string, questID int64, focusRating *int) (*CompleteResult, error) {
	if err := validateFocus(focusRating); err != nil {
		return nil, err
	}
	return s.complete(ctx, userID, questID, true, focusRating)
}

func (s *Service) complete(ctx context.Context, userID string, questID int64, stopTimer bool, focus *int) (*CompleteResult, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	c := &completion{
		opID:      uuid.NewString(),
		userID:    userID,
		now:       s.clock(),
		stopTimer: stopTimer,
		focus:     focus,
		res:       &CompleteResult{},
	}
	c.res.OpID = c.opID
	log := s.log.With("opID", c.opID, "userID", userID, "questID", questID)

	stages := s.completionStages()

	err = s.inTx(ctx, func(st Stores) error {
		q, err := st.Quests.Get(ctx, userID, questID)
		if err != nil {
			return err
		}
		if q == nil {
			return notFound("quest", questID)
		}
		if q.IsCompleted {
			return errAlreadyCompleted
		}
		p, err := s.loadPlayer(ctx, st, userID)
		if err != nil {
			return err
		}
		c.quest, c.player = q, p

		for _, stg := range stages {
			if stg.Policy != HardFail {
				continue
			}
			if err := stg.Run(ctx, st, c); err != nil {
				if errors.Is(err, errAlreadyCompleted) {
					return err
				}
				return fmt.Errorf("%s: %w", stg.Name, err)
			}
		}
		return nil
	})
	if errors.Is(err, errAlreadyCompleted) {
		return s.completedOutcome(ctx, userID, questID, c.opID)
	}
	if err != nil {
		log.Errorw("quest completion failed", "error", err)
		return nil, err
	}

	for _, stg := range stages {
		if stg.Policy != BestEffort {
			continue
		}
		err := s.inTx(ctx, func(st Stores) error {
			return stg.Run(ctx, st, c)
		})
		if err != nil {
			log.Warnw("completion stage failed", "stage", stg.Name, "policy", stg.Policy.String(), "error", err)
			c.res.Diagnostics = append(c.res.Diagnostics, &StageError{Stage: stg.Name, Err: err})
		}
	}

	if q, err := s.stores.Quests.Get(ctx, userID, questID); err == nil && q != nil {
		c.res.Quest = q
	} else {
		c.res.Quest = c.quest
	}
	c.res.Player = c.player

	log.Infow("quest completed",
		"xp", c.res.XPEarned,
		"multiplier", c.res.Multiplier,
		"levelBefore", c.res.LevelBefore,
		"levelAfter", c.res.LevelAfter,
	)
	return c.res, nil
}

func (s *Service) stageStopTimer(ctx context.Context, st Stores, c *completion) error {
	if !c.stopTimer {
		return nil
	}
	from := c.quest.TimerState
	switch TimerState(from) {
	case TimerRunning, TimerPaused:
	default:
		return nil
	}
	if err := StopTimer(c.quest, c.now, c.focus); err != nil {
		return err
	}
	if err := st.Quests.UpdateTimer(ctx, c.quest, from); err != nil {
		return conflictAsTransition(err, "quest", c.quest.ID, from, "stop")
	}
	return nil
}

func (s *Service) stageMarkComplete(ctx context.Context, st Stores, c *completion) error {
	q := c.quest
	xp, mult, msg := FinalXP(q.XPReward, q.ProductivityScore)

	completedAt := c.now.UTC()
	hour := c.now.In(s.loc).Hour()
	q.IsCompleted = true
	q.TimerState = string(TimerCompleted)
	q.DateCompleted = &completedAt
	q.CompletionTimeOfDay = &hour
	q.StreakAtCompletion = c.player.CurrentStreak
	q.XPEarned = &xp

	if err := st.Quests.MarkCompleted(ctx, q); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return errAlreadyCompleted
		}
		return err
	}

	c.res.XPEarned = xp
	c.res.Multiplier = mult
	c.res.PerformanceMessage = msg
	return nil
}

func (s *Service) stageAwardPlayer(ctx context.Context, st Stores, c *completion) error {
	p := c.player
	c.res.LevelBefore = p.Level
	ApplyPlayerXP(p, c.res.XPEarned, StatType(c.quest.StatType), c.now, s.loc)
	if err := st.Players.Update(ctx, p); err != nil {
		return err
	}
	c.res.LevelAfter = p.Level
	c.res.LevelUp = p.Level > c.res.LevelBefore
	return nil
}

func (s *Service) stageAwardSkill(ctx context.Context, st Stores, c *completion) error {
	if c.quest.SkillCategory == nil || *c.quest.SkillCategory == "" {
		return nil
	}
	name, err := ParseSkillName(*c.quest.SkillCategory)
	if err != nil {
		return err
	}
	res, err := s.awardSkillXP(ctx, st, c.userID, name, c.res.XPEarned, c.now)
	if err != nil {
		return err
	}
	c.res.Skill = res
	return nil
}

func (s *Service) stageSyncGoals(ctx context.Context, st Stores, c *completion) error {
	n, err := s.syncGoals(ctx, st, c.userID, c.player, c.now)
	c.res.GoalsUpdated = n
	return err
}

// completedOutcome rebuilds the result of an earlier completion from the stored quest.
func (s *Service) completedOutcome(ctx context.Context, userID string, questID int64, opID string) (*CompleteResult, error) {
	q, err := s.stores.Quests.Get(ctx, userID, questID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, notFound("quest", questID)
	}
	p, err := s.loadPlayer(ctx, s.stores, userID)
	if err != nil {
		return nil, err
	}

	xp, mult, msg := FinalXP(q.XPReward, q.ProductivityScore)
	if q.XPEarned != nil {
		xp = *q.XPEarned
	}
	s.log.Debugw("quest already completed", "opID", opID, "userID", userID, "questID", questID)
	return &CompleteResult{
		OpID:               opID,
		Quest:              q,
		Player:             p,
		XPEarned:           xp,
		Multiplier:         mult,
		PerformanceMessage: msg,
		LevelBefore:        p.Level,
		LevelAfter:         p.Level,
		AlreadyCompleted:   true,
	}, nil
}
