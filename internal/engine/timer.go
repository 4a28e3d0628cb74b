package engine

import (
	"context"
	"math"
	"time"

	"levelup/internal/storage"
)

func transitionError(q *storage.Quest, action string) error {
	from := q.TimerState
	if q.IsCompleted {
		from = string(TimerCompleted)
	}
	return &InvalidTransitionError{Entity: "quest", ID: q.ID, From: from, Action: action}
}

// StartTimer moves a quest from not_started to running and resets its telemetry.
func StartTimer(q *storage.Quest, now time.Time) error {
	if q.IsCompleted || TimerState(q.TimerState) != TimerNotStarted {
		return transitionError(q, "start")
	}
	started := now.UTC()
	q.TimerState = string(TimerRunning)
	q.TimeStarted = &started
	q.TimePaused = nil
	q.PausedDurationMs = 0
	q.DistractionCount = 0
	return nil
}

// PauseTimer moves a running quest to paused. Every pause counts as a distraction.
func PauseTimer(q *storage.Quest, now time.Time) error {
	if q.IsCompleted || TimerState(q.TimerState) != TimerRunning {
		return transitionError(q, "pause")
	}
	paused := now.UTC()
	q.TimerState = string(TimerPaused)
	q.TimePaused = &paused
	q.DistractionCount++
	return nil
}

// ResumeTimer moves a paused quest back to running and banks the pause interval.
func ResumeTimer(q *storage.Quest, now time.Time) error {
	if q.IsCompleted || TimerState(q.TimerState) != TimerPaused {
		return transitionError(q, "resume")
	}
	q.PausedDurationMs += openPauseMs(q, now)
	q.TimerState = string(TimerRunning)
	q.TimePaused = nil
	return nil
}

// StopTimer finalizes the timer telemetry and scores the session. The quest
// itself stays open; completion is a separate step.
func StopTimer(q *storage.Quest, now time.Time, focusRating *int) error {
	state := TimerState(q.TimerState)
	if q.IsCompleted || (state != TimerRunning && state != TimerPaused) {
		return transitionError(q, "stop")
	}
	if err := validateFocus(focusRating); err != nil {
		return err
	}

	if state == TimerPaused {
		q.PausedDurationMs += openPauseMs(q, now)
		q.TimePaused = nil
	}
	var elapsed int64
	if q.TimeStarted != nil {
		elapsed = now.Sub(*q.TimeStarted).Milliseconds() - q.PausedDurationMs
	}
	if elapsed < 0 {
		elapsed = 0
	}

	minutes := int(math.Round(float64(elapsed) / 60000))
	seconds := int(math.Round(float64(elapsed) / 1000))
	scores := Score(q.TimeEstimatedMinutes, minutes, focusRating, q.DistractionCount)

	q.TimeActualMinutes = &minutes
	q.TimeActualSeconds = &seconds
	q.AccuracyScore = &scores.Accuracy
	q.ProductivityScore = &scores.Productivity
	q.FocusRating = nil
	if focusRating != nil {
		f := *focusRating
		q.FocusRating = &f
	}
	q.TimerState = string(TimerCompleted)
	return nil
}

func openPauseMs(q *storage.Quest, now time.Time) int64 {
	if q.TimePaused == nil {
		return 0
	}
	d := now.Sub(*q.TimePaused).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

func validateFocus(focusRating *int) error {
	if focusRating == nil {
		return nil
	}
	if *focusRating < 1 || *focusRating > 5 {
		return invalid("focusRating", "must be between 1 and 5")
	}
	return nil
}

func (s *Service) StartQuestTimer(ctx context.Context, userID string, questID int64) (*storage.Quest, error) {
	return s.timerTransition(ctx, userID, questID, "start", func(q *storage.Quest, now time.Time) error {
		return StartTimer(q, now)
	})
}

func (s *Service) PauseQuestTimer(ctx context.Context, userID string, questID int64) (*storage.Quest, error) {
	return s.timerTransition(ctx, userID, questID, "pause", func(q *storage.Quest, now time.Time) error {
		return PauseTimer(q, now)
	})
}

func (s *Service) ResumeQuestTimer(ctx context.Context, userID string, questID int64) (*storage.Quest, error) {
	return s.timerTransition(ctx, userID, questID, "resume", func(q *storage.Quest, now time.Time) error {
		return ResumeTimer(q, now)
	})
}

// StopQuestTimer records actual time and scores; focusRating may be nil.
func (s *Service) StopQuestTimer(ctx context.Context, userID string, questID int64, focusRating *int) (*storage.Quest, error) {
	if err := validateFocus(focusRating); err != nil {
		return nil, err
	}
	return s.timerTransition(ctx, userID, questID, "stop", func(q *storage.Quest, now time.Time) error {
		return StopTimer(q, now, focusRating)
	})
}

// timerTransition loads the quest, applies fn and persists with a write that
// is guarded on the state it was loaded in.
func (s *Service) timerTransition(ctx context.Context, userID string, questID int64, action string, fn func(*storage.Quest, time.Time) error) (*storage.Quest, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	q, err := s.stores.Quests.Get(ctx, userID, questID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, notFound("quest", questID)
	}

	from := q.TimerState
	if err := fn(q, s.clock()); err != nil {
		return nil, err
	}
	if err := s.stores.Quests.UpdateTimer(ctx, q, from); err != nil {
		return nil, conflictAsTransition(err, "quest", questID, from, action)
	}
	s.log.Debugw("quest timer", "userID", userID, "questID", questID, "action", action, "state", q.TimerState)
	return q, nil
}
