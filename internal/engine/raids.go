package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"levelup/internal/storage"
)

const raidHistoryLimit = 50

// StartRaid opens a focus raid. A user has at most one active raid.
func (s *Service) StartRaid(ctx context.Context, userID string, minutes int, rank RaidRank) (*storage.Raid, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if minutes <= 0 {
		return nil, invalid("durationMinutes", "must be positive")
	}
	if _, ok := RaidXP[rank]; !ok {
		return nil, invalid("rank", string(rank))
	}
	unlock := s.lockUser(userID)
	defer unlock()

	active, err := s.stores.Raids.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, &InvalidTransitionError{Entity: "raid", ID: active.ID, From: RaidActive, Action: "start another"}
	}

	raid := &storage.Raid{
		UserID:          userID,
		DurationMinutes: minutes,
		Rank:            string(rank),
		StartedAt:       s.clock().UTC(),
	}
	if err := s.stores.Raids.Insert(ctx, raid); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, &InvalidTransitionError{Entity: "raid", From: RaidActive, Action: "start another"}
		}
		return nil, err
	}
	s.log.Infow("raid started", "userID", userID, "raidID", raid.ID, "rank", rank, "minutes", minutes)
	return raid, nil
}

type RaidResult struct {
	OpID        string
	Raid        *storage.Raid
	XPEarned    int
	LevelBefore int
	LevelAfter  int
	LevelUp     bool
}

// CompleteRaid clears an active raid and awards its rank XP to intelligence.
func (s *Service) CompleteRaid(ctx context.Context, userID string, raidID int64) (*RaidResult, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	res := &RaidResult{OpID: uuid.NewString()}
	now := s.clock()
	err = s.inTx(ctx, func(st Stores) error {
		raid, err := activeRaid(ctx, st, userID, raidID, "complete")
		if err != nil {
			return err
		}
		xp := RaidXP[RaidRank(raid.Rank)]
		if err := st.Raids.Finish(ctx, raid, RaidCompleted, xp, now); err != nil {
			return conflictAsTransition(err, "raid", raidID, RaidActive, "complete")
		}

		p, err := s.loadPlayer(ctx, st, userID)
		if err != nil {
			return err
		}
		res.LevelBefore = p.Level
		ApplyPlayerXP(p, xp, StatIntelligence, now, s.loc)
		if err := st.Players.Update(ctx, p); err != nil {
			return err
		}
		res.Raid = raid
		res.XPEarned = xp
		res.LevelAfter = p.Level
		res.LevelUp = p.Level > res.LevelBefore
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("raid completed", "opID", res.OpID, "userID", userID, "raidID", raidID, "xp", res.XPEarned)
	return res, nil
}

// FailRaid abandons an active raid without reward.
func (s *Service) FailRaid(ctx context.Context, userID string, raidID int64) (*storage.Raid, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	raid, err := activeRaid(ctx, s.stores, userID, raidID, "fail")
	if err != nil {
		return nil, err
	}
	if err := s.stores.Raids.Finish(ctx, raid, RaidFailed, 0, s.clock()); err != nil {
		return nil, conflictAsTransition(err, "raid", raidID, RaidActive, "fail")
	}
	s.log.Infow("raid failed", "userID", userID, "raidID", raidID)
	return raid, nil
}

func (s *Service) ActiveRaid(ctx context.Context, userID string) (*storage.Raid, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	return s.stores.Raids.Active(ctx, userID)
}

func (s *Service) RaidHistory(ctx context.Context, userID string) ([]storage.Raid, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	return s.stores.Raids.History(ctx, userID, raidHistoryLimit)
}

func activeRaid(ctx context.Context, st Stores, userID string, raidID int64, action string) (*storage.Raid, error) {
	raid, err := st.Raids.Get(ctx, userID, raidID)
	if err != nil {
		return nil, err
	}
	if raid == nil {
		return nil, notFound("raid", raidID)
	}
	if raid.Status != RaidActive {
		return nil, &InvalidTransitionError{Entity: "raid", ID: raidID, From: raid.Status, Action: action}
	}
	return raid, nil
}
