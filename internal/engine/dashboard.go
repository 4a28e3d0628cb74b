package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"levelup/internal/storage"
)

// Dashboard is a read-only snapshot of everything the status views render.
type Dashboard struct {
	Player      *storage.Player
	Skills      []storage.Skill
	Perks       []storage.Perk
	Goals       []storage.Goal
	Today       []storage.Quest
	Overdue     []storage.Quest
	ActiveRaid  *storage.Raid
	NextLevelXP int
}

// Dashboard runs read-path maintenance once, then loads the snapshot concurrently.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureProgressionDefaults(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, userID); err != nil {
		return nil, err
	}

	now := s.clock()
	from := startOfDay(now)
	to := from.AddDate(0, 0, 1)
	open := false

	d := &Dashboard{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.GetPlayer(gctx, userID)
		if err != nil {
			return err
		}
		d.Player = p
		d.NextLevelXP = XPRequiredForLevel(p.Level + 1)
		return nil
	})
	g.Go(func() error {
		var err error
		d.Skills, err = s.stores.Skills.List(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Perks, err = s.stores.Perks.ListUnlocked(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Goals, err = s.stores.Goals.ListActive(gctx, userID, now)
		return err
	})
	g.Go(func() error {
		var err error
		d.Today, err = s.stores.Quests.List(gctx, userID, storage.QuestFilter{CreatedFrom: &from, CreatedBefore: &to})
		return err
	})
	g.Go(func() error {
		var err error
		d.Overdue, err = s.stores.Quests.List(gctx, userID, storage.QuestFilter{Completed: &open, OverdueOnly: true})
		if err == nil {
			sortByDeadline(d.Overdue)
		}
		return err
	})
	g.Go(func() error {
		var err error
		d.ActiveRaid, err = s.stores.Raids.Active(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
