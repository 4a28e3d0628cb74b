package engine

import (
	"context"
	"errors"
	"time"

	"levelup/internal/storage"
)

// GetPlayer returns the user's player, creating it on first access. The stored
// level is a projection of total XP and is rewritten if it drifted; the
// rewrite touches only the level column.
func (s *Service) GetPlayer(ctx context.Context, userID string) (*storage.Player, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	return s.loadPlayer(ctx, s.stores, userID)
}

func (s *Service) loadPlayer(ctx context.Context, st Stores, userID string) (*storage.Player, error) {
	p, err := st.Players.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if computed := PlayerLevel(p.TotalXP); p.Level != computed {
		p.Level = computed
		err := st.Players.SetLevel(ctx, userID, computed, p.TotalXP)
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
	}
	return p, nil
}

// NextStreak advances a daily streak: same day keeps it, the next day adds
// one, a gap or no prior activity restarts at 1.
func NextStreak(last *time.Time, current int, now time.Time, loc *time.Location) int {
	if last == nil {
		return 1
	}
	switch daysBetween(*last, now, loc) {
	case 0:
		if current < 1 {
			return 1
		}
		return current
	case 1:
		return current + 1
	default:
		return 1
	}
}

// ApplyPlayerXP adds xp to the player's total and to the stat bucket, refreshes
// the level projection and the streak, and stamps the activity date.
func ApplyPlayerXP(p *storage.Player, xp int, stat StatType, now time.Time, loc *time.Location) {
	p.CurrentStreak = NextStreak(p.LastActivityDate, p.CurrentStreak, now, loc)
	p.TotalXP += xp
	p.Level = PlayerLevel(p.TotalXP)
	addStatXP(p, stat, xp)
	at := now.UTC()
	p.LastActivityDate = &at
}

func addStatXP(p *storage.Player, stat StatType, xp int) {
	switch stat {
	case StatStrength:
		p.Strength += xp
	case StatIntelligence:
		p.Intelligence += xp
	case StatDiscipline:
		p.Discipline += xp
	case StatWealth:
		p.Wealth += xp
	case StatCharisma:
		p.Charisma += xp
	}
}

// StatXP returns the XP accumulated in one bucket, or the total for StatTotal.
func StatXP(p *storage.Player, stat StatType) int {
	switch stat {
	case StatStrength:
		return p.Strength
	case StatIntelligence:
		return p.Intelligence
	case StatDiscipline:
		return p.Discipline
	case StatWealth:
		return p.Wealth
	case StatCharisma:
		return p.Charisma
	default:
		return p.TotalXP
	}
}

// ResetPlayer wipes all progression for the user and returns a fresh player.
func (s *Service) ResetPlayer(ctx context.Context, userID string) (*storage.Player, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockUser(userID)
	defer unlock()

	var fresh *storage.Player
	err = s.inTx(ctx, func(st Stores) error {
		if err := st.Quests.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if err := st.Templates.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if err := st.Goals.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if err := st.Raids.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if err := st.Perks.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if err := st.Skills.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if err := st.Players.Delete(ctx, userID); err != nil {
			return err
		}
		p, err := st.Players.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		fresh = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.forgetGenerated(userID)
	s.log.Infow("player reset", "userID", userID)
	return fresh, nil
}
