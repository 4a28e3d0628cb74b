package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"levelup/internal/engine"
	"levelup/internal/storage"
	"levelup/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show level, stats, streak and today's load",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			d, err := svc.Dashboard(ctx, a.user())
			if err != nil {
				return err
			}
			p := d.Player
			w := cmd.OutOrStdout()
			cur := engine.XPRequiredForLevel(p.Level)

			fmt.Fprintln(w, ui.Heading(ui.IconSparkle, "LevelUp status"))
			fmt.Fprintln(w, ui.LabelValue("Player", p.UserID))
			fmt.Fprintln(w, ui.LabelValue("Level", p.Level))
			fmt.Fprintln(w, ui.LabelValue("XP", fmt.Sprintf("%d %s %d/%d to next",
				p.TotalXP, ui.ProgressBar(p.TotalXP-cur, d.NextLevelXP-cur, 20), p.TotalXP-cur, d.NextLevelXP-cur)))
			fmt.Fprintln(w, ui.LabelValue("Streak", fmt.Sprintf("%s %d", ui.IconFire, p.CurrentStreak)))
			fmt.Fprintln(w)
			fmt.Fprintln(w, ui.H2.Render("Stats"))
			for _, stat := range engine.AllStats {
				fmt.Fprintf(w, "  %s %-12s %d\n", ui.StatIcon(string(stat)), stat, engine.StatXP(p, stat))
			}
			fmt.Fprintln(w)
			open := 0
			for _, q := range d.Today {
				if !q.IsCompleted {
					open++
				}
			}
			fmt.Fprintln(w, ui.LabelValue("Today", fmt.Sprintf("%d quests, %d open", len(d.Today), open)))
			if len(d.Overdue) > 0 {
				fmt.Fprintln(w, ui.Bad.Render(fmt.Sprintf("%s %d overdue", ui.IconWarn, len(d.Overdue))))
			}
			if r := d.ActiveRaid; r != nil {
				fmt.Fprintln(w, ui.LabelValue("Raid", fmt.Sprintf("%s %s-rank, %dm since %s", ui.IconRaid, r.Rank, r.DurationMinutes, r.StartedAt.In(svc.Location()).Format("15:04"))))
			}
			for i := range d.Goals {
				g := &d.Goals[i]
				fmt.Fprintf(w, "%s %s %s %d%%\n", ui.IconGoal, g.Title, ui.ProgressBar(g.CurrentValue, g.TargetValue, 10), engine.GoalProgressPercent(g))
			}
			return nil
		},
	}
}

func newSkillsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "Show skill levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			skills, err := svc.ListSkills(ctx, a.user())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.Heading(ui.IconBolt, "Skills"))
			for _, sk := range skills {
				toNext := engine.XPToNextSkillLevel(sk.CurrentLevel, sk.TotalXP)
				fmt.Fprintf(w, "%s %-14s L%-3d %s %s\n", sk.Icon, sk.Name, sk.CurrentLevel,
					ui.ProgressBar(sk.CurrentXP, sk.CurrentXP+toNext, 15),
					ui.Muted.Render(fmt.Sprintf("%d XP, %d to L%d", sk.TotalXP, toNext, sk.CurrentLevel+1)))
			}
			return nil
		},
	}
}

func newPerksCmd(a *app) *cobra.Command {
	var (
		skill    string
		unlocked bool
		feature  string
	)
	cmd := &cobra.Command{
		Use:   "perks",
		Short: "Show perks and what unlocks them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if feature != "" {
				ok, err := svc.FeatureUnlocked(ctx, a.user(), feature)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render(fmt.Sprintf("%s %s unlocked", ui.IconKey, feature)))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render(feature+" locked"))
				}
				return nil
			}

			var name engine.SkillName
			if skill != "" {
				if name, err = engine.ParseSkillName(skill); err != nil {
					return err
				}
			}
			var perks []storage.Perk
			if unlocked {
				perks, err = svc.UnlockedPerks(ctx, a.user())
			} else {
				perks, err = svc.ListPerks(ctx, a.user(), name)
			}
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.Heading(ui.IconKey, "Perks"))
			if len(perks) == 0 {
				fmt.Fprintln(w, ui.Muted.Render("(none)"))
			}
			for _, p := range perks {
				state := ui.Muted.Render(fmt.Sprintf("locked, %s L%d", p.SkillRequired, p.LevelRequired))
				if p.IsUnlocked {
					state = ui.Good.Render("unlocked")
				}
				fmt.Fprintf(w, "%s %s %s %s %s\n", p.Icon, p.Name, state, ui.Muted.Render(p.Description), ui.Muted.Render("["+p.FeatureKey+"]"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&skill, "skill", "k", "", "Only perks of this skill")
	cmd.Flags().BoolVar(&unlocked, "unlocked", false, "Only unlocked perks")
	cmd.Flags().StringVar(&feature, "has", "", "Report whether the perk gating this feature key is unlocked")
	return cmd
}

func newAchievementsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "Show earned and remaining achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := svc.Achievements(ctx, a.user())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			earned := 0
			for _, ach := range list {
				if ach.Earned {
					earned++
				}
			}
			fmt.Fprintln(w, ui.Heading(ui.IconTrophy, fmt.Sprintf("Achievements %d/%d", earned, len(list))))
			for _, ach := range list {
				line := fmt.Sprintf("%s %s %s", ach.Icon, ach.Name, ui.Muted.Render(ach.Description))
				if !ach.Earned {
					line = ui.Muted.Render(fmt.Sprintf("   %s %s", ach.Name, ach.Description))
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show productivity patterns and stat balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			r, err := svc.ProductivityDashboard(ctx, a.user())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.Heading(ui.IconBolt, "Productivity"))
			fmt.Fprintln(w, ui.LabelValue("This week", fmt.Sprintf("%d quests, %s XP", r.Week.QuestsCompleted, ui.Signed(r.Week.XPEarned))))
			fmt.Fprintln(w, ui.LabelValue("This month", fmt.Sprintf("%d quests, %s XP", r.Month.QuestsCompleted, ui.Signed(r.Month.XPEarned))))

			fmt.Fprintln(w)
			fmt.Fprintln(w, ui.H2.Render("Best hours"))
			if len(r.Hours.Best) == 0 {
				fmt.Fprintln(w, ui.Muted.Render("(no completions yet)"))
			}
			for _, h := range r.Hours.Best {
				fmt.Fprintf(w, "  %02d:00 %d\n", h.Hour, h.Count)
			}
			if r.Hours.Recommendation != "" {
				fmt.Fprintln(w, ui.Muted.Render(r.Hours.Recommendation))
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, ui.H2.Render("Last 30 days"))
			for _, d := range r.Weekdays.Days {
				fmt.Fprintf(w, "  %-9s %d\n", d.Weekday, d.Count)
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, ui.H2.Render("By difficulty"))
			for _, d := range r.ByDifficulty {
				fmt.Fprintf(w, "  %s %3d done, %dm total, %dm avg\n", ui.Stars(int(d.Difficulty)), d.Completed, d.TotalMinutes, d.AverageMinutes)
			}

			b := r.Balance
			fmt.Fprintln(w)
			fmt.Fprintln(w, ui.H2.Render("Stat balance"))
			for _, sv := range b.Stats {
				fmt.Fprintf(w, "  %s %-12s %s %d\n", ui.StatIcon(string(sv.Stat)), sv.Stat, ui.ProgressBar(sv.XP, b.Total, 15), sv.XP)
			}
			fmt.Fprintln(w, ui.LabelValue("Balance", fmt.Sprintf("%s (most %s, least %s)", b.Rating, b.MostDeveloped, b.LeastDeveloped)))
			return nil
		},
	}
}
