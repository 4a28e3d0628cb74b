package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"levelup/internal/engine"
	"levelup/internal/storage"
	"levelup/internal/ui"
)

func newGoalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goal",
		Aliases: []string{"g"},
		Short:   "Track monthly, yearly and custom goals",
	}
	cmd.AddCommand(
		newGoalAddCmd(a),
		newGoalListCmd(a),
		newGoalShowCmd(a),
		newGoalSyncCmd(a),
		newGoalDeleteCmd(a),
	)
	return cmd
}

func newGoalAddCmd(a *app) *cobra.Command {
	var (
		description string
		goalType    string
		stat        string
		unit        string
		target      int
		start       string
		end         string
		milestones  []int
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a goal",
		Args:  exactlyOne("title"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			in := engine.CreateGoalInput{
				Title:       args[0],
				Description: description,
				TargetValue: target,
			}
			if in.Type, err = engine.ParseGoalType(goalType); err != nil {
				return err
			}
			if in.Unit, err = engine.ParseGoalUnit(unit); err != nil {
				return err
			}
			in.StatType = engine.StatTotal
			if stat != "" && stat != string(engine.StatTotal) {
				if in.StatType, err = engine.ParseStatType(stat); err != nil {
					return err
				}
			}

			loc := svc.Location()
			var ok bool
			in.StartDate, in.EndDate, ok = engine.GoalPeriod(in.Type, svc.Now(), loc)
			if start != "" {
				if in.StartDate, err = parseDay(start, loc); err != nil {
					return err
				}
			}
			if end != "" {
				if in.EndDate, err = parseWhen(end, loc); err != nil {
					return err
				}
			}
			if !ok && (start == "" || end == "") {
				return errors.New("custom goals need --start and --end")
			}
			for _, v := range milestones {
				in.Milestones = append(in.Milestones, storage.Milestone{Value: v})
			}

			g, err := svc.CreateGoal(ctx, a.user(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render(ui.IconPlus+" Added"), goalLine(g, a))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "desc", "", "Description")
	cmd.Flags().StringVarP(&goalType, "type", "t", string(engine.GoalMonthly), "Goal type (monthly|yearly|custom)")
	cmd.Flags().StringVarP(&stat, "stat", "s", string(engine.StatTotal), "Stat to track, or total")
	cmd.Flags().StringVar(&unit, "unit", string(engine.UnitXP), "Unit (xp|quests|streak)")
	cmd.Flags().IntVar(&target, "target", 0, "Target value")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().IntSliceVar(&milestones, "milestone", nil, "Milestone values (repeatable or comma separated)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func goalLine(g *storage.Goal, a *app) string {
	loc := a.cfg.Location()
	status := fmt.Sprintf("%d/%d %s", g.CurrentValue, g.TargetValue, g.Unit)
	if g.IsCompleted {
		status = ui.Good.Render(status + " done")
	}
	return fmt.Sprintf("%s #%d %s %s %s %s", ui.IconGoal, g.ID, g.Title,
		ui.ProgressBar(g.CurrentValue, g.TargetValue, 10), status,
		ui.Muted.Render(fmt.Sprintf("(%s, %s, %s..%s)", g.Type, g.StatType,
			g.StartDate.In(loc).Format("2006-01-02"), g.EndDate.In(loc).Format("2006-01-02"))))
}

func newGoalListCmd(a *app) *cobra.Command {
	var (
		goalType string
		active   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var gs []storage.Goal
			if active {
				gs, err = svc.ActiveGoals(ctx, a.user())
			} else {
				var f engine.GoalFilter
				if goalType != "" {
					if f.Type, err = engine.ParseGoalType(goalType); err != nil {
						return err
					}
				}
				gs, err = svc.ListGoals(ctx, a.user(), f)
			}
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.Heading(ui.IconGoal, "Goals"))
			if len(gs) == 0 {
				fmt.Fprintln(w, ui.Muted.Render("(none)"))
			}
			for i := range gs {
				fmt.Fprintln(w, goalLine(&gs[i], a))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&goalType, "type", "t", "", "Only this goal type")
	cmd.Flags().BoolVar(&active, "active", false, "Only open goals whose period includes now")
	return cmd
}

func newGoalShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a goal with milestones and achievements",
		Args:  exactlyOne("id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			g, err := svc.GetGoal(ctx, a.user(), id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, goalLine(g, a))
			if g.Description != "" {
				fmt.Fprintln(w, ui.Muted.Render(g.Description))
			}
			for _, m := range g.Milestones {
				mark := ui.Muted.Render("[ ]")
				if m.Reached {
					mark = ui.Good.Render("[x]")
				}
				fmt.Fprintf(w, "  %s %s\n", mark, m.Label)
			}
			for _, ach := range g.Achievements {
				fmt.Fprintf(w, "  %s %s %s\n", ui.IconTrophy, ach.Title, ui.Muted.Render(ach.UnlockedAt.In(svc.Location()).Format("2006-01-02")))
			}
			return nil
		},
	}
}

func newGoalSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Recompute progress of active goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := svc.SyncGoals(ctx, a.user())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Goals synced", n))
			return nil
		},
	}
}

func newGoalDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a goal",
		Args:    exactlyOne("id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.DeleteGoal(ctx, a.user(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d\n", ui.Warn.Render("Deleted"), id)
			return nil
		},
	}
}
