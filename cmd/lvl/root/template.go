package root

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"levelup/internal/engine"
	"levelup/internal/storage"
	"levelup/internal/ui"
)

func newTemplateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"t"},
		Short:   "Manage recurring quest templates and habits",
	}
	cmd.AddCommand(
		newTemplateAddCmd(a),
		newTemplateListCmd(a),
		newTemplateGenerateCmd(a),
		newTemplateToggleCmd(a),
		newTemplateDeleteCmd(a),
		newHabitCheckCmd(a),
		newHabitStatsCmd(a),
	)
	return cmd
}

func newTemplateAddCmd(a *app) *cobra.Command {
	var (
		f       questFlags
		recur   string
		days    string
		every   int
		isHabit bool
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a recurring template",
		Args:  exactlyOne("title"),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.TemplateInput{
				Title:         args[0],
				Description:   f.description,
				TimeMinutes:   f.minutes,
				StatType:      engine.StatType(strings.ToLower(f.stat)),
				SkillCategory: engine.SkillName(f.skill),
				CustomDays:    every,
				IsHabit:       isHabit,
			}
			var err error
			if in.Difficulty, err = engine.ParseDifficulty(f.difficulty); err != nil {
				return err
			}
			if in.RecurrenceType, err = engine.ParseRecurrenceType(recur); err != nil {
				return err
			}
			if in.Weekdays, err = parseWeekdays(days); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.CreateTemplate(ctx, a.user(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render(ui.IconPlus+" Added"), templateLine(t))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.description, "desc", "", "Description")
	cmd.Flags().StringVarP(&f.stat, "stat", "s", string(engine.StatDiscipline), "Stat")
	cmd.Flags().StringVarP(&f.skill, "skill", "k", "", "Skill")
	cmd.Flags().StringVarP(&f.difficulty, "diff", "d", "medium", "Difficulty (1-5 or trivial..epic)")
	cmd.Flags().IntVarP(&f.minutes, "minutes", "m", 30, "Minutes per instance")
	cmd.Flags().StringVarP(&recur, "recur", "r", string(engine.RecurDaily), "Recurrence (daily|specific_days|weekly|interval)")
	cmd.Flags().StringVar(&days, "days", "", "ISO weekdays for specific_days/weekly, e.g. 1,3,5 (Mon=1)")
	cmd.Flags().IntVar(&every, "every", 0, "Interval in days for interval recurrence")
	cmd.Flags().BoolVar(&isHabit, "habit", false, "Track as a habit with a streak")
	return cmd
}

func parseWeekdays(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 1 || d > 7 {
			return nil, fmt.Errorf("invalid weekday %q (use 1-7, Monday=1)", part)
		}
		out = append(out, d)
	}
	return out, nil
}

func templateLine(t *storage.QuestTemplate) string {
	sched := t.RecurrenceType
	switch engine.RecurrenceType(t.RecurrenceType) {
	case engine.RecurSpecificDays, engine.RecurWeekly:
		sched = fmt.Sprintf("%s %v", t.RecurrenceType, t.Weekdays)
	case engine.RecurInterval:
		sched = fmt.Sprintf("every %d days", t.CustomDays)
	}
	line := fmt.Sprintf("%s #%d %s %s %s", ui.IconLoop, t.ID, t.Title, ui.Stars(t.Difficulty), ui.Muted.Render(sched))
	if t.IsHabit {
		line += " " + ui.Gold.Render(fmt.Sprintf("%s %d", ui.IconFire, t.HabitStreak))
	}
	if !t.IsActive {
		line += " " + ui.Muted.Render("(paused)")
	}
	return line
}

func newTemplateListCmd(a *app) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ts, err := svc.ListTemplates(ctx, a.user(), activeOnly)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.Heading(ui.IconScroll, "Templates"))
			if len(ts) == 0 {
				fmt.Fprintln(w, ui.Muted.Render("(none)"))
			}
			for i := range ts {
				fmt.Fprintln(w, templateLine(&ts[i]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active templates")
	return cmd
}

func newTemplateGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Create today's quests from due templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			qs, err := svc.GenerateDueQuests(ctx, a.user())
			if err != nil {
				return err
			}
			printQuests(cmd.OutOrStdout(), fmt.Sprintf("Generated %d", len(qs)), qs, svc.Location())
			return nil
		},
	}
}

func newTemplateToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Pause or resume a template",
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

			t, err := svc.ToggleTemplate(ctx, a.user(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), templateLine(t))
			return nil
		},
	}
}

func newTemplateDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a template (generated quests are kept)",
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

			if err := svc.DeleteTemplate(ctx, a.user(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d\n", ui.Warn.Render("Deleted"), id)
			return nil
		},
	}
}

func newHabitCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <id>",
		Short: "Record today's habit completion",
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

			t, err := svc.RecordHabitCompletion(ctx, a.user(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render(ui.IconDone), templateLine(t))
			return nil
		},
	}
}

func newHabitStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "habits",
		Short: "Show habit streaks and completion rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := svc.HabitStats(ctx, a.user())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.Heading(ui.IconFire, "Habits"))
			if len(stats) == 0 {
				fmt.Fprintln(w, ui.Muted.Render("(none)"))
			}
			for _, h := range stats {
				last := "never"
				if h.LastCompleted != nil {
					last = h.LastCompleted.In(svc.Location()).Format("2006-01-02")
				}
				fmt.Fprintf(w, "#%d %s %s %s %s\n", h.TemplateID, h.Title,
					ui.Gold.Render(fmt.Sprintf("%s %d", ui.IconFire, h.Streak)),
					ui.ProgressBar(h.CompletionRate, 100, 10),
					ui.Muted.Render(fmt.Sprintf("%d%%, %d total, last %s", h.CompletionRate, h.TotalCompletions, last)))
			}
			return nil
		},
	}
}
