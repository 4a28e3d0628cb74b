package root

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"levelup/internal/engine"
	"levelup/internal/storage"
	"levelup/internal/ui"
)

func newQuestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quest",
		Aliases: []string{"q"},
		Short:   "Create, time and complete quests",
	}
	cmd.AddCommand(
		newQuestAddCmd(a),
		newQuestListCmd(a),
		newQuestViewCmd(a, "today", "Quests created today", (*engine.Service).TodayQuests),
		newQuestViewCmd(a, "overdue", "Open quests past their deadline", (*engine.Service).OverdueQuests),
		newQuestViewCmd(a, "due", "Open quests due within 24 hours", (*engine.Service).DueSoonQuests),
		newQuestShowCmd(a),
		newQuestEditCmd(a),
		newQuestTimerCmd(a, "start", "Start the quest timer", (*engine.Service).StartQuestTimer),
		newQuestTimerCmd(a, "pause", "Pause a running timer", (*engine.Service).PauseQuestTimer),
		newQuestTimerCmd(a, "resume", "Resume a paused timer", (*engine.Service).ResumeQuestTimer),
		newQuestStopCmd(a),
		newQuestDoneCmd(a),
		newQuestDeleteCmd(a),
	)
	return cmd
}

type questFlags struct {
	description string
	stat        string
	skill       string
	difficulty  string
	minutes     int
	deadline    string
	xp          int
}

func newQuestAddCmd(a *app) *cobra.Command {
	var f questFlags
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a quest",
		Args:  exactlyOne("title"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			in := engine.CreateQuestInput{
				Title:            args[0],
				Description:      f.description,
				StatType:         engine.StatType(strings.ToLower(f.stat)),
				SkillCategory:    engine.SkillName(f.skill),
				EstimatedMinutes: f.minutes,
				XPReward:         f.xp,
			}
			if in.Difficulty, err = engine.ParseDifficulty(f.difficulty); err != nil {
				return err
			}
			if f.deadline != "" {
				d, err := parseWhen(f.deadline, svc.Location())
				if err != nil {
					return err
				}
				in.Deadline = &d
			}

			q, err := svc.CreateQuest(ctx, a.user(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render(ui.IconPlus+" Added"), questLine(q, svc.Location()))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.description, "desc", "", "Description")
	cmd.Flags().StringVarP(&f.stat, "stat", "s", string(engine.StatIntelligence), "Stat (strength|intelligence|discipline|wealth|charisma)")
	cmd.Flags().StringVarP(&f.skill, "skill", "k", "", "Skill (Coding|Fitness|Communication|Discipline|Learning)")
	cmd.Flags().StringVarP(&f.difficulty, "diff", "d", "medium", "Difficulty (1-5 or trivial..epic)")
	cmd.Flags().IntVarP(&f.minutes, "minutes", "m", 30, "Estimated minutes")
	cmd.Flags().StringVar(&f.deadline, "due", "", "Deadline (YYYY-MM-DD or \"YYYY-MM-DD HH:MM\")")
	cmd.Flags().IntVar(&f.xp, "xp", 0, "Explicit XP reward (default derived)")
	return cmd
}

func newQuestListCmd(a *app) *cobra.Command {
	var (
		stat  string
		skill string
		done  bool
		open  bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			f := engine.QuestFilter{Limit: limit}
			if stat != "" {
				if f.StatType, err = engine.ParseStatType(stat); err != nil {
					return err
				}
			}
			if skill != "" {
				if f.Skill, err = engine.ParseSkillName(skill); err != nil {
					return err
				}
			}
			switch {
			case done && open:
				return fmt.Errorf("--done and --open are mutually exclusive")
			case done:
				f.Completed = &done
			case open:
				completed := false
				f.Completed = &completed
			}

			qs, err := svc.ListQuests(ctx, a.user(), f)
			if err != nil {
				return err
			}
			printQuests(cmd.OutOrStdout(), "Quests", qs, svc.Location())
			return nil
		},
	}
	cmd.Flags().StringVarP(&stat, "stat", "s", "", "Only this stat")
	cmd.Flags().StringVarP(&skill, "skill", "k", "", "Only this skill")
	cmd.Flags().BoolVar(&done, "done", false, "Only completed quests")
	cmd.Flags().BoolVar(&open, "open", false, "Only open quests")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (0 = all)")
	return cmd
}

type questView func(*engine.Service, context.Context, string) ([]storage.Quest, error)

func newQuestViewCmd(a *app, use, short string, view questView) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			qs, err := view(svc, ctx, a.user())
			if err != nil {
				return err
			}
			printQuests(cmd.OutOrStdout(), short, qs, svc.Location())
			return nil
		},
	}
}

func newQuestShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one quest in detail",
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

			q, err := svc.GetQuest(ctx, a.user(), id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			loc := svc.Location()
			fmt.Fprintln(w, questLine(q, loc))
			if q.Description != "" {
				fmt.Fprintln(w, ui.Muted.Render(q.Description))
			}
			if q.SkillCategory != nil {
				fmt.Fprintln(w, ui.LabelValue("Skill", *q.SkillCategory))
			}
			fmt.Fprintln(w, ui.LabelValue("Created", q.DateCreated.In(loc).Format("2006-01-02 15:04")))
			if q.TimeActualMinutes != nil {
				fmt.Fprintln(w, ui.LabelValue("Actual", fmt.Sprintf("%dm of %dm", *q.TimeActualMinutes, q.TimeEstimatedMinutes)))
			}
			if q.AccuracyScore != nil {
				fmt.Fprintln(w, ui.LabelValue("Accuracy", fmt.Sprintf("%d%%", *q.AccuracyScore)))
			}
			if q.ProductivityScore != nil {
				fmt.Fprintln(w, ui.LabelValue("Productivity", fmt.Sprintf("%d%%", *q.ProductivityScore)))
			}
			if q.FocusRating != nil {
				fmt.Fprintln(w, ui.LabelValue("Focus", fmt.Sprintf("%d/5", *q.FocusRating)))
			}
			if q.DateCompleted != nil {
				fmt.Fprintln(w, ui.LabelValue("Completed", q.DateCompleted.In(loc).Format("2006-01-02 15:04")))
			}
			if q.XPEarned != nil {
				fmt.Fprintln(w, ui.LabelValue("XP earned", *q.XPEarned))
			}
			return nil
		},
	}
}

func newQuestEditCmd(a *app) *cobra.Command {
	var (
		f       questFlags
		title   string
		noDue   bool
		noSkill bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an open quest",
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

			var in engine.UpdateQuestInput
			flags := cmd.Flags()
			if flags.Changed("title") {
				in.Title = &title
			}
			if flags.Changed("desc") {
				in.Description = &f.description
			}
			if flags.Changed("stat") {
				st, err := engine.ParseStatType(f.stat)
				if err != nil {
					return err
				}
				in.StatType = &st
			}
			if flags.Changed("skill") || noSkill {
				sk := engine.SkillName(f.skill)
				if noSkill {
					sk = ""
				}
				in.SkillCategory = &sk
			}
			if flags.Changed("diff") {
				d, err := engine.ParseDifficulty(f.difficulty)
				if err != nil {
					return err
				}
				in.Difficulty = &d
			}
			if flags.Changed("minutes") {
				in.EstimatedMinutes = &f.minutes
			}
			if flags.Changed("xp") {
				in.XPReward = &f.xp
			}
			if flags.Changed("due") {
				d, err := parseWhen(f.deadline, svc.Location())
				if err != nil {
					return err
				}
				in.Deadline = &d
			}
			in.ClearDeadline = noDue

			q, err := svc.UpdateQuest(ctx, a.user(), id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render("Updated"), questLine(q, svc.Location()))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&f.description, "desc", "", "New description")
	cmd.Flags().StringVarP(&f.stat, "stat", "s", "", "New stat")
	cmd.Flags().StringVarP(&f.skill, "skill", "k", "", "New skill")
	cmd.Flags().BoolVar(&noSkill, "no-skill", false, "Remove the skill")
	cmd.Flags().StringVarP(&f.difficulty, "diff", "d", "", "New difficulty")
	cmd.Flags().IntVarP(&f.minutes, "minutes", "m", 0, "New estimate in minutes")
	cmd.Flags().StringVar(&f.deadline, "due", "", "New deadline")
	cmd.Flags().BoolVar(&noDue, "no-due", false, "Remove the deadline")
	cmd.Flags().IntVar(&f.xp, "xp", 0, "New explicit XP reward")
	return cmd
}

type timerAction func(*engine.Service, context.Context, string, int64) (*storage.Quest, error)

func newQuestTimerCmd(a *app, use, short string, action timerAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
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

			q, err := action(svc, ctx, a.user(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), questLine(q, svc.Location()))
			return nil
		},
	}
}

func newQuestStopCmd(a *app) *cobra.Command {
	var focus int
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop the timer and score the session",
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

			q, err := svc.StopQuestTimer(ctx, a.user(), id, focusFlag(cmd, focus))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, questLine(q, svc.Location()))
			if q.TimeActualMinutes != nil {
				fmt.Fprintln(w, ui.LabelValue("Worked", fmt.Sprintf("%dm of %dm", *q.TimeActualMinutes, q.TimeEstimatedMinutes)))
			}
			if q.ProductivityScore != nil {
				fmt.Fprintln(w, ui.LabelValue("Productivity", fmt.Sprintf("%d%%", *q.ProductivityScore)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&focus, "focus", "f", 0, "Self-rated focus (1-5)")
	return cmd
}

func newQuestDoneCmd(a *app) *cobra.Command {
	var (
		focus   int
		noTimer bool
	)
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a quest and award XP",
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

			q, err := svc.GetQuest(ctx, a.user(), id)
			if err != nil {
				return err
			}
			timed := q.TimerState == string(engine.TimerRunning) || q.TimerState == string(engine.TimerPaused)
			var res *engine.CompleteResult
			if timed && !noTimer {
				res, err = svc.CompleteQuestWithTimer(ctx, a.user(), id, focusFlag(cmd, focus))
			} else {
				res, err = svc.CompleteQuest(ctx, a.user(), id)
			}
			if err != nil {
				return err
			}
			printCompletion(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&focus, "focus", "f", 0, "Self-rated focus (1-5) when a timer is active")
	cmd.Flags().BoolVar(&noTimer, "no-timer", false, "Ignore an active timer")
	return cmd
}

func newQuestDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a quest",
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

			if err := svc.DeleteQuest(ctx, a.user(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d\n", ui.Warn.Render("Deleted"), id)
			return nil
		},
	}
}

func focusFlag(cmd *cobra.Command, focus int) *int {
	if !cmd.Flags().Changed("focus") {
		return nil
	}
	return &focus
}
