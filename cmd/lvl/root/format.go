package root

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"levelup/internal/engine"
	"levelup/internal/storage"
	"levelup/internal/ui"
)

func exactlyOne(what string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}

// parseWhen accepts "2006-01-02" (the last instant of that day) or "2006-01-02 15:04" in loc.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or \"YYYY-MM-DD HH:MM\")", s)
	}
	return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return d, nil
}

func questLine(q *storage.Quest, loc *time.Location) string {
	loop := ""
	if q.IsTemplateInstance {
		loop = ui.IconLoop + " "
	}
	line := fmt.Sprintf("%s #%d %s%s %s %s %s",
		ui.StatIcon(q.StatType), q.ID, loop, q.Title,
		ui.Stars(q.Difficulty), ui.TimerText(q.TimerState, q.IsCompleted),
		ui.Muted.Render(fmt.Sprintf("(%d XP, %dm)", q.XPReward, q.TimeEstimatedMinutes)))
	if q.Deadline != nil && !q.IsCompleted {
		due := ui.Muted.Render("due " + q.Deadline.In(loc).Format("2006-01-02 15:04"))
		if q.IsOverdue {
			due = ui.Bad.Render("overdue since " + q.Deadline.In(loc).Format("2006-01-02 15:04"))
		}
		line += " " + due
	}
	return line
}

func printQuests(w io.Writer, title string, qs []storage.Quest, loc *time.Location) {
	fmt.Fprintln(w, ui.Heading(ui.IconQuest, title))
	if len(qs) == 0 {
		fmt.Fprintln(w, ui.Muted.Render("(none)"))
		return
	}
	for i := range qs {
		fmt.Fprintln(w, questLine(&qs[i], loc))
	}
}

func printCompletion(w io.Writer, res *engine.CompleteResult) {
	q := res.Quest
	if res.AlreadyCompleted {
		fmt.Fprintf(w, "%s #%d %s %s\n", ui.Muted.Render("Already done:"), q.ID, q.Title, ui.Muted.Render(fmt.Sprintf("(%d XP)", res.XPEarned)))
		return
	}
	fmt.Fprintf(w, "%s #%d %s %s\n", ui.Good.Render(ui.IconDone+" Done"), q.ID, q.Title, ui.Gold.Render(ui.Signed(res.XPEarned)+" XP"))
	if res.PerformanceMessage != "" {
		fmt.Fprintln(w, ui.LabelValue("Performance", fmt.Sprintf("%s (x%.1f)", res.PerformanceMessage, res.Multiplier)))
	}
	fmt.Fprintln(w, ui.LabelValue("Level", fmt.Sprintf("%d -> %d", res.LevelBefore, res.LevelAfter)))
	if res.LevelUp {
		fmt.Fprintln(w, ui.BadgeLevelUp)
	}
	if res.Player != nil {
		fmt.Fprintln(w, ui.LabelValue("Streak", fmt.Sprintf("%s %d", ui.IconFire, res.Player.CurrentStreak)))
	}
	if sk := res.Skill; sk != nil {
		fmt.Fprintln(w, ui.LabelValue(sk.Skill.Name, fmt.Sprintf("L%d (%d XP)", sk.Skill.CurrentLevel, sk.Skill.TotalXP)))
		for _, p := range sk.NewPerks {
			fmt.Fprintf(w, "%s %s %s\n", ui.Gold.Render(ui.IconKey+" Perk unlocked:"), p.Name, ui.Muted.Render(p.Description))
		}
	}
	if res.GoalsUpdated > 0 {
		fmt.Fprintln(w, ui.LabelValue("Goals updated", res.GoalsUpdated))
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintln(w, ui.Warn.Render(ui.IconWarn+" "+d.Error()))
	}
}
