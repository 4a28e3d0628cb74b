package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"levelup/internal/engine"
	"levelup/internal/storage"
	"levelup/internal/ui"
)

func newRaidCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "raid",
		Short: "Timed focus raids with ranked rewards",
	}
	cmd.AddCommand(
		newRaidStartCmd(a),
		newRaidFinishCmd(a, "done", "Clear the active raid and collect its XP"),
		newRaidFinishCmd(a, "fail", "Abandon the active raid"),
		newRaidStatusCmd(a),
	)
	return cmd
}

func newRaidStartCmd(a *app) *cobra.Command {
	var (
		minutes int
		rank    string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a raid",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := engine.ParseRaidRank(rank)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			raid, err := svc.StartRaid(ctx, a.user(), minutes, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Good.Render(ui.IconRaid+" Raid started"), raidLine(raid, svc))
			return nil
		},
	}
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 25, "Raid length in minutes")
	cmd.Flags().StringVarP(&rank, "rank", "r", string(engine.RankE), "Rank (E|C|A|S)")
	return cmd
}

func newRaidFinishCmd(a *app, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var id int64
			if len(args) == 1 {
				if id, err = parseID(args[0]); err != nil {
					return err
				}
			} else {
				active, err := svc.ActiveRaid(ctx, a.user())
				if err != nil {
					return err
				}
				if active == nil {
					return errors.New("no active raid")
				}
				id = active.ID
			}

			w := cmd.OutOrStdout()
			if use == "fail" {
				raid, err := svc.FailRaid(ctx, a.user(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s %s\n", ui.Warn.Render("Raid failed"), raidLine(raid, svc))
				return nil
			}
			res, err := svc.CompleteRaid(ctx, a.user(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s %s\n", ui.Good.Render(ui.IconTrophy+" Raid cleared"), raidLine(res.Raid, svc), ui.Gold.Render(ui.Signed(res.XPEarned)+" XP"))
			fmt.Fprintln(w, ui.LabelValue("Level", fmt.Sprintf("%d -> %d", res.LevelBefore, res.LevelAfter)))
			if res.LevelUp {
				fmt.Fprintln(w, ui.BadgeLevelUp)
			}
			return nil
		},
	}
}

func newRaidStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active raid and recent history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			w := cmd.OutOrStdout()
			active, err := svc.ActiveRaid(ctx, a.user())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, ui.Heading(ui.IconRaid, "Raids"))
			if active != nil {
				elapsed := int(svc.Now().Sub(active.StartedAt).Minutes())
				fmt.Fprintf(w, "%s %s\n", raidLine(active, svc), ui.ProgressBar(elapsed, active.DurationMinutes, 20))
			} else {
				fmt.Fprintln(w, ui.Muted.Render("No active raid."))
			}
			history, err := svc.RaidHistory(ctx, a.user())
			if err != nil {
				return err
			}
			for i := range history {
				if history[i].Status == engine.RaidActive {
					continue
				}
				fmt.Fprintln(w, raidLine(&history[i], svc))
			}
			return nil
		},
	}
}

func raidLine(r *storage.Raid, svc *engine.Service) string {
	line := fmt.Sprintf("#%d %s-rank %dm %s", r.ID, r.Rank, r.DurationMinutes, ui.Muted.Render(r.StartedAt.In(svc.Location()).Format("2006-01-02 15:04")))
	switch r.Status {
	case engine.RaidCompleted:
		line += " " + ui.Good.Render(fmt.Sprintf("cleared %s XP", ui.Signed(r.XPEarned)))
	case engine.RaidFailed:
		line += " " + ui.Bad.Render("failed")
	default:
		line += " " + ui.H2.Render("active")
	}
	return line
}
