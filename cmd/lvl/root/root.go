package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"levelup/internal/ui"
)

const Version = "0.2.0"

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "lvl",
		Short:         "LevelUp, a local quest log with RPG progression",
		Long:          "LevelUp turns tasks into quests: timed work earns XP, levels, skills, perks and goal progress.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			a.teardown()
			return nil
		},
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/levelup/config.yaml)")
	cmd.PersistentFlags().StringVarP(&a.userFlag, "user", "u", "", "Player to act as (overrides config)")
	cmd.PersistentFlags().StringVar(&a.dbFlag, "db", "", "SQLite database path (overrides config)")

	cmd.AddCommand(
		newQuestCmd(a),
		newTemplateCmd(a),
		newGoalCmd(a),
		newSkillsCmd(a),
		newPerksCmd(a),
		newRaidCmd(a),
		newStatusCmd(a),
		newAchievementsCmd(a),
		newStatsCmd(a),
		newBoardCmd(a),
		newResetCmd(a),
	)
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		stop()
		os.Exit(1)
	}
}
