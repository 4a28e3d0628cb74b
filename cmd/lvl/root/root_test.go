package root

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runLvl(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", dbPath, "--user", "cli_tester"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newCLIEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("LEVELUP_LOG_FILE", filepath.Join(home, "levelup.log"))
	t.Setenv("LEVELUP_TIMEZONE", "UTC")
	return filepath.Join(home, "levelup.db")
}

func TestQuestAddAndComplete(t *testing.T) {
	db := newCLIEnv(t)

	out, err := runLvl(t, db, "quest", "add", "Write report", "--diff", "hard", "--minutes", "60", "--skill", "coding")
	require.NoError(t, err)
	require.Contains(t, out, "#1 Write report")

	out, err = runLvl(t, db, "quest", "today")
	require.NoError(t, err)
	require.Contains(t, out, "Write report")

	out, err = runLvl(t, db, "quest", "done", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Done")
	require.Contains(t, out, "Coding")

	out, err = runLvl(t, db, "quest", "done", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Already done")

	out, err = runLvl(t, db, "status")
	require.NoError(t, err)
	require.Contains(t, out, "cli_tester")
	require.Contains(t, out, "1 quests, 0 open")
}

func TestQuestTimerCommands(t *testing.T) {
	db := newCLIEnv(t)

	_, err := runLvl(t, db, "quest", "add", "Read chapter")
	require.NoError(t, err)
	out, err := runLvl(t, db, "quest", "start", "1")
	require.NoError(t, err)
	require.Contains(t, out, "running")

	_, err = runLvl(t, db, "quest", "start", "1")
	require.Error(t, err)

	out, err = runLvl(t, db, "quest", "pause", "1")
	require.NoError(t, err)
	require.Contains(t, out, "paused")
}

func TestArgumentErrors(t *testing.T) {
	db := newCLIEnv(t)

	_, err := runLvl(t, db, "quest", "done", "abc")
	require.EqualError(t, err, "id must be a positive integer")

	_, err = runLvl(t, db, "quest", "add")
	require.EqualError(t, err, "title is required")

	_, err = runLvl(t, db, "quest", "show", "42")
	require.Error(t, err)

	_, err = runLvl(t, db, "reset")
	require.ErrorContains(t, err, "--yes")

	_, err = runLvl(t, db, "goal", "add", "Side project", "--type", "custom", "--target", "10")
	require.ErrorContains(t, err, "--start and --end")
}

func TestTemplateGoalAndRaid(t *testing.T) {
	db := newCLIEnv(t)

	out, err := runLvl(t, db, "template", "add", "Stretch", "--habit", "--stat", "strength")
	require.NoError(t, err)
	require.Contains(t, out, "Stretch")

	out, err = runLvl(t, db, "template", "generate")
	require.NoError(t, err)
	require.Contains(t, out, "Generated 1")

	out, err = runLvl(t, db, "template", "check", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Stretch")

	out, err = runLvl(t, db, "goal", "add", "Ship it", "--unit", "quests", "--target", "5", "--milestone", "1,3")
	require.NoError(t, err)
	require.Contains(t, out, "0/5 quests")

	_, err = runLvl(t, db, "raid", "start", "--rank", "C", "--minutes", "45")
	require.NoError(t, err)
	_, err = runLvl(t, db, "raid", "start")
	require.Error(t, err)

	out, err = runLvl(t, db, "raid", "done")
	require.NoError(t, err)
	require.Contains(t, out, "+150 XP")

	out, err = runLvl(t, db, "reset", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "Reset")

	out, err = runLvl(t, db, "template", "list")
	require.NoError(t, err)
	require.Contains(t, out, "(none)")
}

func TestSkillsAndPerkFeatures(t *testing.T) {
	db := newCLIEnv(t)

	out, err := runLvl(t, db, "perks", "--has", "code_sprint")
	require.NoError(t, err)
	require.Contains(t, out, "code_sprint locked")

	_, err = runLvl(t, db, "quest", "add", "Refactor parser", "--skill", "coding", "--xp", "1250")
	require.NoError(t, err)
	_, err = runLvl(t, db, "quest", "done", "1")
	require.NoError(t, err)

	out, err = runLvl(t, db, "perks", "--has", "code_sprint")
	require.NoError(t, err)
	require.Contains(t, out, "code_sprint unlocked")

	out, err = runLvl(t, db, "skills")
	require.NoError(t, err)
	require.Contains(t, out, "1250 XP, 550 to L6")
}

func TestStatsCommand(t *testing.T) {
	db := newCLIEnv(t)

	out, err := runLvl(t, db, "stats")
	require.NoError(t, err)
	require.Contains(t, out, "(no completions yet)")
	require.Contains(t, out, "Excellent (most strength, least strength)")

	_, err = runLvl(t, db, "quest", "add", "Lift", "--stat", "strength", "--xp", "900")
	require.NoError(t, err)
	_, err = runLvl(t, db, "quest", "done", "1")
	require.NoError(t, err)

	out, err = runLvl(t, db, "stats")
	require.NoError(t, err)
	require.Contains(t, out, "1 quests, +900 XP")
	require.Contains(t, out, "Fair (most strength, least intelligence)")
	require.Contains(t, out, "You're most productive")
}
