package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"levelup/internal/engine"
	"levelup/internal/storage"
	"levelup/internal/ui"
)

type boardModel struct {
	ctx    context.Context
	svc    *engine.Service
	userID string

	width  int
	height int

	dash     *engine.Dashboard
	selected int

	lastLog string
	loading bool
	err     error
}

type loadedMsg struct {
	dash *engine.Dashboard
	err  error
}

type actionMsg struct {
	text string
	err  error
}

func newBoardModel(ctx context.Context, svc *engine.Service, userID string) boardModel {
	return boardModel{
		ctx:     ctx,
		svc:     svc,
		userID:  userID,
		loading: true,
		lastLog: "Loaded.",
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m boardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		d, err := m.svc.Dashboard(m.ctx, m.userID)
		return loadedMsg{dash: d, err: err}
	}
}

// boardQuests is the selectable list: overdue first, then today's open and done quests.
func (m boardModel) boardQuests() []storage.Quest {
	if m.dash == nil {
		return nil
	}
	seen := map[int64]bool{}
	var out []storage.Quest
	for _, q := range m.dash.Overdue {
		seen[q.ID] = true
		out = append(out, q)
	}
	for _, q := range m.dash.Today {
		if !seen[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

func (m boardModel) selectedQuest() *storage.Quest {
	qs := m.boardQuests()
	if m.selected < 0 || m.selected >= len(qs) {
		return nil
	}
	return &qs[m.selected]
}

func (m boardModel) startCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		_, err := m.svc.StartQuestTimer(m.ctx, m.userID, id)
		return actionMsg{text: fmt.Sprintf("Started quest %d.", id), err: err}
	}
}

func (m boardModel) togglePauseCmd(q storage.Quest) tea.Cmd {
	return func() tea.Msg {
		if q.TimerState == string(engine.TimerPaused) {
			_, err := m.svc.ResumeQuestTimer(m.ctx, m.userID, q.ID)
			return actionMsg{text: fmt.Sprintf("Resumed quest %d.", q.ID), err: err}
		}
		_, err := m.svc.PauseQuestTimer(m.ctx, m.userID, q.ID)
		return actionMsg{text: fmt.Sprintf("Paused quest %d.", q.ID), err: err}
	}
}

func (m boardModel) completeCmd(q storage.Quest) tea.Cmd {
	return func() tea.Msg {
		var (
			res *engine.CompleteResult
			err error
		)
		switch engine.TimerState(q.TimerState) {
		case engine.TimerRunning, engine.TimerPaused:
			res, err = m.svc.CompleteQuestWithTimer(m.ctx, m.userID, q.ID, nil)
		default:
			res, err = m.svc.CompleteQuest(m.ctx, m.userID, q.ID)
		}
		if err != nil {
			return actionMsg{err: err}
		}
		text := fmt.Sprintf("Completed %d: +%d XP (level %d → %d)", q.ID, res.XPEarned, res.LevelBefore, res.LevelAfter)
		if res.PerformanceMessage != "" {
			text += " " + res.PerformanceMessage
		}
		if res.LevelUp {
			text += " " + ui.BadgeLevelUp
		}
		return actionMsg{text: text}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.lastLog = "Load failed: " + msg.err.Error()
			return m, nil
		}
		m.dash = msg.dash
		if n := len(m.boardQuests()); m.selected >= n {
			m.selected = n - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		m.lastLog = fmt.Sprintf("Refreshed at %s.", time.Now().Format("15:04:05"))
		return m, nil
	case actionMsg:
		if msg.err != nil {
			m.lastLog = "Failed: " + msg.err.Error()
			return m, nil
		}
		m.lastLog = msg.text
		return m, m.loadCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.lastLog = "Refreshing…"
			return m, m.loadCmd()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.boardQuests())-1 {
				m.selected++
			}
			return m, nil
		}

		q := m.selectedQuest()
		if q == nil {
			return m, nil
		}
		if q.IsCompleted {
			m.lastLog = "Already done."
			return m, nil
		}
		switch msg.String() {
		case "s":
			return m, m.startCmd(q.ID)
		case "p":
			return m, m.togglePauseCmd(*q)
		case "c", " ":
			m.lastLog = fmt.Sprintf("Completing %d…", q.ID)
			return m, m.completeCmd(*q)
		}
	}
	return m, nil
}

func (m boardModel) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit.\n"
	}

	header := m.renderHeader()
	sidebar := m.renderSidebar()
	main := m.renderMain()
	footer := m.renderFooter()

	leftW := 30
	if m.width > 0 {
		if maxLeft := m.width / 2; maxLeft < leftW {
			leftW = maxLeft
		}
		if leftW < 18 {
			leftW = 18
		}
	}

	linesLeft := strings.Split(sidebar, "\n")
	linesRight := strings.Split(main, "\n")
	rows := len(linesLeft)
	if len(linesRight) > rows {
		rows = len(linesRight)
	}

	var body strings.Builder
	for i := 0; i < rows; i++ {
		l, r := "", ""
		if i < len(linesLeft) {
			l = linesLeft[i]
		}
		if i < len(linesRight) {
			r = linesRight[i]
		}
		body.WriteString(padRight(l, leftW))
		body.WriteString("  ")
		body.WriteString(r)
		body.WriteString("\n")
	}

	return header + "\n" + body.String() + footer
}

func (m boardModel) renderHeader() string {
	if m.dash == nil || m.dash.Player == nil {
		return "LevelUp | loading…"
	}
	p := m.dash.Player
	cur := engine.XPRequiredForLevel(p.Level)
	bar := ui.ProgressBar(p.TotalXP-cur, m.dash.NextLevelXP-cur, 30)
	return fmt.Sprintf("LevelUp | %s | Level %d | XP %d %s | %s %d",
		p.UserID, p.Level, p.TotalXP, bar, ui.IconFire, p.CurrentStreak)
}

func (m boardModel) renderSidebar() string {
	if m.dash == nil || m.dash.Player == nil {
		return "Stats\n\nLoading…"
	}
	p := m.dash.Player
	lines := []string{"Stats"}
	for _, stat := range engine.AllStats {
		lines = append(lines, fmt.Sprintf("- %s %-12s %d", ui.StatIcon(string(stat)), stat, engine.StatXP(p, stat)))
	}
	lines = append(lines, "", "Skills")
	for _, sk := range m.dash.Skills {
		toNext := engine.XPToNextSkillLevel(sk.CurrentLevel, sk.TotalXP)
		lines = append(lines, fmt.Sprintf("- %s L%d %s", sk.Name, sk.CurrentLevel, ui.ProgressBar(sk.CurrentXP, sk.CurrentXP+toNext, 10)))
	}
	if m.dash.ActiveRaid != nil {
		r := m.dash.ActiveRaid
		lines = append(lines, "", fmt.Sprintf("%s Raid %s-rank %dm", ui.IconRaid, r.Rank, r.DurationMinutes))
	}
	if len(m.dash.Goals) > 0 {
		lines = append(lines, "", "Goals")
		for i := range m.dash.Goals {
			g := &m.dash.Goals[i]
			lines = append(lines, fmt.Sprintf("- %s %d%%", g.Title, engine.GoalProgressPercent(g)))
		}
	}
	lines = append(lines, "",
		"Keys",
		"- ↑/↓ or j/k: move",
		"- s: start timer",
		"- p: pause/resume",
		"- c/space: complete",
		"- r: refresh",
		"- q: quit",
	)
	return strings.Join(lines, "\n")
}

func (m boardModel) renderMain() string {
	if m.loading {
		return "Loading…"
	}
	out := []string{"Today"}
	qs := m.boardQuests()
	if len(qs) == 0 {
		out = append(out, "(no quests today)")
		return strings.Join(out, "\n")
	}
	for i, q := range qs {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		flag := ""
		if q.IsOverdue && !q.IsCompleted {
			flag = ui.Bad.Render(" overdue")
		}
		loop := ""
		if q.IsTemplateInstance {
			loop = ui.IconLoop + " "
		}
		line := fmt.Sprintf("%s%s%s %s %s %s (%d xp)%s", cursor, loop, ui.StatIcon(q.StatType), q.Title,
			ui.Stars(q.Difficulty), ui.TimerText(q.TimerState, q.IsCompleted), q.XPReward, flag)
		if i == m.selected {
			line = ui.SelectedRow.Render(line)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func (m boardModel) renderFooter() string {
	return "\n" + m.lastLog
}

func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
