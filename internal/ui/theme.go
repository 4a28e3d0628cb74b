package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LevelUp theme (CLI + TUI).

const (
	IconQuest   = "🗺️"
	IconSparkle = "✨"
	IconPlus    = "➕"
	IconDone    = "✅"
	IconTrophy  = "🏆"
	IconBolt    = "⚡"
	IconInfo    = "ℹ️"
	IconWarn    = "⚠️"
	IconError   = "🧨"
	IconLoop    = "🔁"
	IconScroll  = "📜"
	IconTimer   = "⏱️"
	IconPause   = "⏸️"
	IconFire    = "🔥"
	IconGoal    = "🎯"
	IconRaid    = "⚔️"
	IconKey     = "🗝️"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)

	Panel       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
	PanelTitle  = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	SelectedRow = lipgloss.NewStyle().Bold(true).Foreground(cGold)

	BadgeLevelUp = lipgloss.NewStyle().Bold(true).Foreground(cGold).Render("LEVEL UP")
)

func Heading(icon string, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// TimerText renders a quest's timer state.
func TimerText(state string, completed bool) string {
	if completed {
		return Good.Render("done")
	}
	switch state {
	case "running":
		return H2.Render(IconTimer + " running")
	case "paused":
		return Warn.Render(IconPause + " paused")
	case "completed":
		return Gold.Render("stopped")
	default:
		return Muted.Render("todo")
	}
}

var statIcons = map[string]string{
	"strength":     "💪",
	"intelligence": "🧠",
	"discipline":   "🎯",
	"wealth":       "💰",
	"charisma":     "✨",
}

func StatIcon(stat string) string {
	if icon, ok := statIcons[stat]; ok {
		return icon
	}
	return IconQuest
}

// Stars renders a 1-5 difficulty.
func Stars(difficulty int) string {
	if difficulty < 0 {
		difficulty = 0
	}
	if difficulty > 5 {
		difficulty = 5
	}
	return Gold.Render(strings.Repeat("★", difficulty)) + Muted.Render(strings.Repeat("☆", 5-difficulty))
}

// ProgressBar draws value/total as a fixed-width bar.
func ProgressBar(value int, total int, width int) string {
	if total <= 0 {
		total = 1
	}
	if width <= 3 {
		width = 3
	}
	if value < 0 {
		value = 0
	}
	if value > total {
		value = total
	}
	filled := value * width / total
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func Signed(v int) string {
	if v >= 0 {
		return fmt.Sprintf("+%d", v)
	}
	return fmt.Sprintf("%d", v)
}
