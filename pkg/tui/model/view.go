package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/modoterra/hookscope/pkg/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	eventPre    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	eventPost   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	eventNotify = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	eventPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	eventStop   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(lipgloss.Color("205"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	// Filter overlay
	if a.mode == ModeFilter && a.filter != nil {
		form := a.filter.View(a.width - 4)
		return paneStyle.Width(a.width - 4).Height(a.height - 2).Render(form)
	}

	l := a.layout()

	list := a.renderList(l.listW, l.mainH)
	listPane := a.paneBox(PaneList, a.listTitle(), list, l.listW, l.mainH)

	detailPane := a.paneBox(PaneDetail, " Detail ", a.renderDetail(), l.detailW, l.mainH)

	rows := []string{lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)}

	if a.showLive {
		live := a.renderLive(a.width-4, l.liveH)
		rows = append(rows, a.paneBox(PaneLive, a.liveTitle(), live, a.width-4, l.liveH))
	}

	rows = append(rows, a.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// paneLayout holds the pane sizes for the current window.
type paneLayout struct {
	listW, detailW int
	mainH, liveH   int
}

func (a App) layout() paneLayout {
	const statusBarH = 2
	var l paneLayout
	if a.showLive {
		l.liveH = max(a.height/4, 5)
	}
	l.mainH = a.height - l.liveH - statusBarH - 2
	if a.showLive {
		l.mainH -= 2
	}
	l.listW = a.width*2/5 - 2
	l.detailW = a.width - l.listW - 4
	return l
}

func (a App) paneBox(pane Pane, title, content string, w, h int) string {
	style := paneStyle
	if a.activePane == pane {
		style = activePaneStyle
	}
	return style.Width(w).Height(h).Render(
		titleStyle.Render(title) + "\n" + content,
	)
}

func (a App) listTitle() string {
	date := a.date
	if date == "" {
		date = "all days"
	} else if date == a.today {
		date += " (today)"
	}
	title := fmt.Sprintf(" Records · %s · %d ", date, len(a.records))
	var filters []string
	if a.hookEvent != "" {
		filters = append(filters, a.hookEvent)
	}
	if a.toolName != "" {
		filters = append(filters, a.toolName)
	}
	if q := a.search.Value(); q != "" && a.mode != ModeSearch {
		filters = append(filters, "/"+q)
	}
	if len(filters) > 0 {
		title += dimStyle.Render("["+strings.Join(filters, " ")+"]") + " "
	}
	return title
}

func (a App) renderList(w, h int) string {
	var b strings.Builder
	maxVisible := h - 2
	if a.mode == ModeSearch {
		maxVisible -= 2
	}

	if len(a.records) == 0 {
		b.WriteString(dimStyle.Render("no records"))
	}

	start := 0
	if a.selectedIdx >= maxVisible {
		start = a.selectedIdx - maxVisible + 1
	}

	for i := start; i < len(a.records) && i-start < maxVisible; i++ {
		rec := a.records[i]
		line := fmt.Sprintf(" %s %s %s", clock(rec.Timestamp()), colorEvent(rec.HookEvent()), rec.Summary())
		line = truncate(line, w)

		if i == a.selectedIdx {
			line = selectedStyle.Width(w).Render(line)
		}
		b.WriteString(line + "\n")
	}

	if a.mode == ModeSearch {
		b.WriteString("\n" + a.search.View())
	}

	return b.String()
}

func (a App) renderDetail() string {
	rec := a.selectedRecord()
	if rec == nil {
		return dimStyle.Render("select a record")
	}
	return detailHeader(*rec) + a.detail.View()
}

// detailHeader lists the key fields above the JSON body.
func detailHeader(rec core.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time:     %s\n", rec.Timestamp())
	fmt.Fprintf(&b, "Event:    %s\n", colorEvent(rec.HookEvent()))
	if tool := rec.ToolName(); tool != "" {
		fmt.Fprintf(&b, "Tool:     %s\n", tool)
	}
	if sid := rec.SessionID(); sid != "" {
		fmt.Fprintf(&b, "Session:  %s\n", dimStyle.Render(sid))
	}
	b.WriteString("\n")
	return b.String()
}

func (a App) renderLive(w, h int) string {
	if len(a.live) == 0 {
		if a.watching != "" {
			return dimStyle.Render("waiting for records in " + a.watching)
		}
		return dimStyle.Render("not streaming")
	}

	start := 0
	if len(a.live) > h-1 {
		start = len(a.live) - h + 1
	}

	var b strings.Builder
	for i := start; i < len(a.live); i++ {
		rec := a.live[i]
		line := fmt.Sprintf("%s %s %s", clock(rec.Timestamp()), colorEvent(rec.HookEvent()), rec.Summary())
		b.WriteString(truncate(line, w) + "\n")
	}
	return b.String()
}

func (a App) liveTitle() string {
	title := " Live "
	if a.livePaused {
		title += dimStyle.Render("[PAUSED]") + " "
	}
	return title
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	if !a.connected {
		left = errorStyle.Render("●") + " " + left
	}
	right := "j/k:nav tab:pane /:search f:filter [/]:day t:today A:all r:refresh l:live space:pause q:quit"
	if a.mode == ModeSearch {
		right = "enter:apply esc:cancel"
	}
	if a.mode == ModeFilter {
		right = "tab:next field enter:apply esc:cancel"
	}

	gap := a.width - lipgloss.Width(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func colorEvent(event string) string {
	switch event {
	case "PreToolUse":
		return eventPre.Render(event)
	case "PostToolUse":
		return eventPost.Render(event)
	case "Notification":
		return eventNotify.Render(event)
	case "UserPromptSubmit":
		return eventPrompt.Render(event)
	case "Stop", "SubagentStop":
		return eventStop.Render(event)
	default:
		return dimStyle.Render(event)
	}
}

// clock shortens an ISO timestamp to its time of day.
func clock(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+9 {
		return ts[i+1 : i+9]
	}
	if len(ts) > 8 {
		return ts[:8]
	}
	return ts
}

// truncate cuts s to maxLen cells, keeping styling escapes intact.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if maxLen <= 3 {
		return ansi.Truncate(s, maxLen, "")
	}
	return ansi.Truncate(s, maxLen, "...")
}
