package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/hookscope/pkg/transport/uds"
)

// FilterField is a named text input in the filter form. Choices, when
// present, can be cycled with up and down.
type FilterField struct {
	Label   string
	Input   textinput.Model
	Choices []string
}

// FilterForm edits the hook event, tool name and limit of the list query.
type FilterForm struct {
	fields    []FilterField
	activeIdx int
	err       string
}

const (
	fieldEvent = iota
	fieldTool
	fieldLimit
)

// NewFilterForm creates a form pre-filled with the current filters.
func NewFilterForm(hookEvent, toolName string, limit int, facets uds.FacetsResponse) *FilterForm {
	fields := []FilterField{
		newField("hook_event", hookEvent, facets.HookEvents),
		newField("tool_name", toolName, facets.ToolNames),
		newField("limit", strconv.Itoa(limit), nil),
	}
	fields[0].Input.Focus()
	return &FilterForm{fields: fields}
}

func newField(label, value string, choices []string) FilterField {
	ti := textinput.New()
	ti.Placeholder = "any"
	ti.SetValue(value)
	ti.CharLimit = 128
	return FilterField{Label: label, Input: ti, Choices: choices}
}

// Value returns the trimmed text of field i.
func (f *FilterForm) Value(i int) string {
	return strings.TrimSpace(f.fields[i].Input.Value())
}

// HandleKey processes key events in filter mode.
func (f *FilterForm) HandleKey(a App, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.filter = nil
		return a, nil

	case "enter":
		limit := parseLimit(f.Value(fieldLimit))
		if limit <= 0 {
			f.err = fmt.Sprintf("limit must be a positive number, got %q", f.Value(fieldLimit))
			return a, nil
		}
		a.hookEvent = f.Value(fieldEvent)
		a.toolName = f.Value(fieldTool)
		a.limit = limit
		a.mode = ModeNormal
		a.filter = nil
		a.selectedIdx = 0
		a.statusMsg = "filters applied"
		return a, a.refresh()

	case "tab", "shift+tab":
		step := 1
		if msg.String() == "shift+tab" {
			step = len(f.fields) - 1
		}
		f.fields[f.activeIdx].Input.Blur()
		f.activeIdx = (f.activeIdx + step) % len(f.fields)
		f.fields[f.activeIdx].Input.Focus()
		return a, textinput.Blink

	case "up", "down":
		f.cycle(msg.String() == "down")
		return a, nil

	default:
		var cmd tea.Cmd
		f.fields[f.activeIdx].Input, cmd = f.fields[f.activeIdx].Input.Update(msg)
		return a, cmd
	}
}

// cycle steps the active field through its choices. An empty value sits
// before the first choice.
func (f *FilterForm) cycle(forward bool) {
	field := &f.fields[f.activeIdx]
	if len(field.Choices) == 0 {
		return
	}
	options := append([]string{""}, field.Choices...)
	idx := slices.Index(options, strings.TrimSpace(field.Input.Value()))
	if forward {
		idx = (idx + 1) % len(options)
	} else {
		idx = (idx - 1 + len(options)) % len(options)
	}
	field.Input.SetValue(options[idx])
	field.Input.CursorEnd()
}

func parseLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// View renders the filter form.
func (f *FilterForm) View(width int) string {
	s := titleStyle.Render(" Filters ") + "\n\n"
	for i, field := range f.fields {
		prefix := "  "
		if i == f.activeIdx {
			prefix = "▸ "
		}
		s += prefix + dimStyle.Render(fmt.Sprintf("%-11s", field.Label+":")) + field.Input.View() + "\n"
		if i == f.activeIdx && len(field.Choices) > 0 {
			s += "    " + dimStyle.Render(truncate(strings.Join(field.Choices, " · "), width-6)) + "\n"
		}
	}
	if f.err != "" {
		s += "\n" + errorStyle.Render("  "+f.err) + "\n"
	}
	s += "\n" + helpStyle.Render("  tab:next  shift+tab:prev  up/down:choices  enter:apply  esc:cancel")
	return s
}
