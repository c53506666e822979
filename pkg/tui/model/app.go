package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/prefs"
	"github.com/modoterra/hookscope/pkg/query"
	"github.com/modoterra/hookscope/pkg/transport/uds"
)

// Pane identifies which TUI pane is focused.
type Pane int

const (
	PaneList Pane = iota
	PaneDetail
	PaneLive
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeFilter
)

// maxLive bounds the live pane history.
const maxLive = 500

// Options configure the TUI.
type Options struct {
	SocketPath string
	Prefs      prefs.Prefs
	// PrefsPath is where preferences are written on quit. Empty disables
	// saving.
	PrefsPath string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// App is the root Bubble Tea model.
type App struct {
	// Connection
	client     *uds.Client
	events     chan uds.Message
	socketPath string
	connected  bool

	// History
	records     []core.Record
	selectedIdx int
	dates       []string
	today       string
	date        string // "" reads every day
	hookEvent   string
	toolName    string
	limit       int
	facets      uds.FacetsResponse

	// Live stream
	session    string
	watching   string
	live       []core.Record
	livePaused bool
	showLive   bool

	// Detail pane, keyed by the record it shows
	detail    viewport.Model
	detailKey string

	// UI
	activePane Pane
	mode       Mode
	search     textinput.Model
	width      int
	height     int

	// Filter form
	filter *FilterForm

	prefsPath string
	now       func() time.Time

	// Error display
	statusMsg string
}

// New creates a new TUI app model.
func New(opts Options) App {
	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 128

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	p := opts.Prefs
	limit := p.Limit
	if limit <= 0 {
		limit = query.DefaultLimit
	}
	today := core.DateOf(now())
	date := p.Date
	switch date {
	case "":
		date = today
	case prefs.AllDates:
		date = ""
	}

	return App{
		socketPath: opts.SocketPath,
		today:      today,
		date:       date,
		hookEvent:  p.HookEvent,
		toolName:   p.ToolName,
		limit:      limit,
		livePaused: p.LivePaused,
		showLive:   p.ShowLive,
		search:     si,
		detail:     viewport.New(0, 0),
		activePane: PaneList,
		mode:       ModeNormal,
		prefsPath:  opts.PrefsPath,
		now:        now,
	}
}

// Init connects to the daemon.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(a.socketPath),
		tea.SetWindowTitle("Hookscope"),
	)
}

// connectedMsg indicates successful daemon connection.
type connectedMsg struct {
	client *uds.Client
	events chan uds.Message
}

// recordsMsg carries a query result.
type recordsMsg struct{ records []core.Record }

// datesMsg carries the day file listing.
type datesMsg struct{ resp uds.ListDatesResponse }

// facetsMsg carries filter choices.
type facetsMsg struct{ facets uds.FacetsResponse }

// subscribedMsg confirms the live stream.
type subscribedMsg struct{ resp uds.StreamSubscribeResponse }

// eventMsg carries one server-pushed event.
type eventMsg struct{ msg uds.Message }

// disconnectedMsg reports the daemon went away.
type disconnectedMsg struct{}

// errorMsg carries an error to display.
type errorMsg struct{ err error }

func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := uds.Dial(socketPath)
		if err != nil {
			return errorMsg{err}
		}
		events := make(chan uds.Message, 256)
		client.OnEvent(func(m uds.Message) {
			select {
			case events <- m:
			case <-client.Done():
			}
		})
		return connectedMsg{client: client, events: events}
	}
}

// waitForEvent delivers the next pushed event to Update.
func waitForEvent(client *uds.Client, events <-chan uds.Message) tea.Cmd {
	return func() tea.Msg {
		select {
		case m := <-events:
			return eventMsg{m}
		case <-client.Done():
			return disconnectedMsg{}
		}
	}
}

func request(client *uds.Client, method string, in, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Call(ctx, method, in, out)
}

func fetchRecordsCmd(client *uds.Client, req uds.QueryLogsRequest) tea.Cmd {
	return func() tea.Msg {
		var resp uds.QueryLogsResponse
		if err := request(client, uds.MethodQueryLogs, req, &resp); err != nil {
			return errorMsg{err}
		}
		return recordsMsg{resp.Records}
	}
}

func fetchDatesCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		var resp uds.ListDatesResponse
		if err := request(client, uds.MethodListDates, nil, &resp); err != nil {
			return errorMsg{err}
		}
		return datesMsg{resp}
	}
}

func fetchFacetsCmd(client *uds.Client, date string) tea.Cmd {
	return func() tea.Msg {
		var resp uds.FacetsResponse
		if err := request(client, uds.MethodFacets, uds.FacetsRequest{Date: date}, &resp); err != nil {
			return errorMsg{err}
		}
		return facetsMsg{resp}
	}
}

func subscribeCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		var resp uds.StreamSubscribeResponse
		if err := request(client, uds.MethodStreamSubscribe, uds.StreamSubscribeRequest{}, &resp); err != nil {
			return errorMsg{err}
		}
		return subscribedMsg{resp}
	}
}

// queryRequest is the query the list pane shows.
func (a App) queryRequest() uds.QueryLogsRequest {
	return uds.QueryLogsRequest{
		Date:      a.date,
		HookEvent: a.hookEvent,
		ToolName:  a.toolName,
		Search:    a.search.Value(),
		Limit:     a.limit,
	}
}

func (a App) query() query.Query {
	r := a.queryRequest()
	return query.Query{Date: r.Date, HookEvent: r.HookEvent, ToolName: r.ToolName, Search: r.Search, Limit: r.Limit}
}

// refresh reloads the records and facets for the current view.
func (a App) refresh() tea.Cmd {
	if a.client == nil {
		return nil
	}
	return tea.Batch(
		fetchRecordsCmd(a.client, a.queryRequest()),
		fetchFacetsCmd(a.client, a.date),
	)
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := a.update(msg)
	if app, ok := m.(App); ok {
		app.syncDetail()
		return app, cmd
	}
	return m, cmd
}

func (a App) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case connectedMsg:
		a.client = msg.client
		a.events = msg.events
		a.connected = true
		a.statusMsg = "connected"
		return a, tea.Batch(
			a.refresh(),
			fetchDatesCmd(a.client),
			subscribeCmd(a.client),
			waitForEvent(a.client, a.events),
		)

	case recordsMsg:
		a.records = msg.records
		if a.selectedIdx >= len(a.records) {
			a.selectedIdx = max(0, len(a.records)-1)
		}
		return a, nil

	case datesMsg:
		a.dates = msg.resp.Dates
		if msg.resp.Today != "" {
			a.today = msg.resp.Today
		}
		return a, nil

	case facetsMsg:
		a.facets = msg.facets
		return a, nil

	case subscribedMsg:
		a.session = msg.resp.SessionID
		a.watching = msg.resp.Watching
		return a, nil

	case eventMsg:
		a = a.handleEvent(msg.msg)
		var cmd tea.Cmd
		if msg.msg.Method == uds.EventDatesDelta && a.client != nil {
			cmd = fetchDatesCmd(a.client)
		}
		if msg.msg.Method == uds.EventStreamNewDay && a.client != nil {
			cmd = tea.Batch(fetchDatesCmd(a.client), a.refresh())
		}
		if a.client != nil {
			cmd = tea.Batch(cmd, waitForEvent(a.client, a.events))
		}
		return a, cmd

	case disconnectedMsg:
		a.connected = false
		a.client = nil
		a.session = ""
		a.statusMsg = "error: daemon connection closed"
		return a, nil

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

// handleEvent applies a pushed event to the model.
func (a App) handleEvent(m uds.Message) App {
	if m.Method == uds.EventDatesDelta {
		return a
	}

	var evt uds.StreamEvent
	if err := m.UnmarshalData(&evt); err != nil {
		a.statusMsg = "error: " + err.Error()
		return a
	}
	if a.session != "" && evt.SessionID != a.session {
		return a
	}

	switch m.Method {
	case uds.EventStreamConnected:
		a.session = evt.SessionID
		a.watching = evt.Watching
		a.statusMsg = "watching " + evt.Watching

	case uds.EventStreamLog:
		if evt.Record == nil || a.livePaused {
			return a
		}
		rec := *evt.Record
		a.live = append(a.live, rec)
		if len(a.live) > maxLive {
			a.live = a.live[len(a.live)-maxLive:]
		}
		if a.date == "" || a.date == a.today {
			a = a.mergeRecord(rec)
		}

	case uds.EventStreamNewDay:
		// Keep following the current day if that is what was on screen.
		if a.date == a.today {
			a.date = evt.Date
		}
		a.today = evt.Date
		a.statusMsg = "new day: " + evt.Date

	case uds.EventStreamError:
		a.statusMsg = "stream error: " + evt.Message
	}
	return a
}

// mergeRecord folds a live record into the history list when it passes
// the current filters.
func (a App) mergeRecord(rec core.Record) App {
	merged := query.Apply(append([]core.Record{rec}, a.records...), a.query())
	if len(merged) == 0 || !slices.ContainsFunc(merged, func(r core.Record) bool { return sameRecord(r, rec) }) {
		return a
	}
	// Keep the selection on the same record.
	if len(a.records) > 0 && a.selectedIdx > 0 {
		a.selectedIdx = min(a.selectedIdx+1, len(merged)-1)
	}
	a.records = merged
	return a
}

func sameRecord(a, b core.Record) bool {
	return a.Value().String() == b.Value().String()
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Search mode
	if a.mode == ModeSearch {
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.search.Blur()
			if a.search.Value() == "" {
				return a, nil
			}
			a.search.SetValue("")
			return a, a.refresh()
		case "enter":
			a.mode = ModeNormal
			a.search.Blur()
			a.selectedIdx = 0
			return a, a.refresh()
		default:
			var cmd tea.Cmd
			a.search, cmd = a.search.Update(msg)
			return a, cmd
		}
	}

	// Filter form
	if a.mode == ModeFilter && a.filter != nil {
		return a.filter.HandleKey(a, msg)
	}

	// Normal mode
	switch msg.String() {
	case "q", "ctrl+c":
		if err := a.savePrefs(); err != nil {
			a.statusMsg = "error: " + err.Error()
		}
		return a, tea.Quit

	case "j", "down":
		switch a.activePane {
		case PaneList:
			if len(a.records) > 0 {
				a.selectedIdx = min(a.selectedIdx+1, len(a.records)-1)
			}
		case PaneDetail:
			a.detail.ScrollDown(1)
		}
	case "k", "up":
		switch a.activePane {
		case PaneList:
			if a.selectedIdx > 0 {
				a.selectedIdx--
			}
		case PaneDetail:
			a.detail.ScrollUp(1)
		}
	case "g", "home":
		a.selectedIdx = 0
	case "G", "end":
		a.selectedIdx = max(0, len(a.records)-1)

	case "tab":
		panes := 2
		if a.showLive {
			panes = 3
		}
		a.activePane = (a.activePane + 1) % Pane(panes)
	case "enter":
		if a.activePane == PaneList && a.selectedRecord() != nil {
			a.activePane = PaneDetail
		}
	case "esc":
		a.activePane = PaneList

	case "/":
		a.mode = ModeSearch
		a.search.Focus()
		return a, textinput.Blink

	case "f":
		a.filter = NewFilterForm(a.hookEvent, a.toolName, a.limit, a.facets)
		a.mode = ModeFilter
		return a, textinput.Blink
	case "c":
		a.hookEvent, a.toolName = "", ""
		a.search.SetValue("")
		a.selectedIdx = 0
		a.statusMsg = "filters cleared"
		return a, a.refresh()

	case "[":
		return a.switchDate(+1)
	case "]":
		return a.switchDate(-1)
	case "t":
		a.date = a.today
		a.selectedIdx = 0
		return a, a.refresh()
	case "A":
		a.date = ""
		a.selectedIdx = 0
		return a, a.refresh()

	case "r":
		if a.client == nil {
			return a, connectCmd(a.socketPath)
		}
		a.statusMsg = "refreshing"
		return a, tea.Batch(a.refresh(), fetchDatesCmd(a.client))

	case "l":
		a.showLive = !a.showLive
		if !a.showLive && a.activePane == PaneLive {
			a.activePane = PaneList
		}
	case " ":
		a.livePaused = !a.livePaused
		if a.livePaused {
			a.statusMsg = "live paused"
		} else {
			a.statusMsg = "live resumed"
		}
	}

	return a, nil
}

// switchDate moves step entries through the newest first date list:
// +1 is older, -1 is newer.
func (a App) switchDate(step int) (tea.Model, tea.Cmd) {
	if len(a.dates) == 0 {
		a.statusMsg = "no days to switch to"
		return a, nil
	}
	idx := slices.Index(a.dates, a.date)
	switch {
	case idx < 0 && step > 0:
		idx = 0
	case idx < 0:
		idx = len(a.dates) - 1
	default:
		idx += step
	}
	if idx < 0 || idx >= len(a.dates) {
		return a, nil
	}
	a.date = a.dates[idx]
	a.selectedIdx = 0
	a.statusMsg = "showing " + a.date
	return a, a.refresh()
}

func (a App) selectedRecord() *core.Record {
	if a.selectedIdx < len(a.records) {
		return &a.records[a.selectedIdx]
	}
	return nil
}

// savePrefs writes the restorable view state. Viewing today is stored as
// following today.
func (a App) savePrefs() error {
	if a.prefsPath == "" {
		return nil
	}
	date := a.date
	switch date {
	case a.today:
		date = ""
	case "":
		date = prefs.AllDates
	}
	err := prefs.Save(a.prefsPath, prefs.Prefs{
		Date:       date,
		HookEvent:  a.hookEvent,
		ToolName:   a.toolName,
		Limit:      a.limit,
		ShowLive:   a.showLive,
		LivePaused: a.livePaused,
	})
	if err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}

// syncDetail sizes the detail viewport to its pane and loads the selected
// record. The scroll position is kept while the same record stays selected.
func (a *App) syncDetail() {
	if a.width == 0 || a.height == 0 {
		return
	}
	rec := a.selectedRecord()
	if rec == nil {
		a.detail.SetContent("")
		a.detail.GotoTop()
		a.detailKey = ""
		return
	}

	l := a.layout()
	a.detail.Width = l.detailW
	a.detail.Height = max(l.mainH-2-strings.Count(detailHeader(*rec), "\n"), 1)

	lines := strings.Split(prettyRecord(*rec), "\n")
	for i := range lines {
		lines[i] = truncate(lines[i], l.detailW)
	}
	a.detail.SetContent(strings.Join(lines, "\n"))

	if key := rec.Value().String(); key != a.detailKey {
		a.detailKey = key
		a.detail.GotoTop()
	}
}

// prettyRecord renders a record for the detail pane.
func prettyRecord(rec core.Record) string {
	compact := rec.Value().String()
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(compact), "", "  "); err != nil {
		return compact
	}
	return buf.String()
}
