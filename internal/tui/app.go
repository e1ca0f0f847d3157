// Package tui provides a terminal user interface.
package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/minerscan/internal/control"
	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/report"
)

// rowsEvery rebuilds the table on every n-th frame tick.
const rowsEvery = 10

// App is the main TUI application.
type App struct {
	engine *daemon.Engine
}

// NewApp creates a new TUI application on a started engine.
func NewApp(e *daemon.Engine) *App {
	return &App{engine: e}
}

// Run starts the TUI application. Observations are closed on exit.
func (a *App) Run() error {
	p := tea.NewProgram(newModel(a.engine), tea.WithAltScreen())
	_, err := p.Run()
	a.engine.Observer().CloseAll()
	return err
}

// appModel is the main bubbletea model.
type appModel struct {
	engine *daemon.Engine

	table    table.Model
	search   textinput.Model
	progress progress.Model
	spinner  spinner.Model

	searching bool
	sortIdx   int
	desc      bool
	selected  map[string]bool
	detail    string
	entries   []model.MinerEntry

	frames int
	status string
	width  int
	height int
}

func newModel(e *daemon.Engine) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SectionTitleStyle

	ti := textinput.New()
	ti.Placeholder = "address, model, worker..."
	ti.Prompt = "/ "
	ti.CharLimit = 64

	t := table.New(
		table.WithColumns(tableColumns(120)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = TableHeaderStyle
	styles.Selected = TableSelectedStyle
	t.SetStyles(styles)

	return appModel{
		engine:   e,
		table:    t,
		search:   ti,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  s,
		selected: make(map[string]bool),
	}
}

// Messages
type frameMsg time.Time

type controlMsg struct {
	action control.Action
	result control.Result
}

type statusMsg string

func frame() tea.Cmd {
	return tea.Tick(history.SampleInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Init initializes the model.
func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, frame())
}

// Update handles messages.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshRows()

	case frameMsg:
		now := time.Time(msg)
		m.engine.Sampler().Tick(now)
		m.engine.Observer().RefreshDue(m.engine.Config().DetailRefreshInterval())
		m.frames++
		if m.frames%rowsEvery == 0 {
			m.refreshRows()
		}
		return m, frame()

	case controlMsg:
		m.status = fmt.Sprintf("%s: %d ok, %d failed", msg.action, len(msg.result.Succeeded), len(msg.result.Failed))
		m.refreshRows()

	case statusMsg:
		m.status = string(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.search.Blur()
		m.table.Focus()
		if msg.String() == "esc" {
			m.search.SetValue("")
		}
		m.refreshRows()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.refreshRows()
	return m, cmd
}

func (m appModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "/":
		m.searching = true
		m.table.Blur()
		return m, m.search.Focus()

	case "s":
		m.sortIdx = (m.sortIdx + 1) % len(registry.Columns)
		m.refreshRows()
		return m, nil

	case "S":
		m.desc = !m.desc
		m.refreshRows()
		return m, nil

	case " ":
		if addr := m.cursorAddress(); addr != "" {
			m.selected[addr] = !m.selected[addr]
			if !m.selected[addr] {
				delete(m.selected, addr)
			}
			m.refreshRows()
		}
		return m, nil

	case "enter":
		addr := m.cursorAddress()
		if addr == "" {
			return m, nil
		}
		if m.detail != "" && m.detail != addr {
			m.engine.Observer().Close(m.detail)
		}
		if err := m.engine.Observer().Open(addr); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.detail = addr
		m.layout()
		return m, nil

	case "esc":
		if m.detail != "" {
			m.engine.Observer().Close(m.detail)
			m.detail = ""
			m.layout()
		}
		return m, nil

	case "r":
		return m, m.refresh()

	case "c":
		return m, m.toggleRecording()

	case "x":
		return m, m.exportRecording()

	case "u":
		return m, m.control(control.ActionResume)
	case "p":
		return m, m.control(control.ActionPause)
	case "i":
		return m, m.control(control.ActionIdentify)

	case "n":
		return m, m.scan()

	case "e":
		return m, m.exportTable()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m appModel) query() registry.Query {
	return registry.Query{
		Search: m.search.Value(),
		SortBy: registry.Columns[m.sortIdx],
		Desc:   m.desc,
	}
}

func (m *appModel) refreshRows() {
	m.entries = m.engine.Registry().Query(m.query())

	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		mark := " "
		if m.selected[e.Address] {
			mark = "•"
		}
		d := e.Display
		rows = append(rows, table.Row{
			mark + e.Address, d.Model, d.Hashrate, d.Wattage, d.Efficiency,
			d.Temperature, d.FanSpeed, d.Worker,
		})
	}
	m.table.SetRows(rows)
}

func (m *appModel) layout() {
	if m.width == 0 {
		return
	}
	m.table.SetColumns(tableColumns(m.width))
	m.progress.Width = max(20, m.width-30)

	height := m.height - 16
	if m.detail != "" {
		height -= 14
	}
	m.table.SetHeight(max(3, height))
}

func (m appModel) cursorAddress() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.entries) {
		return ""
	}
	return m.entries[i].Address
}

// targets returns the selection, or the cursor row when nothing is selected.
func (m appModel) targets() []string {
	if len(m.selected) > 0 {
		out := make([]string, 0, len(m.selected))
		for addr := range m.selected {
			out = append(out, addr)
		}
		return out
	}
	if addr := m.cursorAddress(); addr != "" {
		return []string{addr}
	}
	return nil
}

func (m appModel) control(action control.Action) tea.Cmd {
	addrs := m.targets()
	if len(addrs) == 0 {
		return nil
	}
	ctl := m.engine.Controller()
	ctx := m.engine.Context()
	return func() tea.Msg {
		return controlMsg{action: action, result: ctl.Run(ctx, action, addrs)}
	}
}

func (m appModel) refresh() tea.Cmd {
	addr := m.detail
	if addr == "" {
		addr = m.cursorAddress()
	}
	if addr == "" {
		return nil
	}
	obs := m.engine.Observer()
	return func() tea.Msg {
		if err := obs.Refresh(addr); err != nil {
			return statusMsg(err.Error())
		}
		return statusMsg("refreshing " + addr)
	}
}

func (m appModel) toggleRecording() tea.Cmd {
	addr := m.detail
	if addr == "" {
		return func() tea.Msg { return statusMsg("open a miner with enter to record") }
	}
	obs := m.engine.Observer()
	return func() tea.Msg {
		if state, ok := obs.Recording(addr); ok && state.Recording() {
			obs.StopRecording(addr)
			return statusMsg(fmt.Sprintf("recording stopped after %d rows", state.Rows()))
		}
		state, err := obs.StartRecording(addr)
		if err != nil {
			return statusMsg(err.Error())
		}
		return statusMsg("recording to " + state.Path())
	}
}

func (m appModel) exportRecording() tea.Cmd {
	addr := m.detail
	if addr == "" {
		return nil
	}
	obs := m.engine.Observer()
	dir := m.engine.Config().DataDir
	return func() tea.Msg {
		state, ok := obs.Recording(addr)
		if !ok {
			return statusMsg("no recording for " + addr)
		}
		dest := filepath.Join(dir, "exports", filepath.Base(state.Path()))
		if err := obs.ExportRecording(addr, dest); err != nil {
			return statusMsg(err.Error())
		}
		return statusMsg("exported to " + dest)
	}
}

func (m appModel) scan() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		id, err := e.ScanSaved()
		switch {
		case errors.Is(err, daemon.ErrNoRanges):
			return statusMsg("no saved ranges; add one with `minerscan ranges add`")
		case err != nil:
			return statusMsg(err.Error())
		}
		return statusMsg("scan " + id[:8] + " started")
	}
}

func (m appModel) exportTable() tea.Cmd {
	entries := append([]model.MinerEntry(nil), m.entries...)
	dir := m.engine.Config().DataDir
	return func() tea.Msg {
		path := filepath.Join(dir, "exports",
			fmt.Sprintf("miners_%s.csv", time.Now().Format("2006-01-02_15-04-05")))
		if err := report.ExportFile(path, entries); err != nil {
			return statusMsg(err.Error())
		}
		return statusMsg(fmt.Sprintf("exported %d miners to %s", len(entries), path))
	}
}

// View renders the UI.
func (m appModel) View() string {
	if m.width == 0 {
		return LoadingStyle.Render(m.spinner.View() + " Loading...")
	}
	return m.render()
}
