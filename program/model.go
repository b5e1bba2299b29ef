package main

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/keilerkonzept/topk/heap"

	"github.com/keilerkonzept/objtop/snapshot"
)

var (
	selectedColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor   = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	selectedFg    = styles.NewStyle().Foreground(selectedColor)
	borderFg      = styles.NewStyle().Foreground(borderColor)
	errorFg       = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

const (
	seriesTotal = iota
	seriesSelected
	numSeries
)

type model struct {
	width, height  int
	leftPaneWidth  int
	rightPaneWidth int

	track    bool
	reverse  bool
	paused   bool
	mode     snapshot.SearchMode
	logScale atomic.Bool
	err      error

	inv       inventory
	invDesc   string
	lastStats snapshot.Stats

	list         list.Model
	listStyle    styles.Style
	listDelegate *list.DefaultDelegate
	search       textinput.Model
	help         help.Model
	plot         *plot.Canvas

	history     []float64
	nameHistory map[string][]float64
	plotData    [][]float64
	leaders     *LeaderRanker
	leaderItems []heap.Item
	schedule    *refreshSchedule
	metrics     *rebuildMetrics
	logger      log.Logger
	lastRebuilt time.Time
}

func newModel(inv inventory, desc string, logger log.Logger) *model {
	const (
		defaultWidth  = 80
		defaultHeight = 20
	)

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = styles.NewStyle().
		Border(styles.NormalBorder(), false, false, false, true).
		BorderForeground(borderColor).
		Foreground(selectedColor).
		Bold(false).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.
		Foreground(selectedColor)
	d.ShowDescription = true

	l := list.New(make([]list.Item, 0), d, defaultWidth/2-2, defaultHeight)
	l.Styles.NoItems = l.Styles.NoItems.
		Padding(0, 2)
	// Search is applied by rebuilding the inventory, not by the widget.
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search"
	search.SetValue(config.Search)

	mode, _ := snapshot.ParseSearchMode(config.SearchMode)

	p := plot.NewCanvas(defaultWidth, defaultHeight)
	p.NumDataPoints = config.History
	p.ShowAxis = false
	p.LineColors = make([]plot.Color, numSeries)

	metrics := newRebuildMetrics(config.StatsWindow)
	metrics.setEnabled(config.StatsEnabled)

	if logger == nil {
		logger = log.NewNopLogger()
	}

	m := &model{
		track:        config.TrackSelected,
		reverse:      config.Reverse,
		mode:         mode,
		inv:          inv,
		invDesc:      desc,
		list:         l,
		listDelegate: &d,
		search:       search,
		help:         help.New(),
		plot:         &p,
		history:      make([]float64, config.History),
		nameHistory:  make(map[string][]float64),
		plotData:     make([][]float64, numSeries),
		leaders:      NewLeaderRanker(config.K, config.Window, config.Width, config.Depth, config.Decay),
		schedule:     newRefreshSchedule(config.Refresh),
		metrics:      metrics,
		logger:       logger,
	}
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(defaultWidth, config.ViewSplit)
	m.logScale.Store(config.LogScale)
	for i := range m.plotData {
		m.plotData[i] = make([]float64, config.History)
	}
	return m
}

type rebuildMsg struct{}

type refreshTickMsg time.Time

func requestRebuild() tui.Msg { return rebuildMsg{} }

func doRefreshTick() tui.Cmd {
	if config.Refresh <= 0 {
		return nil
	}
	return tui.Every(config.Refresh, func(t time.Time) tui.Msg {
		return refreshTickMsg(t)
	})
}

func (m *model) Init() tui.Cmd {
	return tui.Batch(requestRebuild, doRefreshTick())
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case rebuildMsg:
		return m, m.refresh()
	case refreshTickMsg:
		if m.paused || !m.schedule.due(time.Time(msg)) {
			return m, doRefreshTick()
		}
		return m, tui.Batch(m.refresh(), doRefreshTick())
	case tui.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tui.KeyMsg:
		if m.search.Focused() {
			return m, m.updateSearch(msg)
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tui.Quit
		case key.Matches(msg, keys.Search):
			return m, m.search.Focus()
		case key.Matches(msg, keys.Reverse):
			m.reverse = !m.reverse
			return m, m.rebuild()
		case key.Matches(msg, keys.Refresh):
			return m, m.refresh()
		case key.Matches(msg, keys.Mode):
			m.mode = (m.mode + 1) % 2
			return m, m.rebuild()
		case key.Matches(msg, keys.Up):
			m.list.CursorUp()
			m.updatePlot()
			return m, nil
		case key.Matches(msg, keys.Down):
			m.list.CursorDown()
			m.updatePlot()
			return m, nil
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
			return m, nil
		case key.Matches(msg, keys.Track):
			m.track = !m.track
			return m, nil
		case key.Matches(msg, keys.Scale):
			m.logScale.Store(!m.logScale.Load())
			m.updatePlot()
			return m, nil
		}
	}
	var cmd tui.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) updateSearch(msg tui.KeyMsg) tui.Cmd {
	switch {
	case msg.Type == tui.KeyCtrlC:
		return tui.Quit
	case key.Matches(msg, keys.LeaveSearch):
		m.search.Blur()
		return nil
	}
	before := m.search.Value()
	var cmd tui.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() == before {
		return cmd
	}
	return tui.Batch(cmd, m.rebuild())
}

// refresh is a rebuild that also advances the leaders window and the
// footprint history. Search and direction changes only rebuild.
func (m *model) refresh() tui.Cmd {
	cmd := m.rebuild()
	if m.err != nil {
		return cmd
	}
	snap := m.inv.Snapshot()
	m.leaderItems = m.leaders.Observe(snap.Rows())
	m.recordHistory(snap)
	m.updatePlot()
	return cmd
}

// rebuild rescans the inventory with the current search and direction, then
// pulls the new rows into the list widget.
func (m *model) rebuild() tui.Cmd {
	req := snapshot.Request{
		Match:   snapshot.Search(m.mode, m.search.Value()),
		Reverse: m.reverse,
	}
	stats, err := m.inv.Rebuild(req)
	m.metrics.observeRebuild(stats, err)
	if err != nil {
		m.err = err
		level.Error(m.logger).Log("msg", "rebuild failed", "source", m.invDesc, "err", err)
		return nil
	}
	m.err = nil
	m.lastStats = stats
	m.lastRebuilt = time.Now()
	m.schedule.markRefreshed(m.lastRebuilt)
	level.Debug(m.logger).Log("msg", "rebuilt", "rows", stats.Rows, "bytes", stats.TotalBytes, "took", stats.Took)

	cmd := m.updateList()
	m.updatePlot()
	return cmd
}

func (m *model) updateList() tui.Cmd {
	m.listDelegate.Styles.SelectedTitle = m.listDelegate.Styles.SelectedTitle.Bold(m.track)
	m.listDelegate.Styles.SelectedDesc = m.listDelegate.Styles.SelectedDesc.Bold(m.track)
	m.list.SetDelegate(m.listDelegate)

	n := m.inv.Count()
	items := make([]list.Item, 0, n)
	order := make(map[string]int, n)
	numDecimals := 1 + int(math.Ceil(math.Log10(float64(n+1))))
	rankFormat := "#%-" + fmt.Sprint(numDecimals) + "d"
	for i := 0; i < n; i++ {
		row, ok := m.inv.ElementAt(i)
		if !ok {
			break
		}
		items = append(items, listItem{
			Rank: fmt.Sprintf(rankFormat, i+1),
			Row:  row,
		})
		if _, seen := order[row.Name]; !seen {
			order[row.Name] = i
		}
	}

	selected := m.list.SelectedItem()
	cmd := m.list.SetItems(items)
	if m.track && selected != nil {
		if i, ok := order[selected.(listItem).Name]; ok {
			m.list.Select(i)
		}
	}
	return cmd
}

func (m *model) recordHistory(snap *snapshot.Snapshot) {
	m.history = pushSample(m.history, float64(snap.TotalBytes()))

	seen := make(map[string]bool, snap.Len())
	for i := 0; i < snap.Len(); i++ {
		row, _ := snap.At(i)
		if seen[row.Name] {
			continue
		}
		seen[row.Name] = true
		series, ok := m.nameHistory[row.Name]
		if !ok {
			series = make([]float64, config.History)
		}
		m.nameHistory[row.Name] = pushSample(series, float64(row.Bytes))
	}
	for name := range m.nameHistory {
		if !seen[name] {
			delete(m.nameHistory, name)
		}
	}
}

// pushSample shifts series left by one and appends v.
func pushSample(series []float64, v float64) []float64 {
	if len(series) == 0 {
		return series
	}
	copy(series, series[1:])
	series[len(series)-1] = v
	return series
}

func (m *model) selectedRow() (snapshot.Row, bool) {
	item, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return snapshot.Row{}, false
	}
	return item.Row, true
}

func (m *model) updatePlot() {
	logScale := m.logScale.Load()

	var highlight, dim plot.Color
	if styles.DefaultRenderer().HasDarkBackground() {
		highlight, dim = plot.Red, plot.DimGray
	} else {
		highlight, dim = plot.Black, plot.LightGray
	}

	fillSeries(m.plotData[seriesTotal], m.history, logScale)
	selected := m.plotData[seriesSelected]
	if row, ok := m.selectedRow(); ok {
		fillSeries(selected, m.nameHistory[row.Name], logScale)
	} else {
		fillSeries(selected, nil, logScale)
	}

	m.plot.LineColors[seriesTotal] = dim
	m.plot.LineColors[seriesSelected] = highlight
	m.plot.Fill(m.plotData)
}

func fillSeries(dst, src []float64, logScale bool) {
	for i := range dst {
		v := 0.0
		if i < len(src) {
			v = src[i]
		}
		if logScale {
			v = math.Log(max(1, v))
		}
		dst[i] = v
	}
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(m.width, config.ViewSplit)

	statsLines := 0
	if config.StatsEnabled {
		// title + 4 metric lines
		statsLines = 5
	}
	// search line + help line
	available := max(1, m.height-statsLines-2)

	leftW := max(1, m.leftPaneWidth)
	rightW := max(1, m.rightPaneWidth)

	m.list.SetSize(leftW, available)
	m.list.Styles.Title = styles.NewStyle()
	m.list.Styles.PaginationStyle = styles.NewStyle()
	m.list.Styles.HelpStyle = styles.NewStyle()
	m.listStyle = styles.NewStyle().Width(leftW).Height(available)
	m.search.Width = max(1, leftW-len(m.search.Prompt)-1)

	// Right side: plot + label line + leaders, wrapped in a border (adds 2 lines).
	leaderLines := min(config.K, max(0, available/3)) + 1
	plotHeight := max(1, available-3-leaderLines)
	plotWidth := max(1, rightW-2)
	m.resizePlot(plotWidth, plotHeight)
}

func (m *model) resizePlot(w int, h int) {
	p := plot.NewCanvas(w, h)
	p.NumDataPoints = m.plot.NumDataPoints
	p.ShowAxis = m.plot.ShowAxis
	p.LineColors = m.plot.LineColors
	m.plot = &p
	m.updatePlot()
}

func (m *model) View() string {
	mode := borderFg.Render(m.mode.String())
	direction := "desc"
	if m.reverse {
		direction = "asc"
	}
	header := styles.JoinHorizontal(styles.Top,
		m.search.View(), "  ", mode, " ", borderFg.Render(direction))

	left := m.listStyle.Render(m.list.View())
	right := plotStyle.Render(styles.JoinVertical(styles.Left, m.plotView(), m.plotLabels(), m.leadersView()))
	view := styles.JoinVertical(styles.Left, header, styles.JoinHorizontal(styles.Top, left, right))

	if m.err != nil {
		return styles.JoinVertical(styles.Left, view, errorFg.Render("ERROR: "+m.err.Error()), m.help.View(keys))
	}
	if config.StatsEnabled {
		return styles.JoinVertical(styles.Left, view, errorFg.Render(m.statsView()), m.help.View(keys))
	}
	return styles.JoinVertical(styles.Left, view, m.help.View(keys))
}

func (m *model) plotView() string {
	if s := m.plot.String(); s != "" {
		return s
	}
	sb := emptyPlot(m)
	return sb.String()
}

func (m *model) plotLabels() string {
	linColor := borderFg
	logColor := borderFg
	if m.logScale.Load() {
		logColor = selectedFg
	} else {
		linColor = selectedFg
	}
	linLog := linColor.Render("LIN") + " " + logColor.Render("LOG")

	total := "total " + humanize.IBytes(uint64(max(0, m.lastStats.TotalBytes)))
	if row, ok := m.selectedRow(); ok {
		total += "  " + selectedFg.Render(row.Name)
	}
	return total + "  " + linLog
}

func (m *model) leadersView() string {
	lines := []string{borderFg.Render(fmt.Sprintf("SUSTAINED (last %d rebuilds)", config.Window))}
	if len(m.leaderItems) == 0 {
		return strings.Join(append(lines, "-"), "\n")
	}
	for i, item := range m.leaderItems {
		lines = append(lines, fmt.Sprintf("#%-2d %s  %s", i+1, humanize.IBytes(uint64(item.Count)<<10), item.Item))
	}
	return strings.Join(lines, "\n")
}

func (m *model) statsView() string {
	snap := m.metrics.snapshot()
	title := "REBUILD STATS (AUTO)"
	switch {
	case config.Refresh <= 0:
		title = "REBUILD STATS (MANUAL)"
	case m.paused:
		title = "REBUILD STATS (PAUSED)"
	}
	last := "never"
	if !m.lastRebuilt.IsZero() {
		last = m.lastRebuilt.Format("15:04:05")
	}
	return strings.Join([]string{
		title,
		fmt.Sprintf("source: %s  last: %s", m.invDesc, last),
		fmt.Sprintf("rebuilds: %d (failed %d)  rows: %d (%s) of %d scanned",
			snap.rebuilds, snap.failures, snap.rows, humanize.IBytes(uint64(max(snap.bytes, 0))), m.lastStats.Scanned),
		fmt.Sprintf("hidden: %d  unavailable: %d  unmatched: %d", m.lastStats.Hidden, m.lastStats.Unavailable, m.lastStats.Unmatched),
		fmt.Sprintf("totals: scanned %s  hidden %s  unavailable %s",
			humanize.Comma(int64(snap.scanned)), humanize.Comma(int64(snap.hidden)), humanize.Comma(int64(snap.unavailable))),
		fmt.Sprintf("rebuild latency last/avg/max: %s / %s / %s",
			formatMetricDuration(snap.latency.last), formatMetricDuration(snap.latency.avg), formatMetricDuration(snap.latency.max)),
	}, "\n")
}

func emptyPlot(m *model) strings.Builder {
	var sb strings.Builder
	if m.width < 2 || m.height < 4 {
		return sb
	}
	w := max(1, m.rightPaneWidth-2)
	spaces := strings.Repeat(" ", w)
	for range max(0, m.list.Height()-2) {
		sb.WriteString(spaces)
		sb.WriteRune('\n')
	}
	return sb
}

func formatMetricDuration(d time.Duration) string {
	if d <= 0 {
		return "0.000ms"
	}
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}

func computePaneWidths(totalWidth int, splitPercent int) (left, right int) {
	if totalWidth <= 1 {
		return 1, 1
	}
	left = totalWidth * splitPercent / 100
	if left < 1 {
		left = 1
	}
	if left > totalWidth-1 {
		left = totalWidth - 1
	}
	right = totalWidth - left

	// Keep panes readable when the terminal is wide enough.
	const minPane = 18
	if totalWidth >= minPane*2 {
		if left < minPane {
			left = minPane
			right = totalWidth - left
		}
		if right < minPane {
			right = minPane
			left = totalWidth - right
		}
	}
	return max(1, left), max(1, right)
}

type listItem struct {
	Rank string
	snapshot.Row
}

func (i listItem) Title() string { return i.Rank + " " + i.Label }
func (i listItem) Description() string {
	return strings.Repeat(" ", len(i.Rank)) + " " + humanize.Comma(i.Bytes) + " bytes"
}
func (i listItem) FilterValue() string { return i.Label }

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Search, k.Reverse, k.Refresh, k.Mode, k.Pause}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Search, k.LeaveSearch, k.Refresh, k.Pause},
		{k.Up, k.Down, k.Reverse, k.Mode, k.Track, k.Scale},
	}
}

type keyMap struct {
	Search      key.Binding
	LeaveSearch key.Binding
	Reverse     key.Binding
	Refresh     key.Binding
	Mode        key.Binding
	Track       key.Binding
	Scale       key.Binding
	Pause       key.Binding
	Up          key.Binding
	Down        key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	LeaveSearch: key.NewBinding(
		key.WithKeys("enter", "esc"),
		key.WithHelp("enter/esc", "done"),
	),
	Reverse: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reverse"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r", "f5"),
		key.WithHelp("ctrl+r", "refresh"),
	),
	Mode: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "fuzzy/contains"),
	),
	Track: key.NewBinding(
		key.WithKeys("t", " "),
		key.WithHelp("t/space", "track"),
	),
	Scale: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "log/lin"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}
