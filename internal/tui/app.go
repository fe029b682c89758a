package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"prdeck/internal/feed"
	"prdeck/internal/filter"
	"prdeck/internal/model"
	"prdeck/internal/reserve"
)

// — state ———————————————————————————————————————————————————————————————————

type appState int

const (
	stateNormal appState = iota
	stateFilter
	stateReservations
)

// — collaborators ———————————————————————————————————————————————————————————

// Reserver issues reservation calls against the backend.
type Reserver interface {
	Reserve(ctx context.Context, stage model.Stage, spec model.FilterSpec) reserve.Result
	Reservations(ctx context.Context) ([]reserve.Reservation, error)
	ExtendAll(ctx context.Context) (string, error)
}

// HideStore is the durable set of dismissed item ids.
type HideStore interface {
	filter.HideSet
	Hide(id string) error
}

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	tabStyle = lipgloss.NewStyle().
			Faint(true).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	detailHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().Faint(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

// — messages ————————————————————————————————————————————————————————————————

type boardLoadedMsg struct {
	snap *feed.Snapshot
	err  error
}

type reserveDoneMsg struct {
	stage  model.Stage
	result reserve.Result
}

type itemHiddenMsg struct {
	stage model.Stage
	id    string
	err   error
}

type reservationsLoadedMsg struct {
	rows []reserve.Reservation
	err  error
}

type extendDoneMsg struct {
	note string
	err  error
}

// — list item ———————————————————————————————————————————————————————————————

type prItem struct {
	it model.Item
}

func (i prItem) Title() string { return "#" + i.it.ID + "  " + i.it.Title }

func (i prItem) Description() string {
	if len(i.it.Labels) == 0 {
		return "no labels"
	}
	return strings.Join(i.it.Labels, "  ")
}

func (i prItem) FilterValue() string { return i.it.Title }

// — model ———————————————————————————————————————————————————————————————————

// Options seed the dashboard's initial filter and result limit.
type Options struct {
	Limit  int
	Filter model.FilterSpec
}

type Model struct {
	source   feed.Source
	reserver Reserver
	hidden   HideStore

	width   int
	height  int
	loading bool
	err     error

	state appState
	spec  model.FilterSpec
	limit int

	snap   *feed.Snapshot
	lists  [len(model.Stages)]list.Model
	active int

	// Per-stage reservation state. Each reservation's result handler only
	// touches its own stage's slot, so near-simultaneous reservations for
	// distinct stages cannot race.
	status    [len(model.Stages)]string
	reserving [len(model.Stages)]bool

	includeInput textinput.Model
	excludeInput textinput.Model
	limitInput   textinput.Model
	focus        int
	inputErr     string

	reservations []reserve.Reservation
	resvNote     string
	resvErr      string
}

func New(source feed.Source, reserver Reserver, hidden HideStore, opts Options) Model {
	m := Model{
		source:   source,
		reserver: reserver,
		hidden:   hidden,
		loading:  true,
		spec:     opts.Filter,
		limit:    opts.Limit,
	}

	delegate := list.NewDefaultDelegate()
	for i, stage := range model.Stages {
		l := list.New([]list.Item{}, delegate, 0, 0)
		l.Title = stage.String()
		l.SetShowStatusBar(false)
		l.SetFilteringEnabled(false)
		l.SetShowHelp(false)
		l.Styles.Title = titleStyle
		m.lists[i] = l
	}

	m.includeInput = textinput.New()
	m.includeInput.Placeholder = "e.g. python"
	m.includeInput.CharLimit = 100

	m.excludeInput = textinput.New()
	m.excludeInput.Placeholder = "e.g. darwin"
	m.excludeInput.CharLimit = 100

	m.limitInput = textinput.New()
	m.limitInput.Placeholder = "50"
	m.limitInput.CharLimit = 5

	return m
}

// — commands ————————————————————————————————————————————————————————————————

func fetchBoardCmd(source feed.Source, limit int) tea.Cmd {
	return func() tea.Msg {
		snap, err := source.Fetch(context.Background(), limit)
		return boardLoadedMsg{snap: snap, err: err}
	}
}

func reserveCmd(reserver Reserver, stage model.Stage, spec model.FilterSpec) tea.Cmd {
	return func() tea.Msg {
		return reserveDoneMsg{
			stage:  stage,
			result: reserver.Reserve(context.Background(), stage, spec),
		}
	}
}

// hideCmd persists the dismiss before the message reaches Update, so the
// item is durably gone even if the process dies right after.
func hideCmd(hidden HideStore, stage model.Stage, id string) tea.Cmd {
	return func() tea.Msg {
		return itemHiddenMsg{stage: stage, id: id, err: hidden.Hide(id)}
	}
}

func fetchReservationsCmd(reserver Reserver) tea.Cmd {
	return func() tea.Msg {
		rows, err := reserver.Reservations(context.Background())
		return reservationsLoadedMsg{rows: rows, err: err}
	}
}

func extendReservationsCmd(reserver Reserver) tea.Cmd {
	return func() tea.Msg {
		note, err := reserver.ExtendAll(context.Background())
		return extendDoneMsg{note: note, err: err}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		cmd.Run()
		return nil
	}
}

// applyFilter re-derives every stage's visible list from the last
// snapshot, the current filter and the hide set.
func (m *Model) applyFilter() {
	if m.snap == nil {
		return
	}
	for i, stage := range model.Stages {
		visible := filter.Visible(m.snap.Items[stage], m.spec, m.hidden)
		items := make([]list.Item, len(visible))
		for j, it := range visible {
			items[j] = prItem{it: it}
		}
		m.lists[i].SetItems(items)
		m.lists[i].Title = fmt.Sprintf("%s  %d/%d", stage, len(visible), m.snap.Totals[stage])
	}
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return fetchBoardCmd(m.source, m.limit)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		lw, lh := m.listDimensions()
		for i := range m.lists {
			m.lists[i].SetSize(lw, lh)
		}
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.snap = msg.snap
		m.applyFilter()
		return m, nil

	case reserveDoneMsg:
		i := int(msg.stage)
		m.reserving[i] = false
		if msg.result.OK() {
			m.status[i] = ""
			return m, openURLCmd(msg.result.URL)
		}
		m.status[i] = msg.result.Message
		return m, nil

	case itemHiddenMsg:
		i := int(msg.stage)
		if msg.err != nil {
			m.status[i] = fmt.Sprintf("hide failed: %v", msg.err)
			return m, nil
		}
		// The write is durable; dropping the item from every list is now
		// just a recomputation from the snapshot.
		m.applyFilter()
		return m, nil

	case reservationsLoadedMsg:
		if msg.err != nil {
			m.resvErr = msg.err.Error()
			return m, nil
		}
		m.resvErr = ""
		m.reservations = msg.rows
		return m, nil

	case extendDoneMsg:
		if msg.err != nil {
			m.resvErr = msg.err.Error()
			return m, nil
		}
		m.resvNote = msg.note
		return m, fetchReservationsCmd(m.reserver)
	}

	switch m.state {
	case stateFilter:
		return m.updateFilter(msg)
	case stateReservations:
		return m.updateReservations(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, fetchBoardCmd(m.source, m.limit)
		case "tab", "right", "l":
			m.active = (m.active + 1) % len(model.Stages)
			return m, nil
		case "shift+tab", "left", "h":
			m.active = (m.active + len(model.Stages) - 1) % len(model.Stages)
			return m, nil
		case "1", "2", "3", "4":
			m.active = int(msg.String()[0] - '1')
			return m, nil
		case "f":
			m.state = stateFilter
			m.inputErr = ""
			m.includeInput.SetValue(m.spec.Include)
			m.excludeInput.SetValue(m.spec.Exclude)
			m.limitInput.SetValue(strconv.Itoa(m.limit))
			m.focus = 0
			m.includeInput.Focus()
			m.excludeInput.Blur()
			m.limitInput.Blur()
			return m, textinput.Blink
		case "enter":
			if m.reserving[m.active] {
				return m, nil
			}
			m.reserving[m.active] = true
			m.status[m.active] = ""
			return m, reserveCmd(m.reserver, model.Stages[m.active], m.spec)
		case "x":
			it := m.selectedItem()
			if it != nil {
				return m, hideCmd(m.hidden, it.Stage, it.ID)
			}
			return m, nil
		case "o":
			it := m.selectedItem()
			if it != nil && it.URL != "" {
				return m, openURLCmd(it.URL)
			}
			return m, nil
		case "v":
			m.state = stateReservations
			m.resvNote = ""
			m.resvErr = ""
			return m, fetchReservationsCmd(m.reserver)
		}
	}
	var cmd tea.Cmd
	m.lists[m.active], cmd = m.lists[m.active].Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.state = stateNormal
			m.inputErr = ""
			m.blurInputs()
			return m, nil
		case "tab", "down":
			return m.focusInput(m.focus + 1)
		case "shift+tab", "up":
			return m.focusInput(m.focus + 2)
		case "enter":
			limit := m.limit
			if v := strings.TrimSpace(m.limitInput.Value()); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n <= 0 {
					m.inputErr = "limit must be a positive number"
					return m, nil
				}
				limit = n
			}
			m.spec = model.FilterSpec{
				Include: m.includeInput.Value(),
				Exclude: m.excludeInput.Value(),
			}
			m.state = stateNormal
			m.inputErr = ""
			m.blurInputs()
			if limit != m.limit {
				// The limit belongs to the feed, not to the local filter,
				// so changing it forces a refresh.
				m.limit = limit
				m.loading = true
				return m, fetchBoardCmd(m.source, m.limit)
			}
			m.applyFilter()
			return m, nil
		}
	}
	var cmd tea.Cmd
	switch m.focus {
	case 0:
		m.includeInput, cmd = m.includeInput.Update(msg)
	case 1:
		m.excludeInput, cmd = m.excludeInput.Update(msg)
	default:
		m.limitInput, cmd = m.limitInput.Update(msg)
	}
	return m, cmd
}

func (m Model) focusInput(focus int) (tea.Model, tea.Cmd) {
	m.focus = focus % 3
	m.blurInputs()
	switch m.focus {
	case 0:
		m.includeInput.Focus()
	case 1:
		m.excludeInput.Focus()
	default:
		m.limitInput.Focus()
	}
	return m, textinput.Blink
}

func (m *Model) blurInputs() {
	m.includeInput.Blur()
	m.excludeInput.Blur()
	m.limitInput.Blur()
}

func (m Model) updateReservations(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "v":
			m.state = stateNormal
			return m, nil
		case "e":
			return m, extendReservationsCmd(m.reserver)
		case "r":
			m.resvNote = ""
			return m, fetchReservationsCmd(m.reserver)
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.loading {
		return lipgloss.NewStyle().Padding(1, 2).Render("Loading pull requests…")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit.", m.err),
		)
	}

	if m.state == stateReservations {
		return m.renderReservations()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.lists[m.active].View(), m.renderDetail())
	base := lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), body, m.renderHelp())

	if m.state == stateFilter {
		return m.renderFilterModalOver(base)
	}
	return base
}

// — layout helpers ——————————————————————————————————————————————————————————

func (m Model) listDimensions() (width, height int) {
	return m.width / 2, m.height - 4
}

func (m Model) renderTabs() string {
	var tabs []string
	for i, stage := range model.Stages {
		label := stage.String()
		if m.snap != nil {
			label = fmt.Sprintf("%s %d", stage, len(m.lists[i].Items()))
		}
		if i == m.active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderDetail() string {
	lw, _ := m.listDimensions()
	dw := m.width - lw
	dh := m.height - 4

	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(3).
		PaddingRight(2).
		Width(dw - 1).
		Height(dh)

	// Width of inner text area: box width minus padding
	contentWidth := (dw - 1) - 3 - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	var b strings.Builder

	it := m.selectedItem()
	if it == nil {
		b.WriteString(dimStyle.Render("Nothing to show in this stage") + "\n")
	} else {
		title := it.Title
		if len([]rune(title)) > contentWidth {
			title = string([]rune(title)[:contentWidth-1]) + "…"
		}
		b.WriteString(detailHeadStyle.Render("#"+it.ID) + "\n\n")
		b.WriteString(title + "\n\n")
		b.WriteString(row("Stage    ", it.Stage.String()))
		b.WriteString(row("URL      ", it.URL))
		b.WriteString("\n")
		if len(it.Labels) > 0 {
			b.WriteString(labelStyle.Render("Labels") + "\n")
			for _, l := range it.Labels {
				b.WriteString("  " + l + "\n")
			}
		} else {
			b.WriteString(dimStyle.Render("No labels") + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", contentWidth)) + "\n")

	switch {
	case m.reserving[m.active]:
		b.WriteString(dimStyle.Render("Reserving…") + "\n")
	case m.status[m.active] != "":
		b.WriteString(errStyle.Render(m.status[m.active]) + "\n")
	}

	if m.spec.Include != "" || m.spec.Exclude != "" {
		b.WriteString("\n")
		if m.spec.Include != "" {
			b.WriteString(row("Include  ", m.spec.Include))
		}
		if m.spec.Exclude != "" {
			b.WriteString(row("Exclude  ", m.spec.Exclude))
		}
	}

	return style.Render(b.String())
}

func (m Model) renderHelp() string {
	var text string
	switch m.state {
	case stateFilter:
		text = "Tab next field   Enter apply   Esc cancel"
	default:
		text = "←/→ stage   ↑/↓ navigate   Enter reserve   x dismiss   o open   f filter   v reservations   r refresh   q quit"
	}
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(text)
}

func (m Model) renderFilterModalOver(base string) string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("Filter") + "\n\n")
	b.WriteString("Include pattern\n")
	b.WriteString(m.includeInput.View() + "\n\n")
	b.WriteString("Exclude pattern\n")
	b.WriteString(m.excludeInput.View() + "\n\n")
	b.WriteString("Result limit\n")
	b.WriteString(m.limitInput.View() + "\n")
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Patterns match title and labels, case-sensitively"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) renderReservations() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reservations") + "\n\n")

	if m.resvErr != "" {
		b.WriteString("  " + errStyle.Render(m.resvErr) + "\n")
	} else if len(m.reservations) == 0 {
		b.WriteString("  " + dimStyle.Render("No active reservations") + "\n")
	} else {
		b.WriteString("  " + boldStyle.Render(fmt.Sprintf("%-10s %s", "PR", "Reserved until")) + "\n")
		for _, r := range m.reservations {
			b.WriteString(fmt.Sprintf("  %-10d %s\n", r.ID, r.Time))
		}
	}

	if m.resvNote != "" {
		b.WriteString("\n  " + okStyle.Render(m.resvNote) + "\n")
	}

	sep := dimStyle.Render(strings.Repeat("─", m.width))
	help := helpStyle.Render("e extend all one week   r refresh   Esc back")
	return lipgloss.JoinVertical(lipgloss.Left, b.String(), sep, help)
}

func (m Model) selectedItem() *model.Item {
	items := m.lists[m.active].Items()
	if len(items) == 0 {
		return nil
	}
	idx := m.lists[m.active].Index()
	if idx < 0 || idx >= len(items) {
		return nil
	}
	it := items[idx].(prItem).it
	return &it
}
