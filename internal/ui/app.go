package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/perch/internal/actions"
	"github.com/five82/perch/internal/logtail"
	"github.com/five82/perch/internal/prefs"
	"github.com/five82/perch/internal/refresh"
	"github.com/five82/perch/internal/session"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/state"
)

// tab is one screen of the TUI.
type tab int

const (
	tabFeed tab = iota
	tabUsers
	tabProfile
	tabNotifications
	tabLogs
)

var tabOrder = []tab{tabFeed, tabUsers, tabProfile, tabNotifications, tabLogs}

func (t tab) String() string {
	switch t {
	case tabUsers:
		return "Users"
	case tabProfile:
		return "Profile"
	case tabNotifications:
		return "Notifications"
	case tabLogs:
		return "Log"
	default:
		return "Feed"
	}
}

// name is the stable identifier persisted in prefs.
func (t tab) name() string {
	return strings.ToLower(t.String())
}

// view maps a tab to the refresh view that backs it. The log tab has none.
func (t tab) view() (refresh.View, bool) {
	switch t {
	case tabFeed:
		return refresh.ViewFeed, true
	case tabUsers:
		return refresh.ViewUsers, true
	case tabProfile:
		return refresh.ViewProfile, true
	case tabNotifications:
		return refresh.ViewNotifications, true
	default:
		return 0, false
	}
}

func tabFromName(name string) tab {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range tabOrder {
		if t.name() == name {
			return t
		}
	}
	return tabFeed
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Store     *state.Store
	Session   *session.Session
	Refresher *refresh.Refresher
	Actions   *actions.Coordinator
	LogPath   string
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
	LastView  string
}

type flash struct {
	text string
	kind actions.Kind
	at   time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	store     *state.Store
	session   *session.Session
	refresher *refresh.Refresher
	actions   *actions.Coordinator
	logPath   string
	prefsPath string
	pollTick  time.Duration
	now       func() time.Time

	// UI state
	keys     keyMap
	theme    Theme
	current  tab
	width    int
	height   int
	ready    bool
	showHelp bool
	spinner  spinner.Model
	flash    flash

	// Data state
	snapshot state.Snapshot
	userID   int64
	statuses map[refresh.View]refresh.Status
	loading  map[refresh.View]bool
	cursor   map[tab]int

	// Post composer
	composer  textinput.Model
	composing bool

	// User selector
	selecting   bool
	selectorIdx int

	// Client log
	logViewport viewport.Model
	logLines    []string
	logErr      error
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	composer := textinput.New()
	composer.Placeholder = "What's on your mind?"
	composer.CharLimit = social.MaxPostLength
	composer.Prompt = "> "

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	var userID int64
	if opts.Session != nil {
		userID, _ = opts.Session.Current()
	}

	theme := GetTheme(opts.ThemeName)
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Accent))

	m := Model{
		ctx:       ctx,
		store:     opts.Store,
		session:   opts.Session,
		refresher: opts.Refresher,
		actions:   opts.Actions,
		logPath:   opts.LogPath,
		prefsPath: opts.PrefsPath,
		pollTick:  pollTick,
		now:       time.Now,
		keys:      DefaultKeyMap(),
		theme:     theme,
		current:   tabFromName(opts.LastView),
		spinner:   sp,
		userID:    userID,
		statuses:  make(map[refresh.View]refresh.Status),
		loading:   make(map[refresh.View]bool),
		cursor:    make(map[tab]int),
		composer:  composer,
	}
	if opts.Store != nil {
		m.snapshot = opts.Store.Snapshot()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		m.spinner.Tick,
	}
	if cmd := m.loadCurrent(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(0, 0)
		}
		m.ready = true
		m.composer.Width = max(m.width-24, 10)
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick(time.Time(msg))

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampCursors()
		return m, nil

	case viewLoadedMsg:
		if msg.status.Scope != m.userID {
			// A load for a previous user finished after the switch.
			return m, nil
		}
		m.loading[msg.view] = false
		m.statuses[msg.view] = msg.status
		return m, fetchSnapshotCmd(m.store)

	case actionDoneMsg:
		return m.handleOutcome(actions.Outcome(msg))

	case sessionChangedMsg:
		return m.handleSessionChange(session.Change(msg))

	case logLinesMsg:
		m.logLines = msg.lines
		m.logErr = msg.err
		m.updateLogViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.composing {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.selecting {
		return m.renderSelector()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.composing {
		return m.handleComposerKey(msg)
	}
	if m.selecting {
		return m.handleSelectorKey(msg)
	}

	switch {
	case matches(msg, m.keys.Quit):
		return m, tea.Quit

	case matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent))
		m.savePrefs()
		m.updateLogViewport()
		return m, nil

	case matches(msg, m.keys.Tab):
		return m.switchTab(tabOrder[(int(m.current)+1)%len(tabOrder)])

	case matches(msg, m.keys.ShiftTab):
		return m.switchTab(tabOrder[(int(m.current)+len(tabOrder)-1)%len(tabOrder)])

	case matches(msg, m.keys.ViewFeed):
		return m.switchTab(tabFeed)
	case matches(msg, m.keys.ViewUsers):
		return m.switchTab(tabUsers)
	case matches(msg, m.keys.ViewProfile):
		return m.switchTab(tabProfile)
	case matches(msg, m.keys.ViewNotifications):
		return m.switchTab(tabNotifications)
	case matches(msg, m.keys.ViewLogs):
		return m.switchTab(tabLogs)

	case matches(msg, m.keys.Refresh):
		return m, m.refreshCurrent()

	case matches(msg, m.keys.SwitchUser):
		m.openSelector()
		return m, nil

	case matches(msg, m.keys.Compose):
		m.composing = true
		return m, m.composer.Focus()
	}

	switch m.current {
	case tabUsers:
		return m.handleUsersKey(msg)
	case tabNotifications:
		return m.handleNotificationsKey(msg)
	case tabLogs:
		return m.handleLogsKey(msg)
	default:
		m.moveCursor(msg, m.listLen(m.current))
		return m, nil
	}
}

// switchTab shows t and starts its refresh cycle.
func (m Model) switchTab(t tab) (tea.Model, tea.Cmd) {
	if t == m.current {
		return m, nil
	}
	m.current = t
	m.savePrefs()
	return m, m.loadCurrent()
}

// loadCurrent activates the current tab: a view refresh, or a log read.
func (m *Model) loadCurrent() tea.Cmd {
	if m.current == tabLogs {
		return readLogsCmd(m.logPath)
	}
	v, _ := m.current.view()
	return m.startLoad(v, true)
}

func (m *Model) refreshCurrent() tea.Cmd {
	if m.current == tabLogs {
		return readLogsCmd(m.logPath)
	}
	v, _ := m.current.view()
	return m.startLoad(v, false)
}

func (m *Model) startLoad(v refresh.View, activate bool) tea.Cmd {
	if m.refresher == nil {
		return nil
	}
	m.loading[v] = true
	return loadViewCmd(m.ctx, m.refresher, v, activate)
}

// handleTick processes the UI tick: re-read the cache, follow the log and
// expire the flash message.
func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.current == tabLogs {
		cmds = append(cmds, readLogsCmd(m.logPath))
	}
	if m.flash.text != "" && now.Sub(m.flash.at) >= FlashDuration {
		m.flash = flash{}
	}

	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// handleOutcome shows an action result and keeps the composer when a post
// did not go through.
func (m Model) handleOutcome(o actions.Outcome) (tea.Model, tea.Cmd) {
	m.flash = flash{text: o.Message, kind: o.Kind, at: m.now()}
	if o.Action == actions.ActionCreatePost && o.OK() {
		m.composer.Reset()
		m.composer.Blur()
		m.composing = false
		m.cursor[tabFeed] = 0
	}
	return m, fetchSnapshotCmd(m.store)
}

// handleSessionChange resets per-user UI state and reloads the current tab
// for the new user.
func (m Model) handleSessionChange(c session.Change) (tea.Model, tea.Cmd) {
	m.userID = c.Current
	m.statuses = make(map[refresh.View]refresh.Status)
	m.loading = make(map[refresh.View]bool)
	m.cursor = make(map[tab]int)
	m.selecting = false

	text := "No user selected"
	if c.HasUser() {
		text = "Signed in as " + state.UsernameFor(m.snapshot.Users, c.Current)
	}
	m.flash = flash{text: text, kind: actions.Info, at: m.now()}

	cmds := []tea.Cmd{fetchSnapshotCmd(m.store)}
	if cmd := m.loadCurrent(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// handleComposerKey edits, submits or cancels the post being written.
func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case matches(msg, m.keys.Cancel):
		m.composing = false
		m.composer.Blur()
		return m, nil
	case matches(msg, m.keys.Confirm):
		if m.actions == nil {
			return m, nil
		}
		coord, content := m.actions, m.composer.Value()
		return m, actionCmd(m.ctx, func(ctx context.Context) actions.Outcome {
			return coord.CreatePost(ctx, content)
		})
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, LastView: m.current.name()})
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type viewLoadedMsg struct {
	view   refresh.View
	status refresh.Status
}

type actionDoneMsg actions.Outcome

type sessionChangedMsg session.Change

type logLinesMsg struct {
	lines []string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func loadViewCmd(ctx context.Context, r *refresh.Refresher, v refresh.View, activate bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ViewFetchTimeout)
		defer cancel()
		var st refresh.Status
		if activate {
			st = r.Activate(ctx, v)
		} else {
			st = r.Refresh(ctx, v)
		}
		return viewLoadedMsg{view: v, status: st}
	}
}

func actionCmd(ctx context.Context, run func(context.Context) actions.Outcome) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ViewFetchTimeout)
		defer cancel()
		return actionDoneMsg(run(ctx))
	}
}

// switchUserCmd changes the current user off the update loop; session
// subscribers reset the cache and restart polling before it returns.
func switchUserCmd(sess *session.Session, id int64) tea.Cmd {
	return func() tea.Msg {
		change, changed := sess.Set(id)
		if !changed {
			return nil
		}
		return sessionChangedMsg(change)
	}
}

func readLogsCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, LogTailLines)
		return logLinesMsg{lines: lines, err: err}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	popts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		popts = append(popts, tea.WithContext(opts.Context))
	}
	_, err := tea.NewProgram(m, popts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && opts.Context != nil && opts.Context.Err() != nil {
		return nil
	}
	return err
}
