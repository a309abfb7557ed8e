package ui

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/perch/internal/actions"
	"github.com/five82/perch/internal/prefs"
	"github.com/five82/perch/internal/refresh"
	"github.com/five82/perch/internal/session"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/social/socialtest"
	"github.com/five82/perch/internal/state"
)

type fixture struct {
	backend    *socialtest.Backend
	store      *state.Store
	session    *session.Session
	opts       Options
	alice, bob social.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := socialtest.New()
	client, err := social.NewClient(backend.Start(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	store := state.NewStore()
	sess := session.New()
	r := refresh.NewRefresher(client, store, sess, nil, nil)
	sess.Subscribe(func(c session.Change) {
		store.Reset(c.Current)
		r.Invalidate()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return &fixture{
		backend: backend,
		store:   store,
		session: sess,
		opts: Options{
			Context:   ctx,
			Store:     store,
			Session:   sess,
			Refresher: r,
			Actions:   actions.NewCoordinator(client, r, store, sess, nil, nil),
		},
		alice: backend.AddUser("alice", "a@example.com"),
		bob:   backend.AddUser("bob", "b@example.com"),
	}
}

// model builds a sized Model from the fixture's options.
func (f *fixture) model(t *testing.T) Model {
	t.Helper()
	m, _ := update(New(f.opts), tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// settle runs cmd and every command produced while handling its messages.
// Only finite commands (loads, actions, snapshot reads) may reach it.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 50 {
			t.Fatalf("commands did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if msg == nil {
			continue
		}
		var next tea.Cmd
		m, next = update(m, msg)
		queue = append(queue, next)
	}
	return m
}

// press sends a key and settles the resulting commands.
func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	m, cmd := update(m, keyMsg(key))
	return settle(t, m, cmd)
}

func TestTabNames(t *testing.T) {
	for _, tb := range tabOrder {
		if got := tabFromName(tb.name()); got != tb {
			t.Fatalf("tabFromName(%q) = %v, want %v", tb.name(), got, tb)
		}
	}
	if got := tabFromName(" NOTIFICATIONS "); got != tabNotifications {
		t.Fatalf("tabFromName is not case-insensitive: %v", got)
	}
	if got := tabFromName("bogus"); got != tabFeed {
		t.Fatalf("tabFromName(bogus) = %v, want feed", got)
	}
	if _, ok := tabLogs.view(); ok {
		t.Fatalf("log tab should not map to a refresh view")
	}
}

func TestView_NotReadyBeforeSize(t *testing.T) {
	f := newFixture(t)
	if got := New(f.opts).View(); got != "Loading..." {
		t.Fatalf("View() = %q, want Loading...", got)
	}
}

func TestUsersTab_ShowsFollowStateAndHidesCurrentUser(t *testing.T) {
	f := newFixture(t)
	carol := f.backend.AddUser("carol", "c@example.com")
	f.backend.AddFollow(f.alice.ID, f.bob.ID)
	f.session.Set(f.alice.ID)

	m := press(t, f.model(t), "2")

	if m.current != tabUsers {
		t.Fatalf("current = %v, want users", m.current)
	}
	if st := m.statuses[refresh.ViewUsers]; st.Phase != refresh.PhaseReady {
		t.Fatalf("users phase = %v, want ready", st.Phase)
	}
	users := m.visibleUsers()
	if len(users) != 2 || users[0].ID != f.bob.ID || users[1].ID != carol.ID {
		t.Fatalf("visible users = %+v, want bob and carol", users)
	}

	out := m.View()
	for _, want := range []string{"@alice", "bob", "carol", "Following", "Users (2)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("users view missing %q", want)
		}
	}
}

func TestUsersTab_FollowSelectedUser(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)
	m := press(t, f.model(t), "2")

	m = press(t, m, "f")

	if m.flash.kind != actions.Success || m.flash.text != "You are now following bob" {
		t.Fatalf("flash = %+v", m.flash)
	}
	if !state.IsFollowing(f.bob.ID, f.alice.ID, m.snapshot.Following) {
		t.Fatalf("following slice not refreshed: %+v", m.snapshot.Following)
	}

	// enter toggles back to unfollow
	m = press(t, m, "enter")
	if m.flash.text != "You unfollowed bob" {
		t.Fatalf("flash after toggle = %+v", m.flash)
	}
	if len(f.backend.Follows()) != 0 {
		t.Fatalf("backend still has edges: %+v", f.backend.Follows())
	}
}

func TestComposer_KeepsInputWhenPostRejected(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)

	m, _ = update(m, keyMsg("n"))
	if !m.composing {
		t.Fatalf("n did not open the composer")
	}
	m, _ = update(m, keyMsg("hello"))
	m = press(t, m, "enter")

	if m.flash.kind != actions.Invalid || m.flash.text != "Please select a user first" {
		t.Fatalf("flash = %+v", m.flash)
	}
	if !m.composing || m.composer.Value() != "hello" {
		t.Fatalf("composer = %v %q, want open with input kept", m.composing, m.composer.Value())
	}
	if f.backend.Calls("POST /api/posts") != 0 {
		t.Fatalf("rejected post reached the backend")
	}
}

func TestComposer_ClearsAfterPostAndRefreshesFeed(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)
	m := press(t, f.model(t), "r")

	m, _ = update(m, keyMsg("n"))
	m, _ = update(m, keyMsg("first post"))
	m = press(t, m, "enter")

	if m.flash.kind != actions.Success || m.flash.text != "Post created!" {
		t.Fatalf("flash = %+v", m.flash)
	}
	if m.composing || m.composer.Value() != "" {
		t.Fatalf("composer = %v %q, want closed and empty", m.composing, m.composer.Value())
	}
	if len(m.snapshot.Feed) != 1 || m.snapshot.Feed[0].Content != "first post" {
		t.Fatalf("feed = %+v", m.snapshot.Feed)
	}
	if !strings.Contains(m.View(), "first post") {
		t.Fatalf("feed view does not show the new post")
	}
}

func TestComposer_EscCancels(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	m, _ = update(m, keyMsg("n"))
	m, _ = update(m, keyMsg("esc"))
	if m.composing {
		t.Fatalf("esc did not close the composer")
	}
	// keys reach the tabs again
	m, _ = update(m, keyMsg("2"))
	if m.current != tabUsers {
		t.Fatalf("current = %v, want users", m.current)
	}
}

func TestNotifications_MarkReadClearsBadge(t *testing.T) {
	f := newFixture(t)
	f.backend.AddNotification(f.alice.ID, social.NotificationPost, "bob posted", true)
	f.backend.AddNotification(f.alice.ID, social.NotificationFollow, "bob followed you", false)
	f.session.Set(f.alice.ID)

	m := press(t, f.model(t), "4")
	if got := state.UnreadCount(m.snapshot.Notifications); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}
	if out := m.View(); !strings.Contains(out, "Notifications (1 unread)") || !strings.Contains(out, "bob followed you") {
		t.Fatalf("notifications view missing unread title or message")
	}

	m = press(t, m, "m")
	if m.flash.text != "Marked as read" {
		t.Fatalf("flash = %+v", m.flash)
	}
	if got := state.UnreadCount(m.snapshot.Notifications); got != 0 {
		t.Fatalf("unread after mark read = %d, want 0", got)
	}
	if strings.Contains(m.View(), "unread)") {
		t.Fatalf("unread title still shown")
	}
}

func TestNotifications_Delete(t *testing.T) {
	f := newFixture(t)
	n := f.backend.AddNotification(f.alice.ID, social.NotificationPost, "bob posted", false)
	f.session.Set(f.alice.ID)

	m := press(t, f.model(t), "4")
	m = press(t, m, "x")

	if m.flash.text != "Notification deleted" {
		t.Fatalf("flash = %+v", m.flash)
	}
	if _, ok := f.backend.Notification(n.ID); ok {
		t.Fatalf("notification still on the backend")
	}
	if len(m.snapshot.Notifications) != 0 {
		t.Fatalf("notifications = %+v, want empty", m.snapshot.Notifications)
	}
}

func TestSelector_SwitchesUser(t *testing.T) {
	f := newFixture(t)
	f.backend.AddNotification(f.bob.ID, social.NotificationFollow, "alice followed you", false)
	m := press(t, f.model(t), "r") // loads the user list

	m, _ = update(m, keyMsg("s"))
	if !m.selecting {
		t.Fatalf("s did not open the selector")
	}
	if !strings.Contains(m.View(), "@bob") {
		t.Fatalf("selector does not list bob")
	}
	m, _ = update(m, keyMsg("j"))
	m = press(t, m, "enter")

	if m.selecting {
		t.Fatalf("selector still open")
	}
	if id, _ := f.session.Current(); id != f.bob.ID || m.userID != f.bob.ID {
		t.Fatalf("current user = %d (model %d), want %d", id, m.userID, f.bob.ID)
	}
	if m.flash.text != "Signed in as bob" {
		t.Fatalf("flash = %+v", m.flash)
	}
	if m.snapshot.Scope != f.bob.ID {
		t.Fatalf("snapshot scope = %d, want %d", m.snapshot.Scope, f.bob.ID)
	}
}

func TestSelector_NoUserEntryClearsSession(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)
	m := press(t, f.model(t), "r")

	m, _ = update(m, keyMsg("s"))
	m, _ = update(m, keyMsg("G"))
	m = press(t, m, "enter")

	if _, ok := f.session.Current(); ok || m.userID != 0 {
		t.Fatalf("session still has a user")
	}
	if !strings.Contains(m.View(), noUserText) {
		t.Fatalf("feed does not ask for a user")
	}
}

func TestViewLoaded_IgnoresPreviousUser(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.bob.ID)
	m := f.model(t)

	m, cmd := update(m, viewLoadedMsg{
		view:   refresh.ViewFeed,
		status: refresh.Status{Phase: refresh.PhaseReady, Scope: f.alice.ID},
	})
	if cmd != nil {
		t.Fatalf("stale load produced a command")
	}
	if _, ok := m.statuses[refresh.ViewFeed]; ok {
		t.Fatalf("stale status recorded")
	}
}

func TestTick_ExpiresFlash(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.flash = flash{text: "Post created!", kind: actions.Success, at: start}

	m, _ = update(m, tickMsg(start.Add(time.Second)))
	if m.flash.text == "" {
		t.Fatalf("flash expired too early")
	}
	m, _ = update(m, tickMsg(start.Add(FlashDuration)))
	if m.flash.text != "" {
		t.Fatalf("flash not expired: %+v", m.flash)
	}
}

func TestThemeCycle_SavesPrefs(t *testing.T) {
	f := newFixture(t)
	f.opts.PrefsPath = filepath.Join(t.TempDir(), "prefs.toml")
	f.opts.LastView = "profile"
	m := f.model(t)
	if m.current != tabProfile {
		t.Fatalf("LastView not applied: %v", m.current)
	}

	m, _ = update(m, keyMsg("T"))
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}
	p, err := prefs.Load(f.opts.PrefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if p.Theme != "Kanagawa" || p.LastView != "profile" {
		t.Fatalf("prefs = %+v", p)
	}
}

func TestHelp_AnyKeyCloses(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	m, _ = update(m, keyMsg("?"))
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatalf("help overlay not shown")
	}
	m, _ = update(m, keyMsg("2"))
	if m.showHelp || m.current != tabFeed {
		t.Fatalf("closing key should not switch tabs: help=%v tab=%v", m.showHelp, m.current)
	}
}

var unreadBadge = regexp.MustCompile(`Notifications\s+\d`)

func TestTabBar_UnreadBadge(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	if out := m.renderTabBar(); unreadBadge.MatchString(out) {
		t.Fatalf("badge shown without unread notifications: %q", out)
	}
	m.snapshot.Notifications = []social.Notification{{ID: 1}, {ID: 2, IsRead: true}, {ID: 3}}
	if out := m.renderTabBar(); !strings.Contains(out, "Notifications   2") || !unreadBadge.MatchString(out) {
		t.Fatalf("tab bar = %q, want unread badge 2", out)
	}
}
