package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/perch/internal/actions"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/state"
)

func matches(msg tea.KeyMsg, b key.Binding) bool {
	return key.Matches(msg, b)
}

// listLen returns the number of selectable rows on t.
func (m Model) listLen(t tab) int {
	switch t {
	case tabFeed:
		return len(m.snapshot.Feed)
	case tabUsers:
		return len(m.visibleUsers())
	case tabProfile:
		return len(m.snapshot.Posts)
	case tabNotifications:
		return len(m.snapshot.Notifications)
	default:
		return 0
	}
}

// moveCursor applies a navigation key to the current tab's cursor.
func (m *Model) moveCursor(msg tea.KeyMsg, n int) bool {
	if n == 0 {
		return false
	}
	idx := m.cursor[m.current]
	switch {
	case matches(msg, m.keys.Down):
		idx++
	case matches(msg, m.keys.Up):
		idx--
	case matches(msg, m.keys.Top):
		idx = 0
	case matches(msg, m.keys.Bottom):
		idx = n - 1
	default:
		return false
	}
	m.cursor[m.current] = clamp(idx, n)
	return true
}

func (m *Model) clampCursors() {
	for _, t := range tabOrder {
		if t == tabLogs {
			continue
		}
		m.cursor[t] = clamp(m.cursor[t], m.listLen(t))
	}
}

// visibleUsers is the users tab list: everyone except the current user.
func (m Model) visibleUsers() []social.User {
	return state.OtherUsers(m.snapshot.Users, m.userID)
}

func (m Model) selectedUser() (social.User, bool) {
	users := m.visibleUsers()
	if len(users) == 0 {
		return social.User{}, false
	}
	return users[clamp(m.cursor[tabUsers], len(users))], true
}

func (m Model) selectedNotification() (social.Notification, bool) {
	items := m.snapshot.Notifications
	if len(items) == 0 {
		return social.Notification{}, false
	}
	return items[clamp(m.cursor[tabNotifications], len(items))], true
}

// handleUsersKey follows or unfollows the selected user. Enter toggles.
func (m Model) handleUsersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.moveCursor(msg, m.listLen(tabUsers)) {
		return m, nil
	}
	user, ok := m.selectedUser()
	if !ok || m.actions == nil {
		return m, nil
	}
	coord, target := m.actions, user.ID

	follow := matches(msg, m.keys.Follow)
	unfollow := matches(msg, m.keys.Unfollow)
	if matches(msg, m.keys.Confirm) {
		if state.IsFollowing(target, m.userID, m.snapshot.Following) {
			unfollow = true
		} else {
			follow = true
		}
	}

	switch {
	case follow:
		return m, actionCmd(m.ctx, func(ctx context.Context) actions.Outcome {
			return coord.Follow(ctx, target)
		})
	case unfollow:
		return m, actionCmd(m.ctx, func(ctx context.Context) actions.Outcome {
			return coord.Unfollow(ctx, target)
		})
	}
	return m, nil
}

// handleNotificationsKey marks the selected notification read or deletes it.
func (m Model) handleNotificationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.moveCursor(msg, m.listLen(tabNotifications)) {
		return m, nil
	}
	n, ok := m.selectedNotification()
	if !ok || m.actions == nil {
		return m, nil
	}
	coord, id := m.actions, n.ID

	switch {
	case matches(msg, m.keys.MarkRead), matches(msg, m.keys.Confirm):
		if n.IsRead {
			return m, nil
		}
		return m, actionCmd(m.ctx, func(ctx context.Context) actions.Outcome {
			return coord.MarkRead(ctx, id)
		})
	case matches(msg, m.keys.Delete):
		return m, actionCmd(m.ctx, func(ctx context.Context) actions.Outcome {
			return coord.DeleteNotification(ctx, id)
		})
	}
	return m, nil
}

// openSelector shows the user picker with the current user highlighted.
func (m *Model) openSelector() {
	m.selecting = true
	m.selectorIdx = 0
	for i, u := range m.snapshot.Users {
		if u.ID == m.userID {
			m.selectorIdx = i
			break
		}
	}
}

// selectorRows is every user followed by a "no user" entry.
func (m Model) selectorRows() int {
	return len(m.snapshot.Users) + 1
}

func (m Model) handleSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := m.selectorRows()
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case matches(msg, m.keys.Cancel), matches(msg, m.keys.SwitchUser):
		m.selecting = false
	case matches(msg, m.keys.Down):
		m.selectorIdx = clamp(m.selectorIdx+1, n)
	case matches(msg, m.keys.Up):
		m.selectorIdx = clamp(m.selectorIdx-1, n)
	case matches(msg, m.keys.Top):
		m.selectorIdx = 0
	case matches(msg, m.keys.Bottom):
		m.selectorIdx = n - 1
	case matches(msg, m.keys.Confirm):
		m.selecting = false
		if m.session == nil {
			return m, nil
		}
		var id int64
		if m.selectorIdx < len(m.snapshot.Users) {
			id = m.snapshot.Users[m.selectorIdx].ID
		}
		return m, switchUserCmd(m.session, id)
	}
	return m, nil
}

// handleLogsKey scrolls the client log.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		return m, nil
	case matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}
