package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/perch/internal/actions"
	"github.com/five82/perch/internal/refresh"
	"github.com/five82/perch/internal/state"
)

// renderMain renders header, tab bar, content and status line.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent(m.width, max(m.height-3, 3)))
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

// viewResources lists the cache slices shown on t.
func viewResources(t tab) []state.Resource {
	switch t {
	case tabFeed:
		return []state.Resource{state.ResourceUsers, state.ResourceFeed}
	case tabUsers:
		return []state.Resource{state.ResourceUsers, state.ResourceFollowing}
	case tabProfile:
		return []state.Resource{state.ResourceUsers, state.ResourcePosts, state.ResourceFollowers, state.ResourceFollowing}
	case tabNotifications:
		return []state.Resource{state.ResourceNotifications}
	default:
		return nil
	}
}

// health summarises the freshness of a set of slices.
type health struct {
	loaded   bool
	updated  time.Time // oldest successful refresh among loaded slices
	offline  bool
	failures int
	err      error
}

func viewHealth(snap state.Snapshot, resources []state.Resource) health {
	var h health
	for _, r := range resources {
		meta := snap.MetaFor(r)
		if meta.Loaded {
			h.loaded = true
			if h.updated.IsZero() || meta.LastUpdated.Before(h.updated) {
				h.updated = meta.LastUpdated
			}
		}
		if meta.IsOffline() {
			h.offline = true
		}
		if meta.ConsecutiveFailures > h.failures {
			h.failures = meta.ConsecutiveFailures
		}
		if h.err == nil && meta.LastError != nil {
			h.err = meta.LastError
		}
	}
	return h
}

// renderHeader renders the logo, current user, loading spinner and the
// freshness of the visible view.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("perch", styles.Logo)}

	if m.userID > 0 {
		name := state.UsernameFor(m.snapshot.Users, m.userID)
		parts = append(parts, bg.Render("●", styles.SuccessText)+bg.Space()+bg.Render("@"+name, styles.Text))
	} else {
		parts = append(parts, bg.Render("○ no user", styles.WarningText))
	}

	if v, ok := m.current.view(); ok && m.loading[v] {
		parts = append(parts, bg.Render(m.spinner.View(), styles.AccentText)+bg.Space()+
			bg.Render("Loading", styles.MutedText))
	}

	h := viewHealth(m.snapshot, viewResources(m.current))
	if h.loaded {
		parts = append(parts, bg.Render("Updated", styles.MutedText)+bg.Space()+
			bg.Render(formatClock(h.updated, m.now()), styles.Text))
	}
	if h.offline {
		parts = append(parts, bg.Render("OFFLINE", styles.DangerText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d failed", h.failures), styles.MutedText))
	}
	if h.err != nil {
		maxErr := 60
		if compact {
			maxErr = 30
		}
		parts = append(parts, bg.Render("!", styles.WarningText.Bold(true))+bg.Space()+
			bg.Render(truncate(h.err.Error(), maxErr), styles.WarningText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// formatClock renders a refresh time with a relative suffix.
func formatClock(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	out := t.Format("15:04:05")
	since := now.Sub(t)
	switch {
	case since < time.Minute:
		out += " (now)"
	case since < time.Hour:
		out += fmt.Sprintf(" (%dm ago)", int(since.Minutes()))
	default:
		out += fmt.Sprintf(" (%dh ago)", int(since.Hours()))
	}
	return out
}

// renderTabBar renders the tab strip with the unread badge on
// notifications.
func (m Model) renderTabBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	unread := state.UnreadCount(m.snapshot.Notifications)
	keys := []string{"1", "2", "3", "4", "L"}

	var parts []string
	for i, t := range tabOrder {
		label := keys[i] + " " + t.String()
		if t == m.current {
			parts = append(parts, styles.Selected.Bold(true).Padding(0, 1).Render(label))
		} else {
			parts = append(parts, bg.Render(" "+label+" ", styles.MutedText))
		}
		if t == tabNotifications && unread > 0 {
			badge := lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.Background)).
				Background(lipgloss.Color(m.theme.Danger)).
				Bold(true).
				Padding(0, 1).
				Render(fmt.Sprintf("%d", unread))
			parts[len(parts)-1] += bg.Space() + badge
		}
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, " "))
}

// renderStatusLine shows the composer, the latest action result or key
// hints for the current tab.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var content string
	switch {
	case m.composing:
		count := fmt.Sprintf("%d/%d", len([]rune(m.composer.Value())), m.composer.CharLimit)
		content = bg.Render("New post", styles.AccentText.Bold(true)) + bg.Space() +
			m.composer.View() + bg.Space() + bg.Render(count, styles.FaintText)
	case m.flash.text != "":
		content = bg.Render(m.flash.text, m.flashStyle(styles))
	default:
		content = bg.Render(m.hints(), styles.FaintText)
	}
	return styles.Footer.Width(m.width).Render(content)
}

func (m Model) flashStyle(styles Styles) lipgloss.Style {
	switch m.flash.kind {
	case actions.Success:
		return styles.SuccessText
	case actions.Info:
		return styles.InfoText
	case actions.Invalid:
		return styles.WarningText
	default:
		return styles.DangerText
	}
}

func (m Model) hints() string {
	var h []string
	switch m.current {
	case tabFeed:
		h = []string{"n post", "r refresh"}
	case tabUsers:
		h = []string{"f follow", "u unfollow", "enter toggle"}
	case tabProfile:
		h = []string{"s switch user", "n post"}
	case tabNotifications:
		h = []string{"m mark read", "x delete"}
	case tabLogs:
		h = []string{"j/k scroll", "g/G top/bottom"}
	}
	h = append(h, "s user", "? help", "q quit")
	return strings.Join(h, " • ")
}

// phaseFor returns the refresh phase of a tab, Idle for the log tab.
func (m Model) phaseFor(t tab) refresh.Phase {
	v, ok := t.view()
	if !ok {
		return refresh.PhaseIdle
	}
	if m.loading[v] {
		return refresh.PhaseLoading
	}
	return m.statuses[v].Phase
}
