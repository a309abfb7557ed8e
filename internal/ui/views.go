package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/perch/internal/refresh"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/state"
)

const noUserText = "No user selected. Press s to choose one."

// renderContent renders the main area for the current tab.
func (m Model) renderContent(width, height int) string {
	switch m.current {
	case tabUsers:
		return m.renderBox(m.usersTitle(), m.renderUsers(width-2, height-2), width, height)
	case tabProfile:
		return m.renderBox("Profile", m.renderProfile(width-2, height-2), width, height)
	case tabNotifications:
		return m.renderBox(m.notificationsTitle(), m.renderNotifications(width-2, height-2), width, height)
	case tabLogs:
		return m.renderLogs(width, height)
	default:
		return m.renderBox("Feed", m.renderFeed(width-2, height-2), width, height)
	}
}

// placeholder explains an empty pane: no user, still loading, failed or
// simply empty.
func (m Model) placeholder(t tab, empty string) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	h := viewHealth(m.snapshot, viewResources(t))
	switch {
	case m.phaseFor(t) == refresh.PhaseLoading && !h.loaded:
		return styles.MutedText.Render("Loading…")
	case h.err != nil && !h.loaded:
		return styles.DangerText.Render("Could not load: " + h.err.Error())
	default:
		return styles.MutedText.Render(empty)
	}
}

func (m Model) renderFeed(width, height int) string {
	if m.userID <= 0 {
		return m.theme.Styles().WithBackground(m.theme.FocusBg).MutedText.Render(noUserText)
	}
	posts := m.snapshot.Feed
	if len(posts) == 0 {
		return m.placeholder(tabFeed, "No posts yet. Follow someone or press n to write one.")
	}
	return m.renderList(len(posts), m.cursor[tabFeed], width, height, func(i int, bgColor string, selected bool) []string {
		return m.postBlock(posts[i], width, bgColor, selected, true)
	})
}

// postBlock renders one post: author line, wrapped content, spacer.
func (m Model) postBlock(p social.Post, width int, bgColor string, selected, showAuthor bool) []string {
	bg := NewBgStyle(bgColor)
	styles := m.rowStyles(selected)

	var head string
	if showAuthor {
		name := state.UsernameFor(m.snapshot.Users, p.UserID)
		head = bg.Render("["+state.Initial(name)+"]", styles.AccentText) + bg.Space() +
			bg.Render("@"+name, styles.Text.Bold(true)) + bg.Render(" · ", styles.FaintText)
	}
	head += bg.Render(state.RelativeTime(p.Timestamp.Time(), m.now()), styles.MutedText)

	lines := []string{head}
	for _, l := range wrapText(p.Content, max(width-4, 10)) {
		lines = append(lines, bg.Spaces(4)+bg.Render(l, styles.Text))
	}
	return append(lines, "")
}

func (m Model) usersTitle() string {
	return fmt.Sprintf("Users (%d)", len(m.visibleUsers()))
}

func (m Model) renderUsers(width, height int) string {
	users := m.visibleUsers()
	if len(users) == 0 {
		return m.placeholder(tabUsers, "No other users yet.")
	}
	return m.renderList(len(users), m.cursor[tabUsers], width, height, func(i int, bgColor string, selected bool) []string {
		return m.userRow(users[i], width, bgColor, selected)
	})
}

// userRow renders a user with email and, when a user is selected, the
// follow state.
func (m Model) userRow(u social.User, width int, bgColor string, selected bool) []string {
	bg := NewBgStyle(bgColor)
	styles := m.rowStyles(selected)

	name := state.UsernameFor([]social.User{u}, u.ID)
	left := bg.Render("["+state.Initial(name)+"]", styles.AccentText) + bg.Space() +
		bg.Render(padRight(truncate(name, 20), 20), styles.Text.Bold(true)) + bg.Space() +
		bg.Render(truncate(u.Email, max(width-40, 8)), styles.MutedText)

	if m.userID > 0 {
		label, style := "Follow", styles.AccentText
		if state.IsFollowing(u.ID, m.userID, m.snapshot.Following) {
			label, style = "Following", styles.SuccessText
		}
		gap := width - lipgloss.Width(left) - len(label) - 1
		left += bg.Spaces(max(gap, 1)) + bg.Render(label, style)
	}

	lines := []string{left}
	if bio := strings.TrimSpace(u.Bio); bio != "" {
		lines = append(lines, bg.Spaces(4)+bg.Render(truncate(bio, max(width-4, 10)), styles.FaintText))
	}
	return lines
}

func (m Model) renderProfile(width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)
	if m.userID <= 0 {
		return styles.MutedText.Render(noUserText)
	}

	user, ok := state.FindUser(m.snapshot.Users, m.userID)
	name := state.UsernameFor(m.snapshot.Users, m.userID)

	card := []string{
		bg.Render("["+state.Initial(name)+"]", styles.AccentText.Bold(true)) + bg.Space() +
			bg.Render("@"+name, styles.Text.Bold(true)),
	}
	if ok {
		if user.Email != "" {
			card = append(card, bg.Render(user.Email, styles.MutedText))
		}
		for _, l := range wrapText(strings.TrimSpace(user.Bio), width) {
			if l != "" {
				card = append(card, bg.Render(l, styles.Text))
			}
		}
		if user.CreatedAt > 0 {
			card = append(card, bg.Render("Joined "+user.CreatedAt.Time().Local().Format("Jan 2, 2006"), styles.FaintText))
		}
	}

	stats := state.Stats(m.snapshot)
	card = append(card,
		"",
		statLine(bg, styles, "Posts", stats.Posts)+bg.Render("  ·  ", styles.FaintText)+
			statLine(bg, styles, "Followers", stats.Followers)+bg.Render("  ·  ", styles.FaintText)+
			statLine(bg, styles, "Following", stats.Following),
		bg.Render(strings.Repeat("─", max(width, 1)), styles.FaintText),
	)

	rest := height - len(card)
	var posts string
	if len(m.snapshot.Posts) == 0 {
		posts = m.placeholder(tabProfile, "No posts yet. Press n to write one.")
	} else {
		own := m.snapshot.Posts
		posts = m.renderList(len(own), m.cursor[tabProfile], width, rest, func(i int, bgColor string, selected bool) []string {
			return m.postBlock(own[i], width, bgColor, selected, false)
		})
	}
	return strings.Join(card, "\n") + "\n" + posts
}

func statLine(bg BgStyle, styles Styles, label string, n int) string {
	return bg.Render(fmt.Sprintf("%d", n), styles.Text.Bold(true)) + bg.Space() + bg.Render(label, styles.MutedText)
}

func (m Model) notificationsTitle() string {
	unread := state.UnreadCount(m.snapshot.Notifications)
	if unread == 0 {
		return "Notifications"
	}
	return fmt.Sprintf("Notifications (%d unread)", unread)
}

func (m Model) renderNotifications(width, height int) string {
	if m.userID <= 0 {
		return m.theme.Styles().WithBackground(m.theme.FocusBg).MutedText.Render(noUserText)
	}
	items := m.snapshot.Notifications
	if len(items) == 0 {
		return m.placeholder(tabNotifications, "No notifications.")
	}
	return m.renderList(len(items), m.cursor[tabNotifications], width, height, func(i int, bgColor string, selected bool) []string {
		return m.notificationBlock(items[i], width, bgColor, selected)
	})
}

// notificationBlock renders a notification with its type badge; unread
// entries get a marker and bold text.
func (m Model) notificationBlock(n social.Notification, width int, bgColor string, selected bool) []string {
	bg := NewBgStyle(bgColor)
	styles := m.rowStyles(selected)

	marker := bg.Spaces(2)
	msgStyle := styles.MutedText
	if !n.IsRead {
		marker = bg.Render("●", styles.AccentText) + bg.Space()
		msgStyle = styles.Text.Bold(true)
	}

	kind := string(n.Type)
	if kind == "" {
		kind = "INFO"
	}
	badge := m.theme.Styles().NotificationBadge(kind).Render(kind)
	avail := width - 2 - lipgloss.Width(badge) - 1

	return []string{
		marker + badge + bg.Space() + bg.Render(truncate(n.Message, max(avail, 10)), msgStyle),
		bg.Spaces(4) + bg.Render(state.RelativeTime(n.CreatedAt.Time(), m.now()), styles.FaintText),
	}
}

// rowStyles returns text styles for a list row. Selected rows use the
// selection text color throughout for contrast.
func (m Model) rowStyles(selected bool) Styles {
	styles := m.theme.Styles()
	if !selected {
		return styles
	}
	sel := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
	styles.Text = sel
	styles.MutedText = sel
	styles.FaintText = sel
	styles.AccentText = sel.Bold(true)
	styles.SuccessText = sel.Bold(true)
	return styles
}

// renderList renders n blocks, highlighting the selected one and scrolling
// so it stays visible within height lines.
func (m Model) renderList(n, selected, width, height int, block func(i int, bgColor string, selected bool) []string) string {
	selected = clamp(selected, n)

	var lines []string
	selStart, selEnd := 0, 0
	for i := 0; i < n; i++ {
		bgColor := m.theme.FocusBg
		if i == selected {
			bgColor = m.theme.SelectionBg
			selStart = len(lines)
		}
		fill := NewBgStyle(bgColor)
		for _, l := range block(i, bgColor, i == selected) {
			if i == selected {
				l = fill.FillLine(l, width)
			}
			lines = append(lines, l)
		}
		if i == selected {
			selEnd = len(lines)
		}
	}

	if height <= 0 || len(lines) <= height {
		return strings.Join(lines, "\n")
	}
	start := 0
	if selEnd > height {
		start = selEnd - height
	}
	if selStart < start {
		start = selStart
	}
	end := min(start+height, len(lines))
	return strings.Join(lines[start:end], "\n")
}

// renderBox renders content in a box with the title embedded in the top
// border: ┌─── Title ───┐
func (m Model) renderBox(title, content string, width, height int) string {
	bg := NewBgStyle(m.theme.FocusBg)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.BorderFocus))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 0)
	titleLen := lipgloss.Width(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().
		Width(innerWidth).
		MaxWidth(innerWidth).
		MaxHeight(1).
		Background(lipgloss.Color(m.theme.FocusBg))

	contentLines := strings.Split(content, "\n")
	boxHeight := max(height-2, 0)

	rows := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		rows = append(rows,
			bg.Render("│", borderStyle)+
				contentStyle.Render(line)+
				bg.Render("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + bottomBorder
}

// renderSelector renders the user picker overlay.
func (m Model) renderSelector() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Switch User"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	rows := m.selectorRows()
	start, end := window(m.selectorIdx, rows, max(m.height-10, 3))
	for i := start; i < end; i++ {
		label := "No user"
		current := m.userID <= 0
		if i < len(m.snapshot.Users) {
			u := m.snapshot.Users[i]
			label = "@" + state.UsernameFor(m.snapshot.Users, u.ID)
			current = u.ID == m.userID
		}
		if current {
			label += " ✓"
		}
		line := padRight(truncate(label, 32), 32)
		if i == m.selectorIdx {
			b.WriteString(styles.Selected.Render(line))
		} else {
			b.WriteString(styles.Text.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.snapshot.Users) == 0 {
		b.WriteString(styles.MutedText.Render("No users loaded yet."))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter select • esc cancel"))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(40)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
