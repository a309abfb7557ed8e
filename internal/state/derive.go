package state

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/five82/perch/internal/social"
)

// UsernameFor returns the username of id, or the placeholder "User {id}"
// when the user list does not contain it.
func UsernameFor(users []social.User, id int64) string {
	if u, ok := FindUser(users, id); ok && strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return fmt.Sprintf("User %d", id)
}

// FindUser returns the user with id.
func FindUser(users []social.User, id int64) (social.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return social.User{}, false
}

// IsFollowing reports whether the edge currentUserID -> candidateID is in
// edges.
func IsFollowing(candidateID, currentUserID int64, edges []social.Follow) bool {
	if currentUserID <= 0 {
		return false
	}
	for _, e := range edges {
		if e.FollowerID == currentUserID && e.FollowingID == candidateID {
			return true
		}
	}
	return false
}

// UnreadCount counts notifications that are not read.
func UnreadCount(notifications []social.Notification) int {
	n := 0
	for _, item := range notifications {
		if !item.IsRead {
			n++
		}
	}
	return n
}

// FindNotification returns the notification with id.
func FindNotification(notifications []social.Notification, id int64) (social.Notification, bool) {
	for _, n := range notifications {
		if n.ID == id {
			return n, true
		}
	}
	return social.Notification{}, false
}

// OtherUsers drops the current user from users, preserving order.
func OtherUsers(users []social.User, currentUserID int64) []social.User {
	out := make([]social.User, 0, len(users))
	for _, u := range users {
		if u.ID != currentUserID {
			out = append(out, u)
		}
	}
	return out
}

// ProfileStats are the counters shown on the profile screen.
type ProfileStats struct {
	Posts     int
	Followers int
	Following int
}

// Stats derives the profile counters from a snapshot.
func Stats(s Snapshot) ProfileStats {
	return ProfileStats{
		Posts:     len(s.Posts),
		Followers: len(s.Followers),
		Following: len(s.Following),
	}
}

// Initial returns the upper-cased first letter of name, "U" when empty.
func Initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "U"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// RelativeTime renders t relative to now: "Just now", "5m ago", "3h ago",
// "2d ago", then a calendar date after a week.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "Just now"
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}
