package social

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// localDateTimeLayout is how the backend renders zone-less timestamps.
const localDateTimeLayout = "2006-01-02T15:04:05"

// User mirrors a backend user. Users are never mutated by the client.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Bio       string `json:"bio,omitempty"`
	CreatedAt Millis `json:"createdAt,omitempty"`
}

// Post is one authored post. Content is at most MaxPostLength characters.
type Post struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Content   string `json:"content"`
	Timestamp Millis `json:"timestamp"`
}

// MaxPostLength is the maximum post length in characters (runes).
const MaxPostLength = 250

// Follow is a directed edge FollowerID -> FollowingID.
type Follow struct {
	ID          int64  `json:"id,omitempty"`
	FollowerID  int64  `json:"followerId"`
	FollowingID int64  `json:"followingId"`
	CreatedAt   Millis `json:"createdAt,omitempty"`
}

// NotificationType labels a notification. Values outside the known set are
// carried through unchanged.
type NotificationType string

const (
	NotificationFollow NotificationType = "FOLLOW"
	NotificationPost   NotificationType = "POST"
)

// Known reports whether t is one of the types the backend documents.
func (t NotificationType) Known() bool {
	return t == NotificationFollow || t == NotificationPost
}

// Notification is addressed to UserID (the recipient).
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId,omitempty"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	CreatedAt Millis           `json:"createdAt"`
}

// UnmarshalJSON accepts the read flag as either "isRead" or "read"; the
// backend's bean serialisation emits the latter.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var wire struct {
		plain
		IsRead *bool `json:"isRead"`
		Read   *bool `json:"read"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*n = Notification(wire.plain)
	switch {
	case wire.IsRead != nil:
		n.IsRead = *wire.IsRead
	case wire.Read != nil:
		n.IsRead = *wire.Read
	default:
		n.IsRead = false
	}
	return nil
}

// Millis is a timestamp in epoch milliseconds. It also decodes numeric
// strings and ISO-8601 date-times; anything unparseable decodes to zero.
type Millis int64

// MillisOf converts t to Millis.
func MillisOf(t time.Time) Millis {
	if t.IsZero() {
		return 0
	}
	return Millis(t.UnixMilli())
}

// Time returns m as a time.Time; zero for an unset timestamp.
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m))
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = parseMillis(s)
		return nil
	}
	if v, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*m = Millis(v)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*m = Millis(int64(f))
	return nil
}

func parseMillis(value string) Millis {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if v, err := strconv.ParseInt(value, 10, 64); err == nil {
		return Millis(v)
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return MillisOf(t)
		}
	}
	if t, err := time.ParseInLocation(localDateTimeLayout, trimFraction(value), time.Local); err == nil {
		return MillisOf(t)
	}
	return 0
}

// trimFraction drops a trailing ".123456" from zone-less timestamps.
func trimFraction(value string) string {
	if i := strings.LastIndexByte(value, '.'); i > 0 && strings.Contains(value, "T") {
		return value[:i]
	}
	return value
}

type createPostRequest struct {
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
}

type followRequest struct {
	FollowerID  int64 `json:"followerId"`
	FollowingID int64 `json:"followingId"`
}

type unreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}
