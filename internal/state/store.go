package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/perch/internal/social"
)

// Resource names one cached entity slice.
type Resource int

const (
	ResourceUsers Resource = iota
	ResourceFeed
	ResourcePosts
	ResourceFollowing
	ResourceFollowers
	ResourceNotifications
)

// Resources lists every slice in display order.
var Resources = []Resource{
	ResourceUsers,
	ResourceFeed,
	ResourcePosts,
	ResourceFollowing,
	ResourceFollowers,
	ResourceNotifications,
}

func (r Resource) String() string {
	switch r {
	case ResourceUsers:
		return "users"
	case ResourceFeed:
		return "feed"
	case ResourcePosts:
		return "posts"
	case ResourceFollowing:
		return "following"
	case ResourceFollowers:
		return "followers"
	case ResourceNotifications:
		return "notifications"
	default:
		return fmt.Sprintf("resource(%d)", int(r))
	}
}

// UserScoped reports whether the slice belongs to the current user and is
// cleared on a user switch.
func (r Resource) UserScoped() bool {
	return r != ResourceUsers
}

// Meta tracks freshness of one slice.
type Meta struct {
	Loaded              bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed refreshes
}

// IsOffline returns true when the slice failed to refresh several times in a row.
func (m Meta) IsOffline() bool {
	return m.ConsecutiveFailures >= 2
}

// Snapshot is a point-in-time copy of every cached slice.
type Snapshot struct {
	// Scope is the user the user-scoped slices belong to; 0 for none.
	Scope         int64
	Users         []social.User
	Feed          []social.Post
	Posts         []social.Post
	Following     []social.Follow
	Followers     []social.Follow
	Notifications []social.Notification
	Meta          map[Resource]Meta
}

// MetaFor returns the metadata of r, zero when the slice was never touched.
func (s Snapshot) MetaFor(r Resource) Meta {
	return s.Meta[r]
}

// Store coordinates concurrent updates to the cached slices.
type Store struct {
	mu      sync.RWMutex
	snap    Snapshot
	now     func() time.Time
	version uint64
}

// NewStore returns an empty store scoped to no user.
func NewStore() *Store {
	return &Store{}
}

// Scope returns the user the store currently accepts scoped writes for.
func (s *Store) Scope() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Scope
}

// Version increases on every accepted write or reset.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Reset clears every user-scoped slice and accepts writes for scope only.
// The user list survives because it is not user-specific.
func (s *Store) Reset(scope int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.snap.Users
	usersMeta, hadUsers := s.snap.Meta[ResourceUsers]
	s.snap = Snapshot{Scope: scope, Users: users, Meta: make(map[Resource]Meta)}
	if hadUsers {
		s.snap.Meta[ResourceUsers] = usersMeta
	}
	s.version++
}

// SetUsers replaces the user list. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) SetUsers(users []social.User, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replace(s, &s.snap.Users, ResourceUsers, users, err)
}

// SetFeed replaces the feed fetched for scope. It reports false when the
// write was dropped because the store moved to another user.
func (s *Store) SetFeed(scope int64, posts []social.Post, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope != s.snap.Scope {
		return false
	}
	replace(s, &s.snap.Feed, ResourceFeed, posts, err)
	return true
}

// SetPosts replaces the current user's own posts.
func (s *Store) SetPosts(scope int64, posts []social.Post, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope != s.snap.Scope {
		return false
	}
	replace(s, &s.snap.Posts, ResourcePosts, posts, err)
	return true
}

// SetFollowing replaces the edges where the current user is the follower.
func (s *Store) SetFollowing(scope int64, edges []social.Follow, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope != s.snap.Scope {
		return false
	}
	replace(s, &s.snap.Following, ResourceFollowing, edges, err)
	return true
}

// SetFollowers replaces the edges pointing at the current user.
func (s *Store) SetFollowers(scope int64, edges []social.Follow, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope != s.snap.Scope {
		return false
	}
	replace(s, &s.snap.Followers, ResourceFollowers, edges, err)
	return true
}

// SetNotifications replaces the current user's notifications.
func (s *Store) SetNotifications(scope int64, items []social.Notification, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope != s.snap.Scope {
		return false
	}
	replace(s, &s.snap.Notifications, ResourceNotifications, items, err)
	return true
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Scope:         s.snap.Scope,
		Users:         cloneSlice(s.snap.Users),
		Feed:          cloneSlice(s.snap.Feed),
		Posts:         cloneSlice(s.snap.Posts),
		Following:     cloneSlice(s.snap.Following),
		Followers:     cloneSlice(s.snap.Followers),
		Notifications: cloneSlice(s.snap.Notifications),
		Meta:          make(map[Resource]Meta, len(s.snap.Meta)),
	}
	for r, m := range s.snap.Meta {
		snap.Meta[r] = m
	}
	return snap
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// replace must be called with s.mu held.
func replace[T any](s *Store, dst *[]T, r Resource, items []T, err error) {
	if s.snap.Meta == nil {
		s.snap.Meta = make(map[Resource]Meta)
	}
	meta := s.snap.Meta[r]
	meta.LastUpdated = s.clock()
	s.version++

	if err != nil {
		meta.LastError = err
		meta.ConsecutiveFailures++
		s.snap.Meta[r] = meta
		return
	}

	*dst = cloneSlice(items)
	meta.Loaded = true
	meta.LastError = nil
	meta.ConsecutiveFailures = 0
	s.snap.Meta[r] = meta
}

func cloneSlice[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	dup := make([]T, len(items))
	copy(dup, items)
	return dup
}
