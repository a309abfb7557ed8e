package actions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/five82/perch/internal/refresh"
	"github.com/five82/perch/internal/session"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/social/socialtest"
	"github.com/five82/perch/internal/state"
)

type fixture struct {
	backend     *socialtest.Backend
	store       *state.Store
	session     *session.Session
	refresher   *refresh.Refresher
	coordinator *Coordinator
	alice, bob  social.User
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
	sess.Subscribe(func(c session.Change) { store.Reset(c.Current) })
	r := refresh.NewRefresher(client, store, sess, nil, nil)

	f := &fixture{
		backend:     backend,
		store:       store,
		session:     sess,
		refresher:   r,
		coordinator: NewCoordinator(client, r, store, sess, nil, nil),
		alice:       backend.AddUser("alice", "a@example.com"),
		bob:         backend.AddUser("bob", "b@example.com"),
	}
	return f
}

func ctxFor(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCreatePost_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    Kind
		message string
	}{
		{"empty", "", Invalid, "Post content cannot be empty"},
		{"whitespace", "  \n\t ", Invalid, "Post content cannot be empty"},
		{"251 chars", strings.Repeat("a", 251), Invalid, "Post cannot exceed 250 characters"},
		{"251 runes", strings.Repeat("é", 251), Invalid, "Post cannot exceed 250 characters"},
		{"250 chars", strings.Repeat("a", 250), Success, "Post created!"},
		{"250 multibyte runes", strings.Repeat("é", 250), Success, "Post created!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.session.Set(f.alice.ID)

			o := f.coordinator.CreatePost(ctxFor(t), tt.content)
			if o.Kind != tt.kind || o.Message != tt.message {
				t.Fatalf("CreatePost = %v %q, want %v %q", o.Kind, o.Message, tt.kind, tt.message)
			}
			wantCalls := 0
			if tt.kind == Success {
				wantCalls = 1
			}
			if got := f.backend.Calls("POST /api/posts"); got != wantCalls {
				t.Fatalf("POST /posts calls = %d, want %d", got, wantCalls)
			}
		})
	}
}

func TestCreatePost_RequiresUser(t *testing.T) {
	f := newFixture(t)
	o := f.coordinator.CreatePost(ctxFor(t), "hello")
	if o.Kind != Invalid || o.Message != "Please select a user first" {
		t.Fatalf("CreatePost without user = %v %q", o.Kind, o.Message)
	}
	if got := f.backend.TotalCalls(); got != 0 {
		t.Fatalf("network calls = %d, want 0", got)
	}
}

func TestCreatePost_SuccessRefreshesFeed(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)

	o := f.coordinator.CreatePost(ctxFor(t), "hello world")
	if !o.OK() {
		t.Fatalf("CreatePost = %#v, want success", o)
	}
	feed := f.store.Snapshot().Feed
	if len(feed) != 1 || feed[0].Content != "hello world" {
		t.Fatalf("feed after post = %#v, want the new post", feed)
	}
	if got := f.backend.Calls("GET /api/posts/feed/{userID}"); got != 1 {
		t.Fatalf("feed refreshes = %d, want 1", got)
	}
}

func TestCreatePost_FailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)
	f.backend.Fail("POST /api/posts", http.StatusInternalServerError)

	o := f.coordinator.CreatePost(ctxFor(t), "hello")
	if o.Kind != Failed || o.Err == nil {
		t.Fatalf("CreatePost = %#v, want failed with error", o)
	}
	if got := f.backend.Calls("GET /api/posts/feed/{userID}"); got != 0 {
		t.Fatalf("feed refreshed after failed post")
	}
}

func TestFollow_SelfRejectedBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)

	o := f.coordinator.Follow(ctxFor(t), f.alice.ID)
	if o.Kind != Invalid || o.Message != "You cannot follow yourself" {
		t.Fatalf("self follow = %v %q", o.Kind, o.Message)
	}
	if got := f.backend.TotalCalls(); got != 0 {
		t.Fatalf("network calls = %d, want 0", got)
	}
}

func TestFollow_SuccessRefreshesEdges(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)
	f.refresher.LoadUsers(ctxFor(t))

	o := f.coordinator.Follow(ctxFor(t), f.bob.ID)
	if !o.OK() || o.Message != "You are now following bob" {
		t.Fatalf("Follow = %#v, want success", o)
	}
	if got := f.backend.Calls("POST /api/follows/follow"); got != 1 {
		t.Fatalf("follow calls = %d, want 1", got)
	}
	snap := f.store.Snapshot()
	if !state.IsFollowing(f.bob.ID, f.alice.ID, snap.Following) {
		t.Fatalf("follow edge not in cache after refresh: %#v", snap.Following)
	}
}

func TestFollow_AlreadyFollowingIsInformational(t *testing.T) {
	for _, style := range []socialtest.ErrorStyle{socialtest.LegacyErrors, socialtest.CodedErrors} {
		f := newFixture(t)
		f.backend.SetErrorStyle(style)
		f.backend.AddFollow(f.alice.ID, f.bob.ID)
		f.session.Set(f.alice.ID)

		o := f.coordinator.Follow(ctxFor(t), f.bob.ID)
		if o.Kind != Info || !social.IsKind(o.Err, social.KindAlreadyFollowing) {
			t.Fatalf("style %d: Follow = %#v, want info already-following", style, o)
		}
		if !state.IsFollowing(f.bob.ID, f.alice.ID, f.store.Snapshot().Following) {
			t.Fatalf("style %d: stale cache not refreshed after conflict", style)
		}
	}
}

func TestFollow_GenericFailure(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)
	f.backend.Fail("POST /api/follows/follow", http.StatusBadGateway)

	o := f.coordinator.Follow(ctxFor(t), f.bob.ID)
	if o.Kind != Failed {
		t.Fatalf("Follow = %#v, want failed", o)
	}
}

func TestUnfollow(t *testing.T) {
	f := newFixture(t)
	f.backend.AddFollow(f.alice.ID, f.bob.ID)
	f.session.Set(f.alice.ID)
	f.refresher.LoadFollowing(ctxFor(t), f.alice.ID)

	o := f.coordinator.Unfollow(ctxFor(t), f.bob.ID)
	if !o.OK() {
		t.Fatalf("Unfollow = %#v, want success", o)
	}
	if state.IsFollowing(f.bob.ID, f.alice.ID, f.store.Snapshot().Following) {
		t.Fatalf("edge still cached after unfollow")
	}

	o = f.coordinator.Unfollow(ctxFor(t), f.bob.ID)
	if o.Kind != Info || !social.IsKind(o.Err, social.KindNotFollowing) {
		t.Fatalf("second Unfollow = %#v, want info not-following", o)
	}
}

func TestUnfollow_ServerErrorIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.backend.AddFollow(f.alice.ID, f.bob.ID)
	f.session.Set(f.alice.ID)
	f.backend.Fail("POST /api/follows/unfollow", http.StatusInternalServerError)

	o := f.coordinator.Unfollow(ctxFor(t), f.bob.ID)
	if o.Kind != Failed || !social.IsKind(o.Err, social.KindServer) {
		t.Fatalf("Unfollow = %#v, want generic failure", o)
	}
	if f.backend.Calls("POST /api/follows/unfollow") != 1 {
		t.Fatalf("unfollow calls = %d, want 1", f.backend.Calls("POST /api/follows/unfollow"))
	}
}

func TestUnfollow_RequiresUser(t *testing.T) {
	f := newFixture(t)
	o := f.coordinator.Unfollow(ctxFor(t), f.bob.ID)
	if o.Kind != Invalid || f.backend.TotalCalls() != 0 {
		t.Fatalf("Unfollow without user = %#v, calls %d", o, f.backend.TotalCalls())
	}
}

func TestMarkRead_RefreshesUnreadCount(t *testing.T) {
	f := newFixture(t)
	unread := f.backend.AddNotification(f.alice.ID, social.NotificationFollow, "bob followed you", false)
	f.backend.AddNotification(f.alice.ID, social.NotificationPost, "bob posted", true)
	f.session.Set(f.alice.ID)
	f.refresher.LoadNotifications(ctxFor(t), f.alice.ID)

	if got := state.UnreadCount(f.store.Snapshot().Notifications); got != 1 {
		t.Fatalf("unread before = %d, want 1", got)
	}
	o := f.coordinator.MarkRead(ctxFor(t), unread.ID)
	if !o.OK() {
		t.Fatalf("MarkRead = %#v, want success", o)
	}
	if got := state.UnreadCount(f.store.Snapshot().Notifications); got != 0 {
		t.Fatalf("unread after = %d, want 0", got)
	}
}

func TestMarkRead_FailureLeavesItemUnread(t *testing.T) {
	f := newFixture(t)
	n := f.backend.AddNotification(f.alice.ID, social.NotificationFollow, "hi", false)
	f.session.Set(f.alice.ID)
	f.refresher.LoadNotifications(ctxFor(t), f.alice.ID)
	f.backend.Fail("POST /api/notifications/{id}/read", http.StatusInternalServerError)

	o := f.coordinator.MarkRead(ctxFor(t), n.ID)
	if o.Kind != Failed || o.Message != "Failed to mark notification as read" {
		t.Fatalf("MarkRead = %#v, want failed", o)
	}
	cached, _ := state.FindNotification(f.store.Snapshot().Notifications, n.ID)
	if cached.IsRead {
		t.Fatalf("cached notification flipped to read after failure")
	}
}

func TestNotificationActions_RequireKnownID(t *testing.T) {
	f := newFixture(t)
	f.session.Set(f.alice.ID)

	for _, id := range []int64{0, -3, 42} {
		if o := f.coordinator.MarkRead(ctxFor(t), id); o.Kind != Invalid {
			t.Fatalf("MarkRead(%d) = %#v, want invalid", id, o)
		}
		o := f.coordinator.DeleteNotification(ctxFor(t), id)
		if o.Kind != Invalid {
			t.Fatalf("DeleteNotification(%d) = %#v, want invalid", id, o)
		}
		if id == 42 && !errors.Is(o.Err, ErrUnknownNotification) {
			t.Fatalf("DeleteNotification(42) err = %v, want ErrUnknownNotification", o.Err)
		}
	}
	if got := f.backend.TotalCalls(); got != 0 {
		t.Fatalf("network calls = %d, want 0", got)
	}
}

func TestDeleteNotification(t *testing.T) {
	f := newFixture(t)
	n := f.backend.AddNotification(f.alice.ID, social.NotificationPost, "bob posted", false)
	f.session.Set(f.alice.ID)
	f.refresher.LoadNotifications(ctxFor(t), f.alice.ID)

	o := f.coordinator.DeleteNotification(ctxFor(t), n.ID)
	if !o.OK() {
		t.Fatalf("DeleteNotification = %#v, want success", o)
	}
	if got := len(f.store.Snapshot().Notifications); got != 0 {
		t.Fatalf("cached notifications = %d, want 0", got)
	}
	if got := f.backend.Calls("DELETE /api/notifications/{id}"); got != 1 {
		t.Fatalf("delete calls = %d, want 1", got)
	}
}
