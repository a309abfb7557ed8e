package social_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/social/socialtest"
)

func newClient(t *testing.T, apiURL string, opts ...social.Option) *social.Client {
	t.Helper()
	c, err := social.NewClient(apiURL, opts...)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_ReadEndpoints(t *testing.T) {
	t.Parallel()

	backend := socialtest.New()
	alice := backend.AddUser("alice", "alice@example.com")
	bob := backend.AddUser("bob", "bob@example.com")
	backend.AddFollow(alice.ID, bob.ID)
	now := time.Now()
	backend.AddPost(bob.ID, "older", now.Add(-time.Hour))
	backend.AddPost(bob.ID, "newer", now)
	backend.AddPost(alice.ID, "mine", now.Add(-time.Minute))
	backend.AddNotification(alice.ID, social.NotificationFollow, "bob started following you", false)
	backend.AddNotification(alice.ID, social.NotificationPost, "bob created a new post", true)

	c := newClient(t, backend.Start(t))
	ctx := testContext(t)

	users, err := c.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" {
		t.Fatalf("ListUsers = %#v, want alice and bob", users)
	}

	user, err := c.GetUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Fatalf("GetUser email = %q, want bob@example.com", user.Email)
	}

	feed, err := c.Feed(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	var contents []string
	for _, p := range feed {
		contents = append(contents, p.Content)
	}
	if got := strings.Join(contents, ","); got != "newer,mine,older" {
		t.Fatalf("Feed order = %q, want newer,mine,older", got)
	}

	posts, err := c.UserPosts(ctx, bob.ID)
	if err != nil {
		t.Fatalf("UserPosts returned error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("UserPosts len = %d, want 2", len(posts))
	}

	following, err := c.Following(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Following returned error: %v", err)
	}
	if len(following) != 1 || following[0].FollowingID != bob.ID {
		t.Fatalf("Following = %#v, want edge to bob", following)
	}
	followers, err := c.Followers(ctx, bob.ID)
	if err != nil {
		t.Fatalf("Followers returned error: %v", err)
	}
	if len(followers) != 1 || followers[0].FollowerID != alice.ID {
		t.Fatalf("Followers = %#v, want edge from alice", followers)
	}

	notes, err := c.Notifications(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Notifications returned error: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("Notifications len = %d, want 2", len(notes))
	}
	unread, err := c.UnreadNotifications(ctx, alice.ID)
	if err != nil {
		t.Fatalf("UnreadNotifications returned error: %v", err)
	}
	if len(unread) != 1 || unread[0].Type != social.NotificationFollow {
		t.Fatalf("UnreadNotifications = %#v, want the FOLLOW one", unread)
	}
	count, err := c.UnreadCount(ctx, alice.ID)
	if err != nil {
		t.Fatalf("UnreadCount returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("UnreadCount = %d, want 1", count)
	}
}

func TestClient_Mutations(t *testing.T) {
	t.Parallel()

	backend := socialtest.New()
	alice := backend.AddUser("alice", "a@example.com")
	bob := backend.AddUser("bob", "b@example.com")
	c := newClient(t, backend.Start(t))
	ctx := testContext(t)

	post, err := c.CreatePost(ctx, alice.ID, "hello")
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if post.ID == 0 || post.UserID != alice.ID || post.Content != "hello" || post.Timestamp == 0 {
		t.Fatalf("CreatePost = %#v, want stored post", post)
	}

	edge, err := c.Follow(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	if edge.FollowerID != alice.ID || edge.FollowingID != bob.ID {
		t.Fatalf("Follow = %#v, want alice -> bob", edge)
	}

	notes, err := c.Notifications(ctx, bob.ID)
	if err != nil || len(notes) != 1 {
		t.Fatalf("Notifications(bob) = %v, %v; want one FOLLOW notification", notes, err)
	}
	marked, err := c.MarkRead(ctx, notes[0].ID)
	if err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}
	if !marked.IsRead {
		t.Fatalf("MarkRead returned unread notification %#v", marked)
	}
	if err := c.DeleteNotification(ctx, notes[0].ID); err != nil {
		t.Fatalf("DeleteNotification returned error: %v", err)
	}
	if _, ok := backend.Notification(notes[0].ID); ok {
		t.Fatalf("notification %d still stored after delete", notes[0].ID)
	}

	if err := c.Unfollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Unfollow returned error: %v", err)
	}
	if edges := backend.Follows(); len(edges) != 0 {
		t.Fatalf("edges after unfollow = %#v, want none", edges)
	}
}

func TestClient_ClassifiesConflicts(t *testing.T) {
	t.Parallel()

	for _, style := range []socialtest.ErrorStyle{socialtest.LegacyErrors, socialtest.CodedErrors} {
		backend := socialtest.New()
		backend.SetErrorStyle(style)
		alice := backend.AddUser("alice", "a@example.com")
		bob := backend.AddUser("bob", "b@example.com")
		backend.AddFollow(alice.ID, bob.ID)
		c := newClient(t, backend.Start(t))
		ctx := testContext(t)

		_, err := c.Follow(ctx, alice.ID, bob.ID)
		if !social.IsKind(err, social.KindAlreadyFollowing) {
			t.Fatalf("style %d: duplicate follow kind = %v, want already_following (err=%v)", style, social.KindOf(err), err)
		}
		_, err = c.Follow(ctx, alice.ID, alice.ID)
		if !social.IsKind(err, social.KindSelfFollow) {
			t.Fatalf("style %d: self follow kind = %v, want self_follow", style, social.KindOf(err))
		}
		err = c.Unfollow(ctx, bob.ID, alice.ID)
		if !social.IsKind(err, social.KindNotFollowing) {
			t.Fatalf("style %d: unfollow kind = %v, want not_following", style, social.KindOf(err))
		}
		if !social.IsConflict(err) {
			t.Fatalf("style %d: IsConflict(%v) = false, want true", style, err)
		}
	}
}

func TestClient_GetUserNotFound(t *testing.T) {
	t.Parallel()

	backend := socialtest.New()
	c := newClient(t, backend.Start(t))

	_, err := c.GetUser(testContext(t), 99)
	if !social.IsKind(err, social.KindNotFound) {
		t.Fatalf("GetUser(99) kind = %v, want not_found", social.KindOf(err))
	}
	var apiErr *social.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("GetUser(99) error = %#v, want status 404", err)
	}
}

func TestClient_ServerAndTransportErrors(t *testing.T) {
	t.Parallel()

	backend := socialtest.New()
	backend.Fail("GET /api/users", http.StatusInternalServerError)
	c := newClient(t, backend.Start(t))

	_, err := c.ListUsers(testContext(t))
	if !social.IsKind(err, social.KindServer) {
		t.Fatalf("ListUsers kind = %v, want server", social.KindOf(err))
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	c = newClient(t, closed.URL)
	_, err = c.ListUsers(testContext(t))
	if !social.IsKind(err, social.KindTransport) {
		t.Fatalf("ListUsers against closed server kind = %v, want transport", social.KindOf(err))
	}
}

func TestClient_DecodeError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not json"))
	}))
	t.Cleanup(server.Close)

	c := newClient(t, server.URL)
	_, err := c.ListUsers(testContext(t))
	if !social.IsKind(err, social.KindDecode) {
		t.Fatalf("ListUsers kind = %v, want decode", social.KindOf(err))
	}
}

func TestClient_FollowAcceptsStatusBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "bare string", body: `"Followed successfully"`},
		{name: "message object", body: `{"message":"Followed successfully"}`},
		{name: "empty body", body: ``},
		{name: "number", body: `42`},
		{name: "edge", body: `{"id":9,"followerId":1,"followingId":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			edge, err := newClient(t, server.URL).Follow(testContext(t), 1, 2)
			if err != nil {
				t.Fatalf("Follow returned error: %v", err)
			}
			if edge.FollowerID != 1 || edge.FollowingID != 2 {
				t.Fatalf("edge = %+v, want 1 -> 2", edge)
			}
		})
	}
}

func TestClient_SetsHeadersAndBody(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		gotPath  string
		gotReqID string
		gotUA    string
		gotCT    string
		gotBody  map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotReqID = r.Header.Get("X-Request-ID")
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Successfully followed user"}`))
	}))
	t.Cleanup(server.Close)

	c := newClient(t, strings.TrimPrefix(server.URL, "http://"))
	edge, err := c.Follow(testContext(t), 1, 2)
	if err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	if edge.FollowerID != 1 || edge.FollowingID != 2 {
		t.Fatalf("Follow = %#v, want request edge echoed back", edge)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/api/follows/follow" {
		t.Fatalf("path = %q, want /api/follows/follow", gotPath)
	}
	if len(gotReqID) != 36 {
		t.Fatalf("X-Request-ID = %q, want a uuid", gotReqID)
	}
	if !strings.HasPrefix(gotUA, "perch/") {
		t.Fatalf("User-Agent = %q, want perch/*", gotUA)
	}
	if gotCT != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", gotCT)
	}
	if gotBody["followerId"] != float64(1) || gotBody["followingId"] != float64(2) {
		t.Fatalf("body = %#v, want followerId 1 followingId 2", gotBody)
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	backend := socialtest.New()
	c := newClient(t, backend.Start(t), social.WithRateLimit(0.001, 1))

	if _, err := c.ListUsers(testContext(t)); err != nil {
		t.Fatalf("first ListUsers returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ListUsers(ctx)
	if !social.IsKind(err, social.KindTransport) {
		t.Fatalf("throttled ListUsers kind = %v, want transport", social.KindOf(err))
	}
	if got := backend.Calls("GET /api/users"); got != 1 {
		t.Fatalf("backend calls = %d, want 1", got)
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests []string
}

func (r *recordingMetrics) RecordRequest(op string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, op)
}
func (r *recordingMetrics) RecordFetch(string, error)   {}
func (r *recordingMetrics) RecordPollTick(string)       {}
func (r *recordingMetrics) RecordAction(string, string) {}

func TestClient_RecordsRequestMetrics(t *testing.T) {
	t.Parallel()

	backend := socialtest.New()
	rec := &recordingMetrics{}
	c := newClient(t, backend.Start(t), social.WithMetrics(rec))

	if _, err := c.ListUsers(testContext(t)); err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.requests) != 1 || rec.requests[0] != "list_users" {
		t.Fatalf("recorded ops = %v, want [list_users]", rec.requests)
	}
}
