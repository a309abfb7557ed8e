// Package socialtest provides an in-memory implementation of the social
// backend REST API for tests.
package socialtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/five82/perch/internal/social"
)

// ErrorStyle selects how conflicts are reported.
type ErrorStyle int

const (
	// LegacyErrors answers conflicts with 400 {"error": "..."} like the
	// existing backend.
	LegacyErrors ErrorStyle = iota
	// CodedErrors answers conflicts with 409 and a machine-readable code.
	CodedErrors
)

// Backend is a thread-safe fake of the backend. The zero value is not
// usable; call New.
type Backend struct {
	mu            sync.Mutex
	style         ErrorStyle
	nextID        int64
	clock         func() time.Time
	users         []social.User
	posts         []social.Post
	follows       []social.Follow
	notifications []social.Notification

	failures map[string]int
	delays   map[string]time.Duration
	routes   map[string]int
	paths    map[string]int
	inFlight map[string]int
	peak     map[string]int

	router chi.Router
}

// New returns an empty backend.
func New() *Backend {
	b := &Backend{
		nextID:   1,
		clock:    time.Now,
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		routes:   make(map[string]int),
		paths:    make(map[string]int),
		inFlight: make(map[string]int),
		peak:     make(map[string]int),
	}
	b.router = b.routesTable()
	return b
}

// Start serves the backend on an httptest server closed at test cleanup and
// returns the API base URL.
func (b *Backend) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// SetErrorStyle switches between legacy and coded conflict responses.
func (b *Backend) SetErrorStyle(style ErrorStyle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.style = style
}

// Fail makes every request to route (e.g. "GET /api/users") answer with
// status until Fail is called again with status 0.
func (b *Backend) Fail(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, route)
		return
	}
	b.failures[route] = status
}

// Delay holds every request to route for d before answering.
func (b *Backend) Delay(route string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[route] = d
}

// Calls reports how many requests reached route.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.routes[route]
}

// Hits reports how many requests reached the concrete path, e.g.
// "GET /api/notifications/2".
func (b *Backend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paths[path]
}

// TotalCalls reports the number of requests served on any route.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.routes {
		total += n
	}
	return total
}

// PeakConcurrency reports the largest number of simultaneous requests
// observed on route.
func (b *Backend) PeakConcurrency(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak[route]
}

// AddUser seeds a user and returns it.
func (b *Backend) AddUser(username, email string) social.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := social.User{ID: b.id(), Username: username, Email: email, CreatedAt: social.MillisOf(b.clock())}
	b.users = append(b.users, u)
	return u
}

// AddPost seeds a post authored by userID.
func (b *Backend) AddPost(userID int64, content string, at time.Time) social.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := social.Post{ID: b.id(), UserID: userID, Content: content, Timestamp: social.MillisOf(at)}
	b.posts = append(b.posts, p)
	return p
}

// AddFollow seeds the edge followerID -> followingID without notifying.
func (b *Backend) AddFollow(followerID, followingID int64) social.Follow {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := social.Follow{ID: b.id(), FollowerID: followerID, FollowingID: followingID, CreatedAt: social.MillisOf(b.clock())}
	b.follows = append(b.follows, f)
	return f
}

// AddNotification seeds a notification for userID.
func (b *Backend) AddNotification(userID int64, typ social.NotificationType, message string, read bool) social.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notify(userID, typ, message, read)
}

// Notification returns the stored notification with id.
func (b *Backend) Notification(id int64) (social.Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range b.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return social.Notification{}, false
}

// Follows returns a copy of every stored edge.
func (b *Backend) Follows() []social.Follow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]social.Follow(nil), b.follows...)
}

// Posts returns a copy of every stored post.
func (b *Backend) Posts() []social.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]social.Post(nil), b.posts...)
}

func (b *Backend) id() int64 {
	id := b.nextID
	b.nextID++
	return id
}

func (b *Backend) notify(userID int64, typ social.NotificationType, message string, read bool) social.Notification {
	n := social.Notification{
		ID:        b.id(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		IsRead:    read,
		CreatedAt: social.MillisOf(b.clock()),
	}
	b.notifications = append(b.notifications, n)
	return n
}

func (b *Backend) routesTable() chi.Router {
	r := chi.NewRouter()
	b.handle(r, http.MethodGet, "/api/users", b.listUsers)
	b.handle(r, http.MethodGet, "/api/users/{id}", b.getUser)
	b.handle(r, http.MethodPost, "/api/posts", b.createPost)
	b.handle(r, http.MethodGet, "/api/posts/feed/{userID}", b.feed)
	b.handle(r, http.MethodGet, "/api/posts/user/{userID}", b.userPosts)
	b.handle(r, http.MethodPost, "/api/follows/follow", b.follow)
	b.handle(r, http.MethodPost, "/api/follows/unfollow", b.unfollow)
	b.handle(r, http.MethodGet, "/api/follows/{userID}/following", b.following)
	b.handle(r, http.MethodGet, "/api/follows/{userID}/followers", b.followers)
	b.handle(r, http.MethodGet, "/api/notifications/{id}", b.allNotifications)
	b.handle(r, http.MethodGet, "/api/notifications/{id}/unread", b.unreadNotifications)
	b.handle(r, http.MethodGet, "/api/notifications/{id}/unread-count", b.unreadCount)
	b.handle(r, http.MethodPost, "/api/notifications/{id}/read", b.markRead)
	b.handle(r, http.MethodDelete, "/api/notifications/{id}", b.deleteNotification)
	return r
}

// handle registers fn and wraps it with call accounting, injected delays
// and injected failures.
func (b *Backend) handle(r chi.Router, method, pattern string, fn http.HandlerFunc) {
	route := method + " " + pattern
	r.MethodFunc(method, pattern, func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.routes[route]++
		b.paths[method+" "+req.URL.Path]++
		b.inFlight[route]++
		if b.inFlight[route] > b.peak[route] {
			b.peak[route] = b.inFlight[route]
		}
		delay := b.delays[route]
		status := b.failures[route]
		b.mu.Unlock()

		defer func() {
			b.mu.Lock()
			b.inFlight[route]--
			b.mu.Unlock()
		}()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		fn(w, req)
	})
}

func (b *Backend) listUsers(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	users := append([]social.User{}, b.users...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

func (b *Backend) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.ID == id {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (b *Backend) createPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  int64  `json:"userId"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.userExists(req.UserID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "User not found"})
		return
	}
	p := social.Post{ID: b.id(), UserID: req.UserID, Content: req.Content, Timestamp: social.MillisOf(b.clock())}
	b.posts = append(b.posts, p)
	author := b.usernameLocked(req.UserID)
	for _, f := range b.follows {
		if f.FollowingID == req.UserID {
			b.notify(f.FollowerID, social.NotificationPost, author+" created a new post", false)
		}
	}
	writeJSON(w, http.StatusOK, p)
}

// feed returns posts by the user and everyone they follow, newest first.
func (b *Backend) feed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	b.mu.Lock()
	authors := map[int64]bool{id: true}
	for _, f := range b.follows {
		if f.FollowerID == id {
			authors[f.FollowingID] = true
		}
	}
	posts := []social.Post{}
	for _, p := range b.posts {
		if authors[p.UserID] {
			posts = append(posts, p)
		}
	}
	b.mu.Unlock()
	sortNewestFirst(posts)
	writeJSON(w, http.StatusOK, posts)
}

func (b *Backend) userPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	b.mu.Lock()
	posts := []social.Post{}
	for _, p := range b.posts {
		if p.UserID == id {
			posts = append(posts, p)
		}
	}
	b.mu.Unlock()
	sortNewestFirst(posts)
	writeJSON(w, http.StatusOK, posts)
}

func (b *Backend) follow(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEdge(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.FollowerID == req.FollowingID {
		b.conflict(w, social.CodeSelfFollow, "User cannot follow themselves")
		return
	}
	if b.edgeIndex(req.FollowerID, req.FollowingID) >= 0 {
		b.conflict(w, social.CodeAlreadyFollowing, "You are already following this user")
		return
	}
	f := social.Follow{ID: b.id(), FollowerID: req.FollowerID, FollowingID: req.FollowingID, CreatedAt: social.MillisOf(b.clock())}
	b.follows = append(b.follows, f)
	b.notify(req.FollowingID, social.NotificationFollow, b.usernameLocked(req.FollowerID)+" started following you", false)
	writeJSON(w, http.StatusOK, f)
}

func (b *Backend) unfollow(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEdge(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.edgeIndex(req.FollowerID, req.FollowingID)
	if idx < 0 {
		b.conflict(w, social.CodeNotFollowing, "You are not following this user")
		return
	}
	b.follows = append(b.follows[:idx], b.follows[idx+1:]...)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully unfollowed user"})
}

func (b *Backend) following(w http.ResponseWriter, r *http.Request) {
	b.edges(w, r, func(f social.Follow, id int64) bool { return f.FollowerID == id })
}

func (b *Backend) followers(w http.ResponseWriter, r *http.Request) {
	b.edges(w, r, func(f social.Follow, id int64) bool { return f.FollowingID == id })
}

func (b *Backend) edges(w http.ResponseWriter, r *http.Request, match func(social.Follow, int64) bool) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	b.mu.Lock()
	out := []social.Follow{}
	for _, f := range b.follows {
		if match(f, id) {
			out = append(out, f)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) allNotifications(w http.ResponseWriter, r *http.Request) {
	b.listNotifications(w, r, false)
}

func (b *Backend) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	b.listNotifications(w, r, true)
}

func (b *Backend) listNotifications(w http.ResponseWriter, r *http.Request, unreadOnly bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	out := []social.Notification{}
	for i := len(b.notifications) - 1; i >= 0; i-- {
		n := b.notifications[i]
		if n.UserID == id && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) unreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	count := 0
	for _, n := range b.notifications {
		if n.UserID == id && !n.IsRead {
			count++
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"unreadCount": count})
}

func (b *Backend) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications[i].IsRead = true
			writeJSON(w, http.StatusOK, b.notifications[i])
			return
		}
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Notification not found"})
}

func (b *Backend) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications = append(b.notifications[:i], b.notifications[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
			return
		}
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Notification not found"})
}

// conflict must be called with b.mu held.
func (b *Backend) conflict(w http.ResponseWriter, code, message string) {
	if b.style == CodedErrors {
		writeJSON(w, http.StatusConflict, map[string]string{"code": code, "error": message})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func (b *Backend) edgeIndex(followerID, followingID int64) int {
	for i, f := range b.follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			return i
		}
	}
	return -1
}

func (b *Backend) userExists(id int64) bool {
	for _, u := range b.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (b *Backend) usernameLocked(id int64) string {
	for _, u := range b.users {
		if u.ID == id {
			return u.Username
		}
	}
	return "User " + strconv.FormatInt(id, 10)
}

func decodeEdge(w http.ResponseWriter, r *http.Request) (social.Follow, bool) {
	var req social.Follow
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return social.Follow{}, false
	}
	return req, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, name)), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func sortNewestFirst(posts []social.Post) {
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Timestamp > posts[j].Timestamp })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
