package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/five82/perch/internal/metrics"
)

// Reader is the read side of the backend used by the refresh policy.
type Reader interface {
	ListUsers(ctx context.Context) ([]User, error)
	Feed(ctx context.Context, userID int64) ([]Post, error)
	UserPosts(ctx context.Context, userID int64) ([]Post, error)
	Following(ctx context.Context, userID int64) ([]Follow, error)
	Followers(ctx context.Context, userID int64) ([]Follow, error)
	Notifications(ctx context.Context, userID int64) ([]Notification, error)
}

// Writer is the mutation side of the backend used by the action coordinator.
type Writer interface {
	CreatePost(ctx context.Context, userID int64, content string) (Post, error)
	Follow(ctx context.Context, followerID, followingID int64) (Follow, error)
	Unfollow(ctx context.Context, followerID, followingID int64) error
	MarkRead(ctx context.Context, notificationID int64) (Notification, error)
	DeleteNotification(ctx context.Context, notificationID int64) error
}

// API is everything the TUI needs from the backend.
type API interface {
	Reader
	Writer
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the social backend REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	metrics   metrics.Recorder
}

const (
	DefaultAPIURL     = "http://127.0.0.1:8080/api"
	defaultUserAgent  = "perch/0.1"
	defaultTimeout    = 10 * time.Second
	maxErrorBodyBytes = 64 << 10
)

// Operation names, used in errors and metric labels.
const (
	opListUsers          = "list_users"
	opGetUser            = "get_user"
	opCreatePost         = "create_post"
	opFeed               = "feed"
	opUserPosts          = "user_posts"
	opFollow             = "follow"
	opUnfollow           = "unfollow"
	opFollowing          = "following"
	opFollowers          = "followers"
	opNotifications      = "notifications"
	opUnreadNotification = "unread_notifications"
	opUnreadCount        = "unread_count"
	opMarkRead           = "mark_read"
	opDeleteNotification = "delete_notification"
)

// Option customises a Client.
type Option func(*Client)

// WithTimeout sets the per-request transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit paces outgoing requests with a token bucket. A
// non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records every round trip on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) { c.metrics = metrics.OrNop(r) }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a Client for apiURL, e.g. "http://localhost:8080/api".
// A bare host:port gets the http scheme and the /api base path.
func NewClient(apiURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListUsers returns every user.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, opListUsers, http.MethodGet, nil, &users, "users"); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns one user; a missing user yields KindNotFound.
func (c *Client) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	if err := c.do(ctx, opGetUser, http.MethodGet, nil, &user, "users", id64(id)); err != nil {
		return User{}, err
	}
	return user, nil
}

// CreatePost publishes content as userID.
func (c *Client) CreatePost(ctx context.Context, userID int64, content string) (Post, error) {
	var post Post
	body := createPostRequest{UserID: userID, Content: content}
	if err := c.do(ctx, opCreatePost, http.MethodPost, body, &post, "posts"); err != nil {
		return Post{}, err
	}
	return post, nil
}

// Feed returns the server-assembled feed for userID.
func (c *Client) Feed(ctx context.Context, userID int64) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, opFeed, http.MethodGet, nil, &posts, "posts", "feed", id64(userID)); err != nil {
		return nil, err
	}
	return posts, nil
}

// UserPosts returns the posts authored by userID.
func (c *Client) UserPosts(ctx context.Context, userID int64) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, opUserPosts, http.MethodGet, nil, &posts, "posts", "user", id64(userID)); err != nil {
		return nil, err
	}
	return posts, nil
}

// Follow creates the edge followerID -> followingID. Duplicate and self
// edges fail with KindAlreadyFollowing and KindSelfFollow.
func (c *Client) Follow(ctx context.Context, followerID, followingID int64) (Follow, error) {
	body := followRequest{FollowerID: followerID, FollowingID: followingID}
	var raw json.RawMessage
	if err := c.do(ctx, opFollow, http.MethodPost, body, &raw, "follows", "follow"); err != nil {
		return Follow{}, err
	}
	// Older backends answer with a status message instead of the edge,
	// either a bare JSON string or {"message": "..."}, or with no body. All
	// leave the ids zero and fall back to the requested pair.
	var edge Follow
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &edge); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return Follow{}, &Error{Op: opFollow, Kind: KindDecode, Err: fmt.Errorf("decode response: %w", err)}
		}
		edge = Follow{}
	}
	if edge.FollowerID == 0 && edge.FollowingID == 0 {
		edge.FollowerID = followerID
		edge.FollowingID = followingID
	}
	return edge, nil
}

// Unfollow removes the edge followerID -> followingID.
func (c *Client) Unfollow(ctx context.Context, followerID, followingID int64) error {
	body := followRequest{FollowerID: followerID, FollowingID: followingID}
	return c.do(ctx, opUnfollow, http.MethodPost, body, nil, "follows", "unfollow")
}

// Following returns the edges where userID is the follower.
func (c *Client) Following(ctx context.Context, userID int64) ([]Follow, error) {
	var edges []Follow
	if err := c.do(ctx, opFollowing, http.MethodGet, nil, &edges, "follows", id64(userID), "following"); err != nil {
		return nil, err
	}
	return edges, nil
}

// Followers returns the edges where userID is followed.
func (c *Client) Followers(ctx context.Context, userID int64) ([]Follow, error) {
	var edges []Follow
	if err := c.do(ctx, opFollowers, http.MethodGet, nil, &edges, "follows", id64(userID), "followers"); err != nil {
		return nil, err
	}
	return edges, nil
}

// Notifications returns every notification addressed to userID.
func (c *Client) Notifications(ctx context.Context, userID int64) ([]Notification, error) {
	var items []Notification
	if err := c.do(ctx, opNotifications, http.MethodGet, nil, &items, "notifications", id64(userID)); err != nil {
		return nil, err
	}
	return items, nil
}

// UnreadNotifications returns only the unread notifications of userID.
func (c *Client) UnreadNotifications(ctx context.Context, userID int64) ([]Notification, error) {
	var items []Notification
	if err := c.do(ctx, opUnreadNotification, http.MethodGet, nil, &items, "notifications", id64(userID), "unread"); err != nil {
		return nil, err
	}
	return items, nil
}

// UnreadCount asks the backend for the unread total of userID.
func (c *Client) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var payload unreadCountResponse
	if err := c.do(ctx, opUnreadCount, http.MethodGet, nil, &payload, "notifications", id64(userID), "unread-count"); err != nil {
		return 0, err
	}
	return payload.UnreadCount, nil
}

// MarkRead flags one notification as read and returns it.
func (c *Client) MarkRead(ctx context.Context, notificationID int64) (Notification, error) {
	var n Notification
	if err := c.do(ctx, opMarkRead, http.MethodPost, nil, &n, "notifications", id64(notificationID), "read"); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, notificationID int64) error {
	return c.do(ctx, opDeleteNotification, http.MethodDelete, nil, nil, "notifications", id64(notificationID))
}

func (c *Client) do(ctx context.Context, op, method string, body, dest any, segments ...string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindBadRequest, Err: fmt.Errorf("encode request: %w", err)}
		}
		payload = bytes.NewReader(buf)
	}

	reqURL := c.baseURL.JoinPath(segments...)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), payload)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRequest(op, 0, time.Since(start))
		return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.RecordRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return classify(op, resp.StatusCode, raw)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && err != io.EOF {
		return &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func id64(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = DefaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/api"
	}
	u.RawPath = ""
	return u, nil
}
