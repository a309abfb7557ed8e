// Package actions runs user mutations against the backend and refreshes the
// cache slices each mutation affects.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/five82/perch/internal/metrics"
	"github.com/five82/perch/internal/refresh"
	"github.com/five82/perch/internal/session"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/state"
)

// Kind classifies an Outcome.
type Kind int

const (
	// Success means the mutation was applied.
	Success Kind = iota
	// Info means the backend reported a benign conflict, e.g. the edge
	// already exists.
	Info
	// Invalid means a precondition failed and no request was sent.
	Invalid
	// Failed means the request failed.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Info:
		return "info"
	case Invalid:
		return "invalid"
	default:
		return "failed"
	}
}

// Outcome is the user-facing result of an action.
type Outcome struct {
	Action  string
	Kind    Kind
	Message string
	Err     error
}

// OK reports whether the mutation was applied.
func (o Outcome) OK() bool { return o.Kind == Success }

// Action names.
const (
	ActionCreatePost         = "create_post"
	ActionFollow             = "follow"
	ActionUnfollow           = "unfollow"
	ActionMarkRead           = "mark_read"
	ActionDeleteNotification = "delete_notification"
)

// ErrUnknownNotification is returned for a notification id that is not in
// the cache.
var ErrUnknownNotification = errors.New("unknown notification")

type postInput struct {
	UserID  int64  `validate:"gt=0"`
	Content string `validate:"nonblank,max=250"`
}

type followInput struct {
	FollowerID  int64 `validate:"gt=0"`
	FollowingID int64 `validate:"gt=0,nefield=FollowerID"`
}

type unfollowInput struct {
	FollowerID  int64 `validate:"gt=0"`
	FollowingID int64 `validate:"gt=0"`
}

type notificationInput struct {
	NotificationID int64 `validate:"gt=0"`
}

// Coordinator validates, performs exactly one mutation call, then refreshes
// the affected slices. Validation failures never reach the network.
type Coordinator struct {
	api       social.Writer
	refresher *refresh.Refresher
	store     *state.Store
	session   *session.Session
	validate  *validator.Validate
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewCoordinator wires a Coordinator. logger and rec may be nil.
func NewCoordinator(api social.Writer, refresher *refresh.Refresher, store *state.Store, sess *session.Session, logger *slog.Logger, rec metrics.Recorder) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		api:       api,
		refresher: refresher,
		store:     store,
		session:   sess,
		validate:  newValidator(),
		logger:    logger,
		metrics:   metrics.OrNop(rec),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// CreatePost publishes content as the current user and refreshes the feed.
// On any non-success outcome the caller should keep the input.
func (c *Coordinator) CreatePost(ctx context.Context, content string) Outcome {
	userID, _ := c.session.Current()
	if err := c.validate.Struct(postInput{UserID: userID, Content: content}); err != nil {
		return c.finish(Outcome{Action: ActionCreatePost, Kind: Invalid, Message: describe(err), Err: err})
	}

	if _, err := c.api.CreatePost(ctx, userID, content); err != nil {
		return c.finish(Outcome{Action: ActionCreatePost, Kind: Failed, Message: "Failed to create post", Err: err})
	}
	c.after(ctx, ActionCreatePost, c.refresher.LoadFeed(ctx, userID))
	return c.finish(Outcome{Action: ActionCreatePost, Kind: Success, Message: "Post created!"})
}

// Follow makes the current user follow targetID and refreshes the edges.
func (c *Coordinator) Follow(ctx context.Context, targetID int64) Outcome {
	userID, _ := c.session.Current()
	if err := c.validate.Struct(followInput{FollowerID: userID, FollowingID: targetID}); err != nil {
		return c.finish(Outcome{Action: ActionFollow, Kind: Invalid, Message: describe(err), Err: err})
	}

	name := c.username(targetID)
	_, err := c.api.Follow(ctx, userID, targetID)
	switch {
	case err == nil:
		c.after(ctx, ActionFollow, c.refresher.LoadFollowing(ctx, userID))
		return c.finish(Outcome{Action: ActionFollow, Kind: Success, Message: "You are now following " + name})
	case social.IsKind(err, social.KindAlreadyFollowing):
		// The cache was stale; bring it in line with the server.
		c.after(ctx, ActionFollow, c.refresher.LoadFollowing(ctx, userID))
		return c.finish(Outcome{Action: ActionFollow, Kind: Info, Message: "You are already following " + name, Err: err})
	case social.IsKind(err, social.KindSelfFollow):
		return c.finish(Outcome{Action: ActionFollow, Kind: Invalid, Message: "You cannot follow yourself", Err: err})
	default:
		return c.finish(Outcome{Action: ActionFollow, Kind: Failed, Message: "Failed to follow " + name, Err: err})
	}
}

// Unfollow removes the current user's edge to targetID and refreshes the
// edges.
func (c *Coordinator) Unfollow(ctx context.Context, targetID int64) Outcome {
	userID, _ := c.session.Current()
	if err := c.validate.Struct(unfollowInput{FollowerID: userID, FollowingID: targetID}); err != nil {
		return c.finish(Outcome{Action: ActionUnfollow, Kind: Invalid, Message: describe(err), Err: err})
	}

	name := c.username(targetID)
	err := c.api.Unfollow(ctx, userID, targetID)
	switch {
	case err == nil:
		c.after(ctx, ActionUnfollow, c.refresher.LoadFollowing(ctx, userID))
		return c.finish(Outcome{Action: ActionUnfollow, Kind: Success, Message: "You unfollowed " + name})
	case social.IsKind(err, social.KindNotFollowing):
		c.after(ctx, ActionUnfollow, c.refresher.LoadFollowing(ctx, userID))
		return c.finish(Outcome{Action: ActionUnfollow, Kind: Info, Message: "You are not following " + name, Err: err})
	default:
		return c.finish(Outcome{Action: ActionUnfollow, Kind: Failed, Message: "Failed to unfollow " + name, Err: err})
	}
}

// MarkRead flags a cached notification as read and refreshes the
// notifications. On failure the item stays unread.
func (c *Coordinator) MarkRead(ctx context.Context, notificationID int64) Outcome {
	if o, ok := c.checkNotification(ActionMarkRead, notificationID); !ok {
		return c.finish(o)
	}
	if _, err := c.api.MarkRead(ctx, notificationID); err != nil {
		return c.finish(Outcome{Action: ActionMarkRead, Kind: Failed, Message: "Failed to mark notification as read", Err: err})
	}
	c.refreshNotifications(ctx, ActionMarkRead)
	return c.finish(Outcome{Action: ActionMarkRead, Kind: Success, Message: "Marked as read"})
}

// DeleteNotification removes a cached notification and refreshes the
// notifications.
func (c *Coordinator) DeleteNotification(ctx context.Context, notificationID int64) Outcome {
	if o, ok := c.checkNotification(ActionDeleteNotification, notificationID); !ok {
		return c.finish(o)
	}
	if err := c.api.DeleteNotification(ctx, notificationID); err != nil {
		return c.finish(Outcome{Action: ActionDeleteNotification, Kind: Failed, Message: "Failed to delete notification", Err: err})
	}
	c.refreshNotifications(ctx, ActionDeleteNotification)
	return c.finish(Outcome{Action: ActionDeleteNotification, Kind: Success, Message: "Notification deleted"})
}

func (c *Coordinator) checkNotification(action string, id int64) (Outcome, bool) {
	if err := c.validate.Struct(notificationInput{NotificationID: id}); err != nil {
		return Outcome{Action: action, Kind: Invalid, Message: describe(err), Err: err}, false
	}
	if _, ok := state.FindNotification(c.store.Snapshot().Notifications, id); !ok {
		err := fmt.Errorf("notification %d: %w", id, ErrUnknownNotification)
		return Outcome{Action: action, Kind: Invalid, Message: "Unknown notification", Err: err}, false
	}
	return Outcome{}, true
}

func (c *Coordinator) refreshNotifications(ctx context.Context, action string) {
	userID, ok := c.session.Current()
	if !ok {
		return
	}
	c.after(ctx, action, c.refresher.LoadNotifications(ctx, userID))
}

// after logs a failed post-mutation refresh; the mutation itself stands.
func (c *Coordinator) after(_ context.Context, action string, err error) {
	if err != nil {
		c.logger.Warn("refresh after action failed", "action", action, "error", err)
	}
}

func (c *Coordinator) finish(o Outcome) Outcome {
	c.metrics.RecordAction(o.Action, o.Kind.String())
	attrs := []any{"action", o.Action, "outcome", o.Kind.String()}
	switch o.Kind {
	case Failed:
		c.logger.Error("action failed", append(attrs, "error", o.Err)...)
	case Invalid, Info:
		c.logger.Info("action not applied", append(attrs, "reason", o.Message)...)
	default:
		c.logger.Info("action applied", attrs...)
	}
	return o
}

func (c *Coordinator) username(id int64) string {
	return state.UsernameFor(c.store.Snapshot().Users, id)
}

// describe turns the first validation failure into a user-facing message.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input"
	}
	fe := verrs[0]
	switch fe.StructField() {
	case "UserID", "FollowerID":
		return "Please select a user first"
	case "Content":
		if fe.Tag() == "max" {
			return fmt.Sprintf("Post cannot exceed %d characters", social.MaxPostLength)
		}
		return "Post content cannot be empty"
	case "FollowingID":
		if fe.Tag() == "nefield" {
			return "You cannot follow yourself"
		}
		return "Please select a user to follow"
	case "NotificationID":
		return "Unknown notification"
	}
	return "Invalid input"
}
