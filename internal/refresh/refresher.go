package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/perch/internal/metrics"
	"github.com/five82/perch/internal/session"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/state"
)

// View is one logical screen.
type View int

const (
	ViewFeed View = iota
	ViewUsers
	ViewProfile
	ViewNotifications
)

// Views lists every view in tab order.
var Views = []View{ViewFeed, ViewUsers, ViewProfile, ViewNotifications}

func (v View) String() string {
	switch v {
	case ViewFeed:
		return "feed"
	case ViewUsers:
		return "users"
	case ViewProfile:
		return "profile"
	case ViewNotifications:
		return "notifications"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// Phase is the state of a view's most recent refresh cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Status is the outcome of a view's latest refresh. Err is soft: the cache
// still holds the previous snapshot.
type Status struct {
	Phase     Phase
	Err       error
	UpdatedAt time.Time
	Scope     int64
}

// Refresher runs view refresh cycles against the API and records their
// results in the store. Fetch failures are logged and recorded, never
// returned from Refresh.
type Refresher struct {
	api     social.Reader
	store   *state.Store
	session *session.Session
	logger  *slog.Logger
	metrics metrics.Recorder

	mu     sync.Mutex
	status map[View]Status
}

// NewRefresher wires a Refresher. logger and rec may be nil.
func NewRefresher(api social.Reader, store *state.Store, sess *session.Session, logger *slog.Logger, rec metrics.Recorder) *Refresher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Refresher{
		api:     api,
		store:   store,
		session: sess,
		logger:  logger,
		metrics: metrics.OrNop(rec),
		status:  make(map[View]Status),
	}
}

// Status returns the latest status of v.
func (r *Refresher) Status(v View) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status[v]
}

// Invalidate returns every view to Idle, e.g. after a user switch.
func (r *Refresher) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = make(map[View]Status)
}

// Activate runs the refresh cycle of a view that just became visible.
func (r *Refresher) Activate(ctx context.Context, v View) Status {
	r.logger.Debug("view activated", "view", v.String())
	return r.Refresh(ctx, v)
}

// Refresh runs v's fetch set for the current user: Loading, then Ready or
// Error. Without a current user only the user list is fetched.
func (r *Refresher) Refresh(ctx context.Context, v View) Status {
	userID, _ := r.session.Current()
	return r.refreshFor(ctx, v, userID)
}

func (r *Refresher) refreshFor(ctx context.Context, v View, userID int64) Status {
	r.setStatus(v, Status{Phase: PhaseLoading, Scope: userID})

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	switch v {
	case ViewFeed:
		collect(r.LoadUsers(ctx))
		if userID > 0 {
			collect(r.LoadFeed(ctx, userID))
		}
	case ViewUsers:
		collect(r.LoadUsers(ctx))
		if userID > 0 {
			collect(r.LoadFollowing(ctx, userID))
		}
	case ViewProfile:
		collect(r.LoadUsers(ctx))
		if userID > 0 {
			collect(r.LoadPosts(ctx, userID))
			collect(r.LoadFollowers(ctx, userID))
			collect(r.LoadFollowing(ctx, userID))
		}
	case ViewNotifications:
		if userID > 0 {
			collect(r.LoadNotifications(ctx, userID))
		}
	}

	st := Status{Phase: PhaseReady, UpdatedAt: time.Now(), Scope: userID}
	if len(errs) > 0 {
		st.Phase = PhaseError
		st.Err = errors.Join(errs...)
	}
	r.setStatus(v, st)
	return st
}

// setStatus drops results for a user that is no longer current.
func (r *Refresher) setStatus(v View, st Status) {
	if current, _ := r.session.Current(); current != st.Scope {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[v] = st
}

// LoadUsers refreshes the user list.
func (r *Refresher) LoadUsers(ctx context.Context) error {
	users, err := r.api.ListUsers(ctx)
	r.store.SetUsers(users, err)
	r.record(state.ResourceUsers, 0, true, err)
	return err
}

// LoadFeed refreshes userID's feed.
func (r *Refresher) LoadFeed(ctx context.Context, userID int64) error {
	posts, err := r.api.Feed(ctx, userID)
	accepted := r.store.SetFeed(userID, posts, err)
	r.record(state.ResourceFeed, userID, accepted, err)
	return err
}

// LoadPosts refreshes the posts authored by userID.
func (r *Refresher) LoadPosts(ctx context.Context, userID int64) error {
	posts, err := r.api.UserPosts(ctx, userID)
	accepted := r.store.SetPosts(userID, posts, err)
	r.record(state.ResourcePosts, userID, accepted, err)
	return err
}

// LoadFollowing refreshes the edges where userID follows someone.
func (r *Refresher) LoadFollowing(ctx context.Context, userID int64) error {
	edges, err := r.api.Following(ctx, userID)
	accepted := r.store.SetFollowing(userID, edges, err)
	r.record(state.ResourceFollowing, userID, accepted, err)
	return err
}

// LoadFollowers refreshes the edges pointing at userID.
func (r *Refresher) LoadFollowers(ctx context.Context, userID int64) error {
	edges, err := r.api.Followers(ctx, userID)
	accepted := r.store.SetFollowers(userID, edges, err)
	r.record(state.ResourceFollowers, userID, accepted, err)
	return err
}

// LoadNotifications refreshes userID's notifications.
func (r *Refresher) LoadNotifications(ctx context.Context, userID int64) error {
	items, err := r.api.Notifications(ctx, userID)
	accepted := r.store.SetNotifications(userID, items, err)
	r.record(state.ResourceNotifications, userID, accepted, err)
	return err
}

func (r *Refresher) record(res state.Resource, userID int64, accepted bool, err error) {
	r.metrics.RecordFetch(res.String(), err)
	switch {
	case !accepted:
		r.logger.Debug("dropped fetch for previous user", "resource", res.String(), "user_id", userID)
	case err != nil:
		r.logger.Warn("fetch failed", "resource", res.String(), "user_id", userID, "kind", social.KindOf(err).String(), "error", err)
	default:
		r.logger.Debug("fetch ok", "resource", res.String(), "user_id", userID)
	}
}
