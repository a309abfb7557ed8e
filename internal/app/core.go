package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/perch/internal/actions"
	"github.com/five82/perch/internal/metrics"
	"github.com/five82/perch/internal/refresh"
	"github.com/five82/perch/internal/session"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/state"
)

// Core is the UI-independent client: entity cache, current-user session,
// refresh policy, notification poller and action coordinator over one API.
type Core struct {
	Store     *state.Store
	Session   *session.Session
	Refresher *refresh.Refresher
	Poller    *refresh.Poller
	Actions   *actions.Coordinator

	logger      *slog.Logger
	unsubscribe func()
}

// NewCore wires the client state around api. User switches reset the
// cache, invalidate view statuses and move the notification poll to the new
// user; the poll stops when no user is selected or ctx ends.
func NewCore(ctx context.Context, api social.API, pollInterval time.Duration, logger *slog.Logger, rec metrics.Recorder) *Core {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := state.NewStore()
	sess := session.New()
	refresher := refresh.NewRefresher(api, store, sess, logger, rec)

	c := &Core{
		Store:     store,
		Session:   sess,
		Refresher: refresher,
		Poller:    refresh.NewPoller(refresher, pollInterval, logger, rec),
		Actions:   actions.NewCoordinator(api, refresher, store, sess, logger, rec),
		logger:    logger,
	}
	c.unsubscribe = sess.Subscribe(func(change session.Change) {
		c.onUserChange(ctx, change)
	})
	return c
}

func (c *Core) onUserChange(ctx context.Context, change session.Change) {
	c.Store.Reset(change.Current)
	c.Refresher.Invalidate()
	if change.HasUser() {
		c.Poller.Start(ctx, change.Current)
	} else {
		c.Poller.Stop()
	}
	c.logger.Info("current user changed",
		"previous", change.Previous,
		"current", change.Current,
		"generation", change.Generation,
	)
}

// Close stops polling and detaches from the session.
func (c *Core) Close() {
	c.unsubscribe()
	c.Poller.Stop()
}
