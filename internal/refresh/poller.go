package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/perch/internal/metrics"
)

// DefaultPollInterval is the notification poll cadence.
const DefaultPollInterval = 5 * time.Second

// Poller refreshes one user's notifications on a fixed cadence. At most one
// poll loop runs at a time and its ticks never overlap.
type Poller struct {
	refresher *Refresher
	interval  time.Duration
	logger    *slog.Logger
	metrics   metrics.Recorder

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	userID int64
}

// NewPoller returns a stopped Poller.
func NewPoller(r *Refresher, interval time.Duration, logger *slog.Logger, rec metrics.Recorder) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		refresher: r,
		interval:  interval,
		logger:    logger,
		metrics:   metrics.OrNop(rec),
	}
}

// Interval returns the poll cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start stops any running loop, waits for it to exit and then polls for
// userID: once immediately and then every interval until Stop or ctx ends.
// A non-positive userID only stops.
func (p *Poller) Start(ctx context.Context, userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if userID <= 0 {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.userID = userID

	p.logger.Info("notification poll started", "user_id", userID, "interval", p.interval.String())
	go p.loop(loopCtx, userID, done)
}

// Stop cancels the running loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running returns the user being polled, if any.
func (p *Poller) Running() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return 0, false
	}
	select {
	case <-p.done:
		return 0, false
	default:
		return p.userID, true
	}
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.logger.Info("notification poll stopped", "user_id", p.userID)
	p.cancel = nil
	p.done = nil
	p.userID = 0
}

func (p *Poller) loop(ctx context.Context, userID int64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.tick(ctx, userID)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs synchronously inside the loop, so the next tick cannot start
// before this fetch returns.
func (p *Poller) tick(ctx context.Context, userID int64) {
	if ctx.Err() != nil {
		return
	}
	st := p.refresher.refreshFor(ctx, ViewNotifications, userID)
	switch {
	case ctx.Err() != nil:
		p.metrics.RecordPollTick("cancelled")
	case st.Err != nil:
		p.metrics.RecordPollTick("error")
	default:
		p.metrics.RecordPollTick("ok")
	}
}
