// Package app is perch's composition root.
//
// # Overview
//
// Run connects configuration, logging, metrics, the API client, the
// UI-independent core and the Bubble Tea UI. Business logic lives in the
// domain packages; this package only decides what gets built, in what order,
// and how the pieces are torn down.
//
// # Startup
//
//  1. Load ~/.config/perch/config.toml (defaults when missing) and apply
//     the -poll, -user and -api overrides
//  2. Open the JSON log file; the terminal belongs to the UI
//  3. Create a Prometheus registry; serve /metrics only when metrics_addr is set
//  4. Build the social.Client with request timeout, rate limit and metrics
//  5. Build the Core and select the configured user, if any
//  6. Load prefs.toml and run the UI until quit or signal
//
// The backend is not contacted before the UI starts. An unreachable backend
// shows up as load errors and an OFFLINE marker, never as a startup failure,
// so perch can be started before the backend and will catch up.
//
// # Core
//
// Core owns the pieces that do not depend on the terminal:
//
//	┌──────────────┐  Set/Clear  ┌──────────────────────────────┐
//	│ UI selector  │ ──────────> │ session.Session              │
//	└──────────────┘             └──────────────┬───────────────┘
//	                                            │ Change (synchronous)
//	                                            v
//	                             ┌──────────────────────────────┐
//	                             │ Core.onUserChange            │
//	                             │  ├─> Store.Reset(current)    │
//	                             │  ├─> Refresher.Invalidate()  │
//	                             │  └─> Poller.Start / Stop     │
//	                             └──────────────────────────────┘
//
// The subscriber runs inside session.Set, so by the time Set returns the
// store is scoped to the new user and the old poll loop has exited. The UI
// relies on this: it reloads the visible tab only after the switch command
// completes, and that reload can never observe the previous user's data.
//
// # Poll lifecycle
//
// Exactly one notification poll runs while a user is selected and none runs
// otherwise. Starting the poll for a new user stops the previous loop and
// waits for it, so two users are never polled at once and a tick for the old
// user cannot write after the switch (the store would drop it anyway). The
// poll is bound to the context passed to NewCore; cancelling it on SIGINT or
// SIGTERM ends the loop even if Close is never reached. Close detaches from
// the session first, so no later change can restart polling.
//
// # Error handling
//
// Fatal errors, returned from Run:
//   - an unreadable or invalid config file
//   - a log file that cannot be created
//   - an API URL that does not parse
//   - a UI that exits with an error
//
// Everything after startup is soft. Fetch failures are recorded on the
// affected slice and logged; action failures become outcome messages in the
// status line.
package app
