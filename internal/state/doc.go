// Package state holds perch's entity cache and the view facts derived from it.
//
// # Overview
//
// The backend is the only source of truth. This package keeps the most
// recent copy of what perch fetched from it, plus enough metadata to tell the
// UI how fresh that copy is. Nothing here performs I/O: the refresh package
// decides when to fetch and writes results in, the UI reads snapshots out.
//
// # Store
//
// Store keeps one slice per resource:
//
//   - users: every user, not tied to the current user
//   - feed: posts of the current user and the users they follow
//   - posts: the current user's own posts
//   - following, followers: follow edges from and to the current user
//   - notifications: the current user's notifications, newest first
//
// Replacement is wholesale. A successful fetch replaces the slice in the
// order the backend sent it; there is no merging, no TTL and no partial
// update. A failed fetch keeps the previous data and records the error in the
// slice's Meta, so a flaky network shows stale content with a warning rather
// than an empty screen.
//
// # Metadata
//
// Each slice carries a Meta:
//
//   - Loaded: at least one fetch succeeded since the last reset
//   - LastUpdated: time of the last successful fetch
//   - LastError: the most recent failure, cleared on success
//   - ConsecutiveFailures: failures since the last success
//
// IsOffline reports two or more consecutive failures. The header uses it to
// show OFFLINE next to the view's last update time.
//
// # Scope
//
// Every slice except users belongs to one user, the store's scope. Reset
// moves the store to a new scope and clears those slices together with their
// metadata. Scoped setters take the user id the fetch was made for and
// return false, without touching anything, when it no longer matches the
// scope.
//
// This is what makes user switches safe without cancelling in-flight
// requests. A feed request for alice that returns after the switch to bob
// carries alice's id and is dropped; it can never appear in bob's feed, and
// it does not count as a failure either.
//
//	session.Set(bob) ──> Store.Reset(bob)
//	                         │
//	alice feed response ─────┴──> SetFeed(alice, ...) returns false
//	bob feed response ──────────> SetFeed(bob, ...)   stored
//
// # Snapshots
//
// Snapshot returns deep copies of every slice and of the metadata map, so
// callers may read, sort or modify them without holding any lock. Version
// increases on every accepted write and lets tests tell a dropped write from
// an accepted one.
//
// # Derivations
//
// derive.go holds pure functions over snapshot data: UsernameFor, FindUser,
// IsFollowing, UnreadCount, FindNotification, OtherUsers, Stats, Initial and
// RelativeTime. They are recomputed on every render instead of cached,
// accept empty or partially loaded input, and never fail. UsernameFor falls
// back to "User {id}" so a post whose author is missing from the user list
// still renders.
//
// Follow state is always answered from the following slice (edges whose
// follower is the current user). Unread count comes from the notifications
// slice, so the tab badge and the list cannot disagree.
package state
