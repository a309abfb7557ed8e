// Package refresh decides when each view fetches and merges the results
// into the entity cache.
//
// # Views
//
// Each view maps to a fixed fetch set:
//
//	Feed           users, feed(current)
//	Users          users, following(current)
//	Profile        users, posts(current), followers(current), following(current)
//	Notifications  notifications(current)
//
// Without a current user only users is fetched and the view still reaches
// Ready. Fetches of one view run in order; a failed slice does not stop the
// others from being fetched and stored.
//
// # Status
//
// Refresher tracks Idle, Loading, Ready and Error per view. Activate loads a
// view the first time it is shown and after Invalidate; Refresh always
// reloads. Errors are soft: they are logged, recorded on the store slice and
// reported in the returned Status, never returned as a Go error.
//
// # Polling
//
// Poller refreshes the notifications view on a fixed interval whether or not
// it is visible, so the tab badge stays current. It fetches immediately on
// Start, runs ticks synchronously in a single goroutine so they cannot
// overlap, and a slow tick delays the next one instead of queueing it. Start
// for another user replaces the running loop; Stop cancels it and waits.
package refresh
