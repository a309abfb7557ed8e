// Package ui implements perch's terminal interface with Bubble Tea.
//
// The model owns no data of its own. It reads state.Store snapshots on a
// one-second tick, asks the refresh.Refresher to load a view when its tab
// becomes visible (or on r), and hands mutations to the actions.Coordinator.
// Every network call runs inside a tea.Cmd so Update never blocks.
//
// # Tabs
//
//   - Feed: posts from the current user and the users they follow
//   - Users: everyone else, with follow state; f/u/enter follow and unfollow
//   - Profile: the current user's card, stats and own posts
//   - Notifications: newest first with type badges; m marks read, x deletes
//   - Log: tail of perch's own JSON log file
//
// The notification tab carries an unread badge that the background poll
// keeps current even while another tab is visible.
//
// # User switching
//
// s opens the user picker. The switch runs session.Set inside a command;
// session subscribers reset the cache and restart the poller before the
// resulting sessionChangedMsg reaches Update, which then reloads the visible
// tab. View loads that finish for a previous user are ignored.
//
// # Composer
//
// n opens a single-line composer limited to 250 characters. Enter submits;
// the input is cleared only when the post was created, so a rejected or
// failed post can be edited and resent.
//
// # Themes
//
// T cycles Nightfox, Kanagawa and Slate. The choice and the last visible tab
// are saved to prefs.toml.
package ui
