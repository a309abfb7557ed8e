package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width for the profile side pane.
	LayoutWideWidth = 120
)

// Log display limits.
const (
	// LogTailLines is how many lines of the client log are read per refresh.
	LogTailLines = 500
)

// Timing constants.
const (
	// DefaultUIInterval is how often the UI re-reads the cache.
	DefaultUIInterval = time.Second

	// FlashDuration is how long an action result stays in the status line.
	FlashDuration = 4 * time.Second

	// ViewFetchTimeout bounds one view refresh started from the UI.
	ViewFetchTimeout = 15 * time.Second
)
