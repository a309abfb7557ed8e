// Package config loads perch's TOML configuration.
//
// # Loading
//
// Load reads ~/.config/perch/config.toml unless a path is given. A missing
// file yields Default(); empty or non-positive fields keep their defaults.
// Paths starting with "~" are expanded against the home directory.
//
//	api_url                 = "http://127.0.0.1:8080/api"
//	poll_seconds            = 5
//	request_timeout_seconds = 10
//	requests_per_second     = 10
//	request_burst           = 5
//	user_id                 = 0   # 0 starts without a selected user
//	log_file                = "~/.local/state/perch/perch.log"
//	log_level               = "info"
//	metrics_addr            = ""  # e.g. "127.0.0.1:9464" to expose /metrics
//
// # Precedence
//
// Command-line flags (-api, -poll, -user) override the file, and the file
// overrides the defaults. The app package applies the flags after Load, so
// Config itself never sees them.
//
// # What is not here
//
// UI preferences (theme, last tab) change while perch runs and are written
// back, so they live in the prefs package and prefs.toml. This file is only
// read.
package config
