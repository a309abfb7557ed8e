package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/perch/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override perch config path (optional)")
	pollSeconds := flag.Int("poll", 0, "notification poll interval in seconds (optional, defaults to 5s)")
	userID := flag.Int64("user", 0, "select this user id at startup (optional)")
	apiURL := flag.String("api", "", "backend API base URL (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PollEvery:  *pollSeconds,
		UserID:     *userID,
		APIURL:     *apiURL,
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "perch: %v\n", err)
		return 1
	}
	return 0
}
