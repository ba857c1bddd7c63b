package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/javiermolinar/airtime/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Configuration is loaded once flags are parsed, so --config is honored.
	app := ui.NewApp(nil)
	defer func() { _ = app.Close() }()
	return app.ExecuteContext(ctx)
}
