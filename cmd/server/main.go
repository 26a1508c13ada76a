package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/billingkit/internal/app"
	"github.com/dmitrymomot/billingkit/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		slog.Default().Error("service stopped with error", logger.Error(err), logger.Component("main"))
		stop()
		os.Exit(1)
	}
}
