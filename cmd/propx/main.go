package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/velmie/x/propx/internal/logging"
)

func main() {
	c := newCLI()
	command := kingpin.MustParse(c.app.Parse(os.Args[1:]))

	logger, err := logging.New(*c.verbose)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.execute(ctx, command, os.Stdout, logging.Adapt(logger)); err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}
