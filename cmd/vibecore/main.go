package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vibeos/vibecore/adapter/cli"
	"github.com/vibeos/vibecore/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cli.SetLogger(logger)
	cli.Execute(ctx)
}
