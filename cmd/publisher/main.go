package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pluginsite/registry/cmd/publisher/consumer"
	"github.com/pluginsite/registry/common/bootstrap"
	"github.com/pluginsite/registry/common/clients"
	"github.com/pluginsite/registry/common/repository"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := bootstrap.Setup(ctx, "publisher",
		bootstrap.WithoutRedis(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	actionRepo := repository.NewActionRepository(components.DB)
	cms := clients.NewCMSClient(components.Config.Publisher.CMSBaseURL, components.Logger)

	actionConsumer := consumer.NewActionConsumer(
		actionRepo,
		cms,
		components.Config.Publisher,
		components.Logger,
	)

	if err := actionConsumer.Start(ctx); err != nil {
		components.Logger.Error("action consumer failed", "error", err)
		os.Exit(1)
	}
}
