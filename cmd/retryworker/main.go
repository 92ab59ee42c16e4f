package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pluginsite/registry/cmd/retryworker/worker"
	"github.com/pluginsite/registry/common/bootstrap"
	"github.com/pluginsite/registry/common/db"
	"github.com/pluginsite/registry/common/hook"
	"github.com/pluginsite/registry/common/policy"
	"github.com/pluginsite/registry/common/repository"
	"github.com/pluginsite/registry/common/scm"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The worker may start before the hook server, so it applies the
	// schema too.
	components, err := bootstrap.Setup(ctx, "retryworker",
		bootstrap.WithoutRedis(),
		bootstrap.WithDBInitHook(func(d *db.DB) error {
			return db.Migrate(context.Background(), d)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config

	pluginRepo := repository.NewPluginRepository(components.DB)
	tagRepo := repository.NewTagRepository(components.DB)
	actionRepo := repository.NewActionRepository(components.DB)
	retryRepo := repository.NewRetryRepository(components.DB)

	pol, err := policy.New(cfg.Policy.Rules)
	if err != nil {
		components.Logger.Error("failed to compile policy rules", "error", err)
		os.Exit(1)
	}

	notifier := scm.NewNotifier(cfg.SCM.NotifyLog, components.Logger)
	repos := scm.NewRegistry()
	repos.Register(scm.NewGithubFactory(cfg, pol, notifier, components.Logger))

	pipeline := hook.NewPipeline(pluginRepo, tagRepo, actionRepo, retryRepo, components.Logger)

	retryWorker := worker.NewRetryWorker(
		retryRepo,
		tagRepo,
		repos,
		pipeline,
		cfg.Retry,
		components.Logger,
	)

	if err := retryWorker.Start(ctx); err != nil {
		components.Logger.Error("retry worker failed", "error", err)
		os.Exit(1)
	}
}
