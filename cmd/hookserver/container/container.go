package container

import (
	"fmt"

	"github.com/pluginsite/registry/common/bootstrap"
	"github.com/pluginsite/registry/common/hook"
	"github.com/pluginsite/registry/common/policy"
	"github.com/pluginsite/registry/common/repository"
	"github.com/pluginsite/registry/common/scm"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Repositories
	PluginRepo *repository.PluginRepository
	TagRepo    *repository.TagRepository
	ActionRepo *repository.ActionRepository
	RetryRepo  *repository.RetryRepository

	// Services
	Policy   *policy.Engine
	Repos    *scm.Registry
	Pipeline *hook.Pipeline
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	pluginRepo := repository.NewPluginRepository(components.DB)
	tagRepo := repository.NewTagRepository(components.DB)
	actionRepo := repository.NewActionRepository(components.DB)
	retryRepo := repository.NewRetryRepository(components.DB)

	pol, err := policy.New(cfg.Policy.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy rules: %w", err)
	}

	notifier := scm.NewNotifier(cfg.SCM.NotifyLog, components.Logger)

	repos := scm.NewRegistry()
	repos.Register(scm.NewGithubFactory(cfg, pol, notifier, components.Logger))

	pipeline := hook.NewPipeline(pluginRepo, tagRepo, actionRepo, retryRepo, components.Logger)

	return &Container{
		Components: components,
		PluginRepo: pluginRepo,
		TagRepo:    tagRepo,
		ActionRepo: actionRepo,
		RetryRepo:  retryRepo,
		Policy:     pol,
		Repos:      repos,
		Pipeline:   pipeline,
	}, nil
}
