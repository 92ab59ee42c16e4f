package scm

import (
	"fmt"
	"strings"
)

// Factory builds Repo values for one hosting provider
type Factory interface {
	// Service is the provider's name, the first segment of repository ids.
	Service() string
	// FromHook parses a provider webhook payload. ok is false when the
	// payload does not belong to this provider.
	FromHook(body []byte) (repo *Repo, ok bool)
	// FromPath builds a repo from its user and repository names.
	FromPath(userName, repoName string) *Repo
}

// Registry resolves repositories from webhook payloads and from the
// service/user/repo ids recorded in the stores.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a provider factory
func (g *Registry) Register(f Factory) {
	if _, dup := g.factories[f.Service()]; !dup {
		g.order = append(g.order, f.Service())
	}
	g.factories[f.Service()] = f
}

// RepoFromHook finds the provider whose payload format matches and builds
// the repository it describes. Returns nil when no provider recognizes the
// payload.
func (g *Registry) RepoFromHook(body []byte) *Repo {
	for _, service := range g.order {
		if repo, ok := g.factories[service].FromHook(body); ok {
			return repo
		}
	}
	return nil
}

// RepoByID rebuilds a repository from a stored service/user/repo id
func (g *Registry) RepoByID(id string) (*Repo, error) {
	parts := strings.SplitN(id, "/", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed repository id: %q", id)
	}

	factory, ok := g.factories[parts[0]]
	if !ok {
		return nil, fmt.Errorf("unknown hosting service: %q", parts[0])
	}

	return factory.FromPath(parts[1], parts[2]), nil
}
