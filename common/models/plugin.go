package models

// Plugin is one row of the ownership store. The plugin name is the primary
// key; the owner is assigned on the first accepted release and only changes
// through an explicit transfer.
type Plugin struct {
	Name     string
	Owner    string
	Repo     string
	Watchers int
	Forks    int
}

// RepoMeta holds the counters refreshed from hook payloads
type RepoMeta struct {
	Watchers int
	Forks    int
}
