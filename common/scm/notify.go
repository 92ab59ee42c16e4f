package scm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pluginsite/registry/common/logger"
)

// Notifier is the channel for user-visible outcomes tied to a submitting
// repository. These messages never surface on the HTTP trigger response;
// the webhook caller already got its 202.
type Notifier interface {
	MissingManifest(repoID, tag string)
	InvalidJSON(repoID, tag, file string)
	InvalidManifest(repoID, tag, file string, errors []string)
	OtherOwner(repoID, tag, name, owner string)
	RepoNotFound(repoID string)
	Success(repoID, name, version string)
}

// fileNotifier appends timestamped lines to an operator-visible log file,
// falling back to the service logger when no path is configured.
type fileNotifier struct {
	path string
	log  *logger.Logger
	mu   sync.Mutex
}

// NewNotifier creates the standard notifier. path may be empty.
func NewNotifier(path string, log *logger.Logger) Notifier {
	return &fileNotifier{path: path, log: log}
}

func (n *fileNotifier) inform(msg string) {
	if n.path == "" {
		n.log.Warn(msg)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		n.log.Error("notify log open failed", "path", n.path, "error", err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "%s %s\n", time.Now().UTC().Format(time.RFC1123), msg)
}

func (n *fileNotifier) MissingManifest(repoID, tag string) {
	n.inform(fmt.Sprintf("%s %s has no manifest file(s).", repoID, tag))
}

func (n *fileNotifier) InvalidJSON(repoID, tag, file string) {
	n.inform(fmt.Sprintf("%s %s %s is invalid JSON.", repoID, tag, file))
}

func (n *fileNotifier) InvalidManifest(repoID, tag, file string, errors []string) {
	n.inform(fmt.Sprintf("%s %s %s has the following errors: %s",
		repoID, tag, file, strings.Join(errors, " ")))
}

func (n *fileNotifier) OtherOwner(repoID, tag, name, owner string) {
	n.inform(fmt.Sprintf("%s %s cannot publish %s which is owned by %s.",
		repoID, tag, name, owner))
}

func (n *fileNotifier) RepoNotFound(repoID string) {
	n.inform(fmt.Sprintf("%s repo not found on remote server.", repoID))
}

func (n *fileNotifier) Success(repoID, name, version string) {
	n.inform(fmt.Sprintf("%s successfully added %s v%s.", repoID, name, version))
}
