// Command transfer reassigns a plugin to a new owner. Ownership otherwise
// never changes hands, so this is the operator escape hatch for account
// renames and abandoned plugins.
//
// Usage:
//
//	transfer [-y] <plugin> <new-owner>
//
// The new owner is a service/user pair, e.g. github/someone.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pluginsite/registry/common/bootstrap"
	"github.com/pluginsite/registry/common/repository"
)

func main() {
	yes := flag.Bool("y", false, "skip the confirmation prompt")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: transfer [-y] <plugin> <new-owner>")
		os.Exit(2)
	}
	plugin, newOwner := flag.Arg(0), flag.Arg(1)

	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "transfer",
		bootstrap.WithoutRedis(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	pluginRepo := repository.NewPluginRepository(components.DB)

	owner, err := pluginRepo.GetOwner(ctx, plugin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to look up %s: %v\n", plugin, err)
		os.Exit(1)
	}
	if owner == "" {
		fmt.Fprintf(os.Stderr, "%s has no owner; it is claimed by its first release\n", plugin)
		os.Exit(1)
	}
	if owner == newOwner {
		fmt.Printf("%s is already owned by %s\n", plugin, newOwner)
		return
	}

	if !*yes && !confirm(plugin, owner, newOwner) {
		fmt.Println("aborted")
		return
	}

	if err := pluginRepo.Transfer(ctx, plugin, newOwner); err != nil {
		fmt.Fprintf(os.Stderr, "transfer failed: %v\n", err)
		os.Exit(1)
	}

	components.Logger.Info("ownership transferred",
		"plugin", plugin, "from", owner, "to", newOwner)
	fmt.Printf("%s transferred from %s to %s\n", plugin, owner, newOwner)
}

func confirm(plugin, owner, newOwner string) bool {
	fmt.Printf("transfer %s from %s to %s? [y/N] ", plugin, owner, newOwner)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
