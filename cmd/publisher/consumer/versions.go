package consumer

import (
	"slices"

	"github.com/pluginsite/registry/common/version"
)

// Latest picks the version a plugin page should show: the highest stable
// version, or the highest version of any kind when no stable release
// exists yet. Returns "" for an empty list.
func Latest(versions []string) string {
	sorted := sortedDescending(versions)
	if len(sorted) == 0 {
		return ""
	}

	for _, v := range sorted {
		if version.IsStable(v) {
			return v
		}
	}
	return sorted[0]
}

// ListedVersions returns the versions shown on a plugin page: stable
// releases in descending order, with only the newest prerelease standing in
// when nothing stable exists.
func ListedVersions(versions []string) []string {
	sorted := sortedDescending(versions)

	var stable []string
	for _, v := range sorted {
		if version.IsStable(v) {
			stable = append(stable, v)
		}
	}

	if len(stable) == 0 && len(sorted) > 0 {
		return sorted[:1]
	}
	return stable
}

func sortedDescending(versions []string) []string {
	sorted := slices.Clone(versions)
	version.SortDescending(sorted)
	return sorted
}
