// Package version wraps semantic-version handling for the registry: tag
// filtering, manifest version checks and release ordering all go through
// here so every component applies the same canonical-form rules.
package version

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var reStable = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// StripV removes a single leading "v" from a tag. A "v" prefix is the only
// decoration allowed on version tags.
func StripV(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

// IsCanonical reports whether s is a strictly valid semantic version in
// canonical form. Versions that parse but do not round-trip exactly
// ("1.2", "01.2.3") are rejected.
func IsCanonical(s string) bool {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return false
	}
	return v.String() == s
}

// IsVersionTag reports whether a repository tag names a release: an
// optional leading "v" followed by a canonical semantic version.
func IsVersionTag(tag string) bool {
	return IsCanonical(StripV(tag))
}

// IsStable reports whether a version is a plain x.y.z release with no
// pre-release or build suffix.
func IsStable(s string) bool {
	return reStable.MatchString(s)
}

// ValidRange reports whether s parses as a version-range constraint
// ("1.x", ">=1.2.0", "~2.0").
func ValidRange(s string) bool {
	_, err := semver.NewConstraint(s)
	return err == nil
}

// SortDescending orders version strings newest-first. Strings that do not
// parse sort last in their original order.
func SortDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, erri := semver.NewVersion(versions[i])
		vj, errj := semver.NewVersion(versions[j])
		if erri != nil || errj != nil {
			return errj != nil && erri == nil
		}
		return vi.GreaterThan(vj)
	})
}
