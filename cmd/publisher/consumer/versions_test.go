package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatestPrefersStable(t *testing.T) {
	versions := []string{"1.0.0", "2.0.0-rc.1", "1.5.0"}
	assert.Equal(t, "1.5.0", Latest(versions))
}

func TestLatestFallsBackToPrerelease(t *testing.T) {
	versions := []string{"1.0.0-beta.2", "1.0.0-beta.10"}
	assert.Equal(t, "1.0.0-beta.10", Latest(versions))
}

func TestLatestEmpty(t *testing.T) {
	assert.Equal(t, "", Latest(nil))
}

func TestListedVersionsStableOnlyDescending(t *testing.T) {
	versions := []string{"1.0.0", "2.0.0-rc.1", "1.5.0", "0.9.0"}
	assert.Equal(t, []string{"1.5.0", "1.0.0", "0.9.0"}, ListedVersions(versions))
}

func TestListedVersionsNothingStable(t *testing.T) {
	versions := []string{"1.0.0-beta.1", "1.0.0-beta.2"}
	assert.Equal(t, []string{"1.0.0-beta.2"}, ListedVersions(versions))
}

func TestListedVersionsDoesNotMutateInput(t *testing.T) {
	versions := []string{"1.0.0", "2.0.0"}
	ListedVersions(versions)
	assert.Equal(t, []string{"1.0.0", "2.0.0"}, versions)
}
