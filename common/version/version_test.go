package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionTag(t *testing.T) {
	valid := []string{
		"1.2.3",
		"v1.2.3",
		"0.0.1",
		"1.2.3-rc.1",
		"v2.0.0-beta",
	}
	for _, tag := range valid {
		assert.True(t, IsVersionTag(tag), "expected %q to be a version tag", tag)
	}

	invalid := []string{
		"",
		"1.2",
		"v1.2",
		"01.2.3",
		"1.2.03",
		"1.2.3.4",
		"vv1.2.3",
		"release-1.2.3",
		"banana",
		"v",
	}
	for _, tag := range invalid {
		assert.False(t, IsVersionTag(tag), "expected %q not to be a version tag", tag)
	}
}

func TestVPrefixedAndBareTagsNameTheSameVersion(t *testing.T) {
	assert.Equal(t, StripV("v1.2.3"), StripV("1.2.3"))
	assert.Equal(t, "1.2.3", StripV("v1.2.3"))
	// only a single leading v is decoration
	assert.Equal(t, "v1.2.3", StripV("vv1.2.3"))
}

func TestIsStable(t *testing.T) {
	assert.True(t, IsStable("1.2.3"))
	assert.True(t, IsStable("0.0.1"))
	assert.False(t, IsStable("1.2.3-rc.1"))
	assert.False(t, IsStable("1.2.3+build"))
	assert.False(t, IsStable("v1.2.3"))
	assert.False(t, IsStable("1.2"))
}

func TestIsCanonical(t *testing.T) {
	assert.True(t, IsCanonical("1.2.3"))
	assert.True(t, IsCanonical("1.2.3-rc.1"))
	assert.False(t, IsCanonical("v1.2.3"))
	assert.False(t, IsCanonical("1.2"))
	assert.False(t, IsCanonical("01.2.3"))
}

func TestValidRange(t *testing.T) {
	assert.True(t, ValidRange("1.2.3"))
	assert.True(t, ValidRange(">=1.2.0"))
	assert.True(t, ValidRange("~2.0"))
	assert.True(t, ValidRange("1.x"))
	assert.False(t, ValidRange("not a range"))
}

func TestSortDescending(t *testing.T) {
	versions := []string{"1.0.0", "2.1.0", "2.0.0", "2.1.0-rc.1", "0.9.9"}
	SortDescending(versions)
	assert.Equal(t, []string{"2.1.0", "2.1.0-rc.1", "2.0.0", "1.0.0", "0.9.9"}, versions)
}

func TestSortDescendingUnparseableLast(t *testing.T) {
	versions := []string{"garbage", "1.0.0", "2.0.0"}
	SortDescending(versions)
	assert.Equal(t, []string{"2.0.0", "1.0.0", "garbage"}, versions)
}
