package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureIsDeterministic(t *testing.T) {
	a, err := Signature("processRelease", "github/jo/plugin", "v1.2.3", "plugin.plugin.json")
	require.NoError(t, err)
	b, err := Signature("processRelease", "github/jo/plugin", "v1.2.3", "plugin.plugin.json")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t,
		`{"method":"processRelease","args":["github/jo/plugin","v1.2.3","plugin.plugin.json"]}`, a)
}

func TestSignatureDistinguishesCalls(t *testing.T) {
	a, err := Signature("processVersions", "github/jo/plugin")
	require.NoError(t, err)
	b, err := Signature("processVersions", "github/jo/other")
	require.NoError(t, err)
	c, err := Signature("processMeta", "github/jo/plugin")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSignatureNoArgs(t *testing.T) {
	s, err := Signature("processVersions")
	require.NoError(t, err)
	assert.Equal(t, `{"method":"processVersions","args":null}`, s)
}
