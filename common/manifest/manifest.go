// Package manifest parses and validates the metadata document that must
// accompany every tagged release. Validation works on the decoded JSON
// directly rather than a typed struct so that type errors in submitted
// manifests produce field-level messages instead of a single decode failure.
package manifest

import "encoding/json"

// Suffix is the file-name suffix that marks a manifest inside a repository.
// The part before the suffix must match the declared plugin name.
const Suffix = ".plugin.json"

// Manifest is a decoded manifest document
type Manifest map[string]any

// Parse decodes raw manifest bytes. A parse failure means the manifest (and
// the release carrying it) is invalid, not that the operation failed.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the declared plugin name, or "" when absent or mistyped
func (m Manifest) Name() string {
	s, _ := m["name"].(string)
	return s
}

// Version returns the declared version, or "" when absent or mistyped
func (m Manifest) Version() string {
	s, _ := m["version"].(string)
	return s
}
