package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pluginsite/registry/common/version"
)

// missing reports whether a required string field is absent. The empty
// string counts as absent, same as no field at all.
func missing(v any) bool {
	return v == nil || v == ""
}

var (
	reName    = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
	reKeyword = regexp.MustCompile(`^[a-zA-Z0-9.\-]+$`)
	reEmail   = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~\-]+@[a-zA-Z0-9\-]+(?:\.[a-zA-Z0-9\-]+)*$`)
)

// Validate checks a manifest against the registry's rules and returns the
// list of problems, empty for a valid manifest. tag is the release tag the
// manifest was fetched at ("" when validating standalone); filename is the
// manifest file name ("" to skip the name/file match check).
func Validate(m Manifest, tag, filename string) []string {
	var errors []string

	// required fields

	if missing(m["name"]) {
		errors = append(errors, "Missing required field: name.")
	} else if name, ok := m["name"].(string); !ok {
		errors = append(errors, "Invalid data type for name; must be a string.")
	} else if !reName.MatchString(name) {
		errors = append(errors, "Name contains invalid characters.")
	} else if filename != "" && strings.TrimSuffix(filename, Suffix) != name {
		errors = append(errors, "Name must match manifest file name.")
	}

	if missing(m["version"]) {
		errors = append(errors, "Missing required field: version.")
	} else if ver, ok := m["version"].(string); !ok {
		errors = append(errors, "Invalid data type for version; must be a string.")
	} else if !version.IsCanonical(ver) {
		errors = append(errors, fmt.Sprintf("Manifest version (%s) is invalid.", ver))
	} else if tag != "" && ver != version.StripV(tag) {
		errors = append(errors, fmt.Sprintf("Manifest version (%s) does not match tag (%s).", ver, tag))
	}

	if missing(m["title"]) {
		errors = append(errors, "Missing required field: title.")
	} else if _, ok := m["title"].(string); !ok {
		errors = append(errors, "Invalid data type for title; must be a string.")
	}

	errors = append(errors, validateAuthor(m)...)
	errors = append(errors, validateLicenses(m)...)
	errors = append(errors, validateDependencies(m)...)

	// optional fields

	if v, present := m["description"]; present {
		if _, ok := v.(string); !ok {
			errors = append(errors, "Invalid data type for description; must be a string.")
		}
	}

	if v, present := m["keywords"]; present {
		if keywords, ok := v.([]any); !ok {
			errors = append(errors, "Invalid data type for keywords; must be an array.")
		} else {
			for i, kw := range keywords {
				s, ok := kw.(string)
				if !ok {
					errors = append(errors, fmt.Sprintf("Invalid data type for keywords[%d]; must be a string.", i))
				} else if !reKeyword.MatchString(s) {
					errors = append(errors, fmt.Sprintf("Invalid characters for keyword: %s.", s))
				}
			}
		}
	}

	for _, field := range []string{"homepage", "docs", "demo", "download"} {
		if v, present := m[field]; present {
			if _, ok := v.(string); !ok {
				errors = append(errors, fmt.Sprintf("Invalid data type for %s; must be a string.", field))
			}
		}
	}

	if v, present := m["bugs"]; present {
		switch bugs := v.(type) {
		case map[string]any:
			if _, ok := bugs["url"].(string); !ok {
				errors = append(errors, "Invalid data type for bugs.url; must be a string.")
			}
		case string:
		default:
			errors = append(errors, "Invalid data type for bugs; must be a string.")
		}
	}

	errors = append(errors, validateMaintainers(m)...)

	return errors
}

func validateAuthor(m Manifest) []string {
	var errors []string

	if m["author"] == nil {
		return []string{"Missing required field: author."}
	}

	author, ok := m["author"].(map[string]any)
	if !ok {
		return []string{"Invalid data type for author; must be an object."}
	}

	if missing(author["name"]) {
		errors = append(errors, "Missing required field: author.name.")
	} else if _, ok := author["name"].(string); !ok {
		errors = append(errors, "Invalid data type for author.name; must be a string.")
	}

	if v, present := author["email"]; present {
		if email, ok := v.(string); !ok {
			errors = append(errors, "Invalid data type for author.email; must be a string.")
		} else if !reEmail.MatchString(email) {
			errors = append(errors, "Invalid value for author.email.")
		}
	}

	if v, present := author["url"]; present {
		if _, ok := v.(string); !ok {
			errors = append(errors, "Invalid data type for author.url; must be a string.")
		}
	}

	return errors
}

func validateLicenses(m Manifest) []string {
	var errors []string

	if m["licenses"] == nil {
		return []string{"Missing required field: licenses."}
	}

	licenses, ok := m["licenses"].([]any)
	if !ok {
		return []string{"Invalid data type for licenses; must be an array."}
	}

	if len(licenses) == 0 {
		return []string{"There must be at least one license."}
	}

	for i, v := range licenses {
		license, ok := v.(map[string]any)
		if !ok || license["url"] == nil {
			errors = append(errors, fmt.Sprintf("Missing required field: licenses[%d].url.", i))
			continue
		}
		if _, ok := license["url"].(string); !ok {
			errors = append(errors, fmt.Sprintf("Invalid data type for licenses[%d].url; must be a string.", i))
		}
	}

	return errors
}

func validateDependencies(m Manifest) []string {
	var errors []string

	if m["dependencies"] == nil {
		return []string{"Missing required field: dependencies."}
	}

	deps, ok := m["dependencies"].(map[string]any)
	if !ok {
		return []string{"Invalid data type for dependencies; must be an object."}
	}

	for dep, v := range deps {
		r, ok := v.(string)
		if !ok {
			errors = append(errors, fmt.Sprintf("Invalid data type for dependencies[%s]; must be a string.", dep))
		} else if !version.ValidRange(r) {
			errors = append(errors, fmt.Sprintf("Invalid version range for dependency: %s.", dep))
		}
	}

	return errors
}

func validateMaintainers(m Manifest) []string {
	var errors []string

	v, present := m["maintainers"]
	if !present {
		return nil
	}

	maintainers, ok := v.([]any)
	if !ok {
		return []string{"Invalid data type for maintainers; must be an array."}
	}

	for i, mv := range maintainers {
		maintainer, ok := mv.(map[string]any)
		if !ok {
			errors = append(errors, fmt.Sprintf("Invalid data type for maintainers[%d]; must be an object.", i))
			continue
		}

		if _, present := maintainer["name"]; !present {
			errors = append(errors, fmt.Sprintf("Missing required field: maintainers[%d].name.", i))
		} else if _, ok := maintainer["name"].(string); !ok {
			errors = append(errors, fmt.Sprintf("Invalid data type for maintainers[%d].name; must be a string.", i))
		}

		if ev, present := maintainer["email"]; present {
			if email, ok := ev.(string); !ok {
				errors = append(errors, fmt.Sprintf("Invalid data type for maintainers[%d].email; must be a string.", i))
			} else if !reEmail.MatchString(email) {
				errors = append(errors, fmt.Sprintf("Invalid value for maintainers[%d].email.", i))
			}
		}

		if uv, present := maintainer["url"]; present {
			if _, ok := uv.(string); !ok {
				errors = append(errors, fmt.Sprintf("Invalid data type for maintainers[%d].url; must be a string.", i))
			}
		}
	}

	return errors
}
