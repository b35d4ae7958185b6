package sqlite

import (
	"regexp"
	"strings"

	"ctxengine/internal/ctxerr"
)

var nonWordRun = regexp.MustCompile(`[^a-z0-9_]+`)

// SanitizeProjectID maps an arbitrary project name to a safe table-prefix
// fragment matching [a-z0-9_]+. It never returns the empty string for a
// non-empty input; an input that sanitizes to nothing is rejected.
func SanitizeProjectID(name string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	slug := nonWordRun.ReplaceAllString(lower, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "", ctxerr.New(ctxerr.KindInvalidInput, "project name sanitizes to empty string")
	}
	return slug, nil
}

// TablePrefix returns the `p_<sanitized_name>_` prefix for a sanitized
// project id, per spec: tables are namespaced per project within one
// shared SQLite file.
func TablePrefix(sanitizedID string) string {
	return "p_" + sanitizedID + "_"
}
