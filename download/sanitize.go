package download

import (
	"regexp"
	"strings"
)

const maxDirNameLength = 100

var (
	separatorRegex = regexp.MustCompile(`[\s/\\:*?"<>|;,&]+`)
	invalidRegex   = regexp.MustCompile(`[^A-Za-z0-9_\-]`)
	underscoreRuns = regexp.MustCompile(`__+`)
	dashRuns       = regexp.MustCompile(`--+`)
)

// Sanitize converts a place name into a filesystem-safe directory name:
// path separators and reserved characters become underscores, everything
// outside [A-Za-z0-9_-] is dropped, runs are collapsed, and the result is
// length-capped. An empty or fully-stripped name falls back to
// "unknown_place".
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown_place"
	}

	name = separatorRegex.ReplaceAllString(name, "_")
	name = invalidRegex.ReplaceAllString(name, "")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = dashRuns.ReplaceAllString(name, "-")
	name = strings.Trim(name, "_-")

	if name == "" {
		return "unknown_place"
	}
	if len(name) > maxDirNameLength {
		name = name[:maxDirNameLength]
		name = strings.Trim(name, "_-")
	}
	return name
}
