package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/sitemap-harvester/internal/hash/sha256"
)

const (
	untitled     = "untitled"
	urlDigestLen = 12
)

var (
	// RE2 \s is ASCII only; \p{Z} and the control separators cover NBSP,
	// em-space and friends.
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}\v\x{1c}-\x{1f}\x{85}-]`)
	whitespaceRuns  = regexp.MustCompile(`[\s\p{Z}\v\x{1c}-\x{1f}\x{85}]+`)
	hasher          = sha256.New()
)

// SanitizeFilename reduces a page title to word characters, hyphens and
// underscores. Whitespace runs become a single underscore.
func SanitizeFilename(title string) string {
	cleaned := strings.TrimSpace(disallowedChars.ReplaceAllString(title, ""))
	cleaned = whitespaceRuns.ReplaceAllString(cleaned, "_")
	if cleaned == "" {
		return untitled
	}
	return cleaned
}

// ArtifactName names the file for a page. Without unique, two pages with the
// same sanitized title map to the same name and the last write wins.
func ArtifactName(title, pageURL string, unique bool) string {
	name := SanitizeFilename(title)
	if !unique {
		return name
	}
	return name + "_" + hasher.Short(pageURL, urlDigestLen)
}
