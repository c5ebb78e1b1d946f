// Package resolver normalizes discovered image references into
// downloadable full-resolution URLs. It is pure: no I/O, deterministic
// output for a given input sequence.
package resolver

import (
	"regexp"
	"strings"

	"github.com/aluiziolira/go-maps-images/models"
)

// sizeTokenRegex matches the trailing Google image sizing token, e.g.
// "=s120", "=w203-h152-k-no". Stripping it yields the canonical asset key.
var sizeTokenRegex = regexp.MustCompile(`=[swh]\d+(-[wh]\d+)?(-[A-Za-z0-9]+)*$`)

// Substitution rewrites a recognized sizing pattern to request a larger
// asset. The table is ordered; the first matching pattern wins.
type Substitution struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// DefaultSubstitutions rewrites known small-size tokens to the largest
// size the host serves. URLs matching no pattern pass through unchanged;
// the host's URL scheme changes over time, so callers may supply their own
// table.
func DefaultSubstitutions() []Substitution {
	return []Substitution{
		{
			Pattern:     regexp.MustCompile(`=s\d+(-[A-Za-z0-9]+)*$`),
			Replacement: "=s4096",
		},
		{
			Pattern:     regexp.MustCompile(`=w\d+-h\d+(-[A-Za-z0-9]+)*$`),
			Replacement: "=w4096-h4096-k-no",
		},
	}
}

// Resolved is a deduplicated, full-resolution image URL. Key is the
// canonical form used for de-duplication; Provenance is the best-priority
// provenance seen among the duplicates that collapsed into this entry.
type Resolved struct {
	URL        string
	Key        string
	Provenance models.Provenance
}

// Resolver applies the substitution table to raw image references.
type Resolver struct {
	subs []Substitution
}

// New builds a resolver; with no substitutions it uses the default table.
func New(subs ...Substitution) *Resolver {
	if len(subs) == 0 {
		subs = DefaultSubstitutions()
	}
	return &Resolver{subs: subs}
}

// Resolve rewrites, de-duplicates, and orders raw references.
//
// Duplicates are detected by canonical key (URL minus sizing token). The
// surviving entry keeps its first-seen position, and its provenance is the
// highest-priority one observed (cover > gallery > linked). Resolve is
// idempotent: feeding its output back in yields the same sequence.
func (r *Resolver) Resolve(refs []models.ImageRef) []Resolved {
	out := make([]Resolved, 0, len(refs))
	index := make(map[string]int, len(refs))

	for _, ref := range refs {
		raw := normalizeScheme(strings.TrimSpace(ref.URL))
		if raw == "" {
			continue
		}
		key := CanonicalKey(raw)

		if i, seen := index[key]; seen {
			if ref.Provenance.Priority() < out[i].Provenance.Priority() {
				out[i].Provenance = ref.Provenance
			}
			continue
		}

		index[key] = len(out)
		out = append(out, Resolved{
			URL:        r.rewrite(raw),
			Key:        key,
			Provenance: ref.Provenance,
		})
	}

	return out
}

// CanonicalKey strips the sizing token so the same photo requested at
// different sizes collapses to one key.
func CanonicalKey(url string) string {
	url = normalizeScheme(strings.TrimSpace(url))
	return sizeTokenRegex.ReplaceAllString(url, "")
}

func (r *Resolver) rewrite(url string) string {
	if !sizeTokenRegex.MatchString(url) {
		return url
	}
	for _, sub := range r.subs {
		if sub.Pattern.MatchString(url) {
			return sub.Pattern.ReplaceAllString(url, sub.Replacement)
		}
	}
	return url
}

func normalizeScheme(url string) string {
	if strings.HasPrefix(url, "//") {
		return "https:" + url
	}
	return url
}
