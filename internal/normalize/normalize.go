// Package normalize canonicalizes the loosely-shaped fields a gateway
// request body can carry before they reach the classifier and embedder.
package normalize

import (
	"strings"
)

// Languages canonicalizes a raw language list: splits comma-joined
// entries, strips trailing "– Proficiency Level = ..." qualifiers, trims
// whitespace, and dedups case-preservingly in first-seen order.
func Languages(raw []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			lang := stripProficiencyQualifier(part)
			lang = strings.TrimSpace(lang)
			if lang == "" {
				continue
			}
			key := strings.ToLower(lang)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, lang)
		}
	}
	return out
}

// stripProficiencyQualifier removes a trailing "– Proficiency Level = X"
// or "- Proficiency Level = X" style qualifier some upstream sources
// attach to a language entry (e.g. "Slovak – Proficiency Level = Native").
func stripProficiencyQualifier(s string) string {
	for _, sep := range []string{"–", "-", "—"} {
		if idx := strings.Index(s, sep); idx >= 0 {
			rest := strings.ToLower(s[idx+len(sep):])
			if strings.Contains(rest, "proficiency") {
				return s[:idx]
			}
		}
	}
	return s
}

// Country trims surrounding whitespace from a raw country string.
func Country(raw string) string {
	return strings.TrimSpace(raw)
}
