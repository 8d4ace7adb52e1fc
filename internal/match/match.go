// Package match implements per-recipient keyword matching.
package match

import (
	"strings"

	"gigalert/internal/model"
)

// FirstKeyword returns the first keyword that appears in the job's text
// and whether any matched. Matching is a case-insensitive substring test
// over title plus description, so "log" matches "blogger".
//
// An empty keyword set matches nothing: a recipient with no keywords
// receives no alerts, rather than every listing.
func FirstKeyword(job model.Job, keywords []string) (string, bool) {
	if len(keywords) == 0 {
		return "", false
	}

	hay := strings.ToLower(job.Title + "\n" + job.Description)
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(hay, needle) {
			return kw, true
		}
	}
	return "", false
}

// Matches reports whether any keyword hits the job's text.
func Matches(job model.Job, keywords []string) bool {
	_, ok := FirstKeyword(job, keywords)
	return ok
}

// Union merges the keyword sets of all recipients into a deduplicated,
// lowercased list for the source-level fetch query. Unlike per-recipient
// matching, an empty union is meaningful here: it asks adapters for an
// unfiltered page.
func Union(recipients []model.Recipient) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range recipients {
		for _, kw := range r.Keywords {
			k := strings.ToLower(strings.TrimSpace(kw))
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
