// Package fingerprint derives the stable content hash that identifies a
// logical job listing across fetches and restarts.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"gigalert/internal/model"
)

// NormalizeTitle lowercases, trims, and collapses internal whitespace so
// cosmetic differences between fetches do not change the hash.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Compute returns the hex SHA-1 of "normalizedTitle|source|url".
//
// When the URL is missing the external id stands in for it, and when
// both are absent the normalized title is repeated. Either fallback
// coarsens dedup granularity (listings distinguished only by URL
// collapse together), which is the intended behavior for sources that
// cannot produce a canonical link.
func Compute(job model.Job) string {
	locator := job.URL
	if locator == "" {
		locator = job.ExternalID
	}
	if locator == "" {
		locator = NormalizeTitle(job.Title)
	}

	base := NormalizeTitle(job.Title) + "|" + job.Source + "|" + locator
	sum := sha1.Sum([]byte(base))
	return hex.EncodeToString(sum[:])
}
