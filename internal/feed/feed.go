// Package feed holds the normalization and in-cycle dedup glue between
// raw source output and the delivery pipeline.
package feed

import (
	"time"

	"gigalert/internal/fingerprint"
	"gigalert/internal/model"
)

// Normalize drops records that fail the eligibility invariant: a job
// with neither a title nor a URL cannot be displayed or linked, so it is
// silently discarded. Returns the surviving jobs and the drop count.
func Normalize(jobs []model.Job) ([]model.Job, int) {
	out := make([]model.Job, 0, len(jobs))
	dropped := 0
	for _, j := range jobs {
		if j.Title == "" && j.URL == "" {
			dropped++
			continue
		}
		out = append(out, j)
	}
	return out, dropped
}

// Dedup collapses records describing the same listing within one cycle.
// A listing is identified by its normalized title and URL regardless of
// which source fetched it, so a job mirrored on two boards goes out
// once. The affiliate-capable record wins when both variants arrive.
// Input order is preserved for first occurrences.
func Dedup(jobs []model.Job) []model.Job {
	index := make(map[string]int, len(jobs))
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		key := dedupKey(j)
		if i, ok := index[key]; ok {
			out[i] = preferAffiliate(out[i], j)
			continue
		}
		index[key] = len(out)
		out = append(out, j)
	}
	return out
}

func dedupKey(j model.Job) string {
	if j.URL != "" {
		return fingerprint.NormalizeTitle(j.Title) + "|" + j.URL
	}
	return fingerprint.Compute(j)
}

func preferAffiliate(a, b model.Job) model.Job {
	if b.Affiliate && !a.Affiliate {
		return b
	}
	return a
}

// Fresh keeps jobs posted within maxAge of now. Jobs without a usable
// timestamp are kept rather than discarded. A zero maxAge disables the
// check.
func Fresh(jobs []model.Job, maxAge time.Duration, now time.Time) []model.Job {
	if maxAge <= 0 {
		return jobs
	}
	cutoff := now.Add(-maxAge)
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.PostedAt != nil && j.PostedAt.Before(cutoff) {
			continue
		}
		out = append(out, j)
	}
	return out
}

// WrapAffiliate fills ProposalURL with the deep-linked affiliate variant
// for affiliate-enabled jobs. The canonical URL is left untouched.
func WrapAffiliate(jobs []model.Job, prefix string) {
	if prefix == "" {
		return
	}
	for i := range jobs {
		if jobs[i].Affiliate && jobs[i].URL != "" {
			jobs[i].ProposalURL = prefix + "&dl=" + jobs[i].URL
		}
	}
}
