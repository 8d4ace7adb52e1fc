package model

import (
	"context"
	"time"
)

// Unified representation of a job listing from any platform.
type Job struct {
	Source      string     // platform name ("freelancer", "skywalker", ...)
	ExternalID  string     // platform-native id, may be empty
	Title       string     // listing title
	Description string     // plain-text description (tags stripped)
	URL         string     // canonical link to the listing
	ProposalURL string     // affiliate-wrapped link, empty if not wrapped
	BudgetMin   *float64   // nullable budget bounds
	BudgetMax   *float64
	Currency    string     // ISO-4217 code or raw symbol from the source
	PostedAt    *time.Time // nullable (not all sources provide this)
	Affiliate   bool       // source has affiliate wrapping active
}

// Link returns the URL to put in front of the user, preferring the
// affiliate-wrapped variant when present.
func (j Job) Link() string {
	if j.ProposalURL != "" {
		return j.ProposalURL
	}
	return j.URL
}

// Recipient is a read-only view of a subscriber. The account layer owns
// these rows; the pipeline only reads them to decide matching and
// eligibility.
type Recipient struct {
	ID        int64
	Keywords  []string
	Active    bool
	Blocked   bool
	ExpiresAt *time.Time // trial/license expiry, nil = no expiry
}

// Eligible reports whether the recipient should receive alerts at all.
func (r Recipient) Eligible(now time.Time) bool {
	if !r.Active || r.Blocked {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}

// SentRecord is one row of the sent log.
type SentRecord struct {
	RecipientID int64
	Fingerprint string
	SentAt      time.Time
}

// SourceAdapter fetches job listings from one platform. Keywords narrow
// the query where the platform supports it; an empty list means an
// unfiltered page.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, keywords []string) ([]Job, error)
}

// SentStore tracks which (recipient, fingerprint) pairs have already been
// delivered. MarkSent must be an atomic insert-if-absent: it returns
// true only for a fresh insert, false if the pair already existed.
type SentStore interface {
	AlreadySent(ctx context.Context, recipientID int64, fingerprint string) (bool, error)
	MarkSent(ctx context.Context, recipientID int64, fingerprint string) (bool, error)
	Prune(ctx context.Context, olderThan time.Duration) error
}

// RecipientDirectory lists subscribers eligible for delivery. Snapshot
// semantics; the pipeline never writes through it.
type RecipientDirectory interface {
	ListEligible(ctx context.Context) ([]Recipient, error)
}

// Notifier formats and delivers one matched job to one recipient.
// Implementations own channel pacing and rate-limit handling.
type Notifier interface {
	Deliver(ctx context.Context, recipient Recipient, job Job, matchedKeyword string) error
}
