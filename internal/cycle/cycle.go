// Package cycle drives one full fetch → normalize → dedup → match →
// notify pass and the loop that repeats it.
package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gigalert/internal/feed"
	"gigalert/internal/fingerprint"
	"gigalert/internal/match"
	"gigalert/internal/model"
	"gigalert/internal/stats"
)

// Options holds the pipeline-wide knobs of a Runner.
type Options struct {
	MaxAge          time.Duration // drop listings older than this (0 = keep all)
	SendCap         int           // max alerts per recipient per cycle
	Retention       time.Duration // prune sent-log rows older than this (0 = never)
	AffiliatePrefix string        // deep-link prefix for affiliate-capable sources
}

// Runner owns one cycle of the pipeline. All collaborators are passed
// in at construction; the Runner holds no global state.
type Runner struct {
	adapters  []model.SourceAdapter
	directory model.RecipientDirectory
	store     model.SentStore
	notifier  model.Notifier
	sink      stats.Sink
	opts      Options
	logger    *slog.Logger
}

// NewRunner wires a Runner with all its dependencies.
func NewRunner(
	adapters []model.SourceAdapter,
	directory model.RecipientDirectory,
	store model.SentStore,
	notifier model.Notifier,
	sink stats.Sink,
	opts Options,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		adapters:  adapters,
		directory: directory,
		store:     store,
		notifier:  notifier,
		sink:      sink,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes one full cycle. Per-source and per-recipient failures
// are contained and surfaced through cycle stats; only a sent-store
// failure aborts the cycle, and then nothing has been marked sent that
// was not also delivered.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	st := stats.NewCycleStats()

	recipients, err := r.directory.ListEligible(ctx)
	if err != nil {
		return fmt.Errorf("listing recipients: %w", err)
	}
	keywords := match.Union(recipients)

	jobs := r.fetchAll(ctx, keywords, st)

	jobs, dropped := feed.Normalize(jobs)
	if dropped > 0 {
		r.logger.Debug("dropped malformed records", "count", dropped)
	}
	jobs = feed.Fresh(jobs, r.opts.MaxAge, time.Now())
	feed.WrapAffiliate(jobs, r.opts.AffiliatePrefix)
	jobs = feed.Dedup(jobs)

	fps := make([]string, len(jobs))
	for i, j := range jobs {
		fps[i] = fingerprint.Compute(j)
	}

	if err := r.notifyAll(ctx, recipients, jobs, fps, st); err != nil {
		return err
	}

	if r.opts.Retention > 0 {
		if err := r.store.Prune(ctx, r.opts.Retention); err != nil {
			// Retention is housekeeping; a failed prune never costs a cycle.
			r.logger.Warn("pruning sent log failed", "error", err)
		}
	}

	st.CycleSeconds = time.Since(start).Seconds()
	if err := r.sink.Publish(ctx, st); err != nil {
		r.logger.Warn("publishing cycle stats failed", "error", err)
	}

	r.logger.Info("cycle completed",
		"recipients", len(recipients),
		"jobs", len(jobs),
		"sent", st.SentThisCycle,
		"cycle_seconds", st.CycleSeconds,
	)
	return nil
}

// fetchAll invokes every adapter concurrently and joins the results.
// A failing adapter contributes zero records and an error note for its
// source; it never aborts the cycle.
func (r *Runner) fetchAll(ctx context.Context, keywords []string, st *stats.CycleStats) []model.Job {
	var mu sync.Mutex
	var all []model.Job

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range r.adapters {
		g.Go(func() error {
			jobs, err := a.Fetch(gctx, keywords)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Error("source fetch failed", "source", a.Name(), "error", err)
				st.Feeds[a.Name()] = stats.FeedStats{Count: 0, Error: err.Error()}
				return nil
			}
			st.Feeds[a.Name()] = stats.FeedStats{Count: len(jobs)}
			all = append(all, jobs...)
			return nil
		})
	}
	g.Wait()

	return all
}

// notifyAll fans each job out to every matching recipient. Delivery
// failures are isolated per recipient; store failures abort the cycle.
func (r *Runner) notifyAll(ctx context.Context, recipients []model.Recipient, jobs []model.Job, fps []string, st *stats.CycleStats) error {
	for _, rec := range recipients {
		sentToRecipient := 0

		for i, job := range jobs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if sentToRecipient >= r.opts.SendCap {
				break
			}

			kw, ok := match.FirstKeyword(job, rec.Keywords)
			if !ok {
				continue
			}

			already, err := r.store.AlreadySent(ctx, rec.ID, fps[i])
			if err != nil {
				return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
			}
			if already {
				continue
			}

			if err := r.notifier.Deliver(ctx, rec, job, kw); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// This recipient's channel is misbehaving (blocked bot,
				// persistent rate limit). Skip the rest of their sends
				// this cycle; the jobs stay unmarked and retry next
				// cycle.
				r.logger.Warn("delivery failed, skipping recipient for this cycle",
					"recipient", rec.ID,
					"source", job.Source,
					"error", err,
				)
				break
			}

			// Mark only after a successful delivery, so an abort can
			// never strand a marked-but-undelivered job.
			fresh, err := r.store.MarkSent(ctx, rec.ID, fps[i])
			if err != nil {
				return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
			}
			if fresh {
				st.SentThisCycle++
				sentToRecipient++
			}
		}
	}
	return nil
}
