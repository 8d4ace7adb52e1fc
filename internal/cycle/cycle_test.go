package cycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gigalert/internal/model"
	"gigalert/internal/stats"
)

// --- Fakes ---

type fakeAdapter struct {
	name string
	jobs []model.Job
	err  error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(_ context.Context, _ []string) ([]model.Job, error) {
	return f.jobs, f.err
}

type fakeDirectory struct {
	recipients []model.Recipient
	err        error
}

func (f *fakeDirectory) ListEligible(context.Context) ([]model.Recipient, error) {
	return f.recipients, f.err
}

// memStore is an in-memory SentStore with switchable failure mode.
type memStore struct {
	mu   sync.Mutex
	sent map[string]bool
	down bool
}

func newMemStore() *memStore {
	return &memStore{sent: make(map[string]bool)}
}

func (s *memStore) key(recipientID int64, fp string) string {
	return fmt.Sprintf("%d/%s", recipientID, fp)
}

func (s *memStore) AlreadySent(_ context.Context, recipientID int64, fp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return false, errors.New("connection refused")
	}
	return s.sent[s.key(recipientID, fp)], nil
}

func (s *memStore) MarkSent(_ context.Context, recipientID int64, fp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return false, errors.New("connection refused")
	}
	k := s.key(recipientID, fp)
	if s.sent[k] {
		return false, nil
	}
	s.sent[k] = true
	return true, nil
}

func (s *memStore) Prune(context.Context, time.Duration) error { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// recordingNotifier records deliveries and can fail specific recipients.
type recordingNotifier struct {
	mu        sync.Mutex
	delivered []string // "recipientID:title"
	failFor   map[int64]error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{failFor: make(map[int64]error)}
}

func (n *recordingNotifier) Deliver(_ context.Context, rec model.Recipient, job model.Job, _ string) error {
	if err := n.failFor[rec.ID]; err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, fmt.Sprintf("%d:%s", rec.ID, job.Title))
	return nil
}

func (n *recordingNotifier) deliveries() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.delivered...)
}

// captureSink keeps the last published snapshot.
type captureSink struct {
	mu   sync.Mutex
	last *stats.CycleStats
}

func (c *captureSink) Publish(_ context.Context, s *stats.CycleStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultOpts() Options {
	return Options{SendCap: 10}
}

func makeRunner(adapters []model.SourceAdapter, dir *fakeDirectory, st model.SentStore, n model.Notifier, sink stats.Sink, opts Options) *Runner {
	return NewRunner(adapters, dir, st, n, sink, opts, discardLogger())
}

// --- Tests ---

func TestRun_EndToEnd_DedupsAcrossSources(t *testing.T) {
	// Two sources return the same logical listing; it must be delivered
	// once while both feeds still report their fetch counts.
	a := &fakeAdapter{name: "sourceA", jobs: []model.Job{{Source: "sourceA", Title: "Logo design", URL: "https://x/1"}}}
	b := &fakeAdapter{name: "sourceB", jobs: []model.Job{{Source: "sourceB", Title: "Logo design", URL: "https://x/1"}}}

	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
	}}
	store := newMemStore()
	notifier := newRecordingNotifier()
	sink := &captureSink{}

	r := makeRunner([]model.SourceAdapter{a, b}, dir, store, notifier, sink, defaultOpts())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sink.last.Feeds["sourceA"].Count; got != 1 {
		t.Errorf("sourceA count = %d, want 1", got)
	}
	if got := sink.last.Feeds["sourceB"].Count; got != 1 {
		t.Errorf("sourceB count = %d, want 1", got)
	}
	if len(notifier.deliveries()) != 1 {
		t.Errorf("deliveries = %v, want exactly one", notifier.deliveries())
	}
	if sink.last.SentThisCycle != 1 {
		t.Errorf("SentThisCycle = %d, want 1", sink.last.SentThisCycle)
	}
}

func TestRun_IdenticalRecordsFromOneSourceDeliverOnce(t *testing.T) {
	// The same listing appearing twice in one fetch (e.g. two pages)
	// dedups to a single delivery.
	listing := model.Job{Source: "sourceA", Title: "Logo design", URL: "https://x/1"}
	a := &fakeAdapter{name: "sourceA", jobs: []model.Job{listing, listing}}

	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
	}}
	store := newMemStore()
	notifier := newRecordingNotifier()
	sink := &captureSink{}

	r := makeRunner([]model.SourceAdapter{a}, dir, store, notifier, sink, defaultOpts())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(notifier.deliveries()) != 1 {
		t.Errorf("deliveries = %v, want exactly one", notifier.deliveries())
	}
	if sink.last.SentThisCycle != 1 {
		t.Errorf("SentThisCycle = %d, want 1", sink.last.SentThisCycle)
	}
}

func TestRun_IdempotentAcrossCycles(t *testing.T) {
	listing := model.Job{Source: "sourceA", Title: "Logo design", URL: "https://x/1"}
	a := &fakeAdapter{name: "sourceA", jobs: []model.Job{listing}}
	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
	}}
	store := newMemStore()
	notifier := newRecordingNotifier()

	r := makeRunner([]model.SourceAdapter{a}, dir, store, notifier, stats.NopSink{}, defaultOpts())

	// The same listing fetched in two consecutive cycles goes out once.
	for i := 0; i < 2; i++ {
		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run cycle %d: %v", i+1, err)
		}
	}

	if got := notifier.deliveries(); len(got) != 1 {
		t.Errorf("deliveries across two cycles = %v, want exactly one", got)
	}
}

func TestRun_ZeroKeywordRecipientReceivesNothing(t *testing.T) {
	a := &fakeAdapter{name: "sourceA", jobs: []model.Job{
		{Source: "sourceA", Title: "Anything at all", URL: "https://x/1"},
	}}
	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true}, // no keywords
	}}
	notifier := newRecordingNotifier()

	r := makeRunner([]model.SourceAdapter{a}, dir, newMemStore(), notifier, stats.NopSink{}, defaultOpts())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := notifier.deliveries(); len(got) != 0 {
		t.Errorf("zero-keyword recipient received %v", got)
	}
}

func TestRun_PartialDeliveryFailureIsolated(t *testing.T) {
	a := &fakeAdapter{name: "sourceA", jobs: []model.Job{
		{Source: "sourceA", Title: "Logo design", URL: "https://x/1"},
	}}
	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
		{ID: 2, Active: true, Keywords: []string{"logo"}},
		{ID: 3, Active: true, Keywords: []string{"logo"}},
	}}
	store := newMemStore()
	notifier := newRecordingNotifier()
	notifier.failFor[2] = errors.New("transient network error")

	r := makeRunner([]model.SourceAdapter{a}, dir, store, notifier, stats.NopSink{}, defaultOpts())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("recipient 2's failure must not fail the cycle: %v", err)
	}

	got := notifier.deliveries()
	if len(got) != 2 || got[0] != "1:Logo design" || got[1] != "3:Logo design" {
		t.Errorf("deliveries = %v, want recipients 1 and 3", got)
	}
	// Per-recipient keying: marked only for the recipients who succeeded.
	if store.count() != 2 {
		t.Errorf("marked %d pairs, want 2", store.count())
	}

	// Next cycle: recipient 2 recovers and receives the job; 1 and 3 do not
	// get it again.
	delete(notifier.failFor, 2)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got = notifier.deliveries()
	if len(got) != 3 || got[2] != "2:Logo design" {
		t.Errorf("deliveries after recovery = %v, want recipient 2 delivered exactly once", got)
	}
}

func TestRun_SourceErrorContainedInStats(t *testing.T) {
	ok := &fakeAdapter{name: "healthy", jobs: []model.Job{
		{Source: "healthy", Title: "Logo design", URL: "https://x/1"},
	}}
	bad := &fakeAdapter{name: "broken", err: errors.New("HTTP 502")}

	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
	}}
	notifier := newRecordingNotifier()
	sink := &captureSink{}

	r := makeRunner([]model.SourceAdapter{ok, bad}, dir, newMemStore(), notifier, sink, defaultOpts())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("adapter failure must not fail the cycle: %v", err)
	}

	if len(notifier.deliveries()) != 1 {
		t.Errorf("healthy source's job was not delivered: %v", notifier.deliveries())
	}
	broken := sink.last.Feeds["broken"]
	if broken.Count != 0 || broken.Error == "" {
		t.Errorf("broken feed stats = %+v, want count 0 and an error note", broken)
	}
}

func TestRun_StoreUnavailableAbortsCycle(t *testing.T) {
	a := &fakeAdapter{name: "sourceA", jobs: []model.Job{
		{Source: "sourceA", Title: "Logo design", URL: "https://x/1"},
	}}
	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
	}}
	store := newMemStore()
	store.down = true
	notifier := newRecordingNotifier()
	sink := &captureSink{}

	r := makeRunner([]model.SourceAdapter{a}, dir, store, notifier, sink, defaultOpts())
	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected cycle abort when the store is unreachable")
	}
	if !model.IsStoreUnavailable(err) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
	if len(notifier.deliveries()) != 0 {
		t.Error("nothing must be delivered when sent status cannot be checked")
	}
	if sink.last != nil {
		t.Error("an aborted cycle must not publish stats")
	}

	// Store recovers: the job goes out on the next cycle.
	store.down = false
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run after recovery: %v", err)
	}
	if len(notifier.deliveries()) != 1 {
		t.Errorf("deliveries after recovery = %v, want one", notifier.deliveries())
	}
}

func TestRun_SendCapPerRecipient(t *testing.T) {
	var jobs []model.Job
	for i := 0; i < 5; i++ {
		jobs = append(jobs, model.Job{
			Source: "sourceA",
			Title:  fmt.Sprintf("Logo job %d", i),
			URL:    fmt.Sprintf("https://x/%d", i),
		})
	}
	a := &fakeAdapter{name: "sourceA", jobs: jobs}
	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
	}}
	notifier := newRecordingNotifier()

	opts := defaultOpts()
	opts.SendCap = 2
	r := makeRunner([]model.SourceAdapter{a}, dir, newMemStore(), notifier, stats.NopSink{}, opts)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := notifier.deliveries(); len(got) != 2 {
		t.Errorf("deliveries = %v, want send cap of 2 enforced", got)
	}
}

func TestRun_DirectoryErrorFailsCycle(t *testing.T) {
	a := &fakeAdapter{name: "sourceA"}
	dir := &fakeDirectory{err: errors.New("db down")}

	r := makeRunner([]model.SourceAdapter{a}, dir, newMemStore(), newRecordingNotifier(), stats.NopSink{}, defaultOpts())
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error when the recipient directory is unreachable")
	}
}

func TestRun_FreshnessFilter(t *testing.T) {
	old := time.Now().Add(-72 * time.Hour)
	a := &fakeAdapter{name: "sourceA", jobs: []model.Job{
		{Source: "sourceA", Title: "Stale logo job", URL: "https://x/1", PostedAt: &old},
		{Source: "sourceA", Title: "Undated logo job", URL: "https://x/2"},
	}}
	dir := &fakeDirectory{recipients: []model.Recipient{
		{ID: 1, Active: true, Keywords: []string{"logo"}},
	}}
	notifier := newRecordingNotifier()

	opts := defaultOpts()
	opts.MaxAge = 48 * time.Hour
	r := makeRunner([]model.SourceAdapter{a}, dir, newMemStore(), notifier, stats.NopSink{}, opts)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := notifier.deliveries()
	if len(got) != 1 || got[0] != "1:Undated logo job" {
		t.Errorf("deliveries = %v, want only the undated job", got)
	}
}
