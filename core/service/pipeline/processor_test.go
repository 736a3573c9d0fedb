package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/core/service/classify"
	"jobscout/core/service/dedup"
)

// callLog records cross-collaborator call order so tests can assert
// sequencing invariants (record written before mailbox archive).
type callLog struct {
	entries []string
}

func (c *callLog) add(entry string) { c.entries = append(c.entries, entry) }

func (c *callLog) indexOf(entry string) int {
	for i, e := range c.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeMail struct {
	log        *callLog
	msgs       []domain.InboundMessage
	listErr    error
	archiveErr map[string]error
}

func (f *fakeMail) ListUnread(context.Context, time.Duration) ([]domain.InboundMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.msgs, nil
}

func (f *fakeMail) MarkRead(context.Context, string) error { return nil }
func (f *fakeMail) Archive(context.Context, string) error  { return nil }

func (f *fakeMail) MarkReadAndArchive(_ context.Context, messageID string) error {
	f.log.add("archive:" + messageID)
	return f.archiveErr[messageID]
}

type fakeAI struct {
	postings     map[string][]domain.ExtractedJob
	extractErr   map[string]error
	extractCalls int
	scores       map[string]float64
	scoreErr     error
	profile      domain.ProfileAnalysis
}

func (f *fakeAI) ClassifyMessage(context.Context, domain.InboundMessage) (out.RawClassification, float64, error) {
	return out.RawClassification{}, 0, errors.New("not used")
}

func (f *fakeAI) ExtractPostings(_ context.Context, msg domain.InboundMessage, _ string) ([]domain.ExtractedJob, error) {
	f.extractCalls++
	if err := f.extractErr[msg.ID]; err != nil {
		return nil, err
	}
	return f.postings[msg.ID], nil
}

func (f *fakeAI) ScoreRelevance(_ context.Context, job domain.ExtractedJob, _ domain.ProfileAnalysis) (float64, error) {
	if f.scoreErr != nil {
		return 0, f.scoreErr
	}
	return f.scores[job.Title], nil
}

func (f *fakeAI) AnalyzeProfile(context.Context, string) (domain.ProfileAnalysis, error) {
	return f.profile, nil
}

type fakeJobStore struct {
	log           *callLog
	existingIDs   map[string]bool
	similar       []domain.ExtractedJob
	processedMsgs map[string]bool
	records       map[string]domain.ProcessedMessageRecord
	recordErr     error
	saved         []domain.ExtractedJob
	markProcessed []string
	markNotified  []string
	profile       *domain.ProfileAnalysis
	jobsTotal     int
	jobsNotified  int
	deleteCutoff  time.Time
	deleted       int64
	staleCutoff   time.Time
	staleDeleted  int64
}

func newFakeJobStore(log *callLog) *fakeJobStore {
	return &fakeJobStore{
		log:           log,
		existingIDs:   map[string]bool{},
		processedMsgs: map[string]bool{},
		records:       map[string]domain.ProcessedMessageRecord{},
	}
}

func (f *fakeJobStore) Exists(_ context.Context, id string) (bool, error) {
	return f.existingIDs[id], nil
}

func (f *fakeJobStore) FindSimilar(context.Context, string, string, string) ([]domain.ExtractedJob, error) {
	return f.similar, nil
}

func (f *fakeJobStore) Save(_ context.Context, job domain.ExtractedJob) error {
	f.saved = append(f.saved, job)
	f.existingIDs[job.ID] = true
	return nil
}

func (f *fakeJobStore) MarkProcessed(_ context.Context, ids []string) error {
	f.markProcessed = append(f.markProcessed, ids...)
	return nil
}

func (f *fakeJobStore) MarkNotified(_ context.Context, ids []string) error {
	f.markNotified = append(f.markNotified, ids...)
	return nil
}

func (f *fakeJobStore) IsMessageProcessed(_ context.Context, id string) (bool, error) {
	return f.processedMsgs[id], nil
}

func (f *fakeJobStore) RecordProcessed(_ context.Context, rec domain.ProcessedMessageRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.log.add("record:" + rec.MessageID)
	f.records[rec.MessageID] = rec
	return nil
}

func (f *fakeJobStore) LatestProfile(context.Context) (*domain.ProfileAnalysis, error) {
	return f.profile, nil
}

func (f *fakeJobStore) SaveProfile(_ context.Context, p domain.ProfileAnalysis) error {
	f.profile = &p
	return nil
}

func (f *fakeJobStore) CountJobsSince(context.Context, time.Time) (int, int, error) {
	return f.jobsTotal, f.jobsNotified, nil
}

func (f *fakeJobStore) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.deleteCutoff = cutoff
	return f.deleted, nil
}

func (f *fakeJobStore) DeleteStaleJobs(_ context.Context, cutoff time.Time) (int64, error) {
	f.staleCutoff = cutoff
	return f.staleDeleted, nil
}

type fakeNotify struct {
	digests   [][]domain.ExtractedJob
	digestErr error
	alerts    []string
	summaries []out.DailySummaryStats
}

func (f *fakeNotify) SendJobDigest(_ context.Context, jobs []domain.ExtractedJob) error {
	if f.digestErr != nil {
		return f.digestErr
	}
	f.digests = append(f.digests, jobs)
	return nil
}

func (f *fakeNotify) SendOperatorAlert(_ context.Context, msg string) error {
	f.alerts = append(f.alerts, msg)
	return nil
}

func (f *fakeNotify) SendDailySummary(_ context.Context, s out.DailySummaryStats) error {
	f.summaries = append(f.summaries, s)
	return nil
}

func newTestProcessor(mail *fakeMail, ai *fakeAI, store *fakeJobStore, notifier *fakeNotify) *Processor {
	hybrid := classify.NewHybrid(classify.NewRuleClassifier(classify.DefaultRuleset()), nil, classify.HybridConfig{
		RuleConfidenceThreshold: 0.8,
		AIFallbackEnabled:       false,
	})
	return NewProcessor(mail, ai, store, notifier, nil, hybrid, dedup.NewChecker(store), nil, ProcessorConfig{
		FetchWindow:        24 * time.Hour,
		RelevanceThreshold: 0.7,
		ProfileStaleness:   24 * time.Hour,
		MaxCostPerRun:      1.0,
		ResumeText:         "ten years of Go, Postgres, distributed systems",
	})
}

// jobMsg builds a message the rule classifier files as a job alert.
func jobMsg(id string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:         id,
		From:       "alerts@linkedin.com",
		Subject:    "Job alert: new jobs for you",
		Body:       "Apply now for this full-time position with salary details.",
		ReceivedAt: time.Now().Add(-time.Hour),
	}
}

func posting(title, company, url string) domain.ExtractedJob {
	return domain.ExtractedJob{
		Title:       title,
		Company:     company,
		ApplyURL:    url,
		Description: "Backend role building data pipelines.",
	}
}

func TestProcessJobsHappyPath(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("m1")}}
	ai := &fakeAI{
		postings: map[string][]domain.ExtractedJob{
			"m1": {posting("Go Engineer", "Acme", "https://jobs.acme.com/1")},
		},
		scores:  map[string]float64{"Go Engineer": 0.9},
		profile: domain.ProfileAnalysis{Summary: "backend", Skills: []string{"go"}},
	}
	store := newFakeJobStore(log)
	notifier := &fakeNotify{}
	p := newTestProcessor(mail, ai, store, notifier)

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d jobs, want 1", len(store.saved))
	}
	job := store.saved[0]
	if job.ID == "" {
		t.Error("saved job has no content-hash id")
	}
	if job.OriginMessageID != "m1" {
		t.Errorf("origin message = %q, want m1", job.OriginMessageID)
	}
	if job.RelevanceScore != 0.9 {
		t.Errorf("relevance = %v, want 0.9", job.RelevanceScore)
	}

	if len(notifier.digests) != 1 || len(notifier.digests[0]) != 1 {
		t.Fatalf("digests = %+v, want one digest with one job", notifier.digests)
	}
	if len(store.markNotified) != 1 || store.markNotified[0] != job.ID {
		t.Errorf("markNotified = %v, want the digested job id", store.markNotified)
	}
	if len(store.markProcessed) != 1 || store.markProcessed[0] != job.ID {
		t.Errorf("markProcessed = %v, want the extracted job id", store.markProcessed)
	}

	rec, ok := store.records["m1"]
	if !ok {
		t.Fatal("no processed record for m1")
	}
	if rec.JobsExtracted != 1 {
		t.Errorf("jobsExtracted = %d, want 1", rec.JobsExtracted)
	}
	if !rec.Archived {
		t.Error("record not re-upserted with Archived after successful archive")
	}
}

func TestProcessJobsRecordsBeforeArchiving(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("m1")}}
	ai := &fakeAI{scores: map[string]float64{}}
	store := newFakeJobStore(log)
	p := newTestProcessor(mail, ai, store, &fakeNotify{})

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recordIdx := log.indexOf("record:m1")
	archiveIdx := log.indexOf("archive:m1")
	if recordIdx == -1 || archiveIdx == -1 {
		t.Fatalf("missing calls, log = %v", log.entries)
	}
	if recordIdx > archiveIdx {
		t.Errorf("durable record written after mailbox archive: %v", log.entries)
	}
}

func TestProcessJobsSkipsProcessedMessage(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("m1")}}
	ai := &fakeAI{}
	store := newFakeJobStore(log)
	store.processedMsgs["m1"] = true
	p := newTestProcessor(mail, ai, store, &fakeNotify{})

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ai.extractCalls != 0 {
		t.Errorf("extract calls = %d, want 0 for an already-processed message", ai.extractCalls)
	}
	if len(store.records) != 0 {
		t.Errorf("records = %v, want no new record for a skipped message", store.records)
	}
	if log.indexOf("archive:m1") != -1 {
		t.Error("skipped message must not be archived again")
	}
}

func TestProcessJobsExtractionFailureAlertsAndContinues(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("bad"), jobMsg("good")}}
	ai := &fakeAI{
		extractErr: map[string]error{"bad": errors.New("provider timeout")},
		postings: map[string][]domain.ExtractedJob{
			"good": {posting("Go Engineer", "Acme", "https://jobs.acme.com/1")},
		},
		scores: map[string]float64{"Go Engineer": 0.9},
	}
	store := newFakeJobStore(log)
	notifier := &fakeNotify{}
	p := newTestProcessor(mail, ai, store, notifier)

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("per-message failure must not fail the run: %v", err)
	}

	if len(notifier.alerts) != 1 || !strings.Contains(notifier.alerts[0], "bad") {
		t.Errorf("alerts = %v, want one alert naming the failed message", notifier.alerts)
	}
	// The broken message is still recorded, so it can never loop forever.
	if _, ok := store.records["bad"]; !ok {
		t.Error("failed message missing its processed record")
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d jobs, want 1 from the healthy message", len(store.saved))
	}
}

func TestProcessJobsDuplicateNotSaved(t *testing.T) {
	log := &callLog{}
	job := posting("Go Engineer", "Acme", "https://jobs.acme.com/1")
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("m1")}}
	ai := &fakeAI{
		postings: map[string][]domain.ExtractedJob{"m1": {job}},
		scores:   map[string]float64{"Go Engineer": 0.9},
	}
	store := newFakeJobStore(log)
	store.existingIDs[dedup.JobID(job.Title, job.Company, job.ApplyURL)] = true
	notifier := &fakeNotify{}
	p := newTestProcessor(mail, ai, store, notifier)

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.saved) != 0 {
		t.Errorf("saved %d jobs, want 0 for a duplicate", len(store.saved))
	}
	if len(notifier.digests) != 0 {
		t.Errorf("digests = %d, want none", len(notifier.digests))
	}
	if _, ok := store.records["m1"]; !ok {
		t.Error("message with only duplicates still needs its processed record")
	}
}

func TestProcessJobsDigestOnlyAboveThreshold(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("m1")}}
	ai := &fakeAI{
		postings: map[string][]domain.ExtractedJob{
			"m1": {
				posting("Go Engineer", "Acme", "https://jobs.acme.com/1"),
				posting("Sales Associate", "Other", "https://jobs.other.com/2"),
			},
		},
		scores: map[string]float64{"Go Engineer": 0.9, "Sales Associate": 0.2},
	}
	store := newFakeJobStore(log)
	notifier := &fakeNotify{}
	p := newTestProcessor(mail, ai, store, notifier)

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.digests) != 1 || len(notifier.digests[0]) != 1 {
		t.Fatalf("digests = %+v, want one digest with only the relevant job", notifier.digests)
	}
	if notifier.digests[0][0].Title != "Go Engineer" {
		t.Errorf("digested job = %q, want the high-relevance one", notifier.digests[0][0].Title)
	}
	if len(store.markNotified) != 1 {
		t.Errorf("markNotified = %v, want only the digested job", store.markNotified)
	}
	// Both postings are stored and marked processed regardless of relevance.
	if len(store.saved) != 2 || len(store.markProcessed) != 2 {
		t.Errorf("saved=%d markProcessed=%d, want both postings persisted", len(store.saved), len(store.markProcessed))
	}
}

func TestProcessJobsDigestFailureNonFatal(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("m1")}}
	ai := &fakeAI{
		postings: map[string][]domain.ExtractedJob{
			"m1": {posting("Go Engineer", "Acme", "https://jobs.acme.com/1")},
		},
		scores: map[string]float64{"Go Engineer": 0.9},
	}
	store := newFakeJobStore(log)
	notifier := &fakeNotify{digestErr: errors.New("webhook 500")}
	p := newTestProcessor(mail, ai, store, notifier)

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("digest failure must not fail the run: %v", err)
	}
	if len(store.markNotified) != 0 {
		t.Errorf("markNotified = %v, want none when the digest was not delivered", store.markNotified)
	}
	if len(store.markProcessed) != 1 {
		t.Errorf("markProcessed = %v, want the posting still flagged", store.markProcessed)
	}
}

func TestProcessJobsArchiveFailureNonFatal(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{
		log:        log,
		msgs:       []domain.InboundMessage{jobMsg("m1")},
		archiveErr: map[string]error{"m1": errors.New("rate limited")},
	}
	ai := &fakeAI{scores: map[string]float64{}}
	store := newFakeJobStore(log)
	p := newTestProcessor(mail, ai, store, &fakeNotify{})

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("mailbox failure must not fail the run: %v", err)
	}
	rec, ok := store.records["m1"]
	if !ok {
		t.Fatal("no processed record for m1")
	}
	if rec.Archived {
		t.Error("record claims Archived despite the mailbox failure")
	}
}

func TestProcessJobsNonOpportunitySkipsExtraction(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{{
		ID:      "m1",
		From:    "sam@example.com",
		Subject: "Lunch tomorrow?",
		Body:    "Are you free around noon?",
	}}}
	ai := &fakeAI{}
	store := newFakeJobStore(log)
	p := newTestProcessor(mail, ai, store, &fakeNotify{})

	if err := p.ProcessJobs(context.Background(), "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ai.extractCalls != 0 {
		t.Errorf("extract calls = %d, want 0 for non-opportunity mail", ai.extractCalls)
	}
	// Still recorded and archived so it disappears from the unread set.
	if _, ok := store.records["m1"]; !ok {
		t.Error("non-opportunity message missing its processed record")
	}
	if log.indexOf("archive:m1") == -1 {
		t.Error("non-opportunity message not archived")
	}
}

func TestProcessJobsMailFetchErrorFailsRun(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, listErr: errors.New("dial tcp: connection refused")}
	store := newFakeJobStore(log)
	p := newTestProcessor(mail, &fakeAI{}, store, &fakeNotify{})

	if err := p.ProcessJobs(context.Background(), "run-1"); err == nil {
		t.Error("mail fetch failure must fail the run so the queue retries it")
	}
}

func TestProcessJobsRecordWriteErrorFailsRun(t *testing.T) {
	log := &callLog{}
	mail := &fakeMail{log: log, msgs: []domain.InboundMessage{jobMsg("m1")}}
	ai := &fakeAI{scores: map[string]float64{}}
	store := newFakeJobStore(log)
	store.recordErr = errors.New("connection lost")
	p := newTestProcessor(mail, ai, store, &fakeNotify{})

	if err := p.ProcessJobs(context.Background(), "run-1"); err == nil {
		t.Fatal("processed-record write failure must fail the run")
	}
	if log.indexOf("archive:m1") != -1 {
		t.Error("message archived without its durable record")
	}
}

func TestDailySummary(t *testing.T) {
	log := &callLog{}
	store := newFakeJobStore(log)
	store.jobsTotal = 12
	store.jobsNotified = 5
	notifier := &fakeNotify{}
	p := newTestProcessor(&fakeMail{log: log}, &fakeAI{}, store, notifier)

	if err := p.DailySummary(context.Background(), "run-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(notifier.summaries))
	}
	got := notifier.summaries[0]
	if got.JobsFound != 12 || got.Notified != 5 {
		t.Errorf("summary = %+v, want {12 5}", got)
	}
}

func TestCleanup(t *testing.T) {
	log := &callLog{}
	store := newFakeJobStore(log)
	store.deleted = 7
	p := newTestProcessor(&fakeMail{log: log}, &fakeAI{}, store, &fakeNotify{})

	retention := 30 * 24 * time.Hour
	if err := p.Cleanup(context.Background(), "run-3", retention); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCutoff := time.Now().Add(-retention)
	if diff := store.deleteCutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", store.deleteCutoff, wantCutoff)
	}
	if store.staleCutoff.IsZero() {
		t.Error("stale jobs were not pruned")
	}
}
