package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/core/service/classify"
	"jobscout/core/service/dedup"
	"jobscout/pkg/apperr"
	"jobscout/pkg/httputil"
	"jobscout/pkg/logger"
)

// ProcessorConfig holds pipeline tunables.
type ProcessorConfig struct {
	FetchWindow        time.Duration
	RelevanceThreshold float64
	ProfileStaleness   time.Duration
	MaxCostPerRun      float64
	FetchPostingPages  bool
	ResumeText         string
}

// Processor orchestrates one pipeline run. It owns no cross-run state; all
// per-run counters live on the RunContext.
type Processor struct {
	mail       out.MailProvider
	ai         out.AIClient
	store      out.JobStore
	notifier   out.Notifier
	progress   out.ProgressSink
	classifier *classify.Hybrid
	dedup      *dedup.Checker
	httpClient *http.Client
	cfg        ProcessorConfig
}

// NewProcessor wires the pipeline orchestrator.
func NewProcessor(
	mail out.MailProvider,
	ai out.AIClient,
	store out.JobStore,
	notifier out.Notifier,
	progress out.ProgressSink,
	classifier *classify.Hybrid,
	checker *dedup.Checker,
	httpClient *http.Client,
	cfg ProcessorConfig,
) *Processor {
	if progress == nil {
		progress = LogSink{}
	}
	if httpClient == nil {
		httpClient = httputil.NewClient(nil)
	}
	return &Processor{
		mail:       mail,
		ai:         ai,
		store:      store,
		notifier:   notifier,
		progress:   progress,
		classifier: classifier,
		dedup:      checker,
		httpClient: httpClient,
		cfg:        cfg,
	}
}

// ProcessJobs runs the full pipeline once. It returns an error only for
// failures that must fail the whole run (mail fetch, processed-record
// writes); everything scoped to a single message recovers locally.
func (p *Processor) ProcessJobs(ctx context.Context, runID string) error {
	rc := NewRunContext(runID, p.cfg.MaxCostPerRun)
	sink := newMonotonicSink(p.progress)
	log := logger.WithRun(runID)

	sink.ReportProgress(runID, pctInit, "run started")

	// Fetch. A mailbox failure here fails the run; the queue retries it.
	sink.ReportProgress(runID, pctFetch, "fetching unread mail")
	msgs, err := p.mail.ListUnread(ctx, p.cfg.FetchWindow)
	if err != nil {
		return apperr.ExternalError("mail", err)
	}
	rc.TotalMessages = len(msgs)
	log.Info("fetched %d unread messages", len(msgs))

	// Classify everything up front; AI spend is bounded by the run budget.
	sink.ReportProgress(runID, pctClassify, fmt.Sprintf("classifying %d messages", len(msgs)))
	results := p.classifier.ClassifyAll(ctx, msgs, rc.Budget)

	// Extract, dedupe, score, persist per message.
	var relevant []domain.ExtractedJob
	var extractedIDs []string
	var profile *domain.ProfileAnalysis

	for i, msg := range msgs {
		sink.ReportProgress(runID, bandPct(pctExtract, pctNotify, i, len(msgs)),
			fmt.Sprintf("processing message %d/%d", i+1, len(msgs)))

		done, err := p.store.IsMessageProcessed(ctx, msg.ID)
		if err != nil {
			return apperr.StoreError("isMessageProcessed", err)
		}
		if done {
			rc.Skipped++
			continue
		}

		res := results[msg.ID]
		jobs, procErr := p.processMessage(ctx, rc, msg, res, &profile)
		if procErr != nil {
			// Per-message failure: alert, but still mark the message
			// processed so a permanently broken message cannot loop forever.
			rc.Failures++
			logger.WithRun(runID).WithMessage(msg.ID).WithError(procErr).Error("message processing failed")
			p.alert(ctx, fmt.Sprintf("run %s: failed to process message %s: %v", runID, msg.ID, procErr))
		}

		for _, job := range jobs {
			extractedIDs = append(extractedIDs, job.ID)
			if job.RelevanceScore >= p.cfg.RelevanceThreshold {
				relevant = append(relevant, job)
			}
		}

		// The durable record is written before the mailbox side effect; a
		// failure writing it is the one fatal store error, because losing it
		// risks unbounded reprocessing.
		rec := domain.ProcessedMessageRecord{
			MessageID:     msg.ID,
			JobsExtracted: len(jobs),
			ProcessedAt:   time.Now(),
		}
		if err := p.store.RecordProcessed(ctx, rec); err != nil {
			return apperr.StoreError("recordProcessed", err)
		}
		rc.Processed++

		if err := p.mail.MarkReadAndArchive(ctx, msg.ID); err != nil {
			// The record is the source of truth for "do not reprocess";
			// a mailbox failure does not un-process the message.
			logger.WithRun(runID).WithMessage(msg.ID).WithError(err).Warn("mailbox archive failed")
		} else {
			rec.Archived = true
			if err := p.store.RecordProcessed(ctx, rec); err != nil {
				return apperr.StoreError("recordProcessed", err)
			}
		}
	}

	// Notify the relevant batch, then mark every extracted posting processed.
	sink.ReportProgress(runID, pctNotify, fmt.Sprintf("notifying %d relevant postings", len(relevant)))
	if len(relevant) > 0 {
		if err := p.notifier.SendJobDigest(ctx, relevant); err != nil {
			logger.WithRun(runID).WithError(err).Error("failed to send job digest")
		} else {
			rc.Notified = len(relevant)
			notifiedIDs := make([]string, 0, len(relevant))
			for _, job := range relevant {
				notifiedIDs = append(notifiedIDs, job.ID)
			}
			if err := p.store.MarkNotified(ctx, notifiedIDs); err != nil {
				logger.WithRun(runID).WithError(err).Warn("failed to flag notified jobs")
			}
		}
	}

	sink.ReportProgress(runID, pctFinalize, "finalizing")
	if len(extractedIDs) > 0 {
		if err := p.store.MarkProcessed(ctx, extractedIDs); err != nil {
			return apperr.StoreError("markProcessed", err)
		}
	}

	sink.ReportProgress(runID, pctDone, "run completed")
	log.WithFields(map[string]any{
		"messages":   rc.TotalMessages,
		"processed":  rc.Processed,
		"skipped":    rc.Skipped,
		"extracted":  rc.Extracted,
		"duplicates": rc.Duplicates,
		"notified":   rc.Notified,
		"failures":   rc.Failures,
		"ai_cost":    rc.Budget.Spent(),
		"ai_calls":   rc.Budget.Calls(),
	}).Info("pipeline run finished in %s", time.Since(rc.StartedAt).Round(time.Millisecond))
	return nil
}

// processMessage extracts, dedupes, scores, and persists the candidates of
// one message. Returned jobs are the newly saved postings.
func (p *Processor) processMessage(ctx context.Context, rc *RunContext, msg domain.InboundMessage, res domain.ClassificationResult, profile **domain.ProfileAnalysis) ([]domain.ExtractedJob, error) {
	if !res.Category.IsJobOpportunity() {
		return nil, nil
	}

	candidates, err := p.ai.ExtractPostings(ctx, msg, "")
	if err != nil {
		return nil, apperr.ExtractionFailed(msg.ID, err)
	}

	var saved []domain.ExtractedJob
	for _, cand := range candidates {
		dup, err := p.dedup.IsDuplicate(ctx, cand.Title, cand.Company, cand.ApplyURL)
		if err != nil {
			return saved, apperr.StoreError("dedup lookup", err)
		}
		if dup {
			rc.Duplicates++
			continue
		}

		cand.ID = dedup.JobID(cand.Title, cand.Company, cand.ApplyURL)
		cand.OriginMessageID = msg.ID
		cand.CreatedAt = time.Now()
		if cand.PostedDate.IsZero() {
			cand.PostedDate = msg.ReceivedAt
		}
		if cand.Source == "" {
			cand.Source = msg.From
		}

		p.enrichDescription(ctx, &cand)
		cand.RelevanceScore = p.scoreRelevance(ctx, rc, cand, profile)

		if err := p.store.Save(ctx, cand); err != nil {
			return saved, apperr.StoreError("save job", err)
		}
		rc.Extracted++
		saved = append(saved, cand)
	}
	return saved, nil
}

// enrichDescription fetches the apply URL for richer content when the
// extracted description is thin. Fetch failures degrade to what we have.
func (p *Processor) enrichDescription(ctx context.Context, job *domain.ExtractedJob) {
	if !p.cfg.FetchPostingPages || job.ApplyURL == "" || len(job.Description) >= 200 {
		return
	}
	page, err := httputil.FetchText(ctx, p.httpClient, job.ApplyURL)
	if err != nil {
		logger.WithError(err).Debug("posting page fetch failed for %s, keeping extracted content", job.ApplyURL)
		return
	}
	enriched, err := p.ai.ExtractPostings(ctx, domain.InboundMessage{
		ID:      job.OriginMessageID,
		Subject: job.Title,
		From:    job.Source,
	}, page)
	if err != nil || len(enriched) == 0 {
		return
	}
	if len(enriched[0].Description) > len(job.Description) {
		job.Description = enriched[0].Description
	}
	if len(enriched[0].Requirements) > len(job.Requirements) {
		job.Requirements = enriched[0].Requirements
	}
}

// scoreRelevance scores one posting against the cached profile analysis,
// recomputing the analysis if it is stale. Scoring failures degrade to 0.
func (p *Processor) scoreRelevance(ctx context.Context, rc *RunContext, job domain.ExtractedJob, profile **domain.ProfileAnalysis) float64 {
	if *profile == nil {
		prof, err := p.ensureProfile(ctx)
		if err != nil {
			logger.WithRun(rc.RunID).WithError(err).Warn("no profile analysis available, relevance defaults to 0")
			return 0
		}
		*profile = prof
	}

	score, err := p.ai.ScoreRelevance(ctx, job, **profile)
	if err != nil {
		logger.WithRun(rc.RunID).WithError(err).Warn("relevance scoring failed for %s, defaults to 0", job.ID)
		return 0
	}
	if score < 0 || score > 1 {
		return 0
	}
	return score
}

// ensureProfile returns the cached profile analysis, recomputing it when
// missing or older than the staleness window.
func (p *Processor) ensureProfile(ctx context.Context) (*domain.ProfileAnalysis, error) {
	cached, err := p.store.LatestProfile(ctx)
	if err != nil {
		return nil, apperr.StoreError("latestProfile", err)
	}
	if cached != nil && !cached.Stale(p.cfg.ProfileStaleness, time.Now()) {
		return cached, nil
	}

	if p.cfg.ResumeText == "" {
		if cached != nil {
			return cached, nil // stale beats nothing
		}
		return nil, apperr.ConfigError("no resume configured and no cached profile analysis")
	}

	fresh, err := p.ai.AnalyzeProfile(ctx, p.cfg.ResumeText)
	if err != nil {
		if cached != nil {
			logger.WithError(err).Warn("profile re-analysis failed, using stale cache")
			return cached, nil
		}
		return nil, apperr.ExternalError("ai profile analysis", err)
	}
	fresh.AnalyzedAt = time.Now()
	if err := p.store.SaveProfile(ctx, fresh); err != nil {
		logger.WithError(err).Warn("failed to cache profile analysis")
	}
	return &fresh, nil
}

func (p *Processor) alert(ctx context.Context, msg string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.SendOperatorAlert(ctx, msg); err != nil {
		logger.WithError(err).Error("failed to send operator alert")
	}
}
