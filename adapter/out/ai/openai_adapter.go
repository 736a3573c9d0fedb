// Package ai implements the AI client port over the OpenAI chat API.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/pkg/logger"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 2048
	bodyLimit        = 4000
	pageLimit        = 6000
)

// modelPricing is USD per 1K tokens (input, output). Unknown models fall back
// to the default model's pricing so cost accounting never reports zero for a
// call that actually happened.
var modelPricing = map[string][2]float64{
	"gpt-4o-mini":   {0.00015, 0.0006},
	"gpt-4o":        {0.0025, 0.01},
	"gpt-3.5-turbo": {0.0005, 0.0015},
}

// Config holds OpenAI adapter tunables.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Adapter implements out.AIClient against OpenAI. All calls go through a
// circuit breaker so a degraded provider trips fast instead of burning the
// run budget on timeouts.
type Adapter struct {
	client  *openai.Client
	breaker *gobreaker.CircuitBreaker
	cfg     Config
}

var _ out.AIClient = (*Adapter)(nil)

// NewAdapter creates the OpenAI-backed AI client.
func NewAdapter(cfg Config) *Adapter {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openai",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Adapter{
		client:  openai.NewClient(cfg.APIKey),
		breaker: breaker,
		cfg:     cfg,
	}
}

// completeJSON runs one JSON-mode chat completion through the breaker and
// returns the content plus the actual token cost of the call.
func (a *Adapter) completeJSON(ctx context.Context, systemPrompt, userPrompt string) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	result, err := a.breaker.Execute(func() (any, error) {
		return a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.cfg.Model,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: float32(a.cfg.Temperature),
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
	})
	if err != nil {
		return "", 0, err
	}

	resp := result.(openai.ChatCompletionResponse)
	cost := callCost(a.cfg.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return "", cost, fmt.Errorf("empty completion response")
	}
	return stripFences(resp.Choices[0].Message.Content), cost, nil
}

// callCost computes the USD charge from actual token usage.
func callCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = modelPricing[defaultModel]
	}
	return float64(inputTokens)/1000*pricing[0] + float64(outputTokens)/1000*pricing[1]
}

// stripFences removes markdown code fences some models wrap JSON in even in
// JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// ClassifyMessage classifies one message. The raw output is returned
// unvalidated; the service layer coerces category and confidence.
func (a *Adapter) ClassifyMessage(ctx context.Context, msg domain.InboundMessage) (out.RawClassification, float64, error) {
	systemPrompt := `You classify job-search related emails. Respond with JSON only.

Categories (pick ONE):
- job_alert: automated job board alerts with posting listings
- recruiter: direct outreach from a recruiter or hiring manager
- interview: interview scheduling, confirmations, reminders
- rejection: application rejections
- newsletter: career or industry newsletters
- promotional: marketing, courses, paid services
- personal: everything else

Respond with this exact JSON format:
{"category": "<category>", "confidence": 0.0-1.0}`

	userPrompt := fmt.Sprintf("From: %s\nSubject: %s\n\nBody:\n%s",
		msg.From, msg.Subject, truncate(msg.Body, bodyLimit))

	content, cost, err := a.completeJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return out.RawClassification{}, cost, err
	}

	var raw out.RawClassification
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return out.RawClassification{}, cost, fmt.Errorf("unparseable classification response: %w", err)
	}
	raw.MessageID = msg.ID
	return raw, cost, nil
}

// extractedPosting mirrors the prompt's output schema.
type extractedPosting struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	IsRemote     bool     `json:"is_remote"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	ApplyURL     string   `json:"apply_url"`
	Salary       string   `json:"salary"`
}

// ExtractPostings pulls job posting candidates out of a message. pageText,
// when present, is fetched apply-URL content appended for richer extraction.
func (a *Adapter) ExtractPostings(ctx context.Context, msg domain.InboundMessage, pageText string) ([]domain.ExtractedJob, error) {
	systemPrompt := `You extract job postings from emails. Respond with JSON only.

Extract every distinct job posting. Skip anything that is not an actual job
opening (courses, events, profile views). Leave fields you cannot determine
empty; never invent data.

Respond with this exact JSON format:
{"postings": [{"title": "", "company": "", "location": "", "is_remote": false,
"description": "", "requirements": [""], "apply_url": "", "salary": ""}]}`

	userPrompt := fmt.Sprintf("From: %s\nSubject: %s\n\nBody:\n%s",
		msg.From, msg.Subject, truncate(msg.Body, bodyLimit))
	if pageText != "" {
		userPrompt += "\n\nFetched posting page content:\n" + truncate(pageText, pageLimit)
	}

	content, _, err := a.completeJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Postings []extractedPosting `json:"postings"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable extraction response: %w", err)
	}

	jobs := make([]domain.ExtractedJob, 0, len(parsed.Postings))
	for _, p := range parsed.Postings {
		if p.Title == "" && p.Company == "" {
			continue
		}
		job := domain.ExtractedJob{
			Title:        p.Title,
			Company:      p.Company,
			Location:     p.Location,
			IsRemote:     p.IsRemote,
			Description:  p.Description,
			Requirements: p.Requirements,
			ApplyURL:     p.ApplyURL,
		}
		if p.Salary != "" {
			salary := p.Salary
			job.Salary = &salary
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ScoreRelevance scores a posting against the candidate profile in [0,1].
func (a *Adapter) ScoreRelevance(ctx context.Context, job domain.ExtractedJob, profile domain.ProfileAnalysis) (float64, error) {
	systemPrompt := `You score how relevant a job posting is for a candidate. Respond with JSON only.

Score from 0.0 (irrelevant) to 1.0 (excellent fit) based on skill overlap,
seniority match, and role fit.

Respond with this exact JSON format:
{"score": 0.0-1.0}`

	userPrompt := fmt.Sprintf(`Candidate profile:
%s
Skills: %s

Posting:
Title: %s
Company: %s
Location: %s (remote: %v)
Requirements: %s
Description:
%s`,
		profile.Summary, strings.Join(profile.Skills, ", "),
		job.Title, job.Company, job.Location, job.IsRemote,
		strings.Join(job.Requirements, "; "), truncate(job.Description, bodyLimit))

	content, _, err := a.completeJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return 0, fmt.Errorf("unparseable score response: %w", err)
	}
	return parsed.Score, nil
}

// AnalyzeProfile produces a fresh profile analysis from resume text.
func (a *Adapter) AnalyzeProfile(ctx context.Context, resumeText string) (domain.ProfileAnalysis, error) {
	systemPrompt := `You analyze a resume for job matching. Respond with JSON only.

Respond with this exact JSON format:
{"summary": "2-3 sentence professional summary", "skills": ["skill1", "skill2"]}`

	content, _, err := a.completeJSON(ctx, systemPrompt, truncate(resumeText, pageLimit))
	if err != nil {
		return domain.ProfileAnalysis{}, err
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Skills  []string `json:"skills"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.ProfileAnalysis{}, fmt.Errorf("unparseable profile response: %w", err)
	}
	return domain.ProfileAnalysis{
		Summary:    parsed.Summary,
		Skills:     parsed.Skills,
		AnalyzedAt: time.Now(),
	}, nil
}
