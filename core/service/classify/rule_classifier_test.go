package classify

import (
	"testing"

	"jobscout/core/domain"
)

func TestRuleClassifierCategories(t *testing.T) {
	classifier := NewRuleClassifier(DefaultRuleset())

	tests := []struct {
		name           string
		msg            domain.InboundMessage
		wantCategory   domain.Category
		wantMinConf    float64
		wantMaxConf    float64
	}{
		{
			name: "job board alert with all groups matching",
			msg: domain.InboundMessage{
				ID:      "m1",
				From:    "alerts@linkedin.com",
				Subject: "Job alert: 12 new jobs for you",
				Body:    "Apply now for this position. Salary range included.",
			},
			wantCategory: domain.CategoryJobAlert,
			wantMinConf:  0.9,
			wantMaxConf:  0.98,
		},
		{
			name: "recruiter outreach",
			msg: domain.InboundMessage{
				ID:      "m2",
				From:    "jordan@talent-partners.io",
				Subject: "Opportunity that matches your background",
				Body:    "I came across your profile and wanted to ask: would you be open to a chat?",
			},
			wantCategory: domain.CategoryRecruiter,
			wantMinConf:  0.6,
			wantMaxConf:  0.98,
		},
		{
			name: "interview scheduling fires without from patterns",
			msg: domain.InboundMessage{
				ID:      "m3",
				From:    "casey@acme.com",
				Subject: "Interview availability",
				Body:    "We would like to schedule a call with the hiring manager.",
			},
			wantCategory: domain.CategoryInterview,
			wantMinConf:  0.6,
			wantMaxConf:  0.98,
		},
		{
			name: "rejection",
			msg: domain.InboundMessage{
				ID:      "m4",
				From:    "careers@acme.com",
				Subject: "Update on your application",
				Body:    "Unfortunately we have decided to move forward with other candidates.",
			},
			wantCategory: domain.CategoryRejection,
			wantMinConf:  0.6,
			wantMaxConf:  0.98,
		},
		{
			name: "newsletter",
			msg: domain.InboundMessage{
				ID:      "m5",
				From:    "noreply@devweekly.com",
				Subject: "This week in engineering",
				Body:    "Top stories. Unsubscribe at any time or view in browser.",
			},
			wantCategory: domain.CategoryNewsletter,
			wantMinConf:  0.5,
			wantMaxConf:  0.98,
		},
		{
			name: "no rule fires falls back to personal at low confidence",
			msg: domain.InboundMessage{
				ID:      "m6",
				From:    "sam@example.com",
				Subject: "Dinner on Saturday?",
				Body:    "See you at the park around seven.",
			},
			wantCategory: domain.CategoryPersonal,
			wantMinConf:  noMatchConfidence,
			wantMaxConf:  noMatchConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classifier.Classify(tt.msg)
			if res.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", res.Category, tt.wantCategory)
			}
			if res.Confidence < tt.wantMinConf || res.Confidence > tt.wantMaxConf {
				t.Errorf("confidence = %v, want in [%v, %v]", res.Confidence, tt.wantMinConf, tt.wantMaxConf)
			}
			if res.ClassifiedBy != domain.ClassifiedByRule {
				t.Errorf("classifiedBy = %s, want rule", res.ClassifiedBy)
			}
			if res.Cost != 0 {
				t.Errorf("rule classification must be free, cost = %v", res.Cost)
			}
		})
	}
}

// A message matching a high-priority and a low-priority rule must take the
// high-priority category.
func TestRuleClassifierPriorityOrder(t *testing.T) {
	classifier := NewRuleClassifier(DefaultRuleset())

	// Matches job_alert (from: linkedin.com, content: apply/position) and
	// recruiter (content: opportunity, your profile).
	msg := domain.InboundMessage{
		ID:      "m7",
		From:    "alerts@linkedin.com",
		Subject: "New opportunities for you",
		Body:    "Apply for this position. Based on your profile, this opportunity fits.",
	}

	res := classifier.Classify(msg)
	if res.Category != domain.CategoryJobAlert {
		t.Errorf("category = %s, want job_alert (higher priority)", res.Category)
	}
}

func TestRuleClassifierConfidenceCap(t *testing.T) {
	classifier := NewRuleClassifier(DefaultRuleset())

	// All three pattern groups hit: raw score 1.0, must be capped.
	msg := domain.InboundMessage{
		ID:      "m8",
		From:    "alerts@indeed.com",
		Subject: "Job alert: apply now",
		Body:    "View job, apply today, full-time position with salary details.",
	}

	res := classifier.Classify(msg)
	if res.Confidence > maxRuleConfidence {
		t.Errorf("confidence = %v, must never exceed %v", res.Confidence, maxRuleConfidence)
	}
}

// A rule with a missing pattern group renormalizes over the groups it has: a
// partial hit on a defined group is not diluted by undefined groups.
func TestScoreRuleRenormalization(t *testing.T) {
	rule := domain.ClassificationRule{
		Category:            domain.CategoryInterview,
		ConfidenceThreshold: 0.6,
		SubjectPatterns:     []string{"interview"},
		ContentPatterns:     []string{"phone screen"},
	}

	tests := []struct {
		name    string
		content string
		subject string
		want    float64
	}{
		{"both groups hit", "time for a phone screen", "interview invite", 1.0},
		{"content only", "time for a phone screen", "hello", weightContent / (weightContent + weightSubject)},
		{"subject only", "hello", "interview invite", weightSubject / (weightContent + weightSubject)},
		{"neither", "hello", "hello", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreRule(rule, tt.content, "", tt.subject)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreRuleEmptyRule(t *testing.T) {
	if got := scoreRule(domain.ClassificationRule{}, "anything", "anyone", "any"); got != 0 {
		t.Errorf("score of rule without patterns = %v, want 0", got)
	}
}

func TestRuleClassifierDeterminism(t *testing.T) {
	classifier := NewRuleClassifier(DefaultRuleset())
	msg := domain.InboundMessage{
		ID:      "m9",
		From:    "alerts@linkedin.com",
		Subject: "Job alert",
		Body:    "Apply for this position.",
	}

	first := classifier.Classify(msg)
	for i := 0; i < 10; i++ {
		res := classifier.Classify(msg)
		if res.Category != first.Category || res.Confidence != first.Confidence {
			t.Fatalf("classification not deterministic: run %d got %s/%v, want %s/%v",
				i, res.Category, res.Confidence, first.Category, first.Confidence)
		}
	}
}
