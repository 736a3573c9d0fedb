package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/pkg/apperr"
)

type fakeNotifier struct {
	alerts []string
}

func (f *fakeNotifier) SendJobDigest(context.Context, []domain.ExtractedJob) error { return nil }
func (f *fakeNotifier) SendOperatorAlert(_ context.Context, msg string) error {
	f.alerts = append(f.alerts, msg)
	return nil
}
func (f *fakeNotifier) SendDailySummary(context.Context, out.DailySummaryStats) error { return nil }

func newTestGuardian(initial domain.TokenState, notifier *fakeNotifier) *Guardian {
	g := &Guardian{
		cfg: GuardianConfig{
			Provider:       "gmail",
			CheckInterval:  time.Minute,
			RefreshHorizon: 5 * time.Minute,
			AlertCooldown:  time.Hour,
		},
		notifier: notifier,
		token:    initial,
		now:      time.Now,
	}
	return g
}

func TestEnsureValidSkipsFreshToken(t *testing.T) {
	g := newTestGuardian(domain.TokenState{
		AccessToken:  "tok",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, &fakeNotifier{})

	refreshed := false
	g.refreshFn = func(context.Context, string) (domain.TokenState, error) {
		refreshed = true
		return domain.TokenState{}, nil
	}

	if err := g.EnsureValid(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshed {
		t.Error("fresh token must not be refreshed")
	}
}

func TestEnsureValidRefreshesNearExpiry(t *testing.T) {
	g := newTestGuardian(domain.TokenState{
		AccessToken:  "tok",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Minute), // inside the 5m horizon
	}, &fakeNotifier{})

	g.refreshFn = func(_ context.Context, refreshToken string) (domain.TokenState, error) {
		if refreshToken != "refresh" {
			t.Errorf("refreshFn got token %q, want %q", refreshToken, "refresh")
		}
		return domain.TokenState{
			AccessToken:  "new-tok",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	}

	if err := g.EnsureValid(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tok, err := g.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "new-tok" {
		t.Errorf("access token = %q, want refreshed token", tok)
	}
}

func TestWrapCallRetriesOnceOnAuthError(t *testing.T) {
	g := newTestGuardian(domain.TokenState{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, &fakeNotifier{})

	refreshes := 0
	g.refreshFn = func(context.Context, string) (domain.TokenState, error) {
		refreshes++
		return domain.TokenState{
			AccessToken:  "fresh",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	}

	calls := 0
	err := g.WrapCall(context.Background(), func(accessToken string) error {
		calls++
		if accessToken == "stale" {
			return errors.New("googleapi: Error 401: invalid credentials")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2 (original + one retry)", calls)
	}
	if refreshes != 1 {
		t.Errorf("refreshes = %d, want exactly 1", refreshes)
	}
}

func TestWrapCallDoesNotRetryTwice(t *testing.T) {
	g := newTestGuardian(domain.TokenState{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, &fakeNotifier{})

	g.refreshFn = func(context.Context, string) (domain.TokenState, error) {
		return domain.TokenState{
			AccessToken:  "still-bad",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	}

	calls := 0
	err := g.WrapCall(context.Background(), func(string) error {
		calls++
		return errors.New("401 unauthorized")
	})
	if err == nil {
		t.Fatal("second auth failure must be terminal for the call")
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2 (never more than one retry)", calls)
	}
}

func TestWrapCallNonAuthErrorPropagates(t *testing.T) {
	g := newTestGuardian(domain.TokenState{
		AccessToken:  "tok",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, &fakeNotifier{})

	refreshes := 0
	g.refreshFn = func(context.Context, string) (domain.TokenState, error) {
		refreshes++
		return domain.TokenState{}, nil
	}

	wantErr := errors.New("connection reset by peer")
	err := g.WrapCall(context.Background(), func(string) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want the original non-auth error", err)
	}
	if refreshes != 0 {
		t.Errorf("refreshes = %d, want 0 for a non-auth error", refreshes)
	}
}

func TestRevokedRefreshTokenAlerts(t *testing.T) {
	notifier := &fakeNotifier{}
	g := newTestGuardian(domain.TokenState{
		AccessToken:  "",
		RefreshToken: "dead",
	}, notifier)

	g.refreshFn = func(context.Context, string) (domain.TokenState, error) {
		return domain.TokenState{}, errors.New(`oauth2: "invalid_grant" token has been expired or revoked`)
	}

	err := g.EnsureValid(context.Background())
	if !apperr.HasCode(err, apperr.CodeTokenRevoked) {
		t.Errorf("error code = %v, want TOKEN_REVOKED", err)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(notifier.alerts))
	}
}

func TestRevokedAlertCooldown(t *testing.T) {
	notifier := &fakeNotifier{}
	g := newTestGuardian(domain.TokenState{RefreshToken: "dead"}, notifier)

	current := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }
	g.refreshFn = func(context.Context, string) (domain.TokenState, error) {
		return domain.TokenState{}, errors.New("invalid_grant")
	}

	// Repeated failures inside the cooldown window alert once.
	for i := 0; i < 3; i++ {
		_ = g.EnsureValid(context.Background())
		current = current.Add(time.Minute)
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("alerts = %d, want 1 within cooldown", len(notifier.alerts))
	}

	// Past the cooldown a new alert goes out.
	current = current.Add(2 * time.Hour)
	_ = g.EnsureValid(context.Background())
	if len(notifier.alerts) != 2 {
		t.Errorf("alerts = %d, want 2 after cooldown elapsed", len(notifier.alerts))
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantAuth    bool
		wantRevoked bool
	}{
		{"expired access token", errors.New("googleapi: Error 401: Invalid Credentials"), true, false},
		{"invalid token", errors.New("invalid_token"), true, false},
		{"revoked grant", errors.New("oauth2: invalid_grant"), false, true},
		{"revoked long form", errors.New("Token has been expired or revoked."), false, true},
		{"network error", errors.New("dial tcp: i/o timeout"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.wantAuth {
				t.Errorf("IsAuthError = %v, want %v", got, tt.wantAuth)
			}
			if got := IsRevokedError(tt.err); got != tt.wantRevoked {
				t.Errorf("IsRevokedError = %v, want %v", got, tt.wantRevoked)
			}
		})
	}
}
