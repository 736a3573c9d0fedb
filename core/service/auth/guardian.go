// Package auth keeps the upstream OAuth token valid and classifies
// authentication failures.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/pkg/apperr"
	"jobscout/pkg/logger"
)

// GuardianConfig holds token guardian tunables.
type GuardianConfig struct {
	Provider       string        // provider name for errors and alerts
	CheckInterval  time.Duration // timer-based validation interval
	RefreshHorizon time.Duration // refresh preemptively when expiry is this close
	AlertCooldown  time.Duration // minimum gap between operator alerts
}

// Guardian validates and refreshes the upstream OAuth token on a timer and
// on demand, and raises a throttled operator alert when the refresh token
// itself is dead.
type Guardian struct {
	cfg      GuardianConfig
	notifier out.Notifier

	mu          sync.Mutex
	token       domain.TokenState
	lastChecked time.Time
	lastAlert   time.Time

	// refreshFn exchanges the refresh token for a new access token.
	// Swappable in tests; the default goes through oauth2.
	refreshFn func(ctx context.Context, refreshToken string) (domain.TokenState, error)
	now       func() time.Time
}

// NewGuardian creates a guardian over the given oauth2 config and initial
// token state.
func NewGuardian(oauthCfg *oauth2.Config, initial domain.TokenState, notifier out.Notifier, cfg GuardianConfig) *Guardian {
	g := &Guardian{
		cfg:      cfg,
		notifier: notifier,
		token:    initial,
		now:      time.Now,
	}
	g.refreshFn = func(ctx context.Context, refreshToken string) (domain.TokenState, error) {
		src := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		tok, err := src.Token()
		if err != nil {
			return domain.TokenState{}, err
		}
		state := domain.TokenState{
			AccessToken:  tok.AccessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    tok.Expiry,
		}
		if tok.RefreshToken != "" {
			state.RefreshToken = tok.RefreshToken
		}
		return state, nil
	}
	return g
}

// StartChecks runs the periodic validation loop until ctx is cancelled.
func (g *Guardian) StartChecks(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.EnsureValid(ctx); err != nil {
				logger.WithError(err).Warn("scheduled token check failed")
			}
		}
	}
}

// EnsureValid refreshes the token if it is missing or expires within the
// horizon.
func (g *Guardian) EnsureValid(ctx context.Context) error {
	g.mu.Lock()
	g.lastChecked = g.now()
	needsRefresh := g.token.AccessToken == "" ||
		g.token.ExpiresWithin(g.cfg.RefreshHorizon, g.now())
	g.mu.Unlock()

	if !needsRefresh {
		return nil
	}
	return g.refresh(ctx)
}

// AccessToken ensures validity and returns the current access token.
func (g *Guardian) AccessToken(ctx context.Context) (string, error) {
	if err := g.EnsureValid(ctx); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token.AccessToken, nil
}

// WrapCall runs an upstream API call with the current access token. An
// authentication-class error triggers exactly one refresh-and-retry; a
// second failure is terminal for the call.
func (g *Guardian) WrapCall(ctx context.Context, call func(accessToken string) error) error {
	token, err := g.AccessToken(ctx)
	if err != nil {
		return err
	}

	err = call(token)
	if err == nil || !IsAuthError(err) {
		return err
	}

	logger.WithError(err).Info("auth error on upstream call, refreshing token and retrying once")
	if refreshErr := g.refresh(ctx); refreshErr != nil {
		return refreshErr
	}

	g.mu.Lock()
	token = g.token.AccessToken
	g.mu.Unlock()
	return call(token)
}

// refresh exchanges the refresh token and stores the new state. A revoked
// refresh token is unrecoverable and raises a throttled operator alert.
func (g *Guardian) refresh(ctx context.Context) error {
	g.mu.Lock()
	refreshToken := g.token.RefreshToken
	g.mu.Unlock()

	if refreshToken == "" {
		g.alertRevoked()
		return apperr.TokenRevoked(g.cfg.Provider)
	}

	state, err := g.refreshFn(ctx, refreshToken)
	if err != nil {
		if IsRevokedError(err) {
			g.alertRevoked()
			return apperr.TokenRevoked(g.cfg.Provider).WithError(err)
		}
		return apperr.OAuthFailed(g.cfg.Provider, err)
	}

	g.mu.Lock()
	g.token = state
	g.mu.Unlock()
	logger.Info("access token refreshed, expires at %s", state.ExpiresAt.Format(time.RFC3339))
	return nil
}

// alertRevoked sends the operator alert unless one was sent within the
// cooldown window.
func (g *Guardian) alertRevoked() {
	g.mu.Lock()
	now := g.now()
	if !g.lastAlert.IsZero() && now.Sub(g.lastAlert) < g.cfg.AlertCooldown {
		g.mu.Unlock()
		return
	}
	g.lastAlert = now
	g.mu.Unlock()

	if g.notifier == nil {
		return
	}
	msg := "refresh token for " + g.cfg.Provider + " is dead; manual re-authorization required"
	if err := g.notifier.SendOperatorAlert(context.Background(), msg); err != nil {
		logger.WithError(err).Error("failed to send operator alert")
	}
}

// Auth error substrings recognized across Google's OAuth and API surfaces.
var (
	authErrorMarkers = []string{
		"invalid_token",
		"token expired",
		"invalid credentials",
		"unauthorized",
		"401",
	}
	revokedErrorMarkers = []string{
		"invalid_grant",
		"token has been expired or revoked",
		"refresh token revoked",
	}
)

// IsAuthError reports whether the error looks like an expired or invalid
// access token (recoverable by refresh).
func IsAuthError(err error) bool {
	return matchesAny(err, authErrorMarkers)
}

// IsRevokedError reports whether the error indicates a dead refresh token
// (unrecoverable without human action).
func IsRevokedError(err error) bool {
	return matchesAny(err, revokedErrorMarkers)
}

func matchesAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
