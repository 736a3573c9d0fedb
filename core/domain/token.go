package domain

import "time"

// TokenState is the upstream OAuth token. Mutated only by the token
// guardian; read by every upstream API call.
type TokenState struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the access token expires inside the horizon.
// A zero ExpiresAt means the expiry is unknown and is treated as expiring.
func (t *TokenState) ExpiresWithin(horizon time.Duration, now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return t.ExpiresAt.Before(now.Add(horizon))
}
