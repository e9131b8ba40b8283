package auth

import "time"

// SetClock fixes the time used for expiry checks.
func (m *StaticTokenManager) SetClock(now func() time.Time) {
	m.now = now
}
