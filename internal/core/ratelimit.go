package core

import "time"

// RateWindowRecord is the fixed-window counter for one (endpoint, client) pair.
type RateWindowRecord struct {
	WindowStart time.Time
	Count       int
}

// Expired reports whether the window that started at WindowStart has ended.
func (r *RateWindowRecord) Expired(now time.Time, window time.Duration) bool {
	return r == nil || now.Sub(r.WindowStart) > window
}

// Decision is the admission verdict for a single request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is the number of whole seconds until the current window ends.
	ResetIn int
}
