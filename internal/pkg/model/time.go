package model

import "time"

// Naive rebuilds t's local wall clock in UTC. The cache stores local-naive
// timestamps in zone-less columns; tagging the wall clock as UTC keeps the
// pgx codec from shifting it on the way in. Every timestamp crossing the
// store boundary goes through this.
func Naive(t time.Time) time.Time {
	local := t.Local()
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
}
