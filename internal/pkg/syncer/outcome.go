package syncer

import (
	"time"

	"github.com/samber/lo"
)

type Status string

const (
	StatusSucceeded          Status = "succeeded"
	StatusPartiallySucceeded Status = "partially_succeeded"
	StatusFailed             Status = "failed"
)

// ItemResult is the outcome of one unit of a sync pass: one device, one
// price day, one backfill chunk. Failures are isolated per item; only the
// derived pass status is persisted, the error itself is just logged.
type ItemResult struct {
	Item  string `json:"item"`
	Saved int    `json:"saved"`
	Error string `json:"error,omitempty"`

	err error
}

// Outcome summarises one sync pass for the status endpoint.
type Outcome struct {
	SyncType   string       `json:"sync_type"`
	Status     Status       `json:"status"`
	Saved      int          `json:"saved"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Items      []ItemResult `json:"items,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func itemOK(name string, saved int) ItemResult {
	return ItemResult{Item: name, Saved: saved}
}

func itemFailed(name string, err error) ItemResult {
	return ItemResult{Item: name, Error: err.Error(), err: err}
}

// deriveStatus turns a pass's item results into its overall status.
// Every item failing fails the pass; a mix is a partial success. When
// requireRows is set (price syncs), zero saved rows is a failure even if no
// individual fetch errored: any data beats none, but none is worth nothing.
func deriveStatus(items []ItemResult, requireRows bool) Status {
	failed := lo.CountBy(items, func(r ItemResult) bool { return r.err != nil })
	saved := lo.SumBy(items, func(r ItemResult) int { return r.Saved })

	switch {
	case len(items) > 0 && failed == len(items):
		return StatusFailed
	case requireRows && saved == 0:
		return StatusFailed
	case failed > 0:
		return StatusPartiallySucceeded
	default:
		return StatusSucceeded
	}
}

func savedTotal(items []ItemResult) int {
	return lo.SumBy(items, func(r ItemResult) int { return r.Saved })
}
