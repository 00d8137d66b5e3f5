package syncer

import "time"

// CollectionReport summarises one SyncCollection call.
type CollectionReport struct {
	Collection string
	Attempted  int
	Succeeded  int
	Failed     int

	// Stale counts records the endpoint accepted but that were edited
	// locally before the acknowledgement landed. They stay unsynced.
	Stale int

	// Err is set when the pending records could not be read at all.
	Err error
}

// Report summarises one SyncAll pass.
type Report struct {
	Collections []CollectionReport
	StartedAt   time.Time
	FinishedAt  time.Time

	// Remaining is the number of unsynced records left after the pass.
	Remaining int
}

// Totals sums the per-collection counters.
func (r Report) Totals() (attempted, succeeded, failed int) {
	for _, c := range r.Collections {
		attempted += c.Attempted
		succeeded += c.Succeeded
		failed += c.Failed
	}
	return attempted, succeeded, failed
}
