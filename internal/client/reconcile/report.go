package reconcile

import "time"

// Status summarizes the outcome of a reconciliation pass.
type Status string

const (
	// StatusSucceeded: nothing is left to reconcile.
	StatusSucceeded Status = "succeeded"
	// StatusPartial: some work was confirmed, some is still pending.
	StatusPartial Status = "partial"
	// StatusFailed: nothing could be confirmed.
	StatusFailed Status = "failed"
	// StatusOffline: the pass was abandoned because the store is unreachable.
	StatusOffline Status = "offline"
	// StatusSkipped: another pass was already running.
	StatusSkipped Status = "skipped"
	// StatusIdle: there was nothing to reconcile.
	StatusIdle Status = "idle"
)

// Report is advisory; queue and mirror contents are the source of truth.
type Report struct {
	Status     Status
	Replayed   int // queued actions confirmed by the store
	Created    int // records created remotely, from queued or standalone entries
	Dropped    int // actions discarded because their target no longer exists
	Failed     int // attempts that failed and stay pending
	Deferred   int // actions waiting for their record's create to be confirmed
	Remaining  int // queued actions plus standalone mirror entries still pending
	StartedAt  time.Time
	FinishedAt time.Time
	Errors     []string
}

func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err.Error())
}

func (r *Report) settle() {
	confirmed := r.Replayed + r.Created + r.Dropped
	switch {
	case r.Failed == 0 && r.Remaining == 0:
		r.Status = StatusSucceeded
	case confirmed > 0 || r.Failed == 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusFailed
	}
}
