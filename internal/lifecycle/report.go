package lifecycle

import (
	"time"

	"github.com/cockroachdb/errors"
)

// CheckResult summarizes one check of a run.
type CheckResult struct {
	Name      string   `json:"name"`
	Matched   int      `json:"matched"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Sent      int      `json:"sent,omitempty"`
	Deduped   int      `json:"deduped,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Aborted   bool     `json:"aborted,omitempty"`

	err error
}

// Err is the combined per-order error of the check, nil when all succeeded.
func (r CheckResult) Err() error { return r.err }

type Report struct {
	Job        string        `json:"job"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Checks     []CheckResult `json:"checks,omitempty"`

	NotificationsSent   int `json:"notifications_sent"`
	NotificationsFailed int `json:"notifications_failed"`
}

func (r Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func (r Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// batch collects per-order outcomes of one check. A failure never stops the
// siblings; the errors are combined for the caller.
type batch struct {
	res CheckResult
}

func newBatch(name string, matched int) *batch {
	return &batch{res: CheckResult{Name: name, Matched: matched}}
}

func (b *batch) record(orderNumber string, err error) {
	if err == nil {
		b.res.Succeeded++
		return
	}
	b.res.Failed++
	err = errors.Wrapf(err, "order %s", orderNumber)
	b.res.Errors = append(b.res.Errors, err.Error())
	b.res.err = errors.CombineErrors(b.res.err, err)
}

func (b *batch) sent(ok bool) {
	if ok {
		b.res.Sent++
	}
}

func (b *batch) result() CheckResult { return b.res }
