package model

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// OutcomeStatus is the result of one executed step.
type OutcomeStatus string

const (
	OutcomeOK        OutcomeStatus = "ok"
	OutcomeRecovered OutcomeStatus = "recovered" // failed, then the fallback succeeded
	OutcomeIgnored   OutcomeStatus = "ignored"   // failed, failure is expected and harmless
	OutcomeSkipped   OutcomeStatus = "skipped"   // tool absent or nothing to do
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeManual    OutcomeStatus = "manual" // needs operator follow-up
)

// Outcome records one step of a destructive batch.
type Outcome struct {
	Disk     string        `json:"disk"`
	Phase    string        `json:"phase"`
	Step     string        `json:"step"`
	Status   OutcomeStatus `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the human-readable trace of a destructive batch.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Add appends an outcome.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Merge appends all outcomes of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
}

// Count returns how many outcomes have the given status.
func (r *Report) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Clean is true when no step failed or needs follow-up.
func (r *Report) Clean() bool {
	return r.Count(OutcomeFailed) == 0 && r.Count(OutcomeManual) == 0
}

// Err combines every failed and manual step into one error, nil when clean.
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Status != OutcomeFailed && o.Status != OutcomeManual {
			continue
		}
		msg := o.Error
		if msg == "" {
			msg = string(o.Status)
		}
		err = multierr.Append(err, fmt.Errorf("%s: %s: %s", o.Disk, o.Step, msg))
	}
	return err
}
