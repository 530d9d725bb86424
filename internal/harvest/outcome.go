package harvest

import "time"

// OutcomeStatus tags the variant held by an Outcome.
type OutcomeStatus string

// Outcome status values.
const (
	StatusSuccess OutcomeStatus = "success"
	StatusEmpty   OutcomeStatus = "empty"
	StatusFailed  OutcomeStatus = "failed"
)

// Outcome is the result of one extraction task. Every task produces exactly
// one Outcome, including on timeout or cancellation.
type Outcome struct {
	Source    SourceConfig
	Status    OutcomeStatus
	Records   []ContentRecord
	Kind      ErrorKind
	Message   string
	FromCache bool
	Duration  time.Duration
}

// Success builds a success outcome, or an empty one when records is empty.
func Success(source SourceConfig, records []ContentRecord) Outcome {
	if len(records) == 0 {
		return Empty(source)
	}
	return Outcome{Source: source, Status: StatusSuccess, Records: records}
}

// Empty builds an outcome for a source that returned no records.
func Empty(source SourceConfig) Outcome {
	return Outcome{Source: source, Status: StatusEmpty}
}

// Failed builds a failure outcome carrying the error kind and message.
func Failed(source SourceConfig, kind ErrorKind, message string) Outcome {
	return Outcome{Source: source, Status: StatusFailed, Kind: kind, Message: message}
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}
