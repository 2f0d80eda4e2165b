package types

// OutcomeStatus classifies how a run ended.
type OutcomeStatus string

// Run outcome statuses.
const (
	// OutcomeSuccess: run completed normally (operator stop or tick
	// budget exhausted); all stacks finalized.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeDeviceFault: trigger or acquisition hardware link lost.
	// Fatal; the run stops immediately, stacks finalized best effort.
	OutcomeDeviceFault OutcomeStatus = "device_fault"
	// OutcomeCanceled: context canceled before the run drained.
	OutcomeCanceled OutcomeStatus = "canceled"
	// OutcomeInvalidConfig: run rejected before any trigger was issued.
	OutcomeInvalidConfig OutcomeStatus = "invalid_config"
)

// RunOutcome is the structured termination reason reported to the operator.
type RunOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus
	// Message is a human-readable reason.
	Message string
}

// Failed reports whether the outcome is a failure (anything but success).
func (o *RunOutcome) Failed() bool {
	return o.Status != OutcomeSuccess
}
