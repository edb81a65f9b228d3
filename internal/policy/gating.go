package policy

// Decision is the gating outcome for one proposal.
type Decision struct {
	AutoExecute bool
	// Reason is set when AutoExecute is false.
	Reason QueueReason
}

// QueueReason names which safety check forced human approval.
type QueueReason string

const (
	ReasonLowConfidence      QueueReason = "low-confidence"
	ReasonAutoActionDisabled QueueReason = "auto-action-disabled"
	ReasonExplicitApproval   QueueReason = "explicit-approval-list"
	ReasonHighRisk           QueueReason = "high-risk"
)

// Decide gates one proposed action. Checks apply in order and the first
// match wins, so only one reason is recorded even when several would hold:
//
//  1. notification/read-only actions always execute
//  2. confidence below threshold
//  3. auto-action globally disabled
//  4. action on the operator's explicit-approval list
//  5. high risk tier
func Decide(action string, confidence float64, sw *Switches) Decision {
	if spec, ok := catalog[action]; ok && (spec.Notification || !spec.Mutating) {
		return Decision{AutoExecute: true}
	}
	if confidence < sw.ConfidenceThreshold() {
		return Decision{Reason: ReasonLowConfidence}
	}
	if !sw.AutoActionEnabled() {
		return Decision{Reason: ReasonAutoActionDisabled}
	}
	if sw.RequiresApproval(action) {
		return Decision{Reason: ReasonExplicitApproval}
	}
	if RiskOf(action) == RiskHigh {
		return Decision{Reason: ReasonHighRisk}
	}
	return Decision{AutoExecute: true}
}
