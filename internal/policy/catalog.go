// Package policy provides the action risk catalog, the gating decision that
// determines whether a proposed action executes immediately or waits for
// human approval, and the runtime safety switches.
package policy

// RiskTier classifies how dangerous an action is if executed incorrectly.
type RiskTier string

const (
	RiskSafe   RiskTier = "safe"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// ActionSpec describes one catalogued action. The catalog is the single
// source of truth shared by the risk classifier and the dispatcher.
type ActionSpec struct {
	Risk RiskTier
	// Mutating actions change cluster state and require post-action
	// verification. Read-only and notification actions do not.
	Mutating bool
	// Notification actions bypass gating entirely.
	Notification bool
}

var catalog = map[string]ActionSpec{
	// Notifications and read-only queries.
	"send_notification":     {Risk: RiskSafe, Notification: true},
	"get_deployment_status": {Risk: RiskSafe},
	"get_pod_events":        {Risk: RiskSafe},
	"query_prometheus":      {Risk: RiskSafe},
	"check_node_health":     {Risk: RiskSafe},

	// Confidence-gated.
	"scale_deployment":      {Risk: RiskMedium, Mutating: true},
	"restart_deployment":    {Risk: RiskMedium, Mutating: true},
	"cordon_node":           {Risk: RiskMedium, Mutating: true},
	"uncordon_node":         {Risk: RiskMedium, Mutating: true},
	"delete_pod":            {Risk: RiskMedium, Mutating: true},
	"update_hpa":            {Risk: RiskMedium, Mutating: true},
	"patch_resource_limits": {Risk: RiskMedium, Mutating: true},

	// Always approval.
	"rollback_deployment": {Risk: RiskHigh, Mutating: true},
	"drain_node":          {Risk: RiskHigh, Mutating: true},
	"delete_deployment":   {Risk: RiskHigh, Mutating: true},
	"apply_manifest":      {Risk: RiskHigh, Mutating: true},
	"exec_in_pod":         {Risk: RiskHigh, Mutating: true},
}

// RiskOf returns the risk tier for an action name. Unrecognized names are
// high risk, so an unregistered action can never auto-execute.
func RiskOf(action string) RiskTier {
	if spec, ok := catalog[action]; ok {
		return spec.Risk
	}
	return RiskHigh
}

// IsMutating reports whether the action changes cluster state.
func IsMutating(action string) bool {
	return catalog[action].Mutating
}

// IsNotification reports whether the action is a pure notification.
func IsNotification(action string) bool {
	return catalog[action].Notification
}

// Known reports whether the action name is in the catalog.
func Known(action string) bool {
	_, ok := catalog[action]
	return ok
}
