package policy

import "sync"

// Switches holds the runtime-mutable safety configuration: the global
// auto-action switch, the confidence threshold, and the explicit-approval
// list. All accessors are safe for concurrent use.
type Switches struct {
	mu         sync.RWMutex
	autoAction bool
	threshold  float64
	approval   map[string]bool
}

// NewSwitches creates switches with the given initial values. Actions in
// requireApproval are always queued regardless of confidence.
func NewSwitches(autoAction bool, threshold float64, requireApproval []string) *Switches {
	s := &Switches{
		autoAction: autoAction,
		threshold:  threshold,
		approval:   make(map[string]bool),
	}
	for _, a := range requireApproval {
		if a != "" {
			s.approval[a] = true
		}
	}
	return s
}

// AutoActionEnabled reports whether actions may execute without approval.
func (s *Switches) AutoActionEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoAction
}

// SetAutoActionEnabled toggles the global auto-action switch.
func (s *Switches) SetAutoActionEnabled(v bool) {
	s.mu.Lock()
	s.autoAction = v
	s.mu.Unlock()
}

// ConfidenceThreshold returns the minimum confidence for auto-execution.
func (s *Switches) ConfidenceThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SetConfidenceThreshold updates the threshold. Values outside [0,1] are
// ignored.
func (s *Switches) SetConfidenceThreshold(v float64) {
	if v < 0 || v > 1 {
		return
	}
	s.mu.Lock()
	s.threshold = v
	s.mu.Unlock()
}

// RequiresApproval reports whether the action is on the explicit list.
func (s *Switches) RequiresApproval(action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approval[action]
}

// SetRequireApproval replaces the explicit-approval list.
func (s *Switches) SetRequireApproval(actions []string) {
	m := make(map[string]bool, len(actions))
	for _, a := range actions {
		if a != "" {
			m[a] = true
		}
	}
	s.mu.Lock()
	s.approval = m
	s.mu.Unlock()
}

// RequireApprovalList returns the explicit-approval list.
func (s *Switches) RequireApprovalList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.approval))
	for a := range s.approval {
		out = append(out, a)
	}
	return out
}
