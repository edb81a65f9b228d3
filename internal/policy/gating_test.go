package policy

import "testing"

func defaultSwitches() *Switches {
	return NewSwitches(true, 0.8, []string{"rollback_deployment"})
}

func TestDecide_NotificationBypassesAllGates(t *testing.T) {
	sw := NewSwitches(false, 0.99, []string{"send_notification"})
	d := Decide("send_notification", 0.0, sw)
	if !d.AutoExecute {
		t.Errorf("notification queued with reason %q, want auto-execute", d.Reason)
	}
}

func TestDecide_ReadOnlyBypassesAllGates(t *testing.T) {
	sw := NewSwitches(false, 0.99, nil)
	for _, action := range []string{"get_deployment_status", "get_pod_events", "query_prometheus", "check_node_health"} {
		d := Decide(action, 0.0, sw)
		if !d.AutoExecute {
			t.Errorf("%s queued with reason %q, want auto-execute", action, d.Reason)
		}
	}
}

func TestDecide_LowConfidenceQueues(t *testing.T) {
	d := Decide("restart_deployment", 0.5, defaultSwitches())
	if d.AutoExecute {
		t.Fatal("expected queue, got auto-execute")
	}
	if d.Reason != ReasonLowConfidence {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonLowConfidence)
	}
}

func TestDecide_ThresholdIsInclusive(t *testing.T) {
	d := Decide("restart_deployment", 0.8, defaultSwitches())
	if !d.AutoExecute {
		t.Errorf("confidence == threshold queued with reason %q, want auto-execute", d.Reason)
	}
}

func TestDecide_AutoActionDisabledQueues(t *testing.T) {
	sw := NewSwitches(false, 0.8, nil)
	d := Decide("restart_deployment", 0.95, sw)
	if d.AutoExecute || d.Reason != ReasonAutoActionDisabled {
		t.Errorf("got (%v, %q), want queued with %q", d.AutoExecute, d.Reason, ReasonAutoActionDisabled)
	}
}

func TestDecide_ExplicitApprovalListQueues(t *testing.T) {
	sw := NewSwitches(true, 0.8, []string{"scale_deployment"})
	d := Decide("scale_deployment", 0.95, sw)
	if d.AutoExecute || d.Reason != ReasonExplicitApproval {
		t.Errorf("got (%v, %q), want queued with %q", d.AutoExecute, d.Reason, ReasonExplicitApproval)
	}
}

func TestDecide_HighRiskQueues(t *testing.T) {
	d := Decide("drain_node", 0.99, defaultSwitches())
	if d.AutoExecute || d.Reason != ReasonHighRisk {
		t.Errorf("got (%v, %q), want queued with %q", d.AutoExecute, d.Reason, ReasonHighRisk)
	}
}

// First matching check wins: low confidence outranks the disabled switch,
// the explicit list, and risk tier.
func TestDecide_FirstMatchWins(t *testing.T) {
	sw := NewSwitches(false, 0.8, []string{"rollback_deployment"})
	d := Decide("rollback_deployment", 0.2, sw)
	if d.Reason != ReasonLowConfidence {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonLowConfidence)
	}

	sw2 := NewSwitches(false, 0.8, []string{"rollback_deployment"})
	d = Decide("rollback_deployment", 0.95, sw2)
	if d.Reason != ReasonAutoActionDisabled {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonAutoActionDisabled)
	}

	sw3 := NewSwitches(true, 0.8, []string{"rollback_deployment"})
	d = Decide("rollback_deployment", 0.95, sw3)
	if d.Reason != ReasonExplicitApproval {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonExplicitApproval)
	}
}

func TestDecide_MediumRiskAutoExecutes(t *testing.T) {
	for _, action := range []string{"scale_deployment", "restart_deployment", "delete_pod", "update_hpa"} {
		d := Decide(action, 0.9, defaultSwitches())
		if !d.AutoExecute {
			t.Errorf("%s queued with reason %q, want auto-execute", action, d.Reason)
		}
	}
}

func TestDecide_UnknownActionIsHighRisk(t *testing.T) {
	d := Decide("format_all_disks", 1.0, defaultSwitches())
	if d.AutoExecute {
		t.Fatal("unknown action auto-executed")
	}
	if d.Reason != ReasonHighRisk {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonHighRisk)
	}
}

func TestRiskOf_UnknownDefaultsHigh(t *testing.T) {
	if RiskOf("not_in_catalog") != RiskHigh {
		t.Error("unknown action should classify as high risk")
	}
	if RiskOf("scale_deployment") != RiskMedium {
		t.Error("scale_deployment should be medium risk")
	}
}

func TestSwitches_SetConfidenceThresholdIgnoresOutOfRange(t *testing.T) {
	sw := NewSwitches(true, 0.8, nil)
	sw.SetConfidenceThreshold(1.5)
	if got := sw.ConfidenceThreshold(); got != 0.8 {
		t.Errorf("threshold = %v after out-of-range set, want 0.8", got)
	}
	sw.SetConfidenceThreshold(-0.1)
	if got := sw.ConfidenceThreshold(); got != 0.8 {
		t.Errorf("threshold = %v after negative set, want 0.8", got)
	}
	sw.SetConfidenceThreshold(0.5)
	if got := sw.ConfidenceThreshold(); got != 0.5 {
		t.Errorf("threshold = %v, want 0.5", got)
	}
}
