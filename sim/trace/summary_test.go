package trace

import (
	"testing"
)

func TestSummarize_NilTrace_ReturnsZeroSummary(t *testing.T) {
	summary := Summarize(nil)
	if summary.PlansExecuted != 0 || summary.Deliveries != 0 || summary.Switches != 0 {
		t.Errorf("expected zero summary, got %+v", summary)
	}
	if summary.PlansByOwner == nil || summary.DeliveriesByKind == nil {
		t.Error("expected non-nil maps")
	}
}

func TestSummarize_CountsByOwnerAndKind(t *testing.T) {
	// GIVEN a full trace with plans, deliveries and switches
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelFull})
	st.RecordPlan(PlanRecord{Time: 1, Owner: "producer:a"})
	st.RecordPlan(PlanRecord{Time: 4, Owner: "producer:a"})
	st.RecordPlan(PlanRecord{Time: 3, Owner: "global:b"})
	st.RecordDelivery(DeliveryRecord{Kind: "attribute"})
	st.RecordDelivery(DeliveryRecord{Kind: "attribute"})
	st.RecordDelivery(DeliveryRecord{Kind: "region"})
	st.RecordSwitch(SwitchRecord{Representation: "dense"})
	st.RecordSwitch(SwitchRecord{Representation: "sparse"})
	st.RecordSwitch(SwitchRecord{Representation: "dense"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN totals and breakdowns match the records
	if summary.PlansExecuted != 3 {
		t.Errorf("PlansExecuted: got %d, want 3", summary.PlansExecuted)
	}
	if summary.PlansByOwner["producer:a"] != 2 || summary.PlansByOwner["global:b"] != 1 {
		t.Errorf("PlansByOwner: got %v", summary.PlansByOwner)
	}
	if summary.LastPlanTime != 4 {
		t.Errorf("LastPlanTime: got %v, want 4", summary.LastPlanTime)
	}
	if summary.Deliveries != 3 || summary.DeliveriesByKind["attribute"] != 2 {
		t.Errorf("deliveries: got %d %v", summary.Deliveries, summary.DeliveriesByKind)
	}
	if summary.Switches != 3 || summary.DenseSwitches != 2 {
		t.Errorf("switches: got %d (dense %d), want 3 (dense 2)", summary.Switches, summary.DenseSwitches)
	}
}
