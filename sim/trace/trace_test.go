package trace

import (
	"testing"
)

func TestSimulationTrace_RecordPlan_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for plans
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelPlans})

	// WHEN a plan record is recorded
	st.RecordPlan(PlanRecord{Time: 2.5, Owner: "global:clock", Key: "tick", Seq: 3})

	// THEN the trace contains one plan record with correct data
	if len(st.Plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(st.Plans))
	}
	if st.Plans[0].Owner != "global:clock" {
		t.Errorf("expected owner global:clock, got %s", st.Plans[0].Owner)
	}
	if st.Plans[0].Seq != 3 {
		t.Errorf("expected seq 3, got %d", st.Plans[0].Seq)
	}
}

func TestSimulationTrace_LevelFiltersRecords(t *testing.T) {
	tests := []struct {
		level          TraceLevel
		wantPlans      int
		wantDeliveries int
		wantSwitches   int
	}{
		{TraceLevelNone, 0, 0, 0},
		{"", 0, 0, 0},
		{TraceLevelPlans, 1, 0, 0},
		{TraceLevelFull, 1, 1, 1},
	}
	for _, tc := range tests {
		t.Run(string(tc.level), func(t *testing.T) {
			// GIVEN a trace at the given level
			st := NewSimulationTrace(TraceConfig{Level: tc.level})

			// WHEN one record of each type is offered
			st.RecordPlan(PlanRecord{Time: 1, Owner: "producer:p"})
			st.RecordDelivery(DeliveryRecord{Time: 1, Recipient: "global:g", Kind: "attribute"})
			st.RecordSwitch(SwitchRecord{Time: 1, Index: "sick", Representation: "dense"})

			// THEN only the records enabled by the level are kept
			if len(st.Plans) != tc.wantPlans {
				t.Errorf("plans: got %d, want %d", len(st.Plans), tc.wantPlans)
			}
			if len(st.Deliveries) != tc.wantDeliveries {
				t.Errorf("deliveries: got %d, want %d", len(st.Deliveries), tc.wantDeliveries)
			}
			if len(st.Switches) != tc.wantSwitches {
				t.Errorf("switches: got %d, want %d", len(st.Switches), tc.wantSwitches)
			}
		})
	}
}

func TestSimulationTrace_NilTrace_RecordIsNoop(t *testing.T) {
	// GIVEN no trace
	var st *SimulationTrace

	// WHEN records are offered THEN nothing panics
	st.RecordPlan(PlanRecord{})
	st.RecordDelivery(DeliveryRecord{})
	st.RecordSwitch(SwitchRecord{})
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"none", true},
		{"plans", true},
		{"full", true},
		{"", true},
		{"decisions", false},
		{"FULL", false},
	}
	for _, tc := range tests {
		if got := IsValidTraceLevel(tc.level); got != tc.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tc.level, got, tc.want)
		}
	}
}
