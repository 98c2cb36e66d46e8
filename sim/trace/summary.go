package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	PlansExecuted    int
	Deliveries       int
	Switches         int
	DenseSwitches    int
	LastPlanTime     float64
	PlansByOwner     map[string]int // component → plans executed
	DeliveriesByKind map[string]int // observation kind → deliveries
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		PlansByOwner:     make(map[string]int),
		DeliveriesByKind: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.PlansExecuted = len(st.Plans)
	for _, p := range st.Plans {
		summary.PlansByOwner[p.Owner]++
		if p.Time > summary.LastPlanTime {
			summary.LastPlanTime = p.Time
		}
	}

	summary.Deliveries = len(st.Deliveries)
	for _, d := range st.Deliveries {
		summary.DeliveriesByKind[d.Kind]++
	}

	summary.Switches = len(st.Switches)
	for _, s := range st.Switches {
		if s.Representation == "dense" {
			summary.DenseSwitches++
		}
	}

	return summary
}
