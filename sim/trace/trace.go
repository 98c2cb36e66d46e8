package trace

// TraceLevel controls how much of a run is recorded.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelPlans captures every executed plan.
	TraceLevelPlans TraceLevel = "plans"
	// TraceLevelFull also captures observation deliveries and container
	// representation switches.
	TraceLevelFull TraceLevel = "full"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:  true,
	TraceLevelPlans: true,
	TraceLevelFull:  true,
	"":              true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	RunID string
}

// SimulationTrace collects records during one simulation run.
type SimulationTrace struct {
	Config     TraceConfig
	Plans      []PlanRecord
	Deliveries []DeliveryRecord
	Switches   []SwitchRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Plans:      make([]PlanRecord, 0),
		Deliveries: make([]DeliveryRecord, 0),
		Switches:   make([]SwitchRecord, 0),
	}
}

func (st *SimulationTrace) capturesPlans() bool {
	return st != nil && (st.Config.Level == TraceLevelPlans || st.Config.Level == TraceLevelFull)
}

func (st *SimulationTrace) capturesAll() bool {
	return st != nil && st.Config.Level == TraceLevelFull
}

// RecordPlan appends a plan execution record. Dropped below TraceLevelPlans.
func (st *SimulationTrace) RecordPlan(record PlanRecord) {
	if st.capturesPlans() {
		st.Plans = append(st.Plans, record)
	}
}

// RecordDelivery appends an observation delivery record. Dropped below TraceLevelFull.
func (st *SimulationTrace) RecordDelivery(record DeliveryRecord) {
	if st.capturesAll() {
		st.Deliveries = append(st.Deliveries, record)
	}
}

// RecordSwitch appends a representation switch record. Dropped below TraceLevelFull.
func (st *SimulationTrace) RecordSwitch(record SwitchRecord) {
	if st.capturesAll() {
		st.Switches = append(st.Switches, record)
	}
}
