// Package trace records what happened during a simulation run: executed
// plans, observation deliveries and population container switches.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// PlanRecord captures one executed plan.
type PlanRecord struct {
	Time  float64
	Owner string
	Key   string // empty for unkeyed plans
	Seq   uint64
}

// DeliveryRecord captures one observation handed to a recipient.
type DeliveryRecord struct {
	Time      float64
	Recipient string
	Kind      string
	Target    string
	Person    int
}

// SwitchRecord captures a sparse/dense switch of an index or partition bucket.
type SwitchRecord struct {
	Time           float64
	Index          string // index or partition key
	Partition      bool
	Representation string
	Size           int
	Population     int
}
