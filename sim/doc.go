// Package sim provides the discrete-event kernel of the population simulator.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - scheduler.go: simulated time, the plan queue and the run loop
//     (init → plans with observation drains → close)
//   - context.go: everything a component can do during its turn
//   - routing.go: how one state change reaches exactly the indexes,
//     partitions and observers it can affect
//
// # Architecture
//
// The sim package wires the kernel; the algorithms live in sub-packages:
//   - sim/model/: identifiers, the tagged Value and comparison operators
//   - sim/filter/: predicate trees, the brute-force evaluator and the planner
//   - sim/population/: adaptive sparse/dense containers, indexes and partitions
//   - sim/store/: attribute, location, group and resource records
//   - sim/trace/: run trace recording
//   - sim/instrument/: Prometheus timing decorators for components
//   - sim/demo/: a small SIR epidemic built on the kernel
//
// # Turns and Access
//
// Exactly one component holds focus at a time. The Scheduler gives focus to
// a component for each lifecycle callback, plan and observation delivery.
// Every Context operation passes the AccessGuard first, which rejects reads
// during a write and writes during a read or another write, so a callback
// that re-enters the kernel mid-mutation fails instead of corrupting state.
package sim
