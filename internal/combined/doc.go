// Package combined provides interaction benchmarks that exercise the relay,
// the host dispatcher and a subsystem workload together.
//
// These benchmarks are more representative of real-world cost than the
// per-package micro-benchmarks, as they capture the full path from signal
// arrival to the subsystem noticing its flag.
package combined
