// Package metrics exposes Prometheus instrumentation for the sync engine.
//
// A Collector owns its own registry so tests and multiple service instances never
// collide on global registration. All recording methods are safe on a nil *Collector,
// which lets components accept an optional collector without branching.
package metrics
