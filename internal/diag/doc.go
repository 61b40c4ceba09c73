// Package diag defines the diagnostic model shared by graph loading, graph
// ordering and module propagation.
//
// Producers emit through a Reporter; BagReporter collects into a Bag which
// the CLI sorts and prints. Diagnostics are data only: formatting for humans
// happens in Format, coloring in the CLI.
//
// Severity matters for the exit status: only SevError fails a build. Targets
// whose module name cannot be derived are reported as SevInfo because
// skipping them is expected behaviour, not a defect in the graph.
package diag
