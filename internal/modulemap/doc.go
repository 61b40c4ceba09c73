// Package modulemap attaches module descriptors to targets that do not produce
// one natively, so that module-aware compilation units can import them.
//
// # Model
//
//   - A Descriptor carries an optional module name (set only on the target
//     that defines the module) and the set of generated modulemap artifacts
//     visible at that target.
//   - Header libraries get a synthesized descriptor: a module name derived from
//     the target label (or a `swift_module=` tag) and a freshly written
//     modulemap listing their public and textual headers.
//   - Pass-through targets merge whatever their dependencies produced.
//
// # Ordering
//
// Propagator.Visit is a pure step of a graph fold. Callers must visit every
// dependency of a target before the target itself; the package keeps no state
// between calls and may be driven from several goroutines at once.
package modulemap
