// Package server wires the engine, persistence, the action dispatcher and a server
// transport into one process and owns their lifecycle.
//
// Startup:
//
//   - The snapshot store is opened and the engine is recovered from the latest
//     snapshot before any listener accepts connections. An unreadable snapshot stops
//     startup unless BootstrapFresh is configured.
//   - Every accepted connection gets its own action.Session, wrapped to record
//     query metrics.
//
// Running:
//
//	The transport, the periodic snapshot loop and the optional metrics endpoint run
//	as tasks of one errgroup. Metrics use VictoriaMetrics and are served in the
//	Prometheus text format on /metrics.
//
// Teardown (context cancelled or a task failed):
//
//  1. stop accepting and close every connection, in-flight queries finish
//  2. write the final snapshot and close the store
//
// A failed final snapshot is returned from Serve, the caller must exit non zero.
package server
