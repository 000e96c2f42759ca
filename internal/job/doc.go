// Package job runs one remux from input path to finished output.
//
// A Runner validates options, runs preflight checks, takes an exclusive lock
// on the output, opens a backend session, and hands the session to a
// pipeline.Assembler (track wiring) and a monitor.Monitor (execution and
// progress). The manifest checkpoint and the history ledger are updated on
// every outcome. Job-level failures come back as *Error with a Kind the CLI
// maps onto exit codes.
package job
