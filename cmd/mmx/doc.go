// Package main hosts the mmx CLI entrypoint and command graph.
//
// The Cobra command tree is deliberately thin: remux parses flags into a
// job.Options and hands it to the job runner, history reads the sqlite
// ledger, and config scaffolds or validates the TOML file. Logs always go to
// stderr because stdout carries the JSON-lines progress stream.
package main
