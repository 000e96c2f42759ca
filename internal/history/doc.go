// Package history keeps a SQLite ledger of remux jobs.
//
// Every run, successful or not, is recorded with its routing outcome per
// track so `mmx history` can show what was linked, what was skipped, and why
// a job failed. The schema is embedded and versioned; a version mismatch is
// reported rather than migrated.
package history
