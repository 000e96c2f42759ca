// Package preflight provides readiness checks run before a remux job builds
// its pipeline.
//
// These checks run in two contexts:
//   - The job runner calls RunAll before opening a backend session. A failed
//     check aborts the job before any output file is created.
//   - The CLI "mmx remux --dry-run" prints every result.
//
// A missing element kind is reported with services.ErrBackendInit; every other
// failure is a configuration error.
package preflight
