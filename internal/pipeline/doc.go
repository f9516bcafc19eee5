// Package pipeline runs one batch: resolve the inputs (expanding
// directories), validate them, probe every source, resolve the output
// format, then drive the concatenation with per-source progress logging
// and a final summary.
//
// The heavy collaborators (prober and media backend) come in through Deps
// so the whole flow can run against the in-memory backend in tests.
package pipeline
