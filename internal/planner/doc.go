// Package planner resolves the canonical output format for a batch before
// anything is decoded, and flags sources that will not survive the
// conversion unchanged.
//
// Explicit configuration always wins. Video fields left unset are taken
// from the first source; audio fields left unset are filled later by the
// concatenation pipeline from the first source that has audio
// (media.TargetFormat.ResolveAudio). Encoder option dictionaries are built
// here from the configured bitrate, GOP size and key=value options.
package planner
