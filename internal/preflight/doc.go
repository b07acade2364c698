// Package preflight provides readiness checks for the directories, binaries,
// and local services lootwatch depends on.
//
// The CLI "lootwatch status" command shows every result. The daemon runs the
// same checks at startup and logs failures as warnings, since a missing
// browser only affects the render loop.
//
// Each check is gated by its config toggle -- disabled loops are skipped.
package preflight
