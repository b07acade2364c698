// Package main hosts the lootwatch CLI entrypoint and command graph.
//
// The Cobra command tree starts the polling, rendering, and dispatch loops,
// serves the item viewer, and exposes store maintenance such as suppressing
// backlog or retrying exhausted deliveries. Configuration resolution lives in
// commandContext so subcommands only deal with presentation.
package main
