// Package workflow runs each pipeline component as an independent loop.
//
// A Component is prepared once and then driven cycle by cycle: the Manager
// calls RunCycle, records the outcome, and sleeps for the wait the cycle
// returned before starting the next one. Every cycle gets its own correlation
// id so log lines from one search scan or one delivery batch can be grouped.
// Components never call each other; they coordinate only through the item
// store.
//
// Loops report what they are doing through named phases. The manager sets the
// coarse "running" and "sleeping" phases; components refine them with
// EnterPhase (for example "poll" then "paginate" inside a search cycle). Status
// exposes the latest phase, cycle count, last error, and next wake time of
// every loop.
//
// Cycle errors are logged and retried after the cycle's wait. Only errors
// wrapped with Fatal, and any error from Prepare, stop the manager.
package workflow
