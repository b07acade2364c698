// Package daemon coordinates the long-running lootwatch process.
//
// It ties the workflow manager and the optional item viewer into a single
// lifecycle. Each running component holds an exclusive flock at
// {data_dir}/locks/{component}.lock so two processes never poll or deliver
// for the same component at once; `lootwatch search` and `lootwatch run`
// therefore refuse to overlap on the search loop while `lootwatch stash` can
// run beside a search-only daemon.
//
// Under systemd the daemon reports READY once every loop is running and
// STOPPING when shutdown begins. Outside systemd the notifications are no-ops.
package daemon
