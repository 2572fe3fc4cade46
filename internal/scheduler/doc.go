// Package scheduler fires named tasks on cron schedules.
//
// A CronRegistry guarantees that at most one run per name is in flight:
// a tick that arrives while the previous run of the same name is still
// going is skipped and reported. Stopping crons only removes their
// triggers; runs that already started are allowed to finish so that a
// deployment is never left half applied.
//
// Expressions use the standard five cron fields with an optional leading
// seconds field, plus descriptors such as @hourly or @every 10m.
package scheduler
