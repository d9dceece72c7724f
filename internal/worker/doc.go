// Package worker runs named recurring tasks and keeps a persisted state blob.
//
// A Worker holds two independent job registries:
//   - interval jobs (AddJob/StopJob), fired every fixed duration
//   - cron jobs (AddCronJob/StopCronJob), fired by a cron expression
//
// Both share one tick runner (robfig/cron) and the same guard: at most one
// invocation per key is in flight, and a tick that arrives while the previous
// invocation is still running is dropped. Task errors and panics are swallowed.
//
// Start loads the state blob and creates fresh registries; Stop cancels every
// job (cron first, then interval) and persists the blob. Stop does not wait for
// in-flight tasks.
package worker
