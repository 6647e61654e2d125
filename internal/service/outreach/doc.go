// Package outreach implements the campaign sending subsystem: template
// rendering, per-email delivery, and the batched, rate-limited, resumable
// campaign processor.
//
// The service depends only on repository interfaces defined in this package
// and on the Provider delivery abstraction. Repository implementations live
// in repository/postgres. The database row is the single source of truth;
// the batch processor is designed to be invoked repeatedly (cron tick or UI
// poll) and to make bounded forward progress on each call.
package outreach
