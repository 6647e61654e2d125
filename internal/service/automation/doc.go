// Package automation runs the order-driven reminder sequences: quote
// follow-ups and cash-on-delivery invoice follow-ups.
//
// The engine is stateless between invocations. A scan pass reconciles
// automations against current ERP order state (creating and retiring rows),
// and a process pass advances every due automation by creating a one-off
// single-recipient campaign and sending it through the outreach batch
// processor. Both passes are idempotent and safe to run repeatedly; a failed
// item keeps its next_action_date and is retried on the next run.
package automation
