// Package engine implements the action scheduler of the compilation
// pipeline.
//
// A request is a queue of typed actions (processEntrypoint, transform,
// resolveImports, ...). The Scheduler dequeues them one at a time and
// dispatches each to its Handler, which may enqueue follow-ups.
//
// Queue semantics:
//   - at most one queued action per (type, file); a second one is merged
//     into it with a type-specific rule, for example the union of export
//     sets;
//   - order is by type weight, then reference count, then distance to the
//     nearest common ancestor entrypoint, then sequence number;
//   - sequence numbers come from a logical Clock, so a given set of
//     enqueues always drains in the same order.
//
// Handlers run on the scheduler goroutine. Concurrency happens inside a
// handler (fan-out of import resolution) and is joined before it returns.
//
// BuildError carries the codes every user-visible failure is reported
// with. ActionBudget bounds the number of dispatches per request.
package engine
