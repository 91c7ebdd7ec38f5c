// Package lock provides the keyed mutual-exclusion primitive used for
// cache stampede prevention.
//
// The [Locker] contract has three operations: a non-blocking acquire
// returning an opaque owner [Token], a token-checked release, and a held
// query. Contention (busy) and release-after-takeover (not owner) are
// reported as boolean outcomes, not errors.
//
// Locks carry a TTL. A holder whose TTL has elapsed is functionally gone
// even if never released: the next acquirer takes the lock over and gets
// a fresh token. This makes crashed holders harmless at the cost of
// possible duplicate work when a fetch outlives its lock TTL, so size lock
// TTLs to the slowest expected fetch.
//
// Two implementations are provided: [Memory], an injectable in-process
// table for single-instance deployments and tests, and [Redis], which
// coordinates across processes with SET NX and a compare-and-delete
// script. Both satisfy the same contract; the runtime depends only on
// [Locker].
package lock
