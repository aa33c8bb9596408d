// Package generic holds the canonical instantiation cache.
//
// The cache owns three tables: type-argument lists, generic class instances
// and generic method instances. Each table maps a structural key built from
// stable identities (module id plus token, or the id of an already canonical
// constituent) to exactly one live instance. Two requests with equal keys
// always observe the same pointer.
//
// Creation runs as one transaction against a metadata lock that may be shared
// with module registration. Two strategies are available:
//
//   - StrategyLocked holds the write lock across re-check, allocation and
//     publication, so concurrent creators of one key wait for the first.
//   - StrategyOptimistic allocates outside the lock and publishes with an
//     insert-if-absent step; losers drop their allocation and return the
//     winner.
//
// Instances are never evicted. Close releases all of them at once.
package generic
