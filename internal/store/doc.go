// Package store is the SQLite fingerprint ledger. Every compilation can
// be recorded as a run: the fingerprints of its input, its configuration
// and the unit it produced, plus the unit's canonical bytes stored by
// content address.
//
// Two runs with the same key (input, config, compiler version, IR
// version) must record the same unit fingerprint. The ledger makes that
// checkable across processes and machines: copy the database, compile
// again, compare.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All queries order by seq, the insertion counter, so results are
// stable.
package store
