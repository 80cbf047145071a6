// Package gausspool implements spec.md section 4.4's pool and host set:
// idle/busy accounting, min/max sizing, idle pruning, target-session-
// attributes host selection, and bounded-wait rent/return. Grounded on
// pgx's ConnPool (conn_pool.go): a sync.Cond-guarded slice pair
// (allConnections/availableConnections) rather than an external generic
// pool library, generalized to multiple hosts and a per-host role cache.
package gausspool
