// Package storage persists one tenant's state in a private SQLite file.
//
// Each tenant owns exactly one TenantStore, opened lazily when the tenant's
// actor is created and closed when the actor is evicted. The store holds the
// endpoint set, the resolved tier configuration, and the request log; no two
// tenants ever share a database file, so there is no cross-tenant locking.
//
// Key types:
//
//   - TenantStore: SQLite-backed store for endpoints, rules, config, and logs
//
// TenantStore implements requestlog.Store, so the actor's log pipeline does
// not know whether it is writing to SQLite or the in-memory fallback.
package storage
