// Package actor hosts the per-tenant mock endpoint actor.
//
// One Actor owns everything a tenant has: the endpoint set, the resolved
// tier configuration, the rate counters, the request log, and the viewer
// hub. A Registry creates actors lazily on first traffic, keeps exactly
// one live instance per tenant, and evicts actors idle past a TTL; all
// durable state is reloaded from the tenant store on the next activation.
//
// Request orchestration is fixed: size check, endpoint/rule match, rate
// check, log append + broadcast, configured delay, response. Every inbound
// request produces exactly one log entry, including 404, 413, and 429
// outcomes, so tenants see their own failures in the live stream.
//
// The internal configuration surface under /__internal/ is gated by a
// shared credential and is never reachable as mock traffic; unauthorized
// calls leave no trace.
package actor
