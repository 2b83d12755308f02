// Package server is the HTTP front door. It resolves the tenant from the
// request's subdomain (or the /m/{tenant}/ path prefix when no base
// domain is configured), pulls the tenant's actor from the registry, and
// hands the request over; everything else — matching, limits, logging,
// fanout — happens inside the actor.
package server
