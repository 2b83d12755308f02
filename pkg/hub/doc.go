// Package hub fans newly logged requests out to live WebSocket viewers.
//
// Each tenant actor owns one Hub. A viewer connects, subscribes to an
// endpoint id (or to all endpoints), and from then on receives one
// "request" message per inbound mock request. History is pulled on demand
// with "getHistory" and merged client-side by entry id.
//
// Delivery never blocks on a viewer: every connection drains its own
// bounded outbound queue, and a viewer whose queue is full, whose
// transport fails, or that stays silent past the keep-alive window is
// evicted without touching the others.
package hub
