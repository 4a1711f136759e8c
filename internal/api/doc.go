// Package api hosts the HTTP server, middleware, and handlers for the site
// backend. Notable routes:
//   - POST /api/subscribe to join the newsletter.
//   - POST /api/track to record a first-party analytics event.
//   - GET /og/{name} to serve Open Graph images from the blob store.
//   - GET /healthz / readyz for container probes.
//   - GET /metrics for Prometheus scraping.
//
// In production every request whose host is neither the canonical host nor
// a preview deployment is permanently redirected to the canonical host.
package api
