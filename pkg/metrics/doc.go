// Package metrics exposes emulator activity in the Prometheus exposition
// format.
//
// A Registry owns a private prometheus.Registry so tests and embedded
// servers never collide with the global default registerer. It implements
// oauth.Recorder, so it can be handed straight to the token engine:
//
//	reg := metrics.NewRegistry()
//	issuer, _ := oauth.NewIssuer(oauth.IssuerConfig{Recorder: reg, ...})
//	router.Use(reg.Middleware(routePattern))
//	router.Handle("/metrics", reg.Handler())
//
// # Metrics
//
//   - mockidp_grants_total: token endpoint outcomes (labels: grant_type, outcome)
//   - mockidp_tokens_issued_total: signed tokens (labels: kind)
//   - mockidp_authorization_codes: outstanding authorization codes
//   - mockidp_refresh_tokens: outstanding refresh tokens
//   - mockidp_http_requests_total: HTTP requests (labels: method, route, status)
//   - mockidp_http_request_duration_seconds: HTTP latency (labels: method, route)
//   - mockidp_uptime_seconds: seconds since the registry was created
//
// Go runtime and process collectors are registered as well.
package metrics
