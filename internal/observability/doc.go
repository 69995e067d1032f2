// Package observability builds the zap logger and the Prometheus collectors
// for the activity monitor.
//
// Metrics are registered on a private registry exposed through Handler, so tests
// can build as many Metrics values as they like without global registration clashes.
// A nil *Metrics is valid and records nothing.
package observability
