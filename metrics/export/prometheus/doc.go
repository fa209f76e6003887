// Package prometheus exposes mtAuth counters and the login latency histogram
// as a prometheus.Collector.
//
// Counter names are prefixed mtauth_ and end in _total; the single histogram
// is mtauth_login_latency_seconds. The exporter never registers with the
// default registry: callers register it or mount [Exporter.Handler].
package prometheus
