/*
Package metrics exposes Prometheus counters, gauges and histograms for
the navigation engine: navigation outcomes and latency, per-cache hit
rates and occupancy, and speculative prefetch/prerender results.

The collector owns its own registry so embedding applications can mount
the handler wherever they like; when disabled every record method is a
no-op.
*/
package metrics
