// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state transitions and reconnect attempts
//   - Frame counts by class and decode errors
//   - Broadcast fan-out and subscriber counts
//   - Cache hits, misses, and writes
//   - Fallback generator emissions
package metrics
