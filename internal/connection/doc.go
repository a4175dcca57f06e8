// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns at most one transport per logical channel, no matter how many
//     subscribers are mounted
//   - Classifies inbound frames and fans accepted snapshots out to every
//     subscriber in arrival order, writing through the hydration cache first
//   - Handles reconnection with exponential backoff up to a max-attempt
//     ceiling, then engages the synthetic fallback generator
//   - Suspends reconnection and clears the cache on an unauthorized signal
package connection
