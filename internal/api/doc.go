// Package api implements the one-shot resync client.
//
// The streaming channel is the primary state source; this client exists for
// the gaps. A consumer hydrating from a stale cache asks the resync
// endpoint for the current snapshot once instead of waiting for the next
// push. The endpoint returns the same payload shape as a state-bearing
// frame, so the decoder is shared with the classifier.
package api
