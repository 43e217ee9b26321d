// Package http executes outbound HTTP requests with bounded, jittered
// exponential-backoff retries.
//
// Retries
//   - Controlled by RetryPolicy (MaxRetries, InitialDelay, MaxDelay,
//     BackoffFactor, JitterFraction). A nil policy means DefaultRetryPolicy.
//   - Retries occur on:
//   - Transport errors (connection refused, DNS, timeouts)
//   - HTTP 429, 500, 502, 503 and 504 responses
//   - Every other status is returned to the caller unchanged, including 4xx.
//
// Backoff Strategy
//   - The base delay starts at InitialDelay and is multiplied by BackoffFactor
//     after each retry, capped at MaxDelay.
//   - Symmetric jitter is applied: the actual sleep is uniform in
//     [delay*(1-JitterFraction), delay*(1+JitterFraction)], never negative.
//
// Notes
//   - A fresh *http.Request is built on every attempt and the body buffer is
//     re-wrapped, so the caller's bytes are never consumed.
//   - Bodies of retried responses are drained and closed before the next attempt.
//   - Construction errors (bad method, relative or malformed URL, invalid policy)
//     are surfaced immediately and never retried.
//   - Cancelling the context during a backoff wait returns ctx.Err() at once.
package http
