// Package marketplace talks to the trade search, trade fetch, and guild stash
// endpoints of the item marketplace.
//
// Requests carry the POESESSID session cookie and the configured User-Agent,
// pass through a per-client courtesy rate limiter, and fail with *APIError
// whose Kind lets callers branch on rate limiting, rejected queries, and
// expired sessions without string matching.
package marketplace
