// Package ratelimit keeps outbound requests inside the Twitter API's
// request quota.
//
// Two cooperating pieces:
//
// Tracker:
//   - Mirrors the server-side quota for the search resource
//   - Admit blocks while fewer than two requests remain, sleeping until
//     the advertised reset time plus a safety margin, or polling every
//     second when no reset time is known
//   - Re-probes the service after each sleep so a refreshed window is
//     noticed promptly
//
// Pacer:
//   - Enforces a minimum interval between consecutive requests
//   - Backed by golang.org/x/time/rate with a burst of one
//
// Usage:
//
//	tracker := ratelimit.NewTracker(client.QuotaProbe, nil, log)
//	pacer := ratelimit.NewPacer(time.Second)
//
//	if err := pacer.Wait(ctx); err != nil {
//		return err
//	}
//	if err := tracker.Admit(ctx); err != nil {
//		return err
//	}
//	// Perform the request.
package ratelimit
