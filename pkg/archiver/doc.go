// Package archiver drives a complete retrieval run against the
// archive on disk.
//
// The archiver package coordinates the resume planner, the search
// pager, the scrape fallback, batch hydration and the stream reader,
// feeding every record through one appender so a run produces one
// de-duplicated archive no matter which modes contributed.
//
// Modes:
//
//   - Search: resume from the newest archive (or an explicit since
//     bound), page the search API down to exhaustion, then optionally
//     chain into the web-timeline scrape for older tweets.
//   - Hydrate: resolve a file of tweet IDs; with a query the output is
//     archived, without one it streams to stdout as JSON lines.
//   - Stream: archive the live filter stream until the connection ends
//     or the run is interrupted.
//
// Usage:
//
//	a, err := archiver.New(cfg, log)
//	if err != nil {
//	    // archiver.IsFatalAuth(err) means fix credentials first
//	}
//
//	err = a.Run(ctx, archiver.Options{
//	    Query:  "#ferguson",
//	    Scrape: true,
//	})
//
// The run blocks for as long as retrieval takes, sleeping through
// quota windows when it has to. Cancelling ctx stops it between
// records; everything already appended stays on disk.
package archiver
