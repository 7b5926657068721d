// Package scrape digs past the API's search horizon by walking the
// public web timeline, unauthenticated, and emitting tweet IDs for
// hydration.
//
// The timeline endpoint is not a documented API: it returns rendered
// HTML fragments inside a JSON envelope and pages by scroll cursor.
// ID extraction sits behind the Extractor seam so a markup change
// only touches one type. The walker paces itself with a randomized
// sleep between pages instead of quota admission, since the endpoint
// answers to the website's limits, not the API's.
//
// Example usage:
//
//	walker := scrape.NewWalker(nil, cfg.Scrape, "#ferguson", maxID, log)
//	hydrator := twitter.NewHydrator(client, walker.IDSource())
package scrape
