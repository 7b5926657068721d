// Package twitter provides a client for the v1.1 search, lookup and
// streaming APIs.
//
// This package includes:
//   - An OAuth-ready HTTP client with quota admission, request pacing
//     and a fixed retry budget on every call
//   - A search pager that walks result pages oldest-first using max_id
//   - A hydrator that resolves bare tweet IDs in batches of 100
//   - A long-lived filter stream reader with gzip/deflate decoding
//   - Raw-preserving tweet models, so archived payloads stay byte-exact
//
// Example usage:
//
//	client := twitter.NewClient(httpClient, cfg, log)
//
//	// Verify credentials and seed the quota tracker
//	if _, err := client.Ping(ctx); err != nil {
//	    // Handle authentication failure
//	}
//
//	// Page through search results
//	pager := twitter.NewSearchPager(client, "#ferguson", sinceID, "")
//	for {
//	    tweet, err := pager.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        // A page that exhausts its retry budget ends the walk
//	    }
//	    // Archive tweet
//	}
//
// Every search and lookup call first waits for the pacer, then asks
// the quota tracker for admission, and only then goes on the wire, so
// callers never have to think about the rate limit themselves.
package twitter
