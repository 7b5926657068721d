// Package retry provides backoff and retry logic for handling transient
// failures in network operations, particularly for Twitter API calls.
//
// Features:
//   - Multiple backoff strategies (exponential, linear, constant)
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Configurable retry predicates
//   - Injectable sleep function for deterministic tests
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return client.FetchPage(ctx, params)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.LinearBackoff{
//			BaseDelay: 2 * time.Second,
//			Increment: 2 * time.Second,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
//
//	// Typed results
//	page, err := retry.DoWithResult(func() (*twitter.SearchResponse, error) {
//		return client.Search(ctx, query)
//	}, cfg)
//
// The default predicate consults the error taxonomy in pkg/errors: network
// and server-side failures are retried, authentication and not-found
// failures are returned immediately. Callers that need different behavior
// (such as retrying every non-success response) supply their own RetryIf.
package retry
