package twitter

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// APIBaseURL is the base URL for the REST API
	APIBaseURL = "https://api.twitter.com/1.1"

	// StreamBaseURL is the base URL for the streaming API
	StreamBaseURL = "https://stream.twitter.com/1.1"

	// SearchEndpoint is the endpoint for paginated tweet search
	SearchEndpoint = "/search/tweets.json"

	// LookupEndpoint is the endpoint for bulk status lookup
	LookupEndpoint = "/statuses/lookup.json"

	// FilterEndpoint is the endpoint for the filtered live stream
	FilterEndpoint = "/statuses/filter.json"

	// RateLimitEndpoint is the endpoint reporting request quotas
	RateLimitEndpoint = "/application/rate_limit_status.json"

	// SearchResource is the quota resource governing search requests
	SearchResource = "/search/tweets"

	// PageSize is the number of results requested per search page
	PageSize = 100

	// HydrateBatchSize is the number of IDs resolved per lookup call
	HydrateBatchSize = 100
)

// SearchURL constructs the URL for one page of search results
func SearchURL(query, sinceID, maxID string) string {
	params := url.Values{}
	params.Set("count", strconv.Itoa(PageSize))
	params.Set("q", query)
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}
	if maxID != "" {
		params.Set("max_id", maxID)
	}

	return APIBaseURL + SearchEndpoint + "?" + params.Encode()
}

// LookupURL returns the URL for the bulk status lookup endpoint
func LookupURL() string {
	return APIBaseURL + LookupEndpoint
}

// FilterURL returns the URL for the streaming filter endpoint
func FilterURL() string {
	return StreamBaseURL + FilterEndpoint
}

// RateLimitURL constructs the URL for the quota status probe
func RateLimitURL() string {
	params := url.Values{}
	params.Set("resources", "search")

	return APIBaseURL + RateLimitEndpoint + "?" + params.Encode()
}

// StatusURL constructs the canonical web URL for a tweet
func StatusURL(screenName, id string) string {
	if screenName == "" || id == "" {
		return ""
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%s", screenName, id)
}
