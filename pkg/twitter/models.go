package twitter

import (
	"encoding/json"
	"strconv"

	errs "twarchive/pkg/errors"
)

// Tweet is one retrieved status. The payload is preserved verbatim so
// archives hold exactly what the service returned; only the fields the
// archiver itself needs are extracted.
type Tweet struct {
	ID         string
	ScreenName string

	raw json.RawMessage
}

// UnmarshalJSON keeps the raw payload and pulls out the identifying fields.
func (t *Tweet) UnmarshalJSON(data []byte) error {
	var fields struct {
		IDStr string `json:"id_str"`
		ID    int64  `json:"id"`
		User  struct {
			ScreenName string `json:"screen_name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "malformed tweet payload: " + err.Error(),
		}
	}

	t.raw = append(t.raw[:0], data...)
	t.ID = fields.IDStr
	if t.ID == "" && fields.ID != 0 {
		t.ID = strconv.FormatInt(fields.ID, 10)
	}
	t.ScreenName = fields.User.ScreenName

	return nil
}

// MarshalJSON emits the payload exactly as received.
func (t Tweet) MarshalJSON() ([]byte, error) {
	if len(t.raw) == 0 {
		return []byte("null"), nil
	}
	return t.raw, nil
}

// StatusURL returns the canonical web URL for the tweet.
func (t *Tweet) StatusURL() string {
	return StatusURL(t.ScreenName, t.ID)
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Statuses       []Tweet         `json:"statuses"`
	SearchMetadata json.RawMessage `json:"search_metadata,omitempty"`
}

// RateLimitStatus is the body of the quota status endpoint. Resources
// is nil when the body lacks the quota section, which happens when the
// status endpoint is itself rate limited.
type RateLimitStatus struct {
	Resources *RateLimitResources `json:"resources"`
}

// RateLimitResources groups quota windows by resource family.
type RateLimitResources struct {
	Search map[string]RateLimitWindow `json:"search"`
}

// RateLimitWindow is the quota for a single resource.
type RateLimitWindow struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}
