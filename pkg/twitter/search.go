package twitter

import (
	"context"
	"fmt"
	"io"
	"strconv"

	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"
)

// SearchPager walks search results page by page. sinceID stays fixed
// for the whole run; maxID moves down past each page so every request
// is bounded by the oldest tweet already seen.
type SearchPager struct {
	client  *Client
	query   string
	sinceID string
	maxID   string
	done    bool

	buf []Tweet
	log logger.Logger
}

// NewSearchPager starts a paginated search for query. sinceID and
// maxID may be empty.
func NewSearchPager(client *Client, query, sinceID, maxID string) *SearchPager {
	client.log.InfoWithFields("starting search", map[string]interface{}{
		"query":    query,
		"since_id": sinceID,
		"max_id":   maxID,
	})

	return &SearchPager{
		client:  client,
		query:   query,
		sinceID: sinceID,
		maxID:   maxID,
		log:     client.log,
	}
}

// Next returns the next tweet in server order, fetching pages as
// needed. io.EOF signals that the search is exhausted.
func (p *SearchPager) Next(ctx context.Context) (*Tweet, error) {
	for len(p.buf) == 0 {
		if p.done {
			return nil, io.EOF
		}
		if err := p.fetchPage(ctx); err != nil {
			return nil, err
		}
	}

	t := p.buf[0]
	p.buf = p.buf[1:]
	return &t, nil
}

// MaxID returns the current lower pagination bound. After exhaustion
// this is the bound below which the API had nothing left.
func (p *SearchPager) MaxID() string {
	return p.maxID
}

func (p *SearchPager) fetchPage(ctx context.Context) error {
	page, err := p.client.SearchPage(ctx, p.query, p.sinceID, p.maxID)
	if err != nil {
		p.done = true
		return err
	}

	if len(page.Statuses) == 0 {
		p.done = true
		return nil
	}

	// The bound is inclusive, so the next page re-fetches the oldest
	// tweet: a page that recomputes the same bound holds nothing new.
	newMaxID, err := incrementID(page.Statuses[len(page.Statuses)-1].ID)
	if err != nil {
		p.done = true
		return err
	}
	if newMaxID == p.maxID {
		p.log.InfoWithFields("no new tweets below bound", map[string]interface{}{
			"query":  p.query,
			"max_id": p.maxID,
		})
		p.done = true
		return nil
	}

	p.maxID = newMaxID
	p.buf = page.Statuses
	return nil
}

// incrementID adds one to a decimal identifier string.
func incrementID(id string) (string, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("non-numeric tweet id %q", id),
		}
	}
	return strconv.FormatUint(n+1, 10), nil
}
