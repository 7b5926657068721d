package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"twarchive/pkg/config"
	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"
)

// TimelineURL is the web search timeline endpoint. It serves results
// older than the API's search horizon, unauthenticated.
const TimelineURL = "https://twitter.com/i/search/timeline"

// timelineEnvelope is the JSON wrapper around one timeline page.
type timelineEnvelope struct {
	ItemsHTML    string `json:"items_html"`
	ScrollCursor string `json:"scroll_cursor"`
}

// Walker pages through the web search timeline for a query, emitting
// tweet IDs for hydration. It runs outside quota admission: the
// endpoint is not part of the API and is paced by the jitter sleep
// between pages instead.
type Walker struct {
	httpClient *http.Client
	extractor  Extractor
	cfg        config.ScrapeConfig

	query  string
	maxID  string
	cursor string

	buf     []string
	done    bool
	fetched bool
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func() time.Duration
	now     func() time.Time
	log     logger.Logger
}

// NewWalker creates a Walker for query. maxID is where the API search
// left off; it only anchors the log output, the timeline itself is
// paged by scroll cursor. A nil httpClient gets a default client; the
// walker never reuses the signed API transport.
func NewWalker(httpClient *http.Client, cfg config.ScrapeConfig, query, maxID string, log logger.Logger) *Walker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	w := &Walker{
		httpClient: httpClient,
		extractor:  AnchorExtractor{},
		cfg:        cfg,
		query:      query,
		maxID:      maxID,
		sleep:      sleepContext,
		now:        time.Now,
		log:        log,
	}
	w.jitter = func() time.Duration {
		span := int64(cfg.JitterMax - cfg.JitterMin)
		if span <= 0 {
			return cfg.JitterMin
		}
		return cfg.JitterMin + time.Duration(rand.Int63n(span+1))
	}
	return w
}

// Next returns the next scraped tweet ID. ErrScrapeExhausted means the
// timeline has no more results; any other error ends the walk with IDs
// already emitted standing.
func (w *Walker) Next(ctx context.Context) (string, error) {
	for len(w.buf) == 0 {
		if w.done {
			return "", errs.ErrScrapeExhausted
		}
		if err := w.fetchPage(ctx); err != nil {
			return "", err
		}
	}

	id := w.buf[0]
	w.buf = w.buf[1:]
	w.maxID = id
	return id, nil
}

// MaxID returns the ID most recently emitted.
func (w *Walker) MaxID() string {
	return w.maxID
}

// IDSource adapts the walker for batch hydration, translating the
// exhaustion sentinel into a normal end of input.
func (w *Walker) IDSource() func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		id, err := w.Next(ctx)
		if err == errs.ErrScrapeExhausted {
			return "", io.EOF
		}
		return id, err
	}
}

func (w *Walker) fetchPage(ctx context.Context) error {
	if w.fetched {
		// Pausing a random few seconds between pages makes the
		// timeline serve deeper results.
		d := w.jitter()
		w.log.DebugWithFields("sleeping between scrape pages", map[string]interface{}{
			"seconds": d.Seconds(),
		})
		if err := w.sleep(ctx, d); err != nil {
			w.done = true
			return err
		}
	}

	w.log.InfoWithFields("scraping tweets below bound", map[string]interface{}{
		"query":  w.query,
		"max_id": w.maxID,
	})

	reqURL := w.pageURL()
	w.log.WithField("url", reqURL).Debug("scraping timeline page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		w.done = true
		return err
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.done = true
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("timeline request failed: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.done = true
		return &errs.Error{
			Type:    errs.ClassifyStatus(resp.StatusCode),
			Message: fmt.Sprintf("timeline request failed with status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		w.done = true
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("timeline read failed: %v", err),
		}
	}

	var envelope timelineEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		w.done = true
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("timeline envelope parse failed: %v", err),
		}
	}

	ids := w.extractor.ExtractIDs(envelope.ItemsHTML)
	w.log.DebugWithFields("scraped tweet ids", map[string]interface{}{
		"count": len(ids),
	})

	if len(ids) == 0 {
		w.done = true
		return nil
	}

	w.buf = ids
	w.cursor = envelope.ScrollCursor
	w.fetched = true
	return nil
}

// pageURL builds the timeline request. last_note_ts is refreshed per
// page, matching what the web client sends while scrolling.
func (w *Walker) pageURL() string {
	params := url.Values{}
	params.Set("q", w.query)
	params.Set("f", "realtime")
	params.Set("src", "typd")
	params.Set("include_available_features", "1")
	params.Set("include_entities", "1")
	params.Set("oldest_unread_id", "0")
	params.Set("last_note_ts", strconv.FormatInt(w.now().UTC().Unix(), 10))
	if w.cursor != "" {
		params.Set("scroll_cursor", w.cursor)
	}

	return TimelineURL + "?" + params.Encode()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
