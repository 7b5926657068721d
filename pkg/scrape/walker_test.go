package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"twarchive/pkg/config"
	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: &mockRoundTripper{handler: handler}}
}

func envelopeResponse(t *testing.T, itemsHTML, cursor string) *http.Response {
	t.Helper()
	body, err := json.Marshal(timelineEnvelope{ItemsHTML: itemsHTML, ScrollCursor: cursor})
	require.NoError(t, err)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(string(body))),
		Header:     make(http.Header),
	}
}

func statusAnchors(ids ...string) string {
	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, `<li class="stream-item"><a href="/someone/status/%s" class="tweet-timestamp">link</a></li>`, id)
	}
	return sb.String()
}

// newTestWalker builds a walker with instant sleeps and a scripted
// transport.
func newTestWalker(cfg config.ScrapeConfig, query, maxID string, handler func(req *http.Request) (*http.Response, error)) (*Walker, *[]time.Duration) {
	w := NewWalker(newMockHTTPClient(handler), cfg, query, maxID, logger.NewTestLogger())
	slept := &[]time.Duration{}
	w.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	w.jitter = func() time.Duration { return 5 * time.Second }
	return w, slept
}

func drainWalker(t *testing.T, w *Walker) ([]string, error) {
	t.Helper()
	var ids []string
	for {
		id, err := w.Next(context.Background())
		if err == errs.ErrScrapeExhausted {
			return ids, nil
		}
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
}

func TestAnchorExtractorFindsStatusLinks(t *testing.T) {
	html := `
		<li><a href="/hashtag/ferguson?src=hash">#ferguson</a></li>
		<li><a href="/edsu/status/531893086814252161" class="tweet-timestamp">Nov 10</a></li>
		<li><a href="/edsu">profile</a>
		    <a href="/anarchivist/status/531892451100377088">Nov 10</a></li>
		<li><a href="https://twitter.com/edsu/status/1">absolute urls do not count</a></li>
	`

	ids := AnchorExtractor{}.ExtractIDs(html)
	assert.Equal(t, []string{"531893086814252161", "531892451100377088"}, ids)
}

func TestAnchorExtractorEmptyFragment(t *testing.T) {
	assert.Empty(t, AnchorExtractor{}.ExtractIDs(""))
	assert.Empty(t, AnchorExtractor{}.ExtractIDs("<div>no anchors here</div>"))
}

func TestWalkerPagesThroughTimeline(t *testing.T) {
	var requests []*http.Request
	pages := []struct {
		html   string
		cursor string
	}{
		{statusAnchors("900", "899"), "cursor-1"},
		{statusAnchors("898"), "cursor-2"},
		{"", "cursor-3"},
	}

	w, slept := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "901", func(req *http.Request) (*http.Response, error) {
		requests = append(requests, req)
		page := pages[len(requests)-1]
		return envelopeResponse(t, page.html, page.cursor), nil
	})

	ids, err := drainWalker(t, w)
	require.NoError(t, err)
	assert.Equal(t, []string{"900", "899", "898"}, ids)
	require.Len(t, requests, 3)

	// First request carries the fixed query parameters and no cursor
	q := requests[0].URL.Query()
	assert.Equal(t, "ferguson", q.Get("q"))
	assert.Equal(t, "realtime", q.Get("f"))
	assert.Equal(t, "typd", q.Get("src"))
	assert.Equal(t, "1", q.Get("include_available_features"))
	assert.Equal(t, "1", q.Get("include_entities"))
	assert.Equal(t, "0", q.Get("oldest_unread_id"))
	assert.NotEmpty(t, q.Get("last_note_ts"))
	assert.False(t, q.Has("scroll_cursor"))

	// Later requests resume from the cursor of the page before
	assert.Equal(t, "cursor-1", requests[1].URL.Query().Get("scroll_cursor"))
	assert.Equal(t, "cursor-2", requests[2].URL.Query().Get("scroll_cursor"))

	// The browser user agent goes out on every request
	for _, req := range requests {
		assert.Contains(t, req.Header.Get("User-Agent"), "Mozilla/5.0")
	}

	// One jitter sleep between each pair of fetches
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *slept)
}

func TestWalkerAdvancesMaxID(t *testing.T) {
	w, _ := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "901", func(req *http.Request) (*http.Response, error) {
		return envelopeResponse(t, statusAnchors("900", "899"), ""), nil
	})

	assert.Equal(t, "901", w.MaxID())

	id, err := w.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "900", id)
	assert.Equal(t, "900", w.MaxID())

	id, err = w.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "899", id)
	assert.Equal(t, "899", w.MaxID())
}

func TestWalkerRefreshesLastNoteTS(t *testing.T) {
	var stamps []string
	calls := 0
	w, _ := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "", func(req *http.Request) (*http.Response, error) {
		stamps = append(stamps, req.URL.Query().Get("last_note_ts"))
		calls++
		if calls == 1 {
			return envelopeResponse(t, statusAnchors("10"), "c"), nil
		}
		return envelopeResponse(t, "", ""), nil
	})

	base := time.Unix(1415800000, 0)
	w.now = func() time.Time {
		base = base.Add(10 * time.Second)
		return base
	}

	_, err := drainWalker(t, w)
	require.NoError(t, err)
	assert.Equal(t, []string{"1415800010", "1415800020"}, stamps)
}

func TestWalkerTransportFailureIsTerminal(t *testing.T) {
	calls := 0
	w, _ := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "", func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return envelopeResponse(t, statusAnchors("10", "9"), "c"), nil
		}
		return nil, errors.New("connection reset")
	})

	ids, err := drainWalker(t, w)
	require.Error(t, err)

	// The first page's IDs came through before the failure
	assert.Equal(t, []string{"10", "9"}, ids)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeNetwork, apiErr.Type)

	// The walk is over afterwards
	_, err = w.Next(context.Background())
	assert.ErrorIs(t, err, errs.ErrScrapeExhausted)
	assert.Equal(t, 2, calls)
}

func TestWalkerBadStatusIsTerminal(t *testing.T) {
	w, _ := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "", func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     make(http.Header),
		}, nil
	})

	_, err := w.Next(context.Background())
	require.Error(t, err)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeServerError, apiErr.Type)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Code)
}

func TestWalkerGarbageBodyIsTerminal(t *testing.T) {
	w, _ := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "", func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("<html>service interstitial</html>")),
			Header:     make(http.Header),
		}, nil
	})

	_, err := w.Next(context.Background())
	require.Error(t, err)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
}

func TestWalkerIDSourceEndsWithEOF(t *testing.T) {
	w, _ := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "", func(req *http.Request) (*http.Response, error) {
		return envelopeResponse(t, statusAnchors("3", "2", "1"), ""), nil
	})

	source := w.IDSource()
	var ids []string
	for {
		id, err := source(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"3", "2", "1"}, ids)
}

func TestWalkerJitterStaysInRange(t *testing.T) {
	cfg := config.DefaultConfig().Scrape
	w := NewWalker(nil, cfg, "ferguson", "", logger.NewTestLogger())

	for i := 0; i < 200; i++ {
		d := w.jitter()
		assert.GreaterOrEqual(t, d, cfg.JitterMin)
		assert.LessOrEqual(t, d, cfg.JitterMax)
	}
}

func TestWalkerSleepCancellation(t *testing.T) {
	calls := 0
	w, _ := newTestWalker(config.DefaultConfig().Scrape, "ferguson", "", func(req *http.Request) (*http.Response, error) {
		calls++
		return envelopeResponse(t, statusAnchors("9"), "c"), nil
	})
	w.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())

	id, err := w.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9", id)

	// The next page fetch sleeps first; a cancelled context cuts it short
	cancel()
	_, err = w.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
