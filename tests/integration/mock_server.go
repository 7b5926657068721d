package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Endpoint paths the archiver talks to
const (
	SearchPath   = "/1.1/search/tweets.json"
	LookupPath   = "/1.1/statuses/lookup.json"
	FilterPath   = "/1.1/statuses/filter.json"
	QuotaPath    = "/1.1/application/rate_limit_status.json"
	TimelinePath = "/i/search/timeline"
)

type errorSpec struct {
	status    int
	remaining int // -1 means every request
}

// MockTwitterServer simulates the search API, the lookup and stream
// endpoints and the web timeline with realistic pagination, plus
// per-endpoint error injection and request counting.
type MockTwitterServer struct {
	server *httptest.Server

	mu             sync.Mutex
	apiIDs         []int64 // ids the search API can see
	scrapeIDs      []int64 // ids only the web timeline knows about
	scrapePageSize int
	streamLines    []string
	depletedProbes int // this many quota probes report an empty window
	errorResponses map[string]*errorSpec
	pathCounts     map[string]int
	lastSearch     url.Values
	lastLookupIDs  string
	lastStreamForm url.Values
}

// NewMockTwitterServer starts a mock server with empty fixtures.
func NewMockTwitterServer() *MockTwitterServer {
	m := &MockTwitterServer{
		scrapePageSize: 4,
		errorResponses: make(map[string]*errorSpec),
		pathCounts:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SearchPath, m.handleSearch)
	mux.HandleFunc(LookupPath, m.handleLookup)
	mux.HandleFunc(FilterPath, m.handleFilter)
	mux.HandleFunc(QuotaPath, m.handleQuota)
	mux.HandleFunc(TimelinePath, m.handleTimeline)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.pathCounts[r.URL.Path]++
		spec := m.errorResponses[r.URL.Path]
		inject := spec != nil && spec.remaining != 0
		var status int
		if inject {
			status = spec.status
			if spec.remaining > 0 {
				spec.remaining--
			}
		}
		m.mu.Unlock()

		if inject {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"errors":[{"code":32,"message":"injected failure"}]}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return m
}

// Close shuts the server down.
func (m *MockTwitterServer) Close() {
	m.server.Close()
}

// Target returns the server address for transport rewriting.
func (m *MockTwitterServer) Target() *url.URL {
	u, err := url.Parse(m.server.URL)
	if err != nil {
		panic(err)
	}
	return u
}

// SetAPITweets replaces the ids the search API serves.
func (m *MockTwitterServer) SetAPITweets(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiIDs = append([]int64(nil), ids...)
}

// AddAPITweets adds ids to the search corpus, e.g. to simulate tweets
// arriving between two runs.
func (m *MockTwitterServer) AddAPITweets(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiIDs = append(m.apiIDs, ids...)
}

// SetScrapeTweets replaces the ids only the web timeline knows about.
func (m *MockTwitterServer) SetScrapeTweets(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrapeIDs = append([]int64(nil), ids...)
}

// SetScrapePageSize controls how many ids one timeline page carries.
func (m *MockTwitterServer) SetScrapePageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrapePageSize = n
}

// SetStreamLines sets the raw lines the filter stream emits before the
// connection ends.
func (m *MockTwitterServer) SetStreamLines(lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamLines = append([]string(nil), lines...)
}

// SetDepletedProbes makes the next n quota probes report an exhausted
// window whose reset is already in the past.
func (m *MockTwitterServer) SetDepletedProbes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depletedProbes = n
}

// SetErrorResponse makes an endpoint fail with the given status. A
// negative count keeps it failing for every request.
func (m *MockTwitterServer) SetErrorResponse(path string, status, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[path] = &errorSpec{status: status, remaining: count}
}

// PathCount reports how many requests an endpoint has received.
func (m *MockTwitterServer) PathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[path]
}

// LastSearchParams returns the query parameters of the most recent
// search request.
func (m *MockTwitterServer) LastSearchParams() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSearch
}

// LastLookupIDs returns the id form value of the most recent lookup.
func (m *MockTwitterServer) LastLookupIDs() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLookupIDs
}

// LastStreamForm returns the form of the most recent stream connect.
func (m *MockTwitterServer) LastStreamForm() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStreamForm
}

// tweetBody builds one full tweet document for an id.
func tweetBody(id int64) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"id_str":     strconv.FormatInt(id, 10),
		"text":       fmt.Sprintf("integration tweet %d", id),
		"created_at": time.Unix(1415829000+id, 0).UTC().Format("Mon Jan 02 15:04:05 -0700 2006"),
		"user": map[string]interface{}{
			"screen_name": "integration",
		},
		"retweet_count": id % 7,
	}
}

// handleSearch serves one page of results: ids at or below max_id,
// strictly above since_id, newest first, capped by count.
func (m *MockTwitterServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	m.mu.Lock()
	m.lastSearch = params
	ids := append([]int64(nil), m.apiIDs...)
	m.mu.Unlock()

	if params.Get("q") == "" {
		http.Error(w, `{"errors":[{"code":25,"message":"query parameter is missing"}]}`, http.StatusBadRequest)
		return
	}

	count := 100
	if c, err := strconv.Atoi(params.Get("count")); err == nil && c > 0 {
		count = c
	}

	var maxID, sinceID int64
	var haveMax, haveSince bool
	if v := params.Get("max_id"); v != "" {
		maxID, _ = strconv.ParseInt(v, 10, 64)
		haveMax = true
	}
	if v := params.Get("since_id"); v != "" {
		sinceID, _ = strconv.ParseInt(v, 10, 64)
		haveSince = true
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	statuses := []map[string]interface{}{}
	for _, id := range ids {
		if haveMax && id > maxID {
			continue
		}
		if haveSince && id <= sinceID {
			continue
		}
		statuses = append(statuses, tweetBody(id))
		if len(statuses) == count {
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"statuses": statuses,
		"search_metadata": map[string]interface{}{
			"count": count,
			"query": params.Get("q"),
		},
	})
}

// handleLookup resolves the posted ids in request order, silently
// omitting ids the server does not know, the way the real endpoint
// omits deleted and protected tweets.
func (m *MockTwitterServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.lastLookupIDs = r.PostForm.Get("id")
	known := make(map[int64]bool, len(m.apiIDs)+len(m.scrapeIDs))
	for _, id := range m.apiIDs {
		known[id] = true
	}
	for _, id := range m.scrapeIDs {
		known[id] = true
	}
	m.mu.Unlock()

	tweets := []map[string]interface{}{}
	for _, raw := range strings.Split(r.PostForm.Get("id"), ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || !known[id] {
			continue
		}
		tweets = append(tweets, tweetBody(id))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tweets)
}

// handleFilter emits the configured stream lines and closes, which the
// client observes as the stream ending.
func (m *MockTwitterServer) handleFilter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.lastStreamForm = r.PostForm
	lines := append([]string(nil), m.streamLines...)
	m.mu.Unlock()

	if r.PostForm.Get("track") == "" {
		http.Error(w, `{"errors":[{"code":44,"message":"track parameter is missing"}]}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		fmt.Fprintf(w, "%s\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleQuota reports the search window, draining the configured
// number of depleted probes first.
func (m *MockTwitterServer) handleQuota(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	depleted := m.depletedProbes > 0
	if depleted {
		m.depletedProbes--
	}
	m.mu.Unlock()

	remaining := 180
	reset := time.Now().Add(15 * time.Minute).Unix()
	if depleted {
		remaining = 0
		reset = time.Now().Add(-time.Second).Unix()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"resources": map[string]interface{}{
			"search": map[string]interface{}{
				"/search/tweets": map[string]interface{}{
					"limit":     180,
					"remaining": remaining,
					"reset":     reset,
				},
			},
		},
	})
}

// handleTimeline serves the scrape ids newest first in fixed-size
// pages, chained by scroll_cursor, ending with a page that holds no
// status links.
func (m *MockTwitterServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	m.mu.Lock()
	ids := append([]int64(nil), m.scrapeIDs...)
	pageSize := m.scrapePageSize
	m.mu.Unlock()

	if params.Get("q") == "" {
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	page := 0
	if cursor := params.Get("scroll_cursor"); cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "TWEET-"))
		if err != nil {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		page = n
	}

	start := page * pageSize
	end := start + pageSize
	if start > len(ids) {
		start = len(ids)
	}
	if end > len(ids) {
		end = len(ids)
	}

	var items strings.Builder
	items.WriteString("<ol>")
	for _, id := range ids[start:end] {
		fmt.Fprintf(&items, `<li><a href="/integration/status/%d">tweet %d</a></li>`, id, id)
	}
	items.WriteString("</ol>")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items_html":    items.String(),
		"scroll_cursor": fmt.Sprintf("TWEET-%d", page+1),
	})
}
