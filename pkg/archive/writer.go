package archive

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"twarchive/pkg/logger"
	"twarchive/pkg/twitter"
)

// FileName builds the archive name for a query at a moment in time.
// The query is URL-encoded so it is filesystem-safe, and the local
// timestamp is fixed-width so names sort chronologically.
func FileName(query string, now time.Time) string {
	return fmt.Sprintf("%s-%s.json", url.QueryEscape(query), now.Format("20060102150405"))
}

// Writer appends tweets to a line-oriented JSON archive, one record
// per line. Every record hits the file before the next fetch proceeds,
// so an interrupted run keeps everything retrieved up to that point.
// Records already written during the run are dropped on re-append;
// the search pager and the scrape chain both re-yield boundary IDs.
//
// Writer is not safe for concurrent use: a run is a single logical
// flow of fetch-then-append.
type Writer struct {
	path    string
	file    *os.File
	seenIDs map[string]bool
	written int
	log     logger.Logger
}

// NewWriter creates the output directory if needed and opens a fresh
// archive file for the query.
func NewWriter(dir, query string, log logger.Logger) (*Writer, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(query, time.Now()))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}

	log.InfoWithFields("writing tweets to archive", map[string]interface{}{
		"file": path,
	})

	return &Writer{
		path:    path,
		file:    file,
		seenIDs: make(map[string]bool),
		log:     log,
	}, nil
}

// Append writes one tweet as a single JSON line. It reports false for
// a tweet whose ID was already appended during this run.
func (w *Writer) Append(tweet *twitter.Tweet) (bool, error) {
	if tweet.ID != "" && w.seenIDs[tweet.ID] {
		w.log.WithField("id", tweet.ID).Debug("skipping duplicate tweet")
		return false, nil
	}

	data, err := json.Marshal(tweet)
	if err != nil {
		return false, fmt.Errorf("failed to encode tweet: %w", err)
	}

	// One unbuffered write per record: a crash can lose at most the
	// record in flight, never tear an earlier line.
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return false, fmt.Errorf("failed to append tweet: %w", err)
	}

	if tweet.ID != "" {
		w.seenIDs[tweet.ID] = true
	}
	w.written++
	logger.LogArchived(w.log, tweet.ScreenName, tweet.ID, tweet.StatusURL())

	return true, nil
}

// Path returns the archive file path.
func (w *Writer) Path() string {
	return w.path
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	return w.written
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.file.Close()
}
