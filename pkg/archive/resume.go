package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// archivePattern matches archive files written for the query.
func archivePattern(query string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(url.QueryEscape(query)) + `-\d{14}\.json$`)
}

// MostRecentID infers where a previous run for the query left off by
// reading the newest tweet out of the archives in dir. Archives hold
// tweets newest-first, so that is the first line of the last non-empty
// file. ok is false when no usable archive exists.
func MostRecentID(dir, query string) (id string, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read archive directory: %w", err)
	}

	pattern := archivePattern(query)
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && pattern.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}

	// Fixed-width timestamps sort chronologically
	sort.Strings(names)

	for i := len(names) - 1; i >= 0; i-- {
		path := filepath.Join(dir, names[i])

		info, err := os.Stat(path)
		if err != nil {
			return "", false, fmt.Errorf("failed to stat archive: %w", err)
		}
		// An interrupted run can leave an empty archive behind
		if info.Size() == 0 {
			continue
		}

		id, err := firstRecordID(path)
		if err != nil {
			return "", false, err
		}
		if id == "" {
			return "", false, nil
		}
		return id, true, nil
	}

	return "", false, nil
}

// firstRecordID reads only the first line of an archive and returns
// the record's identifier.
func firstRecordID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read archive: %w", err)
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", nil
	}

	var record struct {
		IDStr string `json:"id_str"`
	}
	if err := json.Unmarshal(line, &record); err != nil {
		return "", fmt.Errorf("malformed first record in %s: %w", path, err)
	}
	return record.IDStr, nil
}
