package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"twarchive/pkg/logger"
	"twarchive/pkg/twitter"
)

func testTweet(t *testing.T, id, screenName string) *twitter.Tweet {
	t.Helper()
	data := fmt.Sprintf(`{"id_str":%q,"text":"tweet %s","user":{"screen_name":%q,"followers_count":7}}`, id, id, screenName)

	var tweet twitter.Tweet
	if err := json.Unmarshal([]byte(data), &tweet); err != nil {
		t.Fatalf("Failed to build test tweet: %v", err)
	}
	return &tweet
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestWriterAppendsOneLinePerRecord(t *testing.T) {
	tempDir := t.TempDir()

	writer, err := NewWriter(tempDir, "ferguson", logger.NewTestLogger())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	for _, id := range []string{"1000", "999", "998"} {
		appended, err := writer.Append(testTweet(t, id, "edsu"))
		if err != nil {
			t.Fatalf("Failed to append tweet %s: %v", id, err)
		}
		if !appended {
			t.Errorf("Expected tweet %s to be appended", id)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	if writer.Count() != 3 {
		t.Errorf("Expected 3 records, got %d", writer.Count())
	}

	lines := readLines(t, writer.Path())
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}

	// Round trip: every line decodes back to the identifier and author
	// it was written with
	wantIDs := []string{"1000", "999", "998"}
	for i, line := range lines {
		var tweet twitter.Tweet
		if err := json.Unmarshal([]byte(line), &tweet); err != nil {
			t.Fatalf("Line %d does not decode: %v", i, err)
		}
		if tweet.ID != wantIDs[i] {
			t.Errorf("Line %d: expected id %s, got %s", i, wantIDs[i], tweet.ID)
		}
		if tweet.ScreenName != "edsu" {
			t.Errorf("Line %d: expected author edsu, got %s", i, tweet.ScreenName)
		}
	}
}

func TestWriterFileName(t *testing.T) {
	tempDir := t.TempDir()

	writer, err := NewWriter(tempDir, "#ferguson", logger.NewTestLogger())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	name := filepath.Base(writer.Path())
	pattern := regexp.MustCompile(`^%23ferguson-\d{14}\.json$`)
	if !pattern.MatchString(name) {
		t.Errorf("Archive name %q does not match expected pattern", name)
	}
}

func TestWriterSkipsDuplicates(t *testing.T) {
	tempDir := t.TempDir()

	writer, err := NewWriter(tempDir, "ferguson", logger.NewTestLogger())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	if _, err := writer.Append(testTweet(t, "901", "edsu")); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	// The +1 pagination bound re-fetches the boundary tweet
	appended, err := writer.Append(testTweet(t, "901", "edsu"))
	if err != nil {
		t.Fatalf("Failed to append duplicate: %v", err)
	}
	if appended {
		t.Error("Expected duplicate to be skipped")
	}

	if writer.Count() != 1 {
		t.Errorf("Expected 1 record, got %d", writer.Count())
	}
	if lines := readLines(t, writer.Path()); len(lines) != 1 {
		t.Errorf("Expected 1 line in archive, got %d", len(lines))
	}
}

func TestWriterCreatesOutputDir(t *testing.T) {
	tempDir := t.TempDir()
	outDir := filepath.Join(tempDir, "archives", "ferguson")

	writer, err := NewWriter(outDir, "ferguson", logger.NewTestLogger())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	if _, err := os.Stat(outDir); err != nil {
		t.Errorf("Expected output directory to exist: %v", err)
	}
}

func TestWriterRecordsSurviveMidRunCrash(t *testing.T) {
	tempDir := t.TempDir()

	writer, err := NewWriter(tempDir, "ferguson", logger.NewTestLogger())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	if _, err := writer.Append(testTweet(t, "1000", "edsu")); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	// Without closing the writer, the record is already on disk
	f, err := os.Open(writer.Path())
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("Expected a complete line before Close")
	}

	var tweet twitter.Tweet
	if err := json.Unmarshal(scanner.Bytes(), &tweet); err != nil {
		t.Fatalf("Line does not decode: %v", err)
	}
	if tweet.ID != "1000" {
		t.Errorf("Expected id 1000, got %s", tweet.ID)
	}

	writer.Close()
}
