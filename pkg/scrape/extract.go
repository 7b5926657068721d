package scrape

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Extractor pulls ordered tweet IDs out of a rendered timeline
// fragment. The fragment format is undocumented and has changed
// before, so the walker only depends on this seam.
type Extractor interface {
	ExtractIDs(itemsHTML string) []string
}

// statusHref matches permalink paths of the form /<user>/status/<id>.
var statusHref = regexp.MustCompile(`^/.+/status/(\d+)`)

// AnchorExtractor finds tweet IDs in the href attributes of anchor
// tags, the shape the timeline fragment has carried so far.
type AnchorExtractor struct{}

// ExtractIDs tokenizes the fragment and returns the IDs of all status
// permalinks in document order. Malformed markup is tolerated; the
// tokenizer simply stops at the point it cannot read past.
func (AnchorExtractor) ExtractIDs(itemsHTML string) []string {
	var ids []string

	tz := html.NewTokenizer(strings.NewReader(itemsHTML))
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return ids
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tz.TagName()
			if len(name) != 1 || name[0] != 'a' || !hasAttr {
				continue
			}
			for {
				key, val, more := tz.TagAttr()
				if string(key) == "href" {
					if m := statusHref.FindStringSubmatch(string(val)); m != nil {
						ids = append(ids, m[1])
					}
					break
				}
				if !more {
					break
				}
			}
		}
	}
}
