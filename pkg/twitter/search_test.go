package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// descendingIDs builds n tweet IDs counting down from start.
func descendingIDs(start, n int) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("%d", start-i)
	}
	return ids
}

func drainPager(t *testing.T, pager *SearchPager) []Tweet {
	t.Helper()
	var tweets []Tweet
	for {
		tweet, err := pager.Next(context.Background())
		if err == io.EOF {
			return tweets
		}
		require.NoError(t, err)
		tweets = append(tweets, *tweet)
	}
}

func TestSearchPagerWalksAllPages(t *testing.T) {
	pages := [][]string{
		descendingIDs(1000, 100),
		descendingIDs(900, 100),
		descendingIDs(800, 37),
		nil,
	}

	var maxIDs []string
	calls := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		maxIDs = append(maxIDs, req.URL.Query().Get("max_id"))
		require.Less(t, calls, len(pages), "paginator did not terminate")
		page := pages[calls]
		calls++
		return newResponse(http.StatusOK, searchBody(page...)), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	pager := NewSearchPager(client, "ferguson", "", "")
	tweets := drainPager(t, pager)

	assert.Equal(t, 4, calls)
	require.Len(t, tweets, 237)

	// Server order is preserved across pages
	assert.Equal(t, "1000", tweets[0].ID)
	assert.Equal(t, "901", tweets[99].ID)
	assert.Equal(t, "900", tweets[100].ID)
	assert.Equal(t, "764", tweets[236].ID)

	// Each request is bounded one past the previous page's oldest tweet
	assert.Equal(t, []string{"", "902", "802", "765"}, maxIDs)
	assert.Equal(t, "765", pager.MaxID())
}

func TestSearchPagerFixedPointTerminates(t *testing.T) {
	calls := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		switch calls {
		case 1:
			return newResponse(http.StatusOK, searchBody(descendingIDs(1000, 100)...)), nil
		default:
			// Only the inclusive-bound overlap tweet comes back, so
			// the recomputed bound stops moving
			return newResponse(http.StatusOK, searchBody("901")), nil
		}
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	pager := NewSearchPager(client, "ferguson", "", "")
	tweets := drainPager(t, pager)

	assert.Equal(t, 2, calls, "fixed point must terminate after one extra call")
	assert.Len(t, tweets, 100)
}

func TestSearchPagerEmptyFirstPage(t *testing.T) {
	calls := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		return newResponse(http.StatusOK, searchBody()), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	pager := NewSearchPager(client, "ferguson", "", "")
	tweets := drainPager(t, pager)

	assert.Equal(t, 1, calls)
	assert.Empty(t, tweets)
}

func TestSearchPagerKeepsSinceID(t *testing.T) {
	var sinceIDs []string
	calls := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		sinceIDs = append(sinceIDs, req.URL.Query().Get("since_id"))
		calls++
		if calls == 1 {
			return newResponse(http.StatusOK, searchBody("500", "499")), nil
		}
		return newResponse(http.StatusOK, searchBody()), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	pager := NewSearchPager(client, "ferguson", "42", "")
	tweets := drainPager(t, pager)

	assert.Len(t, tweets, 2)
	assert.Equal(t, []string{"42", "42"}, sinceIDs)
}

func TestSearchPagerPropagatesFetchFailure(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusInternalServerError, ""), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	pager := NewSearchPager(client, "ferguson", "", "")
	_, err = pager.Next(context.Background())
	require.Error(t, err)

	// The pager stays terminated afterwards
	_, err = pager.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestIncrementID(t *testing.T) {
	id, err := incrementID("499")
	require.NoError(t, err)
	assert.Equal(t, "500", id)

	_, err = incrementID("not-a-number")
	assert.Error(t, err)
}
