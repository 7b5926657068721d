package twitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainHydrator(t *testing.T, h *Hydrator) ([]Tweet, error) {
	t.Helper()
	var tweets []Tweet
	for {
		tweet, err := h.Next(context.Background())
		if err == io.EOF {
			return tweets, nil
		}
		if err != nil {
			return tweets, err
		}
		tweets = append(tweets, *tweet)
	}
}

// lookupIDs decodes the id parameter of a lookup request body.
func lookupIDs(t *testing.T, req *http.Request) []string {
	t.Helper()
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	return strings.Split(form.Get("id"), ",")
}

func TestHydratorBatchesOfOneHundred(t *testing.T) {
	ids := descendingIDs(250, 250)

	var batchSizes []int
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		got := lookupIDs(t, req)
		batchSizes = append(batchSizes, len(got))

		return newResponse(http.StatusOK, searchBodyArray(got...)), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	h := NewHydrator(client, SliceIDSource(ids))
	tweets, err := drainHydrator(t, h)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 50}, batchSizes)
	require.Len(t, tweets, 250)
	assert.Equal(t, "250", tweets[0].ID)
	assert.Equal(t, "1", tweets[249].ID)
}

func TestHydratorReportsMissingIDs(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		got := lookupIDs(t, req)
		// The server no longer serves the last two IDs
		return newResponse(http.StatusOK, searchBodyArray(got[:len(got)-2]...)), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	h := NewHydrator(client, SliceIDSource([]string{"5", "4", "3", "2", "1"}))
	tweets, err := drainHydrator(t, h)
	require.NoError(t, err)

	assert.Len(t, tweets, 3)

	log := client.log.(*logger.TestLogger)
	assert.True(t, log.HasMessage("lookup omitted identifiers"))
	require.Len(t, log.GetMessagesByLevel("WARN"), 1)
	assert.Equal(t, 2, log.GetMessagesByLevel("WARN")[0].Fields["missing"])
}

func TestHydratorBatchFailureKeepsEarlierBatches(t *testing.T) {
	batch := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		got := lookupIDs(t, req)
		batch++
		if batch > 1 {
			return newResponse(http.StatusInternalServerError, ""), nil
		}
		return newResponse(http.StatusOK, searchBodyArray(got...)), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	h := NewHydrator(client, SliceIDSource(descendingIDs(150, 150)))
	tweets, err := drainHydrator(t, h)
	require.Error(t, err)

	// The first batch already came through
	assert.Len(t, tweets, 100)

	var batchErr *errs.HydrationBatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 2, batchErr.Batch)
	assert.Equal(t, 50, batchErr.Size)

	var exhausted *errs.FetchExhaustedError
	assert.True(t, errors.As(err, &exhausted))

	// The run is over afterwards
	_, err = h.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestHydratorTrimsAndSkipsBlanks(t *testing.T) {
	var got []string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		got = lookupIDs(t, req)
		return newResponse(http.StatusOK, searchBodyArray(got...)), nil
	})
	_, err := client.Ping(context.Background())
	require.NoError(t, err)

	h := NewHydrator(client, SliceIDSource([]string{" 10 ", "", "\t11\n", "   "}))
	tweets, err := drainHydrator(t, h)
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "11"}, got)
	assert.Len(t, tweets, 2)
}

func TestReaderIDSource(t *testing.T) {
	input := "123\n\n  456  \n789\n\n"
	source := ReaderIDSource(strings.NewReader(input))

	var ids []string
	for {
		id, err := source(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, []string{"123", "456", "789"}, ids)
}

// searchBodyArray builds a bare JSON array of tweets, the lookup
// endpoint's response shape.
func searchBodyArray(ids ...string) string {
	body := "["
	for i, id := range ids {
		if i > 0 {
			body += ","
		}
		body += tweetJSON(id, "edsu")
	}
	return body + "]"
}
