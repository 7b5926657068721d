package twitter

import (
	"bufio"
	"context"
	"io"
	"strings"

	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"
)

// IDSource yields identifier strings one at a time. io.EOF ends the
// sequence.
type IDSource func(ctx context.Context) (string, error)

// ReaderIDSource yields one ID per line of r, skipping blank lines.
func ReaderIDSource(r io.Reader) IDSource {
	scanner := bufio.NewScanner(r)
	return func(ctx context.Context) (string, error) {
		for scanner.Scan() {
			id := strings.TrimSpace(scanner.Text())
			if id == "" {
				continue
			}
			return id, nil
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
}

// SliceIDSource yields the given IDs in order.
func SliceIDSource(ids []string) IDSource {
	i := 0
	return func(ctx context.Context) (string, error) {
		if i >= len(ids) {
			return "", io.EOF
		}
		id := ids[i]
		i++
		return id, nil
	}
}

// Hydrator resolves a sequence of tweet IDs into full tweets,
// HydrateBatchSize at a time. Output follows server order within each
// batch; the server silently omits IDs it no longer serves.
type Hydrator struct {
	client *Client
	source IDSource

	batches int
	buf     []Tweet
	done    bool
	log     logger.Logger
}

// NewHydrator creates a Hydrator pulling IDs from source.
func NewHydrator(client *Client, source IDSource) *Hydrator {
	return &Hydrator{
		client: client,
		source: source,
		log:    client.log,
	}
}

// Next returns the next resolved tweet, issuing lookup calls as
// batches fill. io.EOF signals that the source is exhausted. A batch
// that permanently fails returns a HydrationBatchError and ends the
// run; tweets from earlier batches stand.
func (h *Hydrator) Next(ctx context.Context) (*Tweet, error) {
	for len(h.buf) == 0 {
		if h.done {
			return nil, io.EOF
		}
		if err := h.fetchBatch(ctx); err != nil {
			return nil, err
		}
	}

	t := h.buf[0]
	h.buf = h.buf[1:]
	return &t, nil
}

func (h *Hydrator) fetchBatch(ctx context.Context) error {
	ids := make([]string, 0, HydrateBatchSize)
	for len(ids) < HydrateBatchSize {
		id, err := h.source(ctx)
		if err == io.EOF {
			h.done = true
			break
		}
		if err != nil {
			h.done = true
			return err
		}

		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		h.done = true
		return nil
	}

	h.batches++
	tweets, err := h.client.Lookup(ctx, ids)
	if err != nil {
		h.done = true
		return &errs.HydrationBatchError{
			Batch: h.batches,
			Size:  len(ids),
			Err:   err,
		}
	}

	if missing := len(ids) - len(tweets); missing > 0 {
		h.log.WarnWithFields("lookup omitted identifiers", map[string]interface{}{
			"batch":     h.batches,
			"requested": len(ids),
			"resolved":  len(tweets),
			"missing":   missing,
		})
	}

	h.buf = tweets
	return nil
}
