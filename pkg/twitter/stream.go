package twitter

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"
)

// Stream is one long-lived connection to the filtered live stream.
// There is no automatic reconnect: when the connection ends, the
// stream ends, and starting over is the operator's call.
type Stream struct {
	resp   *http.Response
	body   io.ReadCloser
	reader *bufio.Reader
	log    logger.Logger
}

// OpenFilterStream connects to the filter stream for the given track
// query. Streaming bypasses quota admission; the endpoint is governed
// by connection limits, not the search quota.
func (c *Client) OpenFilterStream(ctx context.Context, track string) (*Stream, error) {
	form := url.Values{}
	form.Set("track", track)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, FilterURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Setting this by hand turns off Go's transparent gzip handling,
	// so the body is decompressed below.
	req.Header.Set("Accept-Encoding", "deflate, gzip")

	c.log.InfoWithFields("connecting to filter stream", map[string]interface{}{
		"track": track,
	})

	// The connection lives for the whole run and must not inherit the
	// API client's request timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("stream connect failed: %v", err),
		}
	}

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	body, err := decodeStreamBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &Stream{
		resp:   resp,
		body:   body,
		reader: bufio.NewReaderSize(body, c.streamCfg.MaxLineBytes),
		log:    c.log,
	}, nil
}

// Next returns the next parsed tweet from the stream. Blank keep-alive
// lines are skipped; lines that fail to parse, and lines longer than
// the read buffer, are logged and dropped. io.EOF means the connection
// ended.
func (s *Stream) Next(ctx context.Context) (*Tweet, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, tooLong, err := s.readLine()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Message: fmt.Sprintf("stream read failed: %v", err),
			}
		}
		if tooLong {
			s.log.ErrorWithFields("stream line exceeds buffer, dropping", map[string]interface{}{
				"limit": s.reader.Size(),
			})
			continue
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var tweet Tweet
		if err := json.Unmarshal(line, &tweet); err != nil {
			s.log.ErrorWithFields("json parse error on stream line", map[string]interface{}{
				"error": err.Error(),
				"line":  linePreview(line),
			})
			continue
		}
		return &tweet, nil
	}
}

// readLine reads one newline-delimited line. A line longer than the
// read buffer is consumed to its end and reported as too long rather
// than ending the stream.
func (s *Stream) readLine() (line []byte, tooLong bool, err error) {
	line, isPrefix, err := s.reader.ReadLine()
	if err != nil {
		return nil, false, err
	}
	if !isPrefix {
		return line, false, nil
	}
	for isPrefix {
		_, isPrefix, err = s.reader.ReadLine()
		if err != nil {
			return nil, true, err
		}
	}
	return nil, true, nil
}

// Close tears down the connection.
func (s *Stream) Close() error {
	if s.body != s.resp.Body {
		s.body.Close()
	}
	return s.resp.Body.Close()
}

func decodeStreamBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Message: fmt.Sprintf("bad gzip stream: %v", err),
			}
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func linePreview(line []byte) string {
	const max = 200
	if len(line) <= max {
		return string(line)
	}
	return string(line[:max]) + "..."
}
