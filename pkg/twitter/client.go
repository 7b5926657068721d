package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"twarchive/pkg/config"
	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"
	"twarchive/pkg/ratelimit"
	"twarchive/pkg/retry"
)

// Client issues authenticated requests against the API, keeping every
// quota-governed call inside the request budget.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	log        logger.Logger
	pacer      *ratelimit.Pacer
	tracker    *ratelimit.Tracker
	retryCfg   config.RetryConfig
	streamCfg  config.StreamConfig
	sleep      retry.SleepFunc // nil means real sleeps
}

// NewClient creates an API client on top of httpClient, which must
// already sign requests (OAuth 1.0a).
func NewClient(httpClient *http.Client, cfg *config.Config, log logger.Logger) *Client {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		headers: map[string]string{
			"User-Agent": "twarchive",
			"Accept":     "application/json",
		},
		log:       log,
		pacer:     ratelimit.NewPacer(cfg.RateLimit.PaceInterval),
		retryCfg:  cfg.Retry,
		streamCfg: cfg.Stream,
	}
	c.tracker = ratelimit.NewTracker(c.QuotaProbe, &ratelimit.TrackerConfig{
		PollInterval: cfg.RateLimit.PollInterval,
		ResetMargin:  cfg.RateLimit.ResetMargin,
	}, log)

	return c
}

// Ping refreshes the quota tracker once. It doubles as a credential
// check: a signing failure surfaces here before any archive work starts.
func (c *Client) Ping(ctx context.Context) (ratelimit.Snapshot, error) {
	return c.tracker.Probe(ctx)
}

// doRequest performs one HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.log.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.log.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}

	logger.LogRequest(c.log, req.Method, req.URL.String(), resp.StatusCode, duration)

	return resp, nil
}

// checkResponseStatus maps non-success statuses onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		c.log.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		c.log.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		c.log.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 400 {
			c.log.ErrorWithFields("unexpected API error", map[string]interface{}{
				"status": resp.StatusCode,
				"url":    resp.Request.URL.String(),
			})
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// execute runs one quota-governed API call: politeness pacing and quota
// admission before every attempt, linear backoff between attempts, and
// a fixed attempt budget. The request is rebuilt per attempt so bodies
// can be re-sent.
func (c *Client) execute(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var (
		body       []byte
		lastStatus int
		reqURL     string
	)

	op := func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		if err := c.tracker.Admit(ctx); err != nil {
			return err
		}

		req, err := build()
		if err != nil {
			return err
		}
		reqURL = req.URL.String()

		resp, err := c.doRequest(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		lastStatus = resp.StatusCode
		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Message: fmt.Sprintf("failed to read response body: %v", err),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}

	cfg := &retry.Config{
		MaxAttempts: c.retryCfg.MaxAttempts,
		Backoff: &retry.LinearBackoff{
			BaseDelay: c.retryCfg.BackoffBase,
			Increment: c.retryCfg.BackoffIncrement,
			MaxDelay:  c.retryCfg.BackoffMax,
		},
		// Every failing status spends budget here; only cancellation
		// short-circuits the attempt loop.
		RetryIf: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		Sleep:   c.sleep,
		Context: ctx,
		Logger:  c.log,
	}

	if err := retry.Do(op, cfg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &errs.FetchExhaustedError{
			URL:        reqURL,
			Attempts:   c.retryCfg.MaxAttempts,
			LastStatus: lastStatus,
			Err:        err,
		}
	}

	return body, nil
}

// SearchPage fetches one page of search results bounded by sinceID and
// maxID.
func (c *Client) SearchPage(ctx context.Context, query, sinceID, maxID string) (*SearchResponse, error) {
	searchURL := SearchURL(query, sinceID, maxID)

	c.log.DebugWithFields("fetching search page", map[string]interface{}{
		"query":    query,
		"since_id": sinceID,
		"max_id":   maxID,
	})

	body, err := c.execute(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, searchURL, nil)
	})
	if err != nil {
		return nil, err
	}

	var page SearchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse search page: %v", err),
		}
	}

	return &page, nil
}

// Lookup resolves up to HydrateBatchSize IDs into full tweets with one
// bulk request. Tweets come back in server order; IDs the server no
// longer knows are simply absent.
func (c *Client) Lookup(ctx context.Context, ids []string) ([]Tweet, error) {
	c.log.InfoWithFields("hydrating batch", map[string]interface{}{
		"count": len(ids),
	})

	form := url.Values{}
	form.Set("id", strings.Join(ids, ","))
	payload := form.Encode()

	body, err := c.execute(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, LookupURL(), strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var tweets []Tweet
	if err := json.Unmarshal(body, &tweets); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse lookup response: %v", err),
		}
	}

	return tweets, nil
}

// QuotaProbe fetches the current search quota over the raw transport.
// Going through execute would re-enter quota admission from inside the
// probe; the status endpoint is cheap and not itself paced.
func (c *Client) QuotaProbe(ctx context.Context) (ratelimit.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, RateLimitURL(), nil)
	if err != nil {
		return ratelimit.Snapshot{}, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return ratelimit.Snapshot{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ratelimit.Snapshot{}, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read quota status: %v", err),
			Code:    resp.StatusCode,
		}
	}

	var status RateLimitStatus
	if err := json.Unmarshal(body, &status); err == nil && status.Resources != nil {
		if window, ok := status.Resources.Search[SearchResource]; ok {
			return ratelimit.Snapshot{
				Remaining: window.Remaining,
				Reset:     time.Unix(window.Reset, 0),
			}, nil
		}
	}

	// The status endpoint can itself be rate limited; the quota then
	// only shows up in the response headers.
	remaining, remErr := strconv.Atoi(resp.Header.Get("x-rate-limit-remaining"))
	reset, resetErr := strconv.ParseInt(resp.Header.Get("x-rate-limit-reset"), 10, 64)
	if remErr != nil || resetErr != nil {
		if err := c.checkResponseStatus(resp); err != nil {
			return ratelimit.Snapshot{}, err
		}
		return ratelimit.Snapshot{}, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "quota missing from both body and headers",
			Code:    resp.StatusCode,
		}
	}

	return ratelimit.Snapshot{
		Remaining: remaining,
		Reset:     time.Unix(reset, 0),
	}, nil
}
