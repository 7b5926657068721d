package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"twarchive/pkg/archive"
	"twarchive/pkg/auth"
	"twarchive/pkg/config"
	errs "twarchive/pkg/errors"
	"twarchive/pkg/logger"
	"twarchive/pkg/scrape"
	"twarchive/pkg/twitter"
)

// Options selects what a run retrieves. Query, Stream and HydrateFile
// are the three modes; exactly one applies, with Query doubling as the
// track phrase in stream mode and the archive name in all of them.
type Options struct {
	Query       string
	SinceID     string
	MaxID       string
	Scrape      bool
	Stream      bool
	HydrateFile string
}

// Archiver orchestrates one retrieval run: it decides where to resume,
// drives the chosen fetch mode and appends every record to the archive
// before the next fetch proceeds.
type Archiver struct {
	client *twitter.Client
	cfg    *config.Config
	log    logger.Logger

	// scrapeHTTP overrides the walker's transport
	scrapeHTTP *http.Client
	stdout     io.Writer
}

// New wires an Archiver from the environment or stored credentials.
// A full credential miss surfaces as *auth.MissingError before
// anything goes on the wire.
func New(cfg *config.Config, log logger.Logger) (*Archiver, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	creds, err := auth.Resolve(cfg.Auth.Profile)
	if err != nil {
		return nil, err
	}

	httpClient := creds.HTTPClient(context.Background())
	httpClient.Timeout = cfg.API.Timeout

	return NewWithClient(twitter.NewClient(httpClient, cfg, log), cfg, log), nil
}

// Option adjusts how an Archiver is wired.
type Option func(*Archiver)

// WithScrapeClient routes the scrape fallback through a custom HTTP
// client instead of the default unauthenticated one.
func WithScrapeClient(c *http.Client) Option {
	return func(a *Archiver) {
		a.scrapeHTTP = c
	}
}

// WithStdout redirects hydrate-to-stdout output, mainly for tests.
func WithStdout(w io.Writer) Option {
	return func(a *Archiver) {
		a.stdout = w
	}
}

// NewWithClient wires an Archiver around an existing API client.
func NewWithClient(client *twitter.Client, cfg *config.Config, log logger.Logger, opts ...Option) *Archiver {
	if log == nil {
		log = logger.GetLogger()
	}
	a := &Archiver{
		client: client,
		cfg:    cfg,
		log:    log,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one retrieval run. The quota probe doubles as the
// credential preflight: a rejected probe aborts before any mode
// starts.
func (a *Archiver) Run(ctx context.Context, opts Options) error {
	if opts.Query == "" && opts.HydrateFile == "" {
		return errors.New("nothing to do: need a query or a file of tweet ids")
	}
	if opts.Stream && opts.Query == "" {
		return errors.New("stream mode needs a query to track")
	}

	if _, err := a.client.Ping(ctx); err != nil {
		return fmt.Errorf("preflight quota check failed: %w", err)
	}

	var mode string
	var run func(context.Context, Options) error
	switch {
	case opts.Stream:
		mode, run = "stream", a.runStream
	case opts.HydrateFile != "":
		mode, run = "hydrate", a.runHydrate
	default:
		mode, run = "search", a.runSearch
	}

	logger.LogComponentStart(a.log, mode, map[string]interface{}{
		"query": opts.Query,
	})
	if err := run(ctx, opts); err != nil {
		logger.LogComponentStop(a.log, mode, err.Error())
		return err
	}
	logger.LogComponentStop(a.log, mode, "complete")
	return nil
}

// runSearch pages the search API from where the last run left off,
// then optionally chains into the scrape fallback for tweets older
// than the API horizon.
func (a *Archiver) runSearch(ctx context.Context, opts Options) error {
	sinceID := opts.SinceID
	if sinceID == "" {
		id, ok, err := archive.MostRecentID(a.cfg.Output.Directory, opts.Query)
		if err != nil {
			return err
		}
		if ok {
			sinceID = id
			a.log.InfoWithFields("resuming from last archive", map[string]interface{}{
				"query":    opts.Query,
				"since_id": sinceID,
			})
		}
	}

	writer, err := archive.NewWriter(a.cfg.Output.Directory, opts.Query, a.log)
	if err != nil {
		return err
	}
	defer writer.Close()

	pager := twitter.NewSearchPager(a.client, opts.Query, sinceID, opts.MaxID)
	for {
		tweet, err := pager.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, err := writer.Append(tweet); err != nil {
			return err
		}
	}

	// Resumed runs only fill the gap since the last archive; digging
	// further back would re-cover ground an earlier run already has.
	if opts.Scrape && sinceID == "" {
		a.scrapeOlder(ctx, opts.Query, pager.MaxID(), writer)
	}

	a.log.InfoWithFields("archive complete", map[string]interface{}{
		"query":   opts.Query,
		"records": writer.Count(),
		"file":    writer.Path(),
	})
	return nil
}

// scrapeOlder walks the web timeline below maxID and hydrates what it
// finds into the same archive. The walk is best effort: any failure
// ends it with everything already appended still standing.
func (a *Archiver) scrapeOlder(ctx context.Context, query, maxID string, writer *archive.Writer) {
	walker := scrape.NewWalker(a.scrapeHTTP, a.cfg.Scrape, query, maxID, a.log)
	hydrator := twitter.NewHydrator(a.client, walker.IDSource())

	for {
		tweet, err := hydrator.Next(ctx)
		if err == io.EOF {
			return
		}
		if err != nil {
			a.log.WithError(err).Error("scrape fallback ended early")
			return
		}
		if _, err := writer.Append(tweet); err != nil {
			a.log.WithError(err).Error("scrape fallback ended early")
			return
		}
	}
}

// runHydrate resolves IDs from a file. With a query the results go to
// the archive; without one they stream to stdout as JSON lines.
func (a *Archiver) runHydrate(ctx context.Context, opts Options) error {
	f, err := os.Open(opts.HydrateFile)
	if err != nil {
		return fmt.Errorf("failed to open id file: %w", err)
	}
	defer f.Close()

	hydrator := twitter.NewHydrator(a.client, twitter.ReaderIDSource(f))

	if opts.Query == "" {
		return a.hydrateToStdout(ctx, hydrator)
	}

	writer, err := archive.NewWriter(a.cfg.Output.Directory, opts.Query, a.log)
	if err != nil {
		return err
	}
	defer writer.Close()

	for {
		tweet, err := hydrator.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, err := writer.Append(tweet); err != nil {
			return err
		}
	}

	a.log.InfoWithFields("archive complete", map[string]interface{}{
		"query":   opts.Query,
		"records": writer.Count(),
		"file":    writer.Path(),
	})
	return nil
}

func (a *Archiver) hydrateToStdout(ctx context.Context, hydrator *twitter.Hydrator) error {
	for {
		tweet, err := hydrator.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		data, err := json.Marshal(tweet)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(a.stdout, "%s\n", data); err != nil {
			return err
		}
	}
}

// runStream archives the live filter stream until the connection ends
// or the run is interrupted.
func (a *Archiver) runStream(ctx context.Context, opts Options) error {
	writer, err := archive.NewWriter(a.cfg.Output.Directory, opts.Query, a.log)
	if err != nil {
		return err
	}
	defer writer.Close()

	stream, err := a.client.OpenFilterStream(ctx, opts.Query)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		tweet, err := stream.Next(ctx)
		if err == io.EOF {
			a.log.InfoWithFields("stream ended", map[string]interface{}{
				"query":   opts.Query,
				"records": writer.Count(),
			})
			return nil
		}
		if errors.Is(err, context.Canceled) {
			// Interruption is how a stream run is meant to stop
			a.log.InfoWithFields("stream stopped", map[string]interface{}{
				"query":   opts.Query,
				"records": writer.Count(),
			})
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := writer.Append(tweet); err != nil {
			return err
		}
	}
}

// IsFatalAuth reports whether err means the credentials were rejected
// and retrying cannot help.
func IsFatalAuth(err error) bool {
	var missing *auth.MissingError
	if errors.As(err, &missing) {
		return true
	}
	return errs.IsAuthError(err)
}
