package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"twarchive/pkg/archiver"
	"twarchive/pkg/auth"
	"twarchive/pkg/config"
	"twarchive/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string

	// Run flags
	outputDir   string
	sinceID     string
	maxID       string
	scrapeOlder bool
	streamMode  bool
	hydrateFile string
	profileName string
)

// rootCmd is the one command: retrieve tweets and archive them
var rootCmd = &cobra.Command{
	Use:   "twarchive [query]",
	Short: "Archive tweets matching a search query",
	Long: `twarchive retrieves tweets from the search API and appends them to a
line-oriented JSON archive, one raw tweet per line.

A plain run searches backwards from now until the API has nothing
older, pausing whenever the request quota runs dry. Running the same
query again picks up where the last archive stopped, so a cron entry
is all it takes to keep an archive current.

Credentials come from the CONSUMER_KEY, CONSUMER_SECRET, ACCESS_TOKEN
and ACCESS_TOKEN_SECRET environment variables (a .env file works too),
or from a profile stored with 'twarchive auth login'.`,
	Example: `  # Archive everything the search API has for a query
  twarchive "#ferguson"

  # Keep digging past the API horizon via the web timeline
  twarchive --scrape "#ferguson"

  # Archive the live stream for a query until interrupted
  twarchive --stream "#ferguson"

  # Rehydrate tweets from a file of tweet ids into an archive
  twarchive --hydrate ids.txt "#ferguson"

  # Rehydrate to stdout instead of an archive
  twarchive --hydrate ids.txt > tweets.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoot,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.twarchive.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for archive files (default: current directory)")
	rootCmd.Flags().StringVar(&sinceID, "since-id", "", "smallest tweet id to fetch (default: infer from the last archive)")
	rootCmd.Flags().StringVar(&maxID, "max-id", "", "largest tweet id to fetch")
	rootCmd.Flags().BoolVar(&scrapeOlder, "scrape", false, "after search is exhausted, scrape the web timeline for older tweets")
	rootCmd.Flags().BoolVar(&streamMode, "stream", false, "archive the live filter stream instead of searching")
	rootCmd.Flags().StringVar(&hydrateFile, "hydrate", "", "rehydrate tweets from a file of tweet ids")
	rootCmd.Flags().StringVar(&profileName, "profile", "", "stored credential profile to use (see 'twarchive auth')")

	rootCmd.MarkFlagsMutuallyExclusive("stream", "hydrate")

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate)
	rootCmd.SetVersionTemplate(`twarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func runRoot(cmd *cobra.Command, args []string) error {
	var query string
	if len(args) == 1 {
		query = strings.TrimSpace(args[0])
	}

	if query == "" && hydrateFile == "" {
		return errors.New("a query or --hydrate FILE is required")
	}
	if streamMode && query == "" {
		return errors.New("--stream needs a query to track")
	}

	// Past this point errors are operational, not usage
	cmd.SilenceUsage = true

	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output-dir"] = outputDir
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	if profileName != "" {
		flags["profile"] = profileName
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("twarchive starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := archiver.New(cfg, log)
	if err != nil {
		var missing *auth.MissingError
		if errors.As(err, &missing) {
			printCredentialHelp()
		}
		return err
	}

	err = a.Run(ctx, archiver.Options{
		Query:       query,
		SinceID:     sinceID,
		MaxID:       maxID,
		Scrape:      scrapeOlder,
		Stream:      streamMode,
		HydrateFile: hydrateFile,
	})
	if err != nil {
		if archiver.IsFatalAuth(err) {
			fmt.Fprintln(os.Stderr, "Authentication was rejected. Check that the credential environment variables hold valid values.")
		}
		log.WithError(err).Error("run failed")
		return err
	}

	return nil
}

func printCredentialHelp() {
	fmt.Fprintln(os.Stderr, "Please make sure the CONSUMER_KEY, CONSUMER_SECRET, ACCESS_TOKEN and")
	fmt.Fprintln(os.Stderr, "ACCESS_TOKEN_SECRET environment variables are set:")
	fmt.Fprintln(os.Stderr, "  export CONSUMER_KEY=your_consumer_key")
	fmt.Fprintln(os.Stderr, "  export CONSUMER_SECRET=your_consumer_secret")
	fmt.Fprintln(os.Stderr, "  export ACCESS_TOKEN=your_access_token")
	fmt.Fprintln(os.Stderr, "  export ACCESS_TOKEN_SECRET=your_access_token_secret")
	fmt.Fprintln(os.Stderr, "\nA .env file in the working directory or $HOME works as well, or store")
	fmt.Fprintln(os.Stderr, "them once with 'twarchive auth login'.")
}
