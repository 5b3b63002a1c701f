package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/causaloracle/internal/config"
	"github.com/rewired-gh/causaloracle/internal/logger"
	"github.com/rewired-gh/causaloracle/internal/models"
	"github.com/rewired-gh/causaloracle/internal/polymarket"
	"github.com/rewired-gh/causaloracle/internal/sources"
	"github.com/rewired-gh/causaloracle/internal/telegram"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "causaloracle",
		Short: "Causal-graph predictions for Polymarket events",
		Long: `causaloracle extracts cause-effect statements from source documents,
links them into a causal graph around a Polymarket event and turns the
chains that reach the event into probability predictions.

Runs are stored in SQLite so that shifts between runs can be detected
and pushed to Telegram.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (defaults and CAUSAL_ORACLE_* environment when empty)")

	root.AddCommand(
		newPredictCmd(opts),
		newGraphCmd(opts),
		newHistoryCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "causaloracle %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// load reads and validates the configuration and initialises logging.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// loadCorpus reads the source file. A missing file at the configured default
// path yields an empty corpus; an explicit path must exist.
func loadCorpus(cfg *config.Config, path string) (*sources.Corpus, error) {
	explicit := path != ""
	if !explicit {
		path = cfg.Sources.Path
	}
	corpus, err := sources.LoadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			logger.Warn("No source file at %s, predicting without sources", path)
			return &sources.Corpus{Path: path}, nil
		}
		return nil, err
	}
	logger.Debug("Loaded %d source documents from %s", len(corpus.Documents), path)
	return corpus, nil
}

func newPolymarketClient(cfg *config.Config) *polymarket.Client {
	return polymarket.NewClient(cfg.Polymarket.APIBaseURL, cfg.Polymarket.Timeout, polymarket.ClientConfig{
		MaxRetries:        cfg.Polymarket.MaxRetries,
		RetryDelayBase:    cfg.Polymarket.RetryDelayBase,
		RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
	})
}

// resolveEvent prefers the corpus' offline record and falls back to the
// Polymarket API.
func resolveEvent(ctx context.Context, corpus *sources.Corpus, client *polymarket.Client, id string) (models.Event, error) {
	if event, ok := corpus.Event(id); ok {
		return event, nil
	}
	event, err := client.FetchEvent(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	return *event, nil
}

// newTelegramClient returns nil when notifications are disabled.
func newTelegramClient(cfg *config.Config) (*telegram.Client, error) {
	if !cfg.Telegram.Enabled {
		return nil, nil
	}
	return telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
}
