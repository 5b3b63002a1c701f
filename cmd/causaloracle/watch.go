package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/causaloracle/internal/causality"
	"github.com/rewired-gh/causaloracle/internal/config"
	"github.com/rewired-gh/causaloracle/internal/logger"
	"github.com/rewired-gh/causaloracle/internal/models"
	"github.com/rewired-gh/causaloracle/internal/monitor"
	"github.com/rewired-gh/causaloracle/internal/polymarket"
	"github.com/rewired-gh/causaloracle/internal/sources"
	"github.com/rewired-gh/causaloracle/internal/storage"
	"github.com/rewired-gh/causaloracle/internal/telegram"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		sourcesPath string
		once        bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-predict watched events periodically and alert on shifts",
		Long: `Every watch.interval, rebuilds the causal graph of each event in
watch.event_ids (or the top polymarket.limit active events when empty),
stores the run, detects shifts against the previous run and sends new
shifts to Telegram.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			w, err := newWatcher(cfg, sourcesPath)
			if err != nil {
				return err
			}
			defer w.store.Close()

			if once {
				err := w.cycle(cmd.Context())
				w.rotate()
				return err
			}
			w.loop(cmd.Context())
			return nil
		},
	}
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "source document file (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

type watcher struct {
	cfg         *config.Config
	sourcesPath string
	engine      *causality.Engine
	poly        *polymarket.Client
	store       *storage.Storage
	mon         *monitor.Monitor
	tg          *telegram.Client
}

func newWatcher(cfg *config.Config, sourcesPath string) (*watcher, error) {
	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Debug("Storage opened at %s", cfg.Storage.DBPath)

	tg, err := newTelegramClient(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	if tg != nil {
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	return &watcher{
		cfg:         cfg,
		sourcesPath: sourcesPath,
		engine:      causality.NewEngine(cfg.EngineOptions()),
		poly:        newPolymarketClient(cfg),
		store:       store,
		mon:         monitor.New(store, cfg.Watch.ShiftThreshold),
		tg:          tg,
	}, nil
}

// loop runs a cycle immediately and then on every tick until ctx is done.
func (w *watcher) loop(ctx context.Context) {
	logger.Info("Starting watch (interval: %v, events: %d, threshold: %.2f, cooldown: %v)",
		w.cfg.Watch.Interval, len(w.cfg.Watch.EventIDs), w.cfg.Watch.ShiftThreshold, w.cfg.Watch.Cooldown)

	ticker := time.NewTicker(w.cfg.Watch.Interval)
	defer ticker.Stop()

	consecutiveFailures := 0
	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Watch cycle failed: %v", err)
			if consecutiveFailures == 1 && w.tg != nil {
				if sendErr := w.tg.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && w.tg != nil {
			if sendErr := w.tg.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	logger.Debug("Running initial watch cycle")
	handleCycleResult(w.cycle(ctx))
	w.rotate()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch stopped")
			return
		case <-ticker.C:
			logger.Debug("Starting scheduled watch cycle")
			handleCycleResult(w.cycle(ctx))
			w.rotate()
		}
	}
}

func (w *watcher) rotate() {
	deleted, err := w.store.RotateRuns(w.cfg.Storage.MaxRunsPerEvent)
	if err != nil {
		logger.Warn("Failed to rotate runs: %v", err)
		return
	}
	if deleted > 0 {
		logger.Debug("Rotated %d old runs", deleted)
	}
}

// cycle predicts every watched event, records the runs and notifies new shifts.
func (w *watcher) cycle(ctx context.Context) error {
	startTime := time.Now()

	corpus, err := loadCorpus(w.cfg, w.sourcesPath)
	if err != nil {
		return err
	}
	events, err := w.events(ctx, corpus)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		logger.Warn("No events to watch")
		return nil
	}

	runs := make([]*models.Run, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Engine.Workers)
	for i := range events {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runs[i] = w.engine.Run(corpus.ForEvent(events[i].ID), events[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var shifts []models.Shift
	stored := 0
	for _, run := range runs {
		shift, err := w.mon.Process(run)
		if err != nil {
			logger.Warn("Failed to record run for event %s: %v", run.EventID, err)
			continue
		}
		stored++
		if shift != nil {
			shifts = append(shifts, *shift)
		}
	}
	if stored == 0 {
		return fmt.Errorf("failed to record any of %d runs", len(runs))
	}

	shifts = w.mon.FilterRecentlySent(shifts, w.cfg.Watch.Cooldown)
	if len(shifts) > 0 && w.tg != nil {
		if err := w.tg.SendShifts(shifts); err != nil {
			return fmt.Errorf("failed to send shift alert: %w", err)
		}
		w.mon.RecordNotified(shifts)
		logger.Info("Sent alert with %d shifts", len(shifts))
	}

	logger.Info("Watch cycle completed in %v: %d events, %d runs stored, %d shifts to notify",
		time.Since(startTime).Round(time.Millisecond), len(events), stored, len(shifts))
	return nil
}

// events resolves the watched event ids, or fetches the top active events when
// none are configured. Unresolvable ids are skipped.
func (w *watcher) events(ctx context.Context, corpus *sources.Corpus) ([]models.Event, error) {
	if len(w.cfg.Watch.EventIDs) == 0 {
		events, err := w.poly.FetchEvents(ctx, w.cfg.Polymarket.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events: %w", err)
		}
		return events, nil
	}

	events := make([]models.Event, 0, len(w.cfg.Watch.EventIDs))
	for _, id := range w.cfg.Watch.EventIDs {
		event, err := resolveEvent(ctx, corpus, w.poly, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Skipping event %s: %v", id, err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
