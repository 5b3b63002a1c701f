package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/causaloracle/internal/causality"
	"github.com/rewired-gh/causaloracle/internal/logger"
	"github.com/rewired-gh/causaloracle/internal/models"
	"github.com/rewired-gh/causaloracle/internal/monitor"
	"github.com/rewired-gh/causaloracle/internal/storage"
)

type predictOptions struct {
	eventID     string
	sourcesPath string
	graphOut    string
	noStore     bool
	notify      bool
	asJSON      bool
}

func newPredictCmd(root *rootOptions) *cobra.Command {
	o := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Build the causal graph for an event and print predictions",
		Example: `  causaloracle predict --event 12345
  causaloracle predict --event 12345 --sources ./data/fed.yaml --graph-out graph.json --notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, root, o)
		},
	}
	cmd.Flags().StringVar(&o.eventID, "event", "", "Polymarket event id")
	cmd.Flags().StringVar(&o.sourcesPath, "sources", "", "source document file (default from config)")
	cmd.Flags().StringVar(&o.graphOut, "graph-out", "", "write the causal graph as JSON to this file")
	cmd.Flags().BoolVar(&o.noStore, "no-store", false, "do not store the run")
	cmd.Flags().BoolVar(&o.notify, "notify", false, "send the report to Telegram")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the run as JSON")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func runPredict(cmd *cobra.Command, root *rootOptions, o *predictOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	corpus, err := loadCorpus(cfg, o.sourcesPath)
	if err != nil {
		return err
	}
	event, err := resolveEvent(ctx, corpus, newPolymarketClient(cfg), o.eventID)
	if err != nil {
		return err
	}

	engine := causality.NewEngine(cfg.EngineOptions())
	run := engine.Run(corpus.ForEvent(event.ID), event)
	logger.Info("Predicted %q from %d sources: %d predictions", event.Title, run.SourceCount, len(run.Predictions))

	if o.graphOut != "" {
		if err := writeGraph(o.graphOut, run.Graph); err != nil {
			return err
		}
	}

	var shift *models.Shift
	if !o.noStore {
		store, err := storage.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		shift, err = monitor.New(store, cfg.Watch.ShiftThreshold).Process(run)
		if err != nil {
			return err
		}
	}

	if o.notify {
		tg, err := newTelegramClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to create Telegram client: %w", err)
		}
		if tg == nil {
			return errors.New("--notify requires telegram.enabled")
		}
		if err := tg.SendReport(event, run); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	printRun(out, run)
	if shift != nil {
		fmt.Fprintf(out, "\nShift since previous run: %s %.1f%% → %.1f%% (%s)\n",
			shift.Outcome, shift.OldProbability*100, shift.NewProbability*100, shift.Direction)
	}
	return nil
}

func printRun(w io.Writer, run *models.Run) {
	chains := 0
	if run.Graph != nil {
		chains = len(run.Graph.Metadata.Chains)
	}
	fmt.Fprintf(w, "%s (event %s)\n", run.EventTitle, run.EventID)
	fmt.Fprintf(w, "Run %s: %d sources, %d causal chains\n\n", run.ID, run.SourceCount, chains)
	for i, p := range run.Predictions {
		fmt.Fprintf(w, "%d. %s: %.1f%% (%s, CI %.1f%%–%.1f%%)\n",
			i+1, p.Outcome, p.Probability*100, p.ConfidenceLabel, p.CILower*100, p.CIUpper*100)
		fmt.Fprintf(w, "   %s\n", p.Reasoning)
	}
}

func writeGraph(path string, g *models.Graph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}
