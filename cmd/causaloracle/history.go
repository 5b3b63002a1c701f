package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/causaloracle/internal/storage"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		eventID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs and shifts",
		Long:  "Without --event, lists the events that have stored runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.Storage.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if eventID == "" {
				return printEvents(out, store)
			}
			return printHistory(out, store, eventID, limit)
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "Polymarket event id")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum runs and shifts to list (0 for all)")
	return cmd
}

func printEvents(w io.Writer, store *storage.Storage) error {
	ids, err := store.EventIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No stored runs.")
		return nil
	}
	for _, id := range ids {
		latest, err := store.LatestRun(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, latest.EventTitle, humanize.Time(latest.CreatedAt))
	}
	return nil
}

func printHistory(w io.Writer, store *storage.Storage, eventID string, limit int) error {
	runs, err := store.ListRuns(eventID, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(w, "No stored runs for event %s.\n", eventID)
		return nil
	}

	fmt.Fprintf(w, "%s (event %s)\n\nRuns:\n", runs[0].EventTitle, eventID)
	for _, r := range runs {
		top := "-"
		if len(r.Predictions) > 0 {
			p := r.Predictions[0]
			top = fmt.Sprintf("%s %.1f%% (%s)", p.Outcome, p.Probability*100, p.ConfidenceLabel)
		}
		fmt.Fprintf(w, "  %s  %s  %d sources, %d chains  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.ID, r.SourceCount, r.ChainCount, top)
	}

	shifts, err := store.ListShifts(eventID, limit)
	if err != nil {
		return err
	}
	if len(shifts) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nShifts:")
	for _, s := range shifts {
		fmt.Fprintf(w, "  %s  %s %.1f%% → %.1f%% (%s, KL %.4f)\n",
			s.DetectedAt.Format("2006-01-02 15:04:05"), s.Outcome,
			s.OldProbability*100, s.NewProbability*100, s.Direction, s.Divergence)
	}
	return nil
}
