package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/causaloracle/internal/causality"
)

func newGraphCmd(root *rootOptions) *cobra.Command {
	var eventID, sourcesPath string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the causal graph for an event as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			corpus, err := loadCorpus(cfg, sourcesPath)
			if err != nil {
				return err
			}
			event, err := resolveEvent(cmd.Context(), corpus, newPolymarketClient(cfg), eventID)
			if err != nil {
				return err
			}

			g := causality.NewEngine(cfg.EngineOptions()).BuildGraph(corpus.ForEvent(event.ID), event)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(g)
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "Polymarket event id")
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "source document file (default from config)")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
