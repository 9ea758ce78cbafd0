package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/role-annotator/annotation/connections"
	"github.com/theimaginaryfoundation/role-annotator/annotation/dataset"
)

const defaultSummariesPath = "connections.json"

func newSummarizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Compute connection summaries from the input and write them as JSON",
		Long: `summarize computes, for every speaker pair and every speaker, the average response
duration, word and letter counts and the sentiment and emotion shares. The file it
writes (--summaries, default connections.json) can be passed back to "run --summaries".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := a.load(cmd)
			if err != nil {
				return err
			}
			out := cfg.Summaries
			if out == "" {
				out = defaultSummariesPath
			}

			records, err := dataset.Load(a.fs, cfg.Input)
			if err != nil {
				return err
			}
			entries, err := connections.Build(records, connections.Scope(cfg.SummaryScope))
			if err != nil {
				return err
			}
			if err := connections.WriteFile(a.fs, out, entries); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"scope":   cfg.SummaryScope,
				"entries": len(entries),
				"output":  out,
			}).Info("connection summaries written")
			return nil
		},
	}
}
