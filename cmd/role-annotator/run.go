package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
	"github.com/theimaginaryfoundation/role-annotator/annotation/connections"
	"github.com/theimaginaryfoundation/role-annotator/annotation/dataset"
	"github.com/theimaginaryfoundation/role-annotator/annotation/progress"
	"github.com/theimaginaryfoundation/role-annotator/annotation/provider"
	"github.com/theimaginaryfoundation/role-annotator/annotation/store"
	"github.com/theimaginaryfoundation/role-annotator/annotation/telemetry"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Label every dialogue of the input that has no complete result yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := a.load(cmd)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), cfg, log)
		},
	}
}

func (a *app) run(ctx context.Context, cfg Config, base *logrus.Logger) error {
	log := base.WithField("run_id", ulid.Make().String())
	opts := cfg.PromptOptions()

	outPath, err := cfg.OutputPath()
	if err != nil {
		return err
	}
	records, err := dataset.Load(a.fs, cfg.Input)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"input":      cfg.Input,
		"utterances": len(records),
		"dialogues":  annotation.CountDialogues(records),
		"approach":   cfg.Approach,
		"anonymize":  opts.Anonymize,
		"backend":    cfg.Backend,
		"model":      cfg.Model,
	}).Info("dataset loaded")

	var summaries annotation.SummarySource
	if opts.IncludeConnectionSummary {
		summaries, err = a.loadSummaries(cfg, records)
		if err != nil {
			return err
		}
	}

	pcfg := cfg.ProviderConfig()
	if cfg.StructuredOutput {
		pcfg.Schema = provider.GenerateSchema[annotation.AssignmentList]()
	}
	completer, err := a.newCompleter(pcfg)
	if err != nil {
		return err
	}

	tmpl := annotation.DefaultResponseTemplate
	if cfg.ResponseTemplate != "" {
		b, err := afero.ReadFile(a.fs, cfg.ResponseTemplate)
		if err != nil {
			return fmt.Errorf("read response template: %w", err)
		}
		tmpl = strings.TrimSpace(string(b))
	}
	extractor, _ := annotation.ExtractorByName(cfg.Extractor)

	st, closeStore, err := a.openStore(ctx, cfg, outPath)
	if err != nil {
		return err
	}
	defer closeStore()

	assigner := &annotation.Assigner{
		Completer:        completer,
		Builder:          annotation.PromptBuilder{Options: opts},
		Parser:           annotation.Parser{Extractor: extractor},
		MaxRetries:       cfg.MaxRetries,
		ResponseTemplate: tmpl,
		Log:              log,
	}
	if cfg.RetryDelay > 0 {
		assigner.Backoff = backoff.NewConstantBackOff(cfg.RetryDelay)
	}

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	g, gctx := errgroup.WithContext(serveCtx)

	if cfg.MetricsAddr != "" {
		tp, err := telemetry.NewProvider()
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
		m, err := telemetry.NewMetrics(tp, telemetry.Attributes(cfg.Approach, cfg.Backend, cfg.Model)...)
		if err != nil {
			return err
		}
		assigner.Metrics = m
		g.Go(func() error { return tp.Serve(gctx, cfg.MetricsAddr) })
		log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
	}

	runner := &annotation.Runner{
		Assigner:     assigner,
		Store:        st,
		MaxDialogues: cfg.MaxDialogues,
		Log:          log,
		Progress:     progress.New(a.stderr, log),
	}

	var stats annotation.RunStats
	g.Go(func() error {
		defer stopServing()
		var err error
		stats, err = runner.Run(gctx, records, summaries)
		return err
	})
	err = g.Wait()

	fields := logrus.Fields{
		"output":    outPath,
		"dialogues": stats.Dialogues,
		"skipped":   stats.Skipped,
		"evicted":   stats.Evicted,
		"succeeded": stats.Succeeded,
		"exhausted": stats.Exhausted,
		"attempts":  stats.Attempts,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("run aborted")
		return fmt.Errorf("run: %w", err)
	}
	log.WithFields(fields).Info("run finished")
	return nil
}

// loadSummaries reads --summaries when given, otherwise computes summaries from the input at the
// configured scope.
func (a *app) loadSummaries(cfg Config, records []annotation.UtteranceRecord) (annotation.SummarySource, error) {
	if cfg.Summaries != "" {
		return connections.LoadFile(a.fs, cfg.Summaries)
	}
	entries, err := connections.Build(records, connections.Scope(cfg.SummaryScope))
	if err != nil {
		return nil, err
	}
	return connections.NewIndex(entries), nil
}

// openStore returns the PostgreSQL store when a DSN is configured and the file store otherwise.
// Database result sets are keyed by the output path so approaches do not overwrite each other.
func (a *app) openStore(ctx context.Context, cfg Config, outPath string) (annotation.Store, func(), error) {
	if cfg.DSN != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DSN, filepath.ToSlash(outPath))
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return store.NewFileStore(a.fs, outPath), func() {}, nil
}
