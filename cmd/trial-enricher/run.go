// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/trial-enricher/internal/adjudicate"
	"github.com/pdiddy/trial-enricher/internal/classify"
	"github.com/pdiddy/trial-enricher/internal/dataset"
	"github.com/pdiddy/trial-enricher/internal/endpoints"
	"github.com/pdiddy/trial-enricher/internal/normalize"
	"github.com/pdiddy/trial-enricher/internal/pipeline"
	"github.com/pdiddy/trial-enricher/internal/reporting"
	"github.com/pdiddy/trial-enricher/internal/store"
	"github.com/pdiddy/trial-enricher/internal/telemetry"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Enrich a trial dataset",
	Long: `Run reads the trial dataset (CSV or JSONL), passes every record through the
endpoint, reporting, and classification layers, and commits results to the
store in input order. A checkpoint is written every --checkpoint-every
records; a later run resumes after the last checkpoint unless --fresh is set.

On completion the enriched table is exported to CSV and JSONL in --out-dir.
Interrupting a run (Ctrl-C) finishes in-flight records and checkpoints them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Input.Path = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	dict, err := normalize.Load(cfg.Dictionary.CanonicalPath, cfg.Dictionary.AliasesPath)
	if err != nil {
		return err
	}
	logger.Info("dictionary loaded", "version", dict.Version(), "codes", dict.Len(), "synonyms", dict.SynonymCount())

	st, err := store.Open(cfg.Output.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	fresh, _ := cmd.Flags().GetBool("fresh")
	runID, err := currentRunID(ctx, st, fresh)
	if err != nil {
		return err
	}

	adj, stats, err := newAdjudicator(cfg, dict.Version(), runID, st)
	if err != nil {
		return err
	}

	src, err := dataset.Open(cfg.Input.Path, cfg.Input.Format)
	if err != nil {
		return err
	}
	defer src.Close()

	orch, err := pipeline.New(pipeline.Options{
		Endpoints:         endpoints.New(dict, adj, logger),
		Reporting:         reporting.New(dict, logger),
		Classification:    classify.New(adj, logger),
		Sink:              st,
		Stats:             stats,
		DictionaryVersion: dict.Version(),
		RunID:             runID,
		CheckpointEvery:   cfg.Checkpoint.Every,
		Workers:           cfg.Workers,
		Fresh:             fresh,
		OutputDir:         cfg.Output.Dir,
		BaseName:          cfg.Output.BaseName,
		Logger:            logger,
		Progress:          os.Stdout,
	})
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx, src)
	if errors.Is(err, context.Canceled) {
		logger.Warn("run interrupted; rerun to resume", "run_id", summary.RunID, "enriched", summary.Enriched)
		return err
	}
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d record(s) failed a layer; see the errors column", summary.Partial)
	}
	return nil
}

// currentRunID returns the ID of the run being resumed, or a new one.
func currentRunID(ctx context.Context, st *store.Store, fresh bool) (string, error) {
	if !fresh {
		cp, ok, err := st.LoadCheckpoint(ctx)
		if err != nil {
			return "", err
		}
		if ok {
			return cp.RunID, nil
		}
	}
	return uuid.New().String(), nil
}

// newAdjudicator builds the adjudication client for cfg's provider. The
// "none" provider returns nil, so every escalation stays unresolved.
func newAdjudicator(cfg types.PipelineConfig, dictVersion, runID string, st *store.Store) (adjudicate.Adjudicator, pipeline.StatsSource, error) {
	var caller adjudicate.Caller
	switch cfg.AI.Provider {
	case types.ProviderAnthropic:
		caller = adjudicate.NewAnthropicCaller(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	case types.ProviderHTTP:
		caller = adjudicate.NewHTTPCaller(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	default:
		logger.Info("no adjudication provider; ambiguous text stays unresolved")
		return nil, nil, nil
	}

	client, err := adjudicate.NewClient(adjudicate.Options{
		Caller:            caller,
		Cache:             st,
		Log:               st,
		DictionaryVersion: dictVersion,
		Model:             cfg.AI.Model,
		RunID:             runID,
		MaxAttempts:       cfg.AI.MaxRetries,
		AttemptTimeout:    cfg.AI.Timeout,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func init() {
	f := runCmd.Flags()
	f.String("input", "", "trial dataset (CSV or JSONL)")
	f.String("format", "", "input format: csv or jsonl (default: by file extension)")
	f.Int("checkpoint-every", 0, "records committed per checkpoint (default 100)")
	f.Int("workers", 0, "records processed concurrently (default 1)")
	f.String("provider", "", "adjudication provider: anthropic, http, or none (default none)")
	f.String("model", "", "adjudication model identifier")
	f.String("base-url", "", "endpoint for the http provider")
	f.Float64("rps", 0, "maximum adjudication requests per second (default 2)")
	f.Int("max-retries", 0, "attempts per adjudication (default 3)")
	f.Duration("timeout", 0, "timeout for one adjudication attempt (default 60s)")
	f.String("otlp-endpoint", "", "OTLP/HTTP collector host:port for trace export")
	f.Bool("fresh", false, "discard saved run state and start from the first record")

	bindFlags(f, map[string]string{
		"input.path":             "input",
		"input.format":           "format",
		"checkpoint.every":       "checkpoint-every",
		"workers":                "workers",
		"ai.provider":            "provider",
		"ai.model":               "model",
		"ai.base_url":            "base-url",
		"ai.requests_per_second": "rps",
		"ai.max_retries":         "max-retries",
		"ai.timeout":             "timeout",
		"telemetry.endpoint":     "otlp-endpoint",
	})

	rootCmd.AddCommand(runCmd)
}
