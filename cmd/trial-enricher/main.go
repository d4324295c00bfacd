// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the trial-enricher CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/trial-enricher/internal/secrets"
	"github.com/pdiddy/trial-enricher/internal/store"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is configured from --log-level and --log-json before any command runs.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// rootCmd is the base command for the trial-enricher CLI.
var rootCmd = &cobra.Command{
	Use:   "trial-enricher",
	Short: "Enrich clinical-trial registry records with endpoint, reporting, and classification fields",
	Long: `trial-enricher reads a tabular extract of registered clinical trials and
derives, for every trial, a fixed set of planned-endpoint flags, a
planned-versus-reported gap signal with reporting-quality flags, and a
trial-intent category with biomarker cohort flags.

Deterministic rules decide what they can. Ambiguous text goes to an external
adjudication service whose decisions are cached and written to an
append-only audit log. Runs checkpoint periodically and resume after an
interruption.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./trial-enricher.yaml or ~/.config/trial-enricher/trial-enricher.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "write logs as JSON")
	pf.String("store", "", "SQLite store for enriched records, checkpoint, cache, and audit log (default data/interim/enrich.db)")
	pf.String("dictionary", "configs/endpoint_dictionary.yaml", "canonical endpoint dictionary (YAML or JSON)")
	pf.String("aliases", "configs/endpoint_aliases.json", "flat endpoint alias mapping (JSON or YAML)")
	pf.String("out-dir", "", "directory for CSV and JSONL exports (default data/processed)")
	pf.String("base-name", "", "file stem for exports (default trials_enriched)")

	bindFlags(pf, map[string]string{
		"output.store_path":          "store",
		"dictionary.canonical_path": "dictionary",
		"dictionary.aliases_path":   "aliases",
		"output.dir":                "out-dir",
		"output.base_name":          "base-name",
	})
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("trial-enricher")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "trial-enricher"))
		}
	}

	viper.SetEnvPrefix("TRIAL_ENRICHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Keys with no flag are only visible to Unmarshal once bound.
	for _, key := range []string{"ai.api_key", "ai.base_url", "telemetry.endpoint", "telemetry.insecure", "input.format"} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags binds each viper key to the named flag.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// loadConfig assembles the pipeline configuration from the config file,
// environment, flags, and loaded secrets, then applies defaults.
func loadConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg = cfg.WithDefaults()
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = secrets.APIKey(loadedSecrets, cfg.AI.Provider)
	}
	return cfg, nil
}

// openStore opens the store named by the configuration.
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Output.StorePath)
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	asJSON, _ := cmd.Flags().GetBool("log-json")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", levelName)
	}
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
