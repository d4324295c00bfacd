package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trial-enricher/internal/normalize"
)

var dictionaryCmd = &cobra.Command{
	Use:   "dictionary",
	Short: "Inspect the endpoint dictionary",
}

var dictionaryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the endpoint dictionary and report its version",
	Long: `Validate loads the canonical endpoint definition and the alias file,
checks that every entry maps to one of the fifteen endpoint codes and that
no synonym is claimed by two codes, and prints the dictionary version that
cache entries and checkpoints are keyed on.`,
	RunE: runDictionaryValidate,
}

func runDictionaryValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dict, err := normalize.Load(cfg.Dictionary.CanonicalPath, cfg.Dictionary.AliasesPath)
	if err != nil {
		return err
	}
	fmt.Printf("dictionary %s: %d codes, %d synonyms\n", dict.Version(), dict.Len(), dict.SynonymCount())
	return nil
}

func init() {
	dictionaryCmd.AddCommand(dictionaryValidateCmd)
	rootCmd.AddCommand(dictionaryCmd)
}
