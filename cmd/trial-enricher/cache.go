package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trial-enricher/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate the adjudication cache",
	Long: `Cache reports on and prunes the adjudication cache held in the store.
Entries never expire on their own; invalidation is the only way to force a
decision to be asked again.`,
}

// --- stats subcommand ---

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cache entries by task and dictionary version",
	RunE:  runCacheStats,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(stats)
	}

	fmt.Printf("%d cache entries\n\n", stats.Entries)
	printCounts("Task", stats.ByTask)
	fmt.Println()
	printCounts("Dictionary version", stats.ByDictionaryVersion)
	return nil
}

func printCounts(heading string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(os.Stdout, "%-66s  %s\n", heading, "Entries")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 75))
	for _, k := range keys {
		fmt.Fprintf(os.Stdout, "%-66s  %d\n", k, counts[k])
	}
}

// --- invalidate subcommand ---

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Delete cache entries matching a filter",
	Long: `Invalidate deletes cache entries by dictionary version, task,
fingerprint, or age. Filters combine with AND. Use --all to clear the
cache entirely. The audit log is never modified.

Task "cohort" matches every biomarker cohort task.`,
	RunE: runCacheInvalidate,
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	var f store.CacheFilter
	f.DictionaryVersion, _ = cmd.Flags().GetString("dictionary-version")
	f.Task, _ = cmd.Flags().GetString("task")
	f.Fingerprint, _ = cmd.Flags().GetString("fingerprint")
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan > 0 {
		f.Before = time.Now().Add(-olderThan)
	}
	all, _ := cmd.Flags().GetBool("all")

	if f == (store.CacheFilter{}) && !all {
		return fmt.Errorf("filter required: provide --dictionary-version, --task, --fingerprint, --older-than, or --all")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.InvalidateCache(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Printf("invalidated %d cache entries\n", n)
	return nil
}

func init() {
	cacheStatsCmd.Flags().Bool("yaml", false, "output stats as YAML")

	cacheInvalidateCmd.Flags().String("dictionary-version", "", "match entries written with this dictionary version")
	cacheInvalidateCmd.Flags().String("task", "", "match entries for this task (endpoint, trial-intent, cohort:<name>, cohort)")
	cacheInvalidateCmd.Flags().String("fingerprint", "", "match one entry by fingerprint")
	cacheInvalidateCmd.Flags().Duration("older-than", 0, "match entries created more than this long ago")
	cacheInvalidateCmd.Flags().Bool("all", false, "delete every cache entry")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)

	rootCmd.AddCommand(cacheCmd)
}
