package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect saved run state",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resume cursor as YAML",
	RunE:  runCheckpointShow,
}

// checkpointView is the printed form of the resume cursor.
type checkpointView struct {
	RunID             string    `yaml:"run_id"`
	LastID            string    `yaml:"last_id"`
	Position          int       `yaml:"position"`
	DictionaryVersion string    `yaml:"dictionary_version"`
	WrittenAt         time.Time `yaml:"written_at"`
	Committed         int       `yaml:"committed"`
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	cp, ok, err := st.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No checkpoint; the next run starts from the first record.")
		return nil
	}
	n, err := st.Count(ctx)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(checkpointView{
		RunID:             cp.RunID,
		LastID:            cp.LastID,
		Position:          cp.Position,
		DictionaryVersion: cp.DictionaryVersion,
		WrittenAt:         cp.WrittenAt,
		Committed:         n,
	})
}

func init() {
	checkpointCmd.AddCommand(checkpointShowCmd)
	rootCmd.AddCommand(checkpointCmd)
}
