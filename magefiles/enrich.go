//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Enrich namespaces the pipeline targets.
type Enrich mg.Namespace

func binary() string {
	return filepath.Join(binDir, binName)
}

// input returns the dataset named by TRIALS, or the default raw extract.
func input() string {
	if p := os.Getenv("TRIALS"); p != "" {
		return p
	}
	return "data/raw/trials.csv"
}

// Run enriches the dataset, resuming from the last checkpoint if one exists.
// Set TRIALS to choose the input file.
func (Enrich) Run() error {
	mg.Deps(Build)
	return sh.RunV(binary(), "run", input())
}

// Fresh discards saved run state and enriches the dataset from the start.
func (Enrich) Fresh() error {
	mg.Deps(Build)
	return sh.RunV(binary(), "run", "--fresh", input())
}

// Dictionary validates the endpoint dictionary and prints its version.
func (Enrich) Dictionary() error {
	mg.Deps(Build)
	return sh.RunV(binary(), "dictionary", "validate")
}

// Audit writes the adjudication audit log as an HTML report.
func (Enrich) Audit() error {
	mg.Deps(Build)
	out := filepath.Join("data", "processed", "audit.html")
	if err := sh.RunV(binary(), "audit", "export", "--format", "html", "--output", out); err != nil {
		return err
	}
	fmt.Printf("Audit report: %s\n", out)
	return nil
}
