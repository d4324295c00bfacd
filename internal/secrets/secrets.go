// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: anthropic-api-key, adjudicator-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// Key file names.
const (
	AnthropicAPIKey   = "anthropic-api-key"
	AdjudicatorAPIKey = "adjudicator-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// APIKey returns the loaded key for an adjudication provider. The generic
// HTTP provider falls back to the Anthropic key when it has none of its own.
func APIKey(secrets map[string]string, provider types.Provider) string {
	switch provider {
	case types.ProviderAnthropic:
		return secrets[AnthropicAPIKey]
	case types.ProviderHTTP:
		if v := secrets[AdjudicatorAPIKey]; v != "" {
			return v
		}
		return secrets[AnthropicAPIKey]
	}
	return ""
}
