// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
package secrets

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// Key file names understood by Apply.
const (
	AnthropicAPIKey       = "anthropic-api-key"
	OpenAIAPIKey          = "openai-api-key"
	TavilyAPIKey          = "tavily-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
)

// DefaultDir is the secrets directory read by the CLI.
const DefaultDir = ".secrets/"

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error; Load
// returns an empty set. Unreadable files are logged and skipped.
func Load(dir string, logger *slog.Logger) (Secrets, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
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
			logger.Warn("could not read secret", slog.String("name", name), slog.Any("error", err))
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Get returns fallback when it is set, otherwise the secret named key.
// Explicit configuration always wins over the secrets directory.
func (s Secrets) Get(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return s[key]
}

// Names returns the loaded key names, sorted. Values are never listed.
func (s Secrets) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Apply fills credentials missing from cfg. The generator key is chosen by
// provider.
func (s Secrets) Apply(cfg *types.Config) {
	genKey := AnthropicAPIKey
	if cfg.Generator.Provider == types.ProviderOpenAI {
		genKey = OpenAIAPIKey
	}
	cfg.Generator.APIKey = s.Get(genKey, cfg.Generator.APIKey)
	cfg.Gather.TavilyAPIKey = s.Get(TavilyAPIKey, cfg.Gather.TavilyAPIKey)
	cfg.Gather.SemanticScholarAPIKey = s.Get(SemanticScholarAPIKey, cfg.Gather.SemanticScholarAPIKey)
	cfg.Gather.OpenAlexEmail = s.Get(OpenAlexEmail, cfg.Gather.OpenAlexEmail)
}
