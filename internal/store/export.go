// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ExportRecord is the full persisted record of one task.
type ExportRecord struct {
	Task *types.ResearchTask `json:"task" yaml:"task"`
	// Reports lists every report version, oldest first.
	Reports []*types.ResearchReport `json:"report_history" yaml:"report_history"`
}

// Export writes task id and its report history to w in the given format.
func (s *SQLiteStore) Export(ctx context.Context, id, format string, w io.Writer) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	reports, err := s.Reports(ctx, id)
	if err != nil {
		return err
	}
	return WriteRecord(ExportRecord{Task: task, Reports: reports}, format, w)
}

// WriteRecord encodes rec to w as YAML or JSON.
func WriteRecord(rec ExportRecord, format string, w io.Writer) error {
	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
}
