package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// ImportStats tracks import statistics
type ImportStats struct {
	Total        int
	Imported     int
	Confidential int
	Failed       int
}

// Importer loads ementas from CSV files through the regular write path, so
// imported confidential records are scrubbed like any other.
type Importer struct {
	parser  *Parser
	ementas *EmentaService
	logger  *zap.Logger
}

// NewImporter creates a new Importer
func NewImporter(parser *Parser, ementas *EmentaService, logger *zap.Logger) *Importer {
	return &Importer{parser: parser, ementas: ementas, logger: logger}
}

// Import reads every row of r and stores the valid ones. A bad row is
// counted and logged; it does not stop the import.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	parsed, err := i.parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	stats := &ImportStats{Total: len(parsed.Rows)}
	i.logger.Info("importing ementas",
		zap.Int("rows", stats.Total),
		zap.String("checksum", parsed.Checksum))

	for idx, row := range parsed.Rows {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		progress := fmt.Sprintf("[%d/%d]", idx+1, stats.Total)

		if row.Err != nil {
			i.logger.Error("invalid row", zap.String("progress", progress), zap.Int("line", row.Line), zap.Error(row.Err))
			stats.Failed++
			continue
		}

		if err := i.ementas.Import(ctx, row.Ementa); err != nil {
			i.logger.Error("failed to import row", zap.String("progress", progress), zap.Int("line", row.Line), zap.Error(err))
			stats.Failed++
			continue
		}

		stats.Imported++
		if row.Ementa.Confidential {
			stats.Confidential++
		}
		i.logger.Debug("row imported",
			zap.String("progress", progress),
			zap.Int64("ementa_id", row.Ementa.ID),
			zap.String("title", row.Ementa.Title))
	}

	return stats, nil
}

// PrintSummary prints the import statistics
func (i *Importer) PrintSummary(w io.Writer, stats *ImportStats) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "=== Import Summary ===")
	fmt.Fprintf(w, "Total rows:      %d\n", stats.Total)
	fmt.Fprintf(w, "Imported:        %d\n", stats.Imported)
	fmt.Fprintf(w, "Confidential:    %d (content scrubbed)\n", stats.Confidential)
	fmt.Fprintf(w, "Failed:          %d\n", stats.Failed)

	if stats.Total > 0 {
		successRate := float64(stats.Imported) / float64(stats.Total) * 100
		fmt.Fprintf(w, "Success rate:    %.1f%%\n", successRate)
	}
}
