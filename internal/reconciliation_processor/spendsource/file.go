package spendsource

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
)

// FileSource reads spend figures from an uploaded platform billing export.
// The export is an xlsx workbook named after the batch id, with a header
// row followed by account id / spend columns.
type FileSource struct {
	dir    string
	logger *slog.Logger
}

// NewFileSource creates a resolver over uploaded billing exports in dir
func NewFileSource(logger *slog.Logger, dir string) *FileSource {
	return &FileSource{
		dir:    dir,
		logger: logger,
	}
}

// Resolve parses the batch's billing export. A missing or unreadable file
// is a source failure; a malformed row only skips that row.
func (s *FileSource) Resolve(ctx context.Context, job *reconciliation.Job) (map[string]money.Amount, error) {
	path := filepath.Join(s.dir, job.BatchID.String()+".xlsx")

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open billing export %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read billing export sheet %q: %w", sheet, err)
	}

	figures := make(map[string]money.Amount)
	for i, row := range rows {
		if i == 0 {
			// Header row
			continue
		}
		if len(row) < 2 || row[0] == "" {
			continue
		}

		amount, err := money.NewFromString(row[1])
		if err != nil {
			s.logger.Warn("Skipping billing export row with unparsable amount",
				"batch_id", job.BatchID.String(),
				"row", i+1,
				"account_id", row[0],
				"value", row[1])
			continue
		}

		figures[row[0]] = amount
	}

	s.logger.Info("Resolved platform spend from billing export",
		"batch_id", job.BatchID.String(),
		"path", path,
		"accounts_with_figures", len(figures))

	return figures, nil
}
