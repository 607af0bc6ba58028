package assemble

import (
	"go.uber.org/zap"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/core/manifest"
	"filing_tasks/pkg/core/table"
	"filing_tasks/pkg/models"
)

// MasterTable lays rows out in the master column order.
func MasterTable(rows []models.TaskRow) *table.Table {
	t := table.New(models.MasterColumns)
	for _, r := range rows {
		t.Append(r.Values())
	}
	return t
}

// Run reads both manifests, assembles the master table and writes it as CSV and,
// when configured, as a reviewer workbook.
func Run(cfg config.AssembleConfig, logger *zap.Logger) ([]models.TaskRow, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ab, err := manifest.ReadManifest(cfg.ABPath)
	if err != nil {
		return nil, err
	}
	two, err := manifest.ReadManifest(cfg.TwoPath)
	if err != nil {
		return nil, err
	}

	rows := Assemble(ab, two, CountsFrom(cfg))
	master := MasterTable(rows)

	if err := master.Write(cfg.OutPath); err != nil {
		return nil, err
	}
	if cfg.XLSXPath != "" {
		if err := master.WriteXLSX(cfg.XLSXPath, "Tasks"); err != nil {
			return nil, err
		}
		logger.Info("wrote workbook", zap.String("path", cfg.XLSXPath))
	}

	logger.Info("assembled master table",
		zap.String("path", cfg.OutPath),
		zap.Int("rows", len(rows)),
		zap.Any("by_category", countByCategory(rows)),
	)
	return rows, nil
}

func countByCategory(rows []models.TaskRow) map[models.Category]int {
	counts := make(map[models.Category]int)
	for _, r := range rows {
		counts[r.Category]++
	}
	return counts
}
