package main

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filing_tasks/pkg/core/manifest"
	"filing_tasks/pkg/core/table"
	"filing_tasks/pkg/models"
)

func filing(company, sector, date string) models.FilingRecord {
	return models.FilingRecord{
		Company: company, Ticker: company[:3], Sector: sector, Form: "10-K",
		Period: date, FilingDate: date, Accession: fmt.Sprintf("%s-%s", company, date),
		EdgarIndexURL: "https://example.com/" + company + "/index",
		OpenAsHTMLURL: "https://example.com/" + company + "/doc",
	}
}

func TestAssembleCommand(t *testing.T) {
	dir := t.TempDir()
	ab := filepath.Join(dir, "ab.csv")
	two := filepath.Join(dir, "two.csv")
	out := filepath.Join(dir, "tasks.csv")

	require.NoError(t, manifest.WriteManifest(ab, []models.FilingRecord{
		filing("Alpha", "Energy", "2024-03-01"),
		filing("Bravo", "Energy", "2024-02-01"),
		filing("Charlie", "Tech", "2024-01-15"),
	}))
	require.NoError(t, manifest.WriteManifest(two, nil))

	rootCmd.SetArgs([]string{"--ab", ab, "--two", two, "--out", out, "--a-count", "2", "--b-count", "5"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, 2, cfg.Assemble.ACount)
	assert.Equal(t, 10, cfg.Assemble.YoYCount, "unchanged flags keep the configured value")

	master, err := table.Read(out)
	require.NoError(t, err)
	assert.Equal(t, models.MasterColumns, master.Columns)

	var ids []string
	for i := 0; i < master.Len(); i++ {
		ids = append(ids, master.Get(i, "TaskID"))
	}
	// Only Energy has a pair; the any-year pass pairs it again.
	assert.Equal(t, []string{"A_01", "A_02", "B_01", "C_PEER_01", "C_PEER_02"}, ids)
	assert.Equal(t, "Charlie", master.Get(2, "Company_1"))
}
