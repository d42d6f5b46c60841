package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/kairuizhang035-crypto/yinguo/internal/engine"
)

// Artifact file names.
const (
	ScoredFile        = "scored_edges.csv"
	TieredFile        = "tiered_edges.csv"
	CoreFile          = "core_edges.csv"
	TriangulationFile = "triangulation.csv"
	SummaryFile       = "summary.json"
	CoreReportFile    = "core_edges_report.txt"
	WorkbookFile      = "results.xlsx"
)

// Options controls which optional artifacts are written.
type Options struct {
	Workbook bool
}

// Write renders every artifact of b into dir and returns the summary. The
// output is byte-identical for identical batches.
func Write(dir string, b *engine.Batch, opts Options) (Summary, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, eris.Wrapf(err, "report: create %s", dir)
	}

	tables := []struct {
		file  string
		sheet string
		rows  [][]string
	}{
		{ScoredFile, "scored", ScoredTable(b.Ranked)},
		{TieredFile, "tiered", ScoredTable(b.Tiered)},
		{CoreFile, "core", CoreTable(b.Core)},
		{TriangulationFile, "triangulation", TriangulationTable(b.Records)},
	}
	for _, t := range tables {
		if err := writeCSV(filepath.Join(dir, t.file), t.rows); err != nil {
			return Summary{}, err
		}
	}

	sum := BuildSummary(b)
	if err := writeJSON(filepath.Join(dir, SummaryFile), sum); err != nil {
		return Summary{}, err
	}

	f, err := os.Create(filepath.Join(dir, CoreReportFile))
	if err != nil {
		return Summary{}, eris.Wrap(err, "report: create core report")
	}
	if err := WriteCoreReport(f, b.Core, len(b.Tiered)); err != nil {
		f.Close() //nolint:errcheck
		return Summary{}, err
	}
	if err := f.Close(); err != nil {
		return Summary{}, eris.Wrap(err, "report: close core report")
	}

	if opts.Workbook {
		wb := xlsx.NewFile()
		for _, t := range tables {
			if err := addSheet(wb, t.sheet, t.rows); err != nil {
				return Summary{}, err
			}
		}
		if err := wb.Save(filepath.Join(dir, WorkbookFile)); err != nil {
			return Summary{}, eris.Wrap(err, "report: save workbook")
		}
	}

	zap.L().Info("report: artifacts written",
		zap.String("dir", dir),
		zap.Int("scored", len(b.Ranked)),
		zap.Int("tiered", len(b.Tiered)),
		zap.Int("core", len(b.Core)),
		zap.Bool("workbook", opts.Workbook),
	)
	return sum, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", filepath.Base(path))
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrapf(err, "report: write %s", filepath.Base(path))
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal summary")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "report: write summary")
	}
	return nil
}

func addSheet(wb *xlsx.File, name string, rows [][]string) error {
	sheet, err := wb.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "report: add sheet %s", name)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	return nil
}
