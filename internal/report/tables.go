// Package report renders a finished batch into its output artifacts.
package report

import (
	"strconv"
	"strings"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// scoredColumns is the column order of scored_edges.csv and tiered_edges.csv.
var scoredColumns = []string{
	"source",
	"target",
	"support_count",
	"appearances",
	"producers",
	"mean_support",
	"frequency",
	"diversity",
	"consistency",
	"network_position",
	"significance",
	"ensemble",
	"tier",
}

// coreColumns is the column order of core_edges.csv.
var coreColumns = []string{
	"source",
	"target",
	"tier",
	"joint_confidence",
	"quality_adjusted_confidence",
	"data_quality",
	"structural",
	"parameter",
	"mediation",
	"expert",
	"parameter_estimated",
	"mediation_estimated",
	"expert_estimated",
}

// triangulationColumns is the column order of triangulation.csv.
var triangulationColumns = []string{
	"source",
	"target",
	"tier",
	"structural",
	"parameter",
	"mediation",
	"expert",
	"structural_contribution",
	"parameter_contribution",
	"mediation_contribution",
	"expert_contribution",
	"joint_confidence",
	"data_quality",
	"quality_adjusted_confidence",
	"core",
	"rejected_by",
	"parameter_detail",
	"mediation_detail",
	"expert_detail",
}

// fmtFloat renders a score with a fixed six decimals so artifacts are
// byte-stable.
func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// ScoredTable renders edges with a header row.
func ScoredTable(edges []model.ScoredEdge) [][]string {
	rows := make([][]string, 0, len(edges)+1)
	rows = append(rows, scoredColumns)
	for _, e := range edges {
		d := e.Dimensions
		rows = append(rows, []string{
			e.Edge.Source,
			e.Edge.Target,
			strconv.Itoa(e.SupportCount),
			strconv.Itoa(e.Appearances),
			strings.Join(e.Producers, "|"),
			fmtFloat(e.MeanSupport),
			fmtFloat(d.Frequency),
			fmtFloat(d.Diversity),
			fmtFloat(d.Consistency),
			fmtFloat(d.NetworkPosition),
			fmtFloat(d.Significance),
			fmtFloat(e.Ensemble),
			string(e.Tier),
		})
	}
	return rows
}

// CoreTable renders core records with a header row.
func CoreTable(recs []model.TriangulationRecord) [][]string {
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, coreColumns)
	for _, r := range recs {
		rows = append(rows, []string{
			r.Edge.Source,
			r.Edge.Target,
			string(r.Tier),
			fmtFloat(r.Joint),
			fmtFloat(r.QualityAdjusted),
			fmtFloat(r.DataQuality),
			fmtFloat(r.Pillar(model.PillarStructural).Value),
			fmtFloat(r.Pillar(model.PillarParameter).Value),
			fmtFloat(r.Pillar(model.PillarMediation).Value),
			fmtFloat(r.Pillar(model.PillarExpert).Value),
			strconv.FormatBool(r.Pillar(model.PillarParameter).Estimated),
			strconv.FormatBool(r.Pillar(model.PillarMediation).Estimated),
			strconv.FormatBool(r.Pillar(model.PillarExpert).Estimated),
		})
	}
	return rows
}

// TriangulationTable renders every triangulation record with a header row.
func TriangulationTable(recs []model.TriangulationRecord) [][]string {
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, triangulationColumns)
	for _, r := range recs {
		row := []string{r.Edge.Source, r.Edge.Target, string(r.Tier)}
		for _, p := range model.Pillars {
			row = append(row, fmtFloat(r.Pillar(p).Value))
		}
		for _, p := range model.Pillars {
			row = append(row, fmtFloat(r.Contributions[p]))
		}
		row = append(row,
			fmtFloat(r.Joint),
			fmtFloat(r.DataQuality),
			fmtFloat(r.QualityAdjusted),
			strconv.FormatBool(r.Core),
			string(r.RejectedBy),
			r.Pillar(model.PillarParameter).Detail,
			r.Pillar(model.PillarMediation).Detail,
			r.Pillar(model.PillarExpert).Detail,
		)
		rows = append(rows, row)
	}
	return rows
}
