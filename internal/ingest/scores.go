package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kairuizhang035-crypto/yinguo/internal/fetcher"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// ParameterStat aggregates the parameter-fit rows of one edge.
type ParameterStat struct {
	Sum     float64
	Rows    int
	Methods []string
}

// Mean returns the mean of the per-row method means.
func (s ParameterStat) Mean() float64 {
	if s.Rows == 0 {
		return 0
	}
	return s.Sum / float64(s.Rows)
}

// ParameterEvidence is keyed by edge.
type ParameterEvidence struct {
	ByEdge   map[model.EdgeKey]*ParameterStat
	Statuses []model.ProducerStatus
}

// MediationPath is one tested mediation path.
type MediationPath struct {
	Nodes        []string
	Significance float64
	Significant  bool
	Effect       float64
}

// MediationEvidence holds tested paths and, per edge, the indices of the
// paths that traverse it.
type MediationEvidence struct {
	Paths    []MediationPath
	ByEdge   map[model.EdgeKey][]int
	Statuses []model.ProducerStatus
}

// LoadParameterTables reads parameter-fit tables. Missing or malformed
// tables are logged and skipped.
func LoadParameterTables(ctx context.Context, loader TableLoader, locations []string) (*ParameterEvidence, error) {
	pe := &ParameterEvidence{ByEdge: make(map[model.EdgeKey]*ParameterStat)}
	for _, loc := range locations {
		status := model.ProducerStatus{Producer: "parameter", Location: loc}
		table, err := loader.Load(ctx, loc)
		if err == nil {
			err = parseParameterTable(table, pe, &status)
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: load parameter tables")
		}
		pe.Statuses = append(pe.Statuses, finishStatus(status, err))
	}
	return pe, nil
}

func parseParameterTable(t *fetcher.Table, pe *ParameterEvidence, status *model.ProducerStatus) error {
	cols := newColumns(t.Header)
	edgeIdx := cols.find(edgeAliases)
	srcIdx, tgtIdx := cols.find(sourceAliases), cols.find(targetAliases)
	if edgeIdx < 0 && (srcIdx < 0 || tgtIdx < 0) {
		return eris.Errorf("ingest: %s: header lacks edge or source/target columns", t.Location)
	}

	var methodIdx []int
	var methods []string
	for i, h := range t.Header {
		n := normalizeHeader(h)
		if strings.HasSuffix(n, paramSuffix) {
			methodIdx = append(methodIdx, i)
			methods = append(methods, strings.TrimSuffix(n, paramSuffix))
		}
	}
	if len(methodIdx) == 0 {
		return eris.Errorf("ingest: %s: no *%s columns", t.Location, paramSuffix)
	}

	for _, row := range t.Rows {
		status.RowsRead++
		key, ok := rowEdge(row, edgeIdx, srcIdx, tgtIdx)
		if !ok {
			status.RowsRejected++
			continue
		}

		var sum float64
		var n int
		var used []string
		for j, idx := range methodIdx {
			if v, ok := parseFinite(cell(row, idx)); ok {
				sum += v
				n++
				used = append(used, methods[j])
			}
		}
		if n == 0 {
			status.RowsRejected++
			continue
		}

		stat := pe.ByEdge[key]
		if stat == nil {
			stat = &ParameterStat{}
			pe.ByEdge[key] = stat
		}
		stat.Sum += sum / float64(n)
		stat.Rows++
		stat.Methods = mergeNames(stat.Methods, used)
		status.RowsAccepted++
	}
	return nil
}

// LoadMediationTables reads mediation path tables. Missing or malformed
// tables are logged and skipped.
func LoadMediationTables(ctx context.Context, loader TableLoader, locations []string) (*MediationEvidence, error) {
	me := &MediationEvidence{ByEdge: make(map[model.EdgeKey][]int)}
	for _, loc := range locations {
		status := model.ProducerStatus{Producer: "mediation", Location: loc}
		table, err := loader.Load(ctx, loc)
		if err == nil {
			err = parseMediationTable(table, me, &status)
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: load mediation tables")
		}
		me.Statuses = append(me.Statuses, finishStatus(status, err))
	}
	return me, nil
}

func parseMediationTable(t *fetcher.Table, me *MediationEvidence, status *model.ProducerStatus) error {
	cols := newColumns(t.Header)
	pathIdx := cols.find(pathAliases)
	if pathIdx < 0 {
		pathIdx = cols.find(edgeAliases)
	}
	sigIdx := cols.find(significanceAliases)
	if pathIdx < 0 || sigIdx < 0 {
		return eris.Errorf("ingest: %s: header lacks path/significance columns", t.Location)
	}
	flagIdx := cols.find(significantAliases)
	effIdx := cols.find(effectAliases)

	for _, row := range t.Rows {
		status.RowsRead++
		nodes := model.SplitPath(cell(row, pathIdx))
		p, ok := parseFinite(cell(row, sigIdx))
		if len(nodes) < 2 || !ok {
			status.RowsRejected++
			continue
		}
		effect, _ := parseFinite(cell(row, effIdx))

		significant := p >= 0.95
		if flagIdx >= 0 {
			significant = parseYes(cell(row, flagIdx))
		}

		idx := len(me.Paths)
		me.Paths = append(me.Paths, MediationPath{
			Nodes:        nodes,
			Significance: p,
			Significant:  significant,
			Effect:       effect,
		})
		for i := 0; i+1 < len(nodes); i++ {
			key := model.EdgeKey{Source: nodes[i], Target: nodes[i+1]}
			me.ByEdge[key] = append(me.ByEdge[key], idx)
		}
		status.RowsAccepted++
	}
	return nil
}

func rowEdge(row []string, edgeIdx, srcIdx, tgtIdx int) (model.EdgeKey, bool) {
	if edgeIdx >= 0 {
		if k, err := model.ParseEdgeKey(cell(row, edgeIdx)); err == nil {
			return k, true
		}
	}
	src, tgt := cell(row, srcIdx), cell(row, tgtIdx)
	if src == "" || tgt == "" {
		return model.EdgeKey{}, false
	}
	return model.EdgeKey{Source: src, Target: tgt}, true
}

func parseYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1", "significant", "是":
		return true
	}
	return false
}

func mergeNames(have, add []string) []string {
	for _, a := range add {
		found := false
		for _, h := range have {
			if h == a {
				found = true
				break
			}
		}
		if !found {
			have = append(have, a)
		}
	}
	return have
}

func finishStatus(status model.ProducerStatus, err error) model.ProducerStatus {
	if err == nil {
		status.State = model.ProducerLoaded
		return status
	}
	status.State = model.ProducerMalformed
	if errors.Is(err, fetcher.ErrNotFound) {
		status.State = model.ProducerMissing
	}
	status.Error = err.Error()
	status.RowsAccepted = 0
	zap.L().Warn("ingest: score table skipped",
		zap.String("table", status.Producer),
		zap.String("location", status.Location),
		zap.String("state", string(status.State)),
		zap.Error(err),
	)
	return status
}
