// Package ingest loads per-producer evidence tables and score tables into
// one keyed structure, recording a status for every table it touches.
package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/fetcher"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

// TableLoader loads a decoded table from a location.
type TableLoader interface {
	Load(ctx context.Context, location string) (*fetcher.Table, error)
}

// Producer is a configured candidate-discovery producer.
type Producer struct {
	Index    int
	Name     string
	Category model.ProducerCategory
	Location string
	Weight   float64

	adapter Adapter
}

// Evidence is the normalized output of ingestion.
type Evidence struct {
	Producers []Producer
	// Keys holds every edge once, in first-sighting order across producers
	// taken in configuration order.
	Keys []model.EdgeKey
	// Rows holds at most one row per producer per edge, in producer order.
	Rows map[model.EdgeKey][]model.EvidenceRow
	// Appearances counts deduplicated rows per edge: one per observing producer.
	Appearances map[model.EdgeKey]int
	Statuses    []model.ProducerStatus
}

// Ingestor loads producer tables.
type Ingestor struct {
	loader      TableLoader
	producers   []Producer
	concurrency int
}

// NewIngestor builds an ingestor for the configured producers. An unknown
// category is a ConfigurationError.
func NewIngestor(loader TableLoader, producers []config.ProducerConfig, concurrency int) (*Ingestor, error) {
	var errs []string
	ps := make([]Producer, 0, len(producers))
	for i, pc := range producers {
		cat := model.ProducerCategory(pc.Category)
		adapter, err := AdapterFor(cat)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		ps = append(ps, Producer{
			Index:    i,
			Name:     pc.Name,
			Category: cat,
			Location: pc.Location,
			Weight:   pc.EffectiveWeight(),
			adapter:  adapter,
		})
	}
	if len(errs) > 0 {
		return nil, resilience.NewConfigurationError(
			eris.Errorf("ingest: invalid producers: %s", strings.Join(errs, "; ")), errs...)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Ingestor{loader: loader, producers: ps, concurrency: concurrency}, nil
}

// Producers returns the configured producers in configuration order.
func (in *Ingestor) Producers() []Producer {
	return in.producers
}

// producerResult is one producer's parsed table, merged after all loads finish.
type producerResult struct {
	rows   []model.EvidenceRow
	status model.ProducerStatus
}

// Ingest loads every producer table. Missing or malformed tables are logged
// and contribute zero rows; only context cancellation is returned.
func (in *Ingestor) Ingest(ctx context.Context) (*Evidence, error) {
	results := make([]producerResult, len(in.producers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i, p := range in.producers {
		g.Go(func() error {
			results[i] = in.loadProducer(gctx, p)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: load producers")
	}

	ev := &Evidence{
		Producers:   in.producers,
		Rows:        make(map[model.EdgeKey][]model.EvidenceRow),
		Appearances: make(map[model.EdgeKey]int),
	}
	for _, r := range results {
		ev.Statuses = append(ev.Statuses, r.status)
		for _, row := range r.rows {
			if _, seen := ev.Rows[row.Edge]; !seen {
				ev.Keys = append(ev.Keys, row.Edge)
			}
			ev.Rows[row.Edge] = append(ev.Rows[row.Edge], row)
			ev.Appearances[row.Edge]++
		}
	}

	zap.L().Info("ingest: producers loaded",
		zap.Int("producers", len(in.producers)),
		zap.Int("edges", len(ev.Keys)),
	)
	return ev, nil
}

func (in *Ingestor) loadProducer(ctx context.Context, p Producer) producerResult {
	log := zap.L().With(zap.String("producer", p.Name), zap.String("location", p.Location))
	status := model.ProducerStatus{
		Producer: p.Name,
		Category: p.Category,
		Location: p.Location,
	}

	table, err := in.loader.Load(ctx, p.Location)
	if err != nil {
		ierr := resilience.NewProducerIngestError(err, p.Name, errors.Is(err, fetcher.ErrNotFound))
		return failed(log, status, ierr)
	}

	res, err := parseProducerTable(p, table)
	if err != nil {
		return failed(log, status, resilience.NewProducerIngestError(err, p.Name, false))
	}
	res.status.Producer = status.Producer
	res.status.Category = status.Category
	res.status.Location = status.Location
	res.status.State = model.ProducerLoaded

	if res.status.RowsRejected > 0 {
		log.Warn("ingest: rows rejected", zap.Int("rejected", res.status.RowsRejected))
	}
	log.Debug("ingest: producer loaded",
		zap.Int("accepted", res.status.RowsAccepted),
		zap.Int("duplicates", res.status.Duplicates),
	)
	return res
}

func failed(log *zap.Logger, status model.ProducerStatus, err *resilience.ProducerIngestError) producerResult {
	status.State = model.ProducerMalformed
	if err.Missing {
		status.State = model.ProducerMissing
	}
	status.Error = err.Error()
	log.Warn("ingest: producer contributes zero rows", zap.String("state", string(status.State)), zap.Error(err))
	return producerResult{status: status}
}

// parseProducerTable validates and deduplicates one producer's rows. A table
// without source and target columns is malformed.
func parseProducerTable(p Producer, t *fetcher.Table) (producerResult, error) {
	cols := newColumns(t.Header)
	srcIdx, tgtIdx := cols.find(sourceAliases), cols.find(targetAliases)
	if srcIdx < 0 || tgtIdx < 0 {
		return producerResult{}, eris.Errorf("ingest: %s: header %v lacks source/target columns", t.Location, t.Header)
	}
	rawIdx := cols.find(rawAliases)
	catIdx := cols.find(categoryAliases)
	nameIdx := cols.find(nameAliases)

	var res producerResult
	pos := make(map[model.EdgeKey]int)

	for i, row := range t.Rows {
		res.status.RowsRead++
		src, tgt := cell(row, srcIdx), cell(row, tgtIdx)
		if src == "" || tgt == "" || src == tgt {
			res.status.RowsRejected++
			continue
		}
		if c := cell(row, catIdx); c != "" && normalizeHeader(c) != string(p.Category) {
			res.status.RowsRejected++
			continue
		}
		if n := cell(row, nameIdx); n != "" && !strings.EqualFold(n, p.Name) {
			res.status.RowsRejected++
			continue
		}

		raw := cell(row, rawIdx)
		support, ok := p.adapter.Normalize(raw)
		if !ok {
			// Observed without a usable score.
			support = 1
		}
		key := model.EdgeKey{Source: src, Target: tgt}
		er := model.EvidenceRow{
			Edge:      key,
			Producer:  p.Name,
			Category:  p.Category,
			Raw:       raw,
			Support:   support,
			Validated: ok,
			Line:      i + 2,
		}

		res.status.RowsAccepted++
		if j, dup := pos[key]; dup {
			res.status.Duplicates++
			if er.Validated && !res.rows[j].Validated {
				res.rows[j] = er
			}
			continue
		}
		pos[key] = len(res.rows)
		res.rows = append(res.rows, er)
	}
	return res, nil
}
