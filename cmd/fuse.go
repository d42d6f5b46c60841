package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/engine"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/report"
	"github.com/kairuizhang035-crypto/yinguo/internal/store"
)

var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Run one evidence-fusion batch",
	Long:  "Loads every producer and score table, scores and tiers the candidate edges, triangulates the tiered edges, and writes the artifacts to the output directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := applyFuseFlags(cmd, &cfg.Fusion); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		loader, err := newLoader(cfg.S3)
		if err != nil {
			return err
		}
		eng, err := engine.New(cfg.Fusion, loader)
		if err != nil {
			return err
		}

		var st store.Store
		if save, _ := cmd.Flags().GetBool("save"); save {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		fp, err := cfg.Fingerprint()
		if err != nil {
			return err
		}

		sum, err := fuse(ctx, eng, st, fuseOptions{
			OutputDir:   cfg.Fusion.Output.Dir,
			Fingerprint: fp,
			Workbook:    cfg.Fusion.Output.XLSX,
		})
		if err != nil {
			return err
		}
		printSummary(os.Stdout, sum, cfg.Fusion.Output.Dir)
		return nil
	},
}

func init() {
	f := fuseCmd.Flags()
	f.String("output", "", "output directory (overrides fusion.output.dir)")
	f.Uint64("seed", 0, "random seed for the outlier heuristic (overrides fusion.seed)")
	f.Float64("confidence", 0, "core confidence threshold (overrides fusion.triangulation.confidence_threshold)")
	f.Float64("quality", 0, "core data-quality threshold (overrides fusion.triangulation.quality_threshold)")
	f.Bool("xlsx", false, "also write results.xlsx")
	f.Bool("save", false, "record the run in the run ledger")
	rootCmd.AddCommand(fuseCmd)
}

// applyFuseFlags copies explicitly set flags over the loaded configuration.
func applyFuseFlags(cmd *cobra.Command, f *config.FusionConfig) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		f.Output.Dir, _ = flags.GetString("output")
	}
	if flags.Changed("seed") {
		f.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("confidence") {
		f.Triangulation.ConfidenceThreshold, _ = flags.GetFloat64("confidence")
	}
	if flags.Changed("quality") {
		f.Triangulation.QualityThreshold, _ = flags.GetFloat64("quality")
	}
	if flags.Changed("xlsx") {
		f.Output.XLSX, _ = flags.GetBool("xlsx")
	}

	gates := []struct {
		name string
		v    float64
	}{
		{"confidence", f.Triangulation.ConfidenceThreshold},
		{"quality", f.Triangulation.QualityThreshold},
	}
	for _, g := range gates {
		if g.v < 0 || g.v > 1 {
			return eris.Errorf("fuse: --%s must be in [0,1], got %g", g.name, g.v)
		}
	}
	return nil
}

type batchRunner interface {
	Run(ctx context.Context) (*engine.Batch, error)
}

type fuseOptions struct {
	OutputDir   string
	Fingerprint string
	Workbook    bool
}

// fuse runs one batch, writes its artifacts, and records it when st is
// non-nil. A failed batch is recorded as failed before the error returns.
func fuse(ctx context.Context, eng batchRunner, st store.Store, opts fuseOptions) (report.Summary, error) {
	var run *model.Run
	if st != nil {
		r, err := st.CreateRun(ctx, opts.Fingerprint, opts.OutputDir)
		if err != nil {
			return report.Summary{}, eris.Wrap(err, "fuse: create run")
		}
		run = r
	}

	sum, b, err := runBatch(ctx, eng, opts)
	if err != nil {
		if run != nil {
			if ferr := st.FailRun(context.WithoutCancel(ctx), run.ID, err); ferr != nil {
				zap.L().Error("fuse: record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
			}
		}
		return report.Summary{}, err
	}
	if run == nil {
		return sum, nil
	}

	ensemble := make(map[model.EdgeKey]float64, len(b.Scored))
	for _, e := range b.Scored {
		ensemble[e.Edge] = e.Ensemble
	}
	if err := st.SaveEdges(ctx, run.ID, store.EdgeRecords(run.ID, b.Records, ensemble)); err != nil {
		return sum, eris.Wrap(err, "fuse: save edges")
	}

	data, err := json.Marshal(sum)
	if err != nil {
		return sum, eris.Wrap(err, "fuse: marshal summary")
	}
	if err := st.CompleteRun(ctx, run.ID, data); err != nil {
		return sum, eris.Wrap(err, "fuse: complete run")
	}
	zap.L().Info("fuse: run recorded", zap.String("run_id", run.ID))
	return sum, nil
}

func runBatch(ctx context.Context, eng batchRunner, opts fuseOptions) (report.Summary, *engine.Batch, error) {
	b, err := eng.Run(ctx)
	if err != nil {
		return report.Summary{}, nil, err
	}
	sum, err := report.Write(opts.OutputDir, b, report.Options{Workbook: opts.Workbook})
	if err != nil {
		return report.Summary{}, nil, err
	}
	return sum, b, nil
}

// printSummary writes a short human-readable digest of sum to out.
func printSummary(out io.Writer, sum report.Summary, dir string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Candidate edges:\t%d\n", sum.TotalEdges)
	for _, t := range model.Tiers {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", t, sum.TierCounts[t])
	}
	_, _ = fmt.Fprintf(w, "  %s:\t%d\n", model.TierNone, sum.TierCounts[model.TierNone])
	_, _ = fmt.Fprintf(w, "Threshold:\t%.4f\n", sum.Threshold.Final)
	_, _ = fmt.Fprintf(w, "Tiered edges:\t%d\n", sum.TieredEdges)
	_, _ = fmt.Fprintf(w, "Core edges:\t%d\n", sum.CoreEdges)
	_, _ = fmt.Fprintf(w, "Mean joint confidence:\t%.4f\n", sum.Confidence.Mean)
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", dir)
	_ = w.Flush()
}
