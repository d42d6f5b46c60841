package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// WriteCoreReport writes the human-readable core edge report.
func WriteCoreReport(w io.Writer, core []model.TriangulationRecord, tiered int) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Core edge report")
	fmt.Fprintln(bw, strings.Repeat("=", 60))
	fmt.Fprintf(bw, "Core edges: %d of %d tiered\n", len(core), tiered)

	for i, r := range core {
		fmt.Fprintf(bw, "\n[%d] %s -> %s (%s)\n", i+1, r.Edge.Source, r.Edge.Target, r.Tier)
		fmt.Fprintf(bw, "    joint confidence:  %s\n", fmtFloat(r.Joint))
		fmt.Fprintf(bw, "    quality adjusted:  %s\n", fmtFloat(r.QualityAdjusted))
		fmt.Fprintf(bw, "    data quality:      %s\n", fmtFloat(r.DataQuality))
		for _, p := range model.Pillars {
			ps := r.Pillar(p)
			line := fmt.Sprintf("    %-11s %s  contribution %s", p, fmtFloat(ps.Value), fmtFloat(r.Contributions[p]))
			if ps.Estimated {
				line += "  estimated"
			}
			fmt.Fprintln(bw, line)
		}
		fmt.Fprintf(bw, "    strongest pillar:  %s\n", r.StrongestPillar())
		fmt.Fprintf(bw, "    weakest pillar:    %s\n", r.WeakestPillar())
	}

	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "report: write core report")
	}
	return nil
}
