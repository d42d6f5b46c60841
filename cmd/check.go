package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kairuizhang035-crypto/yinguo/internal/engine"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and report table load status",
	Long:  "Validates every weight set, the tier table, and the prior table, then loads each producer and score table and reports its status without scoring.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

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

		b, err := eng.Check(ctx)
		if err != nil {
			return err
		}

		statuses := b.Statuses()
		formatStatuses(os.Stdout, statuses)
		fmt.Fprintf(os.Stdout, "\nCandidate edges: %d\n", len(b.Evidence.Keys))

		if loadedProducers(statuses) == 0 {
			return eris.New("check: no producer table loaded")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// loadedProducers counts producer tables that loaded. Score tables carry no
// category and are not counted.
func loadedProducers(statuses []model.ProducerStatus) int {
	n := 0
	for _, s := range statuses {
		if s.Category != "" && s.State == model.ProducerLoaded {
			n++
		}
	}
	return n
}

// formatStatuses writes one row per table to w.
func formatStatuses(out io.Writer, statuses []model.ProducerStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tCATEGORY\tSTATE\tREAD\tACCEPTED\tREJECTED\tDUPLICATES\tERROR")
	_, _ = fmt.Fprintln(w, "-----\t--------\t-----\t----\t--------\t--------\t----------\t-----")
	for _, s := range statuses {
		category := string(s.Category)
		if category == "" {
			category = "-"
		}
		errMsg := s.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Producer,
			category,
			s.State,
			s.RowsRead,
			s.RowsAccepted,
			s.RowsRejected,
			s.Duplicates,
			errMsg,
		)
	}
	_ = w.Flush()
}
