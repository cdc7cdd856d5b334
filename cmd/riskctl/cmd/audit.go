package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"futures-risk-go/risk"
)

func newAuditCmd(opts *options) *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the risk audit log",
	}
	c.PersistentFlags().StringVarP(&file, "file", "f", "", "audit JSONL file (defaults to audit.file from the config)")

	load := func() ([]risk.AuditRecord, error) {
		path := file
		if path == "" {
			cfg, err := opts.appConfig()
			if err != nil {
				return nil, err
			}
			path = cfg.Audit.File
		}
		recs, err := risk.ReadAuditFile(path)
		if err != nil && len(recs) == 0 {
			return nil, err
		}
		return recs, nil
	}

	var symbol, outcome string
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the latest audit records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := load()
			if err != nil {
				return err
			}
			out := make([]risk.AuditRecord, 0, len(recs))
			for _, r := range recs {
				if symbol != "" && r.Symbol != symbol {
					continue
				}
				if outcome != "" && string(r.Outcome) != outcome {
					continue
				}
				out = append(out, r)
			}
			if limit > 0 && len(out) > limit {
				out = out[len(out)-limit:]
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	tail.Flags().StringVar(&symbol, "symbol", "", "only this symbol")
	tail.Flags().StringVar(&outcome, "outcome", "", "only this outcome (passed, warning, blocked)")
	tail.Flags().IntVarP(&limit, "limit", "n", 20, "number of records, 0 for all")

	c.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Summarise outcomes of the audit log",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				recs, err := load()
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					return fmt.Errorf("audit log is empty")
				}
				return writeJSON(cmd.OutOrStdout(), risk.ComputeAuditStats(recs))
			},
		},
		tail,
	)
	return c
}
