package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/monitoring"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
)

var (
	reportsChain      string
	reportsAssessment string
	reportsByScore    bool
	reportsLimit      int
	reportsOffset     int
	reportsOutput     string
	reportsLookback   int
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect persisted analysis reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.ReportFilter{
			SortByScore: reportsByScore,
			Limit:       reportsLimit,
			Offset:      reportsOffset,
		}
		if reportsChain != "" {
			chain, err := model.ParseChain(reportsChain)
			if err != nil {
				return err
			}
			filter.Chain = chain
		}
		if reportsAssessment != "" {
			filter.Assessment = model.Assessment(reportsAssessment)
		}

		reports, err := st.ListReports(cmd.Context(), filter)
		if err != nil {
			return err
		}

		for _, r := range reports {
			fmt.Printf("%-12s %-10s %6.1f  %-8s  %s\n",
				r.TokenTicker, r.Chain, r.FinalScore, r.FinalAssessment, r.ContractAddress)
		}
		fmt.Printf("%d report(s)\n", len(reports))
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <contract-address>",
	Short: "Print one report in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := st.GetReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report == nil {
			return eris.Errorf("no report for %s", args[0])
		}

		return writeReport(report)
	},
}

var reportsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize score distribution across persisted reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := monitoring.NewCollector(st).Collect(cmd.Context(), reportsLookback)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func writeReport(report *model.Report) error {
	switch reportsOutput {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		out, err := yaml.Marshal(report)
		if err != nil {
			return eris.Wrap(err, "marshal report")
		}
		_, err = os.Stdout.Write(out)
		return err
	default:
		return eris.Errorf("unknown output format %q", reportsOutput)
	}
}

func init() {
	reportsListCmd.Flags().StringVar(&reportsChain, "chain", "", "filter by chain")
	reportsListCmd.Flags().StringVar(&reportsAssessment, "assessment", "", "filter by assessment (positive, neutral, negative)")
	reportsListCmd.Flags().BoolVar(&reportsByScore, "by-score", false, "order by final score instead of recency")
	reportsListCmd.Flags().IntVar(&reportsLimit, "limit", 50, "maximum reports to list")
	reportsListCmd.Flags().IntVar(&reportsOffset, "offset", 0, "skip this many reports")

	reportsShowCmd.Flags().StringVar(&reportsOutput, "output", "json", "output format (json or yaml)")

	reportsStatsCmd.Flags().IntVar(&reportsLookback, "lookback", 0, "restrict to reports from the last N hours (0 = all)")

	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsStatsCmd)
	rootCmd.AddCommand(reportsCmd)
}
