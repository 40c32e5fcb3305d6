package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/orchestrator"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
)

var (
	analyzeTicker string
	analyzeChain  string
	analyzeDryRun bool
	analyzeStates bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <contract-address>",
	Short: "Run a full analysis for one token and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, err := model.ParseChain(analyzeChain)
		if err != nil {
			return err
		}
		req := model.AnalysisRequest{
			Ticker:          analyzeTicker,
			ContractAddress: args[0],
			Chain:           chain,
		}

		env, err := initEnv(cmd.Context(), analyzeDryRun)
		if err != nil {
			return err
		}
		defer env.Close()

		if analyzeStates {
			env.Orchestrator.SetAck(func(state orchestrator.State) {
				zap.L().Info("analysis state", zap.String("state", string(state)))
			})
		}

		report, err := env.Orchestrator.Run(cmd.Context(), req)
		if errors.Is(err, store.ErrAlreadyPersisted) {
			zap.L().Warn("report already persisted, printing the fresh run without saving",
				zap.String("contract", req.ContractAddress))
		} else if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTicker, "ticker", "", "token ticker symbol (required)")
	analyzeCmd.Flags().StringVar(&analyzeChain, "chain", "solana", "chain the token lives on")
	analyzeCmd.Flags().BoolVar(&analyzeDryRun, "dry-run", false, "skip persistence, print only")
	analyzeCmd.Flags().BoolVar(&analyzeStates, "progress", false, "log state transitions during the run")
	_ = analyzeCmd.MarkFlagRequired("ticker")
	rootCmd.AddCommand(analyzeCmd)
}
