package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tokensLimit int

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List the token registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		tokens, err := st.ListTokens(cmd.Context(), tokensLimit)
		if err != nil {
			return err
		}

		for _, tok := range tokens {
			analyzed := " "
			if tok.AnalysisExists {
				analyzed = "*"
			}
			fmt.Printf("%s %-12s %-24s %s\n", analyzed, tok.Ticker, tok.Name, tok.ContractAddress)
		}
		fmt.Printf("%d token(s), * = analysis exists\n", len(tokens))
		return nil
	},
}

func init() {
	tokensCmd.Flags().IntVar(&tokensLimit, "limit", 100, "maximum tokens to list")
	rootCmd.AddCommand(tokensCmd)
}
