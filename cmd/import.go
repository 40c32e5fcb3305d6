package main

import (
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/db"
	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <tokens.csv>",
	Short: "Bulk-load the token registry from a CSV file",
	Long:  "Loads tokens from a CSV with columns contract_address,name,ticker. Existing entries are updated; analysis flags are preserved.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := readTokensCSV(args[0])
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			zap.L().Info("no tokens in file, nothing to import")
			return nil
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		// Postgres gets a single COPY-backed upsert; SQLite inserts row
		// by row.
		if pg, ok := st.(*store.PostgresStore); ok {
			rows := make([][]any, len(tokens))
			now := time.Now().UTC()
			for i, tok := range tokens {
				rows[i] = []any{tok.ContractAddress, tok.Name, tok.Ticker, now}
			}
			n, err := db.BulkUpsert(cmd.Context(), pg.Pool(), db.UpsertConfig{
				Table:        "tokens",
				Columns:      []string{"contract_address", "name", "ticker", "created_at"},
				ConflictKeys: []string{"contract_address"},
				UpdateCols:   []string{"name", "ticker"},
			}, rows)
			if err != nil {
				return err
			}
			zap.L().Info("token registry imported", zap.Int64("rows", n))
			return nil
		}

		for _, tok := range tokens {
			if err := st.SaveToken(cmd.Context(), tok); err != nil {
				return err
			}
		}
		zap.L().Info("token registry imported", zap.Int("rows", len(tokens)))
		return nil
	},
}

// readTokensCSV parses contract_address,name,ticker rows, skipping a header
// line when present.
func readTokensCSV(path string) ([]model.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open tokens file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var tokens []model.Token
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read tokens file line %d", line)
		}
		if line == 1 && rec[0] == "contract_address" {
			continue
		}
		if rec[0] == "" || rec[2] == "" {
			return nil, eris.Errorf("tokens file line %d: contract address and ticker are required", line)
		}
		tokens = append(tokens, model.Token{
			ContractAddress: rec[0],
			Name:            rec[1],
			Ticker:          rec[2],
		})
	}
	return tokens, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
