package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTokensFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadTokensCSV(t *testing.T) {
	path := writeTokensFile(t, "contract_address,name,ticker\nmint123,Test Token,TST\nmint456,Other,OTH\n")

	tokens, err := readTokensCSV(path)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "mint123", tokens[0].ContractAddress)
	assert.Equal(t, "Test Token", tokens[0].Name)
	assert.Equal(t, "OTH", tokens[1].Ticker)
}

func TestReadTokensCSV_NoHeader(t *testing.T) {
	path := writeTokensFile(t, "mint123,Test Token,TST\n")

	tokens, err := readTokensCSV(path)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
}

func TestReadTokensCSV_MissingFields(t *testing.T) {
	path := writeTokensFile(t, ",Test Token,TST\n")

	_, err := readTokensCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract address and ticker are required")
}

func TestReadTokensCSV_WrongColumnCount(t *testing.T) {
	path := writeTokensFile(t, "mint123,TST\n")

	_, err := readTokensCSV(path)
	require.Error(t, err)
}

func TestReadTokensCSV_MissingFile(t *testing.T) {
	_, err := readTokensCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
