package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"analyze", "serve", "reports", "tokens", "migrate", "import"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "arlo", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	flag := analyzeCmd.Flags().Lookup("ticker")
	require.NotNil(t, flag, "analyze command should have --ticker flag")

	chainFlag := analyzeCmd.Flags().Lookup("chain")
	require.NotNil(t, chainFlag)
	assert.Equal(t, "solana", chainFlag.DefValue)

	require.NotNil(t, analyzeCmd.Flags().Lookup("dry-run"))
}

func TestReportsCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range reportsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected reports subcommand %q not found", name)
	}
}
