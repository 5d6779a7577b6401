package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "migrate", "namespace", "workspace", "ingest", "seeds"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "crawlspace", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestWorkspaceCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range workspaceCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "create", "select", "delete", "init"} {
		assert.True(t, names[name], "workspace should have subcommand %q", name)
	}
}

func TestSeedsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range seedsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "add", "keywords", "refresh"} {
		assert.True(t, names[name], "seeds should have subcommand %q", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestDestructiveCommands_RequireYes(t *testing.T) {
	flag := workspaceInitCmd.Flags().Lookup("yes")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)

	flag = namespaceInitCmd.Flags().Lookup("yes")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestWorkspaceListCommand_Flags(t *testing.T) {
	flag := workspaceListCmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "table", flag.DefValue)
	assert.Equal(t, "o", flag.Shorthand)
}
