package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "incr", cmd.Use)
	assert.Contains(t, cmd.Long, "workfile")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "status", "diff", "history", "forget"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	fileFlag := cmd.PersistentFlags().Lookup("file")
	require.NotNil(t, fileFlag)
	assert.Equal(t, "f", fileFlag.Shorthand)

	rootFlag := cmd.PersistentFlags().Lookup("root")
	require.NotNil(t, rootFlag)
	assert.Equal(t, "C", rootFlag.Shorthand)

	for _, name := range []string{"db", "cache-dir", "env-file"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue, name)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	keepGoing := runCmd.Flags().Lookup("keep-going")
	require.NotNil(t, keepGoing)
	assert.Equal(t, "k", keepGoing.Shorthand)
	assert.Equal(t, "false", keepGoing.DefValue)
}

func TestStatusCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	statusCmd, _, err := cmd.Find([]string{"status"})
	require.NoError(t, err)

	check := statusCmd.Flags().Lookup("check")
	require.NotNil(t, check)
	assert.Equal(t, "false", check.DefValue)
}

func TestDiffCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	diffCmd, _, err := cmd.Find([]string{"diff"})
	require.NoError(t, err)

	require.NotNil(t, diffCmd.Flags().Lookup("outputs"))
	unified := diffCmd.Flags().Lookup("unified")
	require.NotNil(t, unified)
	assert.Equal(t, "U", unified.Shorthand)
	assert.Equal(t, "3", unified.DefValue)
}

func TestIsValidFormat(t *testing.T) {
	tests := []struct {
		format string
		valid  bool
	}{
		{"text", true},
		{"json", true},
		{"yaml", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidFormat(tt.format))
		})
	}
}
