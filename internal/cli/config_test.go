package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("config-dir", ".", "")
	cmd.Flags().String("state", "converge.state.json", "")
	cmd.Flags().Int("parallelism", 10, "")
	cmd.Flags().String("log-format", "text", "")
	cmd.Flags().String("log-level", "info", "")
	cmd.Flags().Bool("auto-approve", false, "")
	return cmd
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, ".", s.ConfigDir)
	assert.Equal(t, "converge.state.json", s.StatePath)
	assert.Equal(t, 10, s.Parallelism)
	assert.Equal(t, "text", s.LogFormat)
	assert.Equal(t, "info", s.LogLevel)
	assert.False(t, s.AutoApprove)
}

func TestLoadSettings_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("CONVERGE_STATE_PATH", "/tmp/other.state.json")
	t.Setenv("CONVERGE_PARALLELISM", "3")
	t.Setenv("CONVERGE_LOG_FORMAT", "json")

	s, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.state.json", s.StatePath)
	assert.Equal(t, 3, s.Parallelism)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoadAndMerge_FlagsBeatEnvironment(t *testing.T) {
	t.Setenv("CONVERGE_PARALLELISM", "3")

	cmd := settingsCommand()
	require.NoError(t, cmd.Flags().Set("parallelism", "7"))
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))

	s, err := loadAndMerge(cmd)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Parallelism)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadAndMerge_Validation(t *testing.T) {
	cases := []struct {
		name  string
		flag  string
		value string
		want  string
	}{
		{"bad log format", "log-format", "xml", "invalid log-format"},
		{"bad log level", "log-level", "loud", "invalid log-level"},
		{"bad parallelism", "parallelism", "0", "invalid parallelism"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := settingsCommand()
			require.NoError(t, cmd.Flags().Set(tc.flag, tc.value))
			_, err := loadAndMerge(cmd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
