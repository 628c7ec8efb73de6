package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = ".converge"
	configFileType = "yaml"
	envPrefix      = "CONVERGE"
)

// Settings holds the resolved runtime configuration for one command
// invocation.
type Settings struct {
	ConfigDir   string `mapstructure:"config_dir"`
	StatePath   string `mapstructure:"state_path"`
	Parallelism int    `mapstructure:"parallelism"`
	LogFormat   string `mapstructure:"log_format"`
	LogLevel    string `mapstructure:"log_level"`
	AutoApprove bool   `mapstructure:"auto_approve"`
}

// defaultSettings returns the built-in defaults.
func defaultSettings() *Settings {
	return &Settings{
		ConfigDir:   ".",
		StatePath:   "converge.state.json",
		Parallelism: 10,
		LogFormat:   "text",
		LogLevel:    "info",
		AutoApprove: false,
	}
}

// loadSettings reads the optional .converge.yaml file and the CONVERGE_*
// environment, layered over the defaults.
func loadSettings() (*Settings, error) {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := defaultSettings()
	v.SetDefault("config_dir", defaults.ConfigDir)
	v.SetDefault("state_path", defaults.StatePath)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("auto_approve", defaults.AutoApprove)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &s, nil
}

// loadAndMerge resolves settings for a command.
// Priority: flags > environment > config file > defaults.
func loadAndMerge(cmd *cobra.Command) (*Settings, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("config-dir") {
		s.ConfigDir, _ = flags.GetString("config-dir")
	}
	if flags.Changed("state") {
		s.StatePath, _ = flags.GetString("state")
	}
	if flags.Changed("parallelism") {
		s.Parallelism, _ = flags.GetInt("parallelism")
	}
	if flags.Changed("log-format") {
		s.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("log-level") {
		s.LogLevel, _ = flags.GetString("log-level")
	}
	if f := flags.Lookup("auto-approve"); f != nil && f.Changed {
		s.AutoApprove, _ = flags.GetBool("auto-approve")
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", s.LogFormat)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", s.LogLevel)
	}
	if s.Parallelism < 1 {
		return fmt.Errorf("invalid parallelism %d: must be at least 1", s.Parallelism)
	}
	return nil
}
