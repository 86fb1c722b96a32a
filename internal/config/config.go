package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all orchestrator configuration (§A of the expanded spec):
// the verification command, the Ralph-Loop attempt ceiling, backup
// retention, the test timeout, the allowed-command allowlist for
// verification commands, and the code-generation collaborator's
// invocation.
type Config struct {
	TestCommand        []string      `mapstructure:"test_command"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BackupRetention    int           `mapstructure:"backup_retention"`
	TestTimeoutSeconds int           `mapstructure:"test_timeout_seconds"`
	AllowedCommands    []string      `mapstructure:"allowed_commands"`
	Codegen            CodegenConfig `mapstructure:"codegen"`
}

// CodegenConfig holds the external code-generation collaborator's
// invocation settings (the command SubprocessCollaborator shells out to).
type CodegenConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// LoadConfigWithFile loads configuration from a specific file if provided,
// otherwise falls back to LoadConfig with the working directory, and
// finally to the global XDG config path.
func LoadConfigWithFile(workDir, configFile string) (*Config, error) {
	if configFile != "" {
		return LoadConfigFromPath(configFile)
	}

	localPath := filepath.Join(workDir, "kirospec.yaml")
	if _, err := os.Stat(localPath); err == nil {
		return LoadConfig(workDir)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	globalPath, err := GlobalConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadConfigFromPath(globalPath)
}

// LoadConfig loads configuration from kirospec.yaml in the given directory.
// If no config file exists, sensible defaults are returned.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("kirospec")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigFromPath loads configuration from a specific file path.
func LoadConfigFromPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			if err := v.Unmarshal(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets all default values for configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("test_command", []string{"go", "test", "./..."})
	v.SetDefault("max_attempts", DefaultMaxAttempts)
	v.SetDefault("backup_retention", DefaultBackupRetention)
	v.SetDefault("test_timeout_seconds", DefaultTestTimeoutSeconds)
	v.SetDefault("allowed_commands", DefaultAllowedCommands)

	v.SetDefault("codegen.command", DefaultCodegenCommand)
	v.SetDefault("codegen.args", []string{})
}
