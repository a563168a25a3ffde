package flags

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Env vars
	EnvVarConfigFile = "PAYINIT_CONFIG_FILE"
	EnvVarLogPath    = "PAYINIT_LOG_PATH"
	EnvVarLogLevel   = "PAYINIT_LOG_LEVEL"
	EnvVarEnvFile    = "PAYINIT_ENV_FILE"

	// Defaults
	DefaultConfigFile = ".payinit.toml"
	DefaultLogPath    = ""
	DefaultLogLevel   = "info"
	DefaultEnvFile    = ".env"

	// Flag names
	FlagNameConfigFile = "config-file"
	FlagNameLogPath    = "log-path"
	FlagNameLogLevel   = "log-level"
	FlagNameEnvFile    = "env-file"
)

var (
	ConfigFile string
	LogPath    string
	LogLevel   string
	EnvFile    string
)

func InitFlags(fs *pflag.FlagSet) {
	initConfigFile(fs)
	initEnvFile(fs)
	initLogger(fs)
}

func initConfigFile(fs *pflag.FlagSet) {
	if ConfigFile == "" {
		ConfigFile = fromEnv(EnvVarConfigFile, DefaultConfigFile)
	}
	fs.StringVar(&ConfigFile, FlagNameConfigFile, ConfigFile, "path to config file")
}

func initEnvFile(fs *pflag.FlagSet) {
	if EnvFile == "" {
		EnvFile = fromEnv(EnvVarEnvFile, DefaultEnvFile)
	}
	fs.StringVar(&EnvFile, FlagNameEnvFile, EnvFile, "path to a .env file loaded before the config (ignored when missing)")
}

func initLogger(fs *pflag.FlagSet) {
	if LogPath == "" {
		LogPath = fromEnv(EnvVarLogPath, DefaultLogPath)
	}
	fs.StringVar(&LogPath, FlagNameLogPath, LogPath, "path to generated log file")

	if LogLevel == "" {
		LogLevel = strings.ToLower(fromEnv(EnvVarLogLevel, DefaultLogLevel))
	}
	fs.StringVar(&LogLevel, FlagNameLogLevel, LogLevel, "log level for payinit logs")
}

func fromEnv(key string, fallback string) string {
	if env := strings.TrimSpace(os.Getenv(key)); env != "" {
		return env
	}
	return fallback
}
