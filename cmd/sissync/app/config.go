package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/sissync/pkg/constants"
	"github.com/agentstation/sissync/pkg/errors"
)

// Config holds the application configuration loaded from flags, SISSYNC_*
// environment variables, .env files and ~/.sissync.yaml.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Remote API
	APIRoot  string
	Username string
	Password string
	Token    string

	// Local exports
	DataDir      string
	EntitiesFile string
	Files        map[string]string

	// Transport
	PageSize          int
	RateLimit         float64
	HTTPTimeout       time.Duration
	DiscoveryAttempts int
	DiscoveryDelay    time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (bound in setupCommand)
// 2. Environment variables (SISSYNC_*)
// 3. .env files
// 4. Config file (~/.sissync.yaml or ./.sissync.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return loadConfig(viper.GetViper(), "")
}

func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "reading "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(constants.DefaultConfigName)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "reading config file", err)
			}
		}
	}

	return &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		APIRoot:  v.GetString("api_root"),
		Username: v.GetString("username"),
		Password: v.GetString("password"),
		Token:    v.GetString("token"),

		DataDir:      v.GetString("data_dir"),
		EntitiesFile: v.GetString("entities_file"),
		Files:        v.GetStringMapString("files"),

		PageSize:          v.GetInt("page_size"),
		RateLimit:         v.GetFloat64("rate_limit"),
		HTTPTimeout:       v.GetDuration("http_timeout"),
		DiscoveryAttempts: v.GetInt("discovery_attempts"),
		DiscoveryDelay:    v.GetDuration("discovery_delay"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("page_size", constants.DefaultPageSize)
	v.SetDefault("rate_limit", constants.DefaultRateLimit)
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("discovery_attempts", constants.DiscoveryAttempts)
	v.SetDefault("discovery_delay", constants.DiscoveryDelay)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// loadEnvFiles loads environment variables from .env files.
// .env.local is loaded first because godotenv never overrides a set variable.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
