package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// ListenAddr is where the local status feed is served. Loopback only
	// by default; the feed carries no authentication.
	ListenAddr string `mapstructure:"listen_addr"`

	// CheckIntervalMinutes is how often a background update check runs.
	// 0 disables scheduled checks.
	CheckIntervalMinutes int `mapstructure:"check_interval_minutes"`

	// CacheMaxAgeMinutes is how recently the metadata cache must have been
	// refreshed for a non-forced check to skip the refresh stage.
	CacheMaxAgeMinutes int `mapstructure:"cache_max_age_minutes"`

	// AllowUntrusted permits installing packages that fail signature
	// verification. Off unless a site really needs it.
	AllowUntrusted bool `mapstructure:"allow_untrusted"`

	StateDir string `mapstructure:"state_dir"`

	// DisableSensors turns off the NetworkManager/UPower watchers and
	// assumes an always-online, mains-powered host.
	DisableSensors bool `mapstructure:"disable_sensors"`
}

func Default() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		ListenAddr:           "127.0.0.1:8177",
		CheckIntervalMinutes: 240,
		CacheMaxAgeMinutes:   60,
		StateDir:             stateDir(),
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("updatewatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("UPDATEWATCH")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "darwin":
		return "/Library/Application Support/Updatewatch"
	default:
		return "/etc/updatewatch"
	}
}

func stateDir() string {
	switch runtime.GOOS {
	case "darwin":
		return "/Library/Application Support/Updatewatch/state"
	default:
		return filepath.Join(xdgStateHome(), "updatewatch")
	}
}

func xdgStateHome() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	if os.Geteuid() == 0 {
		return "/var/lib"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib"
	}
	return filepath.Join(home, ".local", "state")
}
