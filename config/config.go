// Package config loads denpa-hub's nested configuration from an XDG config
// file, overridden by environment variables, replacing the teacher's flat
// env-only loader with the pattern llehouerou-waves uses for its own
// koanf-backed settings.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration tree for the hub process.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Library  LibraryConfig  `koanf:"library"`
	Channels ChannelsConfig `koanf:"channels"`
	Cache    CacheConfig    `koanf:"cache"`
	Lastfm   LastfmConfig   `koanf:"lastfm"`
}

// ServerConfig holds the ambient HTTP surface's listen/asset settings.
type ServerConfig struct {
	Port     string `koanf:"port"`
	WebDir   string `koanf:"web_dir"`
	Timezone string `koanf:"timezone"`
}

// AuthConfig holds the DJ login credential and JWT signing settings.
type AuthConfig struct {
	DJUsername string `koanf:"dj_username"`
	DJPassword string `koanf:"dj_password"`
	JWTSecret  string `koanf:"jwt_secret"`
}

// LibraryConfig configures the local-library source.
type LibraryConfig struct {
	MusicDir     string `koanf:"music_dir"`
	ScheduleFile string `koanf:"schedule_file"`
}

// ChannelsConfig configures live channel fan-out behaviour.
type ChannelsConfig struct {
	MaxClients    int                 `koanf:"max_clients"`
	CooloffSecs   int                 `koanf:"cooloff_secs"`
	StationName   string              `koanf:"station_name"`
	RadioParadise RadioParadiseConfig `koanf:"radioparadise"`
}

// RadioParadiseConfig toggles and selects which Radio Paradise mixes to
// expose as additional channels alongside the local library.
type RadioParadiseConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Channels []string `koanf:"channels"` // subset of "main", "mellow", "rock", "eclectic"
}

// CacheConfig points the content-addressed cache at its storage root.
type CacheConfig struct {
	DataDir  string `koanf:"data_dir"`
	MaxBytes int64  `koanf:"max_bytes"`
}

// LastfmConfig enables scrobbling when both fields are set.
type LastfmConfig struct {
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	SessionKey string `koanf:"session_key"`
}

// HasLastfmConfig reports whether scrobbling can be enabled.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:   "8000",
			WebDir: "./web/dist",
		},
		Auth: AuthConfig{
			DJUsername: "dj",
			DJPassword: "denpa",
			JWTSecret:  "change-me-in-production-please",
		},
		Library: LibraryConfig{
			MusicDir:     "./music",
			ScheduleFile: "./data/schedule.json",
		},
		Channels: ChannelsConfig{
			MaxClients:  100,
			CooloffSecs: 180,
			StationName: "Denpa Hub",
		},
		Cache: CacheConfig{
			DataDir:  "./data/cache",
			MaxBytes: 10 << 30, // 10 GiB
		},
	}
}

// Load reads configuration from (in increasing priority order): built-in
// defaults, an XDG config file ("denpa-hub/config.toml"), "./config.toml" in
// the working directory, and DENPA_-prefixed environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range configPaths() {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			continue // absent/unreadable config files are not fatal — defaults stand
		}
	}

	if err := k.Load(env.Provider("DENPA_", ".", envKeyToKoanf), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	// Unmarshal into a struct that already carries defaults: mapstructure
	// only overwrites fields present in the loaded file/env keys, so any
	// key absent from both keeps its built-in default.
	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// envKeyToKoanf turns DENPA_SERVER_PORT into server.port, matching the
// nested koanf.Path delimiter this config tree is keyed on.
func envKeyToKoanf(key string) string {
	trimmed := strings.TrimPrefix(key, "DENPA_")
	return strings.ReplaceAll(strings.ToLower(trimmed), "_", ".")
}

func configPaths() []string {
	paths := []string{}
	if xdgPath, err := xdg.SearchConfigFile(filepath.Join("denpa-hub", "config.toml")); err == nil {
		paths = append(paths, xdgPath)
	}
	paths = append(paths, "config.toml")
	return paths
}
