package stessed

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for stessed.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	SoundCloud SoundCloudConfig `toml:"soundcloud"`
	Modules    ModulesConfig    `toml:"modules"`
}

// ServerConfig defines shared daemon settings.
type ServerConfig struct {
	NodeID    string     `toml:"node_id"`
	Broker    string     `toml:"broker"`
	TopicBase string     `toml:"topic_base"`
	StateDir  string     `toml:"state_dir"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for the MQTT connection.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// SoundCloudConfig holds catalog API credentials and endpoints.
type SoundCloudConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	APIBase      string `toml:"api_base"`
	TokenURL     string `toml:"token_url"`
	TimeoutMS    int64  `toml:"timeout_ms"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	API          APIConfig          `toml:"api"`
	Player       PlayerConfig       `toml:"player"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// APIConfig configures the HTTP API module.
type APIConfig struct {
	Enabled    bool   `toml:"enabled"`
	Listen     string `toml:"listen"`
	CORSOrigin string `toml:"cors_origin"`
}

// PlayerConfig configures the player module.
type PlayerConfig struct {
	Enabled      bool            `toml:"enabled"`
	Sink         string          `toml:"sink"`
	DefaultGenre string          `toml:"default_genre"`
	PublishState bool            `toml:"publish_state"`
	VLC          VLCConfig       `toml:"vlc"`
	GStreamer    GStreamerConfig `toml:"gstreamer"`
}

// VLCConfig configures the VLC sink.
type VLCConfig struct {
	BaseURL   string `toml:"base_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// GStreamerConfig configures the GStreamer sink.
type GStreamerConfig struct {
	Pipeline string `toml:"pipeline"`
	Device   string `toml:"device"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "stesse", "stessed.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "stesse", "stessed.toml"), nil
}

// DefaultStateDir returns the default state directory.
func DefaultStateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "stesse"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "stesse"), nil
}
