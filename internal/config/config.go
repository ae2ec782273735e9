package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Secret string `mapstructure:"secret"`

	// Relay server.
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	// Peer rendezvous server.
	PeerPort      int    `mapstructure:"peer_port"`
	PeerPath      string `mapstructure:"peer_path"`
	PeerDiscovery bool   `mapstructure:"peer_discovery"`

	// TLS key material is supplied externally; empty paths mean plain TCP.
	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("secret", "labrelay-dev-secret")
	v.SetDefault("port", 4000)
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("write_wait", "5s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("peer_port", 9001)
	v.SetDefault("peer_path", "/peer")
	v.SetDefault("peer_discovery", true)
	v.SetDefault("tls_cert", "")
	v.SetDefault("tls_key", "")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("mode", cfg.Mode).Int("port", cfg.Port).Int("peer_port", cfg.PeerPort).Msg("config ready")
	return &cfg, nil
}
