// Package config loads server configuration from a yaml file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/liarsdeck/liars-server-go/internal/deck"
)

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	WebSocket    WebSocketConfig `mapstructure:"websocket"`
	SessionLease time.Duration   `mapstructure:"session_lease"`
}

// WebSocketConfig holds the websocket listener settings.
type WebSocketConfig struct {
	Address         string        `mapstructure:"address"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	SendBufferSize  int           `mapstructure:"send_buffer_size"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
}

// GameConfig holds the fixed rule constants. They are exposed to
// clients in the GAME_STARTED payload.
type GameConfig struct {
	RoomCapacity    int           `mapstructure:"room_capacity"`
	HandSize        int           `mapstructure:"hand_size"`
	TurnTimeLimit   time.Duration `mapstructure:"turn_time_limit"`
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`
	NextGameDelay   time.Duration `mapstructure:"next_game_delay"`
}

// LoggingConfig controls the zap logger built in main.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds the optional profile-store connection. The
// engine only reads display data from it; with Enabled false the
// server runs without a database.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

// Load reads configuration from path. A missing file is not an error;
// defaults and LIARS_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("LIARS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8420")
	v.SetDefault("server.websocket.ping_interval", 10*time.Second)
	v.SetDefault("server.websocket.pong_timeout", 60*time.Second)
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.websocket.send_buffer_size", 64)
	v.SetDefault("server.websocket.max_message_bytes", 16*1024)
	v.SetDefault("server.session_lease", 5*time.Minute)

	v.SetDefault("game.room_capacity", 4)
	v.SetDefault("game.hand_size", 5)
	v.SetDefault("game.turn_time_limit", 30*time.Second)
	v.SetDefault("game.disconnect_grace", 60*time.Second)
	v.SetDefault("game.next_game_delay", 8*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "liars")
	v.SetDefault("database.name", "liars")
	v.SetDefault("database.max_conns", 8)
}

func (c *Config) validate() error {
	if c.Game.RoomCapacity < 2 {
		return fmt.Errorf("game.room_capacity must be at least 2, got %d", c.Game.RoomCapacity)
	}
	if c.Game.HandSize < 1 {
		return fmt.Errorf("game.hand_size must be positive, got %d", c.Game.HandSize)
	}
	if c.Game.RoomCapacity*c.Game.HandSize > deck.Size {
		return fmt.Errorf("room_capacity %d x hand_size %d exceeds the %d-card deck",
			c.Game.RoomCapacity, c.Game.HandSize, deck.Size)
	}
	if c.Game.TurnTimeLimit <= 0 {
		return fmt.Errorf("game.turn_time_limit must be positive")
	}
	return nil
}
