package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GameServer holds all configuration for the session server.
type GameServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Per-connection timeouts
	ReadTimeout    time.Duration `yaml:"read_timeout"`     // poll interval on blocking reads (default: 30s)
	SilenceTimeout time.Duration `yaml:"silence_timeout"`  // reader-side disconnect after no traffic (default: 60s)
	WriteTimeout   time.Duration `yaml:"write_timeout"`    // per-write deadline (default: 5s)
	SendQueueSize  int           `yaml:"send_queue_size"`  // per-client outbox capacity (default: 64)
	MaxFrameSize   int           `yaml:"max_frame_size"`   // bytes; oversized frame closes the connection (default: 64 KiB)

	// Reaper
	ReapInterval time.Duration `yaml:"reap_interval"` // sweep period (default: 30s)
	PingDeadline time.Duration `yaml:"ping_deadline"` // evict after no activity (default: 90s)

	// Game rules
	Rules Rules `yaml:"rules"`

	// Match history persistence
	Database DatabaseConfig `yaml:"database"`
}

// Rules holds per-room gameplay parameters.
type Rules struct {
	BoardSize     int           `yaml:"board_size"`      // default: 15
	WinLength     int           `yaml:"win_length"`      // default: 5
	MoveTimeLimit time.Duration `yaml:"move_time_limit"` // per-turn budget (default: 30s)
	PauseTokens   int           `yaml:"pause_tokens"`    // per seat per game (default: 2)
	PauseCap      time.Duration `yaml:"pause_cap"`       // wall-clock cap per pause (default: 30s)
}

// DatabaseConfig holds PostgreSQL connection parameters for match history.
// Disabled by default; the server runs fully in-memory without it.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultGameServer returns GameServer config with sensible defaults.
func DefaultGameServer() GameServer {
	return GameServer{
		BindAddress:    "0.0.0.0",
		Port:           12345,
		ReadTimeout:    30 * time.Second,
		SilenceTimeout: 60 * time.Second,
		WriteTimeout:   5 * time.Second,
		SendQueueSize:  64,
		MaxFrameSize:   64 * 1024,
		ReapInterval:   30 * time.Second,
		PingDeadline:   90 * time.Second,
		Rules: Rules{
			BoardSize:     15,
			WinLength:     5,
			MoveTimeLimit: 30 * time.Second,
			PauseTokens:   2,
			PauseCap:      30 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "gomokugo",
			Password: "gomokugo",
			DBName:   "gomokugo",
			SSLMode:  "disable",
		},
	}
}

// LoadGameServer loads game server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadGameServer(path string) (GameServer, error) {
	cfg := DefaultGameServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Client holds configuration for the reference client session.
type Client struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	DialTimeout       time.Duration `yaml:"dial_timeout"`       // default: 10s
	PingInterval      time.Duration `yaml:"ping_interval"`      // keepalive period (default: 30s)
	ReconnectAttempts int           `yaml:"reconnect_attempts"` // default: 12
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`    // default: 5s
	MaxFrameSize      int           `yaml:"max_frame_size"`     // default: 64 KiB
}

// DefaultClient returns Client config with sensible defaults.
// 12 attempts x 5s delay gives the 60-second reconnection window.
func DefaultClient() Client {
	return Client{
		Host:              "127.0.0.1",
		Port:              12345,
		DialTimeout:       10 * time.Second,
		PingInterval:      30 * time.Second,
		ReconnectAttempts: 12,
		ReconnectDelay:    5 * time.Second,
		MaxFrameSize:      64 * 1024,
	}
}

// LoadClient loads client config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
