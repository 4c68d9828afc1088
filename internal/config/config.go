package config

import (
	"errors"
	"fmt"
	"mesh_relay/internal/utils"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Neighbor is one downstream endpoint. List order is routing preference.
type Neighbor struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

func (n Neighbor) Address() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

func (n Neighbor) String() string {
	return n.Address()
}

type BreakerConfig struct {
	Enabled bool `yaml:"enabled"`
	// FailureThreshold is the number of consecutive failed attempts that opens the breaker.
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"required_if=Enabled true"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

type MainConfig struct {
	NodeName      string     `yaml:"node_name" validate:"required"`
	ListenAddress string     `yaml:"listen_address"`
	Port          int        `yaml:"port" validate:"min=0,max=65535"`
	Neighbors     []Neighbor `yaml:"neighbors" validate:"dive"`

	MaxAttempts       int           `yaml:"max_attempts" validate:"min=1"`
	AttemptTimeout    time.Duration `yaml:"attempt_timeout" validate:"gt=0"`
	RetryPause        time.Duration `yaml:"retry_pause" validate:"gte=0"`
	TransmissionDelay time.Duration `yaml:"transmission_delay" validate:"gte=0"`
	DequeueTimeout    time.Duration `yaml:"dequeue_timeout" validate:"gt=0"`

	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	MaxPayloadBytes int           `yaml:"max_payload_bytes" validate:"min=64"`
	AcceptRate      string        `yaml:"accept_rate"`

	DedupShards int           `yaml:"dedup_shards" validate:"min=1"`
	DedupTTL    time.Duration `yaml:"dedup_ttl" validate:"gte=0"`

	Breaker BreakerConfig    `yaml:"breaker"`
	Log     utils.LogOptions `yaml:"log"`
}

// CollectorConfig configures the base station.
type CollectorConfig struct {
	NodeName        string           `yaml:"node_name" validate:"required"`
	ListenAddress   string           `yaml:"listen_address"`
	Port            int              `yaml:"port" validate:"min=0,max=65535"`
	MessagesFile    string           `yaml:"messages_file" validate:"required"`
	ReadTimeout     time.Duration    `yaml:"read_timeout" validate:"gt=0"`
	MaxPayloadBytes int              `yaml:"max_payload_bytes" validate:"min=64"`
	Log             utils.LogOptions `yaml:"log"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func DefaultMainConfig() MainConfig {
	return MainConfig{
		NodeName:          "relay-1",
		ListenAddress:     "0.0.0.0",
		Port:              5001,
		MaxAttempts:       3,
		AttemptTimeout:    3 * time.Second,
		RetryPause:        500 * time.Millisecond,
		TransmissionDelay: time.Second,
		DequeueTimeout:    time.Second,
		ReadTimeout:       10 * time.Second,
		MaxPayloadBytes:   4096,
		DedupShards:       16,
		Breaker: BreakerConfig{
			FailureThreshold: 6,
			OpenTimeout:      30 * time.Second,
		},
		Log: utils.LogOptions{Level: "info", Console: true},
	}
}

func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		NodeName:        "base-station",
		ListenAddress:   "0.0.0.0",
		Port:            5000,
		MessagesFile:    "messages.json",
		ReadTimeout:     10 * time.Second,
		MaxPayloadBytes: 4096,
		Log:             utils.LogOptions{Level: "info", Console: true},
	}
}

func resolveBase(basePath string) (string, error) {
	if basePath != "" {
		return basePath, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exePath), nil
}

// loadYAML decodes <base>/config/<name> over out. A missing file keeps out as is.
func loadYAML(basePath, name string, out any) error {
	base, err := resolveBase(basePath)
	if err != nil {
		return err
	}
	configPath := filepath.Join(base, "config", name)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	return nil
}

// LoadMainConfig reads <basePath>/config/relay.yml on top of the defaults.
// An empty basePath means the executable's directory.
func LoadMainConfig(basePath string) (*MainConfig, error) {
	cfg := DefaultMainConfig()
	if err := loadYAML(basePath, "relay.yml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadCollectorConfig(basePath string) (*CollectorConfig, error) {
	cfg := DefaultCollectorConfig()
	if err := loadYAML(basePath, "basestation.yml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *MainConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid relay config: %w", err)
	}
	if c.AcceptRate != "" {
		if _, _, err := utils.ParseRate(c.AcceptRate); err != nil {
			return fmt.Errorf("invalid relay config: accept_rate: %w", err)
		}
	}
	return nil
}

func (c *CollectorConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid base station config: %w", err)
	}
	return nil
}

func (c *MainConfig) ListenAddr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.Port))
}

func (c *CollectorConfig) ListenAddr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.Port))
}

// ParseNeighbors reads a comma separated "host:port" list, keeping its order.
func ParseNeighbors(s string) ([]Neighbor, error) {
	var out []Neighbor
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(part)
		if err != nil {
			return nil, fmt.Errorf("neighbor %q: %w", part, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("neighbor %q: invalid port", part)
		}
		n := Neighbor{Host: host, Port: port}
		if err := validate.Struct(n); err != nil {
			return nil, fmt.Errorf("neighbor %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}
