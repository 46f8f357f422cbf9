package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Sharding ShardingConfig `yaml:"sharding"`
	IDGen    IDGenConfig    `yaml:"idgen"`
	Trains   []TrainConfig  `yaml:"trains"`
}

// TrainConfig is one timetable entry: the stations a train visits, in
// travel order.
type TrainConfig struct {
	TrainID  string   `yaml:"train_id"`
	Stations []string `yaml:"stations"`
}

// RouteMap reshapes the timetable for the route table.
func (c *Config) RouteMap() map[string][]string {
	m := make(map[string][]string, len(c.Trains))
	for _, t := range c.Trains {
		m[t.TrainID] = t.Stations
	}
	return m
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	OrderEventsTopic string   `yaml:"order_events_topic"`
	GroupID          string   `yaml:"group_id"`
}

type BookingConfig struct {
	// PayTTLMinutes is how long an unpaid order keeps its seats.
	PayTTLMinutes int `yaml:"pay_ttl_minutes"`
}

type ShardingConfig struct {
	// Count is the number of order partitions. Changing it reroutes
	// existing orders, so it is fixed for the lifetime of a deployment.
	Count int `yaml:"count"`
}

type IDGenConfig struct {
	// NodeID distinguishes generator instances; must be unique per
	// process, 0 to 31.
	NodeID int64 `yaml:"node_id"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address is required")
	}
	if c.Sharding.Count <= 0 {
		return errors.New("sharding.count must be positive")
	}
	if c.IDGen.NodeID < 0 || c.IDGen.NodeID > 31 {
		return errors.New("idgen.node_id must be between 0 and 31")
	}
	if c.Booking.PayTTLMinutes <= 0 {
		return errors.New("booking.pay_ttl_minutes must be positive")
	}
	for _, t := range c.Trains {
		if t.TrainID == "" || len(t.Stations) < 2 {
			return fmt.Errorf("train %q needs an id and at least two stations", t.TrainID)
		}
	}
	return nil
}
