package pacball

import (
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hubertat/pacball/drivers"
	"github.com/hubertat/pacball/server"
)

const (
	defaultName         = "pacball"
	defaultListen       = "0.0.0.0:80"
	defaultPollInterval = 50 * time.Millisecond
	defaultDriver       = "i2c"
	defaultMqttPrefix   = "pacball"
)

type Config struct {
	Name           string        `yaml:"name"`
	Listen         string        `yaml:"listen"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	StrictOrigin   bool          `yaml:"strict_origin"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RestartBackoff time.Duration `yaml:"restart_backoff"`
	LogLevel       string        `yaml:"log_level"`

	Driver string      `yaml:"driver"`
	I2C    I2CConfig   `yaml:"i2c"`
	McpIO  McpIOConfig `yaml:"mcpio"`
	Mock   MockConfig  `yaml:"mock"`

	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Announce  AnnounceConfig  `yaml:"announce"`
	Influx    InfluxConfig    `yaml:"influx"`
	Mqtt      MqttConfig      `yaml:"mqtt"`
}

type I2CConfig struct {
	// Bus is the periph bus name, "" opens the first available one.
	Bus string `yaml:"bus"`
}

type McpIOConfig struct {
	BusNo         uint8 `yaml:"bus_no"`
	InvertOutputs bool  `yaml:"invert_outputs"`
}

type MockConfig struct {
	ChangeProbability float64       `yaml:"change_probability"`
	Interval          time.Duration `yaml:"interval"`
	MonitorOutputs    bool          `yaml:"monitor_outputs"`
}

type HeartbeatConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Pin       uint8         `yaml:"pin"`
	ClientPin uint8         `yaml:"client_pin"`
	Interval  time.Duration `yaml:"interval"`
}

type AnnounceConfig struct {
	Enabled bool `yaml:"enabled"`
}

type InfluxConfig struct {
	Host         string `yaml:"host"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
	Measurement  string `yaml:"measurement"`
}

type MqttConfig struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

func DefaultConfig() Config {
	return Config{
		Name:           defaultName,
		Listen:         defaultListen,
		AllowedOrigins: append([]string(nil), server.DefaultAllowedOrigins...),
		PollInterval:   defaultPollInterval,
		RestartBackoff: server.DefaultRestartBackoff,
		LogLevel:       "info",
		Driver:         defaultDriver,
		Mock: MockConfig{
			ChangeProbability: drivers.DefaultMockChangeProbability,
			Interval:          drivers.DefaultMockInterval,
			MonitorOutputs:    true,
		},
		Heartbeat: HeartbeatConfig{
			Interval: drivers.DefaultHeartbeatInterval,
		},
		Mqtt: MqttConfig{
			Prefix: defaultMqttPrefix,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config file %s", path)
	}
	err = yaml.Unmarshal(raw, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config file %s", path)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("name must not be empty")
	}
	_, _, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return errors.Wrapf(err, "invalid listen address %q", c.Listen)
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.RestartBackoff <= 0 {
		return errors.Errorf("restart_backoff must be positive, got %s", c.RestartBackoff)
	}
	_, err = log.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}

	switch c.Driver {
	case "i2c", "mcpio":
	case "mock":
		if c.Mock.ChangeProbability < 0 || c.Mock.ChangeProbability > 1 {
			return errors.Errorf("mock.change_probability must be within [0, 1], got %v", c.Mock.ChangeProbability)
		}
	default:
		return errors.Errorf("unknown driver %q (available: %v)", c.Driver, drivers.DriverNames())
	}

	if c.Heartbeat.Enabled && c.Heartbeat.Pin == 0 && c.Heartbeat.ClientPin == 0 {
		return errors.New("heartbeat enabled but no pin set")
	}
	if c.Heartbeat.Enabled && c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be positive")
	}
	if c.Influx.Host != "" && (c.Influx.Organization == "" || c.Influx.Bucket == "") {
		return errors.New("influx requires organization and bucket")
	}
	if c.Mqtt.Broker != "" && c.Mqtt.Prefix == "" {
		return errors.New("mqtt.prefix must not be empty")
	}

	return nil
}

// IoDriver builds the driver selected by Driver. It is not set up yet.
func (c Config) IoDriver() (drivers.IoDriver, error) {
	switch c.Driver {
	case "i2c":
		return &drivers.ExpanderArray{BusName: c.I2C.Bus}, nil
	case "mcpio":
		return &drivers.McpIO{BusNo: c.McpIO.BusNo, InvertOutputs: c.McpIO.InvertOutputs}, nil
	case "mock":
		mock := &drivers.MockIoDriver{
			ChangeProbability: c.Mock.ChangeProbability,
			Interval:          c.Mock.Interval,
		}
		if c.Mock.MonitorOutputs {
			mock.MonitorStateChanges(os.Stdout)
		}
		return mock, nil
	}
	return nil, errors.Errorf("unknown driver %q", c.Driver)
}
