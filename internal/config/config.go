// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the simulator configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Debug   DebugConfig   `mapstructure:"debug"`
	Helpers HelpersConfig `mapstructure:"helpers"`
	NIC     NICConfig     `mapstructure:"nic"`
	App     AppConfig     `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig represents host logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DebugConfig selects the secondary diagnostic channel
type DebugConfig struct {
	Output string           `mapstructure:"output"`
	Serial SerialPortConfig `mapstructure:"serial"`
	File   DebugFileConfig  `mapstructure:"file"`
}

// SerialPortConfig represents serial port configuration
type SerialPortConfig struct {
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
}

// DebugFileConfig represents the rotated debug file
type DebugFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// HelpersConfig configures the firmware-side diagnostic sink
type HelpersConfig struct {
	Logger    bool   `mapstructure:"logger"`
	Allocator bool   `mapstructure:"allocator"`
	Level     string `mapstructure:"level"`
	Encoding  string `mapstructure:"encoding"`
}

// NICConfig describes the emulated network interface
type NICConfig struct {
	MAC                 string   `mapstructure:"mac"`
	MTU                 uint32   `mapstructure:"mtu"`
	MaxMCastFilterCount uint32   `mapstructure:"max_mcast_filters"`
	NvRAMSize           uint32   `mapstructure:"nvram_size"`
	NvRAMAccessSize     uint32   `mapstructure:"nvram_access_size"`
	RxQueueDepth        int      `mapstructure:"rx_queue_depth"`
	TxQueueDepth        int      `mapstructure:"tx_queue_depth"`
	Loopback            bool     `mapstructure:"loopback"`
	MediaPresent        bool     `mapstructure:"media_present"`
	UnsupportedCounters []string `mapstructure:"unsupported_counters"`
	AutoStart           bool     `mapstructure:"auto_start"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

var (
	validEnvs         = []string{"development", "staging", "production", "test"}
	validLevels       = []string{"debug", "info", "warn", "error", "fatal"}
	validDebugOutputs = []string{"none", "serial", "file"}
	validEncodings    = []string{"console", "json"}
)

// BindFlags registers the command line flags Load understands
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to the configuration file")
	fs.String("server.port", "8086", "HTTP listen port")
	fs.String("logging.level", "info", "log level")
	fs.Bool("nic.loopback", false, "loop transmitted frames back to the receive queue")
}

// Load loads configuration from file, flags and environment variables
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetConfigName("snpsim")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/snpsim")

	v.SetEnvPrefix("SNPSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	explicit := ""
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
		explicit, _ = fs.GetString("config")
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Debug channel defaults
	v.SetDefault("debug.output", "none")
	v.SetDefault("debug.serial.baud_rate", 115200)
	v.SetDefault("debug.serial.data_bits", 8)
	v.SetDefault("debug.serial.stop_bits", 1)
	v.SetDefault("debug.serial.parity", "none")
	v.SetDefault("debug.file.path", "./logs/firmware-debug.log")
	v.SetDefault("debug.file.max_size", 10)
	v.SetDefault("debug.file.max_backups", 3)

	// Helpers defaults
	v.SetDefault("helpers.logger", true)
	v.SetDefault("helpers.allocator", true)
	v.SetDefault("helpers.level", "info")
	v.SetDefault("helpers.encoding", "console")

	// NIC defaults
	v.SetDefault("nic.mac", "52:54:00:12:34:56")
	v.SetDefault("nic.mtu", 1500)
	v.SetDefault("nic.max_mcast_filters", 16)
	v.SetDefault("nic.nvram_size", 512)
	v.SetDefault("nic.nvram_access_size", 4)
	v.SetDefault("nic.rx_queue_depth", 64)
	v.SetDefault("nic.tx_queue_depth", 32)
	v.SetDefault("nic.loopback", false)
	v.SetDefault("nic.media_present", true)
	v.SetDefault("nic.unsupported_counters", []string{
		"rx_crc_error_frames", "tx_crc_error_frames", "rx_duplicated_frames", "rx_decrypt_error_frames",
	})
	v.SetDefault("nic.auto_start", false)

	// App defaults
	v.SetDefault("app.name", "snpsim")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	if !slices.Contains(validLevels, config.Helpers.Level) {
		return fmt.Errorf("helpers.level must be one of: %v", validLevels)
	}
	if !slices.Contains(validEncodings, config.Helpers.Encoding) {
		return fmt.Errorf("helpers.encoding must be one of: %v", validEncodings)
	}
	if !slices.Contains(validDebugOutputs, config.Debug.Output) {
		return fmt.Errorf("debug.output must be one of: %v", validDebugOutputs)
	}
	if config.Debug.Output == "serial" && config.Debug.Serial.Port == "" {
		return fmt.Errorf("debug.serial.port is required when debug.output is serial")
	}

	if _, err := net.ParseMAC(config.NIC.MAC); err != nil {
		return fmt.Errorf("nic.mac is invalid: %w", err)
	}
	if config.NIC.MTU < 68 || config.NIC.MTU > 9000 {
		return fmt.Errorf("nic.mtu must be between 68 and 9000")
	}
	if config.NIC.MaxMCastFilterCount > 16 {
		return fmt.Errorf("nic.max_mcast_filters must not exceed 16")
	}
	if config.NIC.NvRAMAccessSize == 0 && config.NIC.NvRAMSize != 0 {
		return fmt.Errorf("nic.nvram_access_size is required when nic.nvram_size is set")
	}
	if config.NIC.NvRAMAccessSize != 0 && config.NIC.NvRAMSize%config.NIC.NvRAMAccessSize != 0 {
		return fmt.Errorf("nic.nvram_size must be a multiple of nic.nvram_access_size")
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
