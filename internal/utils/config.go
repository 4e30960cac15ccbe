package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/viper"

	"github.com/mettke/mean-image/internal/imagefmt"
)

// EnvPrefix is prepended to every configuration key read from the environment
const EnvPrefix = "MEAN_IMAGE"

// Config represents the application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" mapstructure:"log_level" valid:"in(debug|info|warn|error)"`
	LogFormat    string `yaml:"log_format" mapstructure:"log_format" valid:"in(text|json)"`
	OutputDir    string `yaml:"output_dir" mapstructure:"output_dir"`
	ReportFormat string `yaml:"report_format" mapstructure:"report_format" valid:"in(text|json|toml)"`

	// Formats lists format names, "all" selects every supported format
	Formats  []string `yaml:"formats" mapstructure:"formats" valid:"-"`
	Parallel bool     `yaml:"parallel" mapstructure:"parallel"`
	Probe    bool     `yaml:"probe" mapstructure:"probe"`

	Image  ImageConfig  `yaml:"image" mapstructure:"image"`
	Attack AttackConfig `yaml:"attack" mapstructure:"attack"`
	JPEG   JPEGConfig   `yaml:"jpeg" mapstructure:"jpeg"`
	GIF    GIFConfig    `yaml:"gif" mapstructure:"gif"`
}

// ImageConfig holds the size of the generated base image
type ImageConfig struct {
	Width  uint32 `yaml:"width" mapstructure:"width"`
	Height uint32 `yaml:"height" mapstructure:"height"`
	Seed   int64  `yaml:"seed" mapstructure:"seed"`
}

// AttackConfig holds the dimensions written into the patched headers
type AttackConfig struct {
	Width  uint32 `yaml:"width" mapstructure:"width"`
	Height uint32 `yaml:"height" mapstructure:"height"`
}

// JPEGConfig holds JPEG encoder options
type JPEGConfig struct {
	Quality int `yaml:"quality" mapstructure:"quality"`
}

// GIFConfig holds GIF encoder options
type GIFConfig struct {
	NumColors int `yaml:"num_colors" mapstructure:"num_colors"`
}

// SelectedFormats resolves the configured format names
func (c *Config) SelectedFormats() ([]imagefmt.Format, error) {
	return imagefmt.ParseFormats(c.Formats)
}

// ConfigManager handles configuration loading and management
type ConfigManager struct {
	config *Config
	viper  *viper.Viper
	logger *Logger
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: &Config{},
		viper:  viper.New(),
		logger: NewDefaultLogger(),
	}
}

// LoadConfig loads configuration from defaults, an optional file, the
// environment and finally the given overrides, in increasing precedence
func (c *ConfigManager) LoadConfig(configFile string, overrides map[string]interface{}) error {
	c.setDefaults()

	c.viper.SetConfigType("yaml")
	c.viper.SetEnvPrefix(EnvPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.viper.AutomaticEnv()

	if configFile != "" {
		c.viper.SetConfigFile(configFile)
		if err := c.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			c.logger.WithComponent("config").Warnf("Config file not found: %s", configFile)
		} else {
			c.logger.WithComponent("config").Infof("Loaded config from: %s", c.viper.ConfigFileUsed())
		}
	} else {
		c.viper.SetConfigName("config")
		c.viper.AddConfigPath(".")
		c.viper.AddConfigPath("$HOME/.mean-image")
		c.viper.AddConfigPath("/etc/mean-image")

		if err := c.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			c.logger.WithComponent("config").Debug("No config file found, using defaults and environment variables")
		} else {
			c.logger.WithComponent("config").Infof("Loaded config from: %s", c.viper.ConfigFileUsed())
		}
	}

	for key, value := range overrides {
		c.viper.Set(key, value)
	}

	if err := c.viper.Unmarshal(c.config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := c.validateConfig(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.logger.WithComponent("config").Debug("Configuration loaded successfully")
	return nil
}

// setDefaults sets default configuration values
func (c *ConfigManager) setDefaults() {
	c.viper.SetDefault("log_level", "info")
	c.viper.SetDefault("log_format", "text")
	c.viper.SetDefault("output_dir", ".")
	c.viper.SetDefault("report_format", "text")
	c.viper.SetDefault("formats", []string{"all"})
	c.viper.SetDefault("parallel", false)
	c.viper.SetDefault("probe", false)

	c.viper.SetDefault("image.width", 512)
	c.viper.SetDefault("image.height", 512)
	c.viper.SetDefault("image.seed", 0)

	// Takes about 12GB of RAM to decode
	c.viper.SetDefault("attack.width", 65500)
	c.viper.SetDefault("attack.height", 65500)

	c.viper.SetDefault("jpeg.quality", imagefmt.DefaultJPEGQuality)
	c.viper.SetDefault("gif.num_colors", imagefmt.DefaultGIFNumColors)
}

// validateConfig validates the loaded configuration
func (c *ConfigManager) validateConfig() error {
	c.config.LogLevel = strings.ToLower(c.config.LogLevel)
	c.config.LogFormat = strings.ToLower(c.config.LogFormat)
	c.config.ReportFormat = strings.ToLower(c.config.ReportFormat)

	if _, err := govalidator.ValidateStruct(c.config); err != nil {
		return err
	}

	formats, err := c.config.SelectedFormats()
	if err != nil {
		return err
	}
	if len(formats) == 0 {
		return fmt.Errorf("no image format selected")
	}

	// The base image is encoded for real, so it has to fit every 16-bit
	// dimension field of the supported formats
	if c.config.Image.Width == 0 || c.config.Image.Height == 0 ||
		c.config.Image.Width > 0xFFFF || c.config.Image.Height > 0xFFFF {
		return fmt.Errorf("invalid image size: %dx%d (valid: 1-65535)", c.config.Image.Width, c.config.Image.Height)
	}
	if c.config.Attack.Width == 0 || c.config.Attack.Height == 0 {
		return fmt.Errorf("invalid attack size: %dx%d", c.config.Attack.Width, c.config.Attack.Height)
	}

	if c.config.JPEG.Quality < 1 || c.config.JPEG.Quality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (valid: 1-100)", c.config.JPEG.Quality)
	}
	if c.config.GIF.NumColors < 1 || c.config.GIF.NumColors > 256 {
		return fmt.Errorf("invalid gif color count: %d (valid: 1-256)", c.config.GIF.NumColors)
	}

	expanded, err := c.expandPath(c.config.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to expand output dir: %w", err)
	}
	c.config.OutputDir = expanded

	return nil
}

// expandPath expands a path with environment variables and home directory
func (c *ConfigManager) expandPath(path string) (string, error) {
	expanded := os.ExpandEnv(path)

	if strings.HasPrefix(expanded, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		expanded = filepath.Join(homeDir, expanded[2:])
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// GetConfig returns the loaded configuration
func (c *ConfigManager) GetConfig() *Config {
	return c.config
}

// SetLogger sets the logger for the config manager
func (c *ConfigManager) SetLogger(logger *Logger) {
	c.logger = logger
}

// LoadDefaultConfig loads configuration from the standard locations
func LoadDefaultConfig() (*Config, error) {
	return LoadConfigWithOverrides("", nil)
}

// LoadConfigFromFile loads configuration from a specific file
func LoadConfigFromFile(filename string) (*Config, error) {
	return LoadConfigWithOverrides(filename, nil)
}

// LoadConfigWithOverrides loads configuration and applies overrides keyed by
// viper key (e.g. "attack.width") on top of file and environment values
func LoadConfigWithOverrides(filename string, overrides map[string]interface{}) (*Config, error) {
	manager := NewConfigManager()
	if err := manager.LoadConfig(filename, overrides); err != nil {
		return nil, err
	}
	return manager.GetConfig(), nil
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path cannot be empty")
	}

	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", dir)
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return nil
}
