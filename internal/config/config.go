package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Auth        AuthConfig        `yaml:"auth"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig holds the on-disk library locations
type StorageConfig struct {
	PhotosPath   string `yaml:"photos_path"`
	PreviewsPath string `yaml:"previews_path"`
}

// AuthConfig holds JWT configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// MaintenanceConfig holds the background maintenance knobs
type MaintenanceConfig struct {
	IntervalHours      int  `yaml:"interval_hours"`
	TrashRetentionDays int  `yaml:"trash_retention_days"`
	EventLogRowsToKeep int  `yaml:"event_log_rows_to_keep"`
	Workers            int  `yaml:"workers"`
	ScanNewFiles       bool `yaml:"scan_new_files"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Maintenance.IntervalHours <= 0 {
		c.Maintenance.IntervalHours = 2
	}
	if c.Maintenance.TrashRetentionDays <= 0 {
		c.Maintenance.TrashRetentionDays = 30
	}
	if c.Maintenance.EventLogRowsToKeep <= 0 {
		c.Maintenance.EventLogRowsToKeep = 512
	}
	if c.Maintenance.Workers <= 0 {
		c.Maintenance.Workers = runtime.NumCPU()
	}
	if c.Storage.PhotosPath == "" {
		c.Storage.PhotosPath = "storage/photos"
	}
	if c.Storage.PreviewsPath == "" {
		c.Storage.PreviewsPath = "storage/previews"
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
