// Package config carga la configuración del daemon desde YAML con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config agrupa toda la configuración de la aplicación
type Config struct {
	Appium struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"appium"`
	Device struct {
		Name    string `yaml:"name"`
		ADBPath string `yaml:"adb_path"`
	} `yaml:"device"`
	Checker struct {
		DelaySeconds int  `yaml:"delay_seconds"`
		BatchSize    int  `yaml:"batch_size"`
		RetryErrors  bool `yaml:"retry_errors"`
	} `yaml:"checker"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Rotation struct {
		MaxFollowsPerDay int    `yaml:"max_follows_per_day"`
		ResetCron        string `yaml:"reset_cron"`
	} `yaml:"rotation"`
	DataDir string `yaml:"data_dir"`
}

// AppiumURL compone la URL base del servidor Appium/UIAutomator2
func (c *Config) AppiumURL() string {
	return fmt.Sprintf("http://%s:%d", c.Appium.Host, c.Appium.Port)
}

// Delay retorna la pausa entre cuentas
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Checker.DelaySeconds) * time.Second
}

// Load lee la configuración desde un archivo YAML y aplica después los
// overrides del entorno. El archivo puede no existir.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Overrides por variables de entorno
	if v := os.Getenv("APPIUM_HOST"); v != "" {
		cfg.Appium.Host = v
	}
	if v := os.Getenv("APPIUM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Appium.Port = port
		}
	}
	if v := os.Getenv("DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}
	if v := os.Getenv("ADB_PATH"); v != "" {
		cfg.Device.ADBPath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("CHECK_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Checker.DelaySeconds = n
		}
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Checker.BatchSize = n
		}
	}
	if v := os.Getenv("MAX_FOLLOWS_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rotation.MaxFollowsPerDay = n
		}
	}

	// Defaults
	if cfg.Appium.Host == "" {
		cfg.Appium.Host = "127.0.0.1"
	}
	if cfg.Appium.Port == 0 {
		cfg.Appium.Port = 4723
	}
	if cfg.Device.Name == "" {
		cfg.Device.Name = "Android"
	}
	if cfg.Device.ADBPath == "" {
		cfg.Device.ADBPath = "adb"
	}
	if cfg.Checker.DelaySeconds == 0 {
		cfg.Checker.DelaySeconds = 10
	}
	if cfg.Checker.BatchSize == 0 {
		cfg.Checker.BatchSize = 20
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1:8000"
	}
	if cfg.Rotation.MaxFollowsPerDay == 0 {
		cfg.Rotation.MaxFollowsPerDay = 60
	}
	if cfg.Rotation.ResetCron == "" {
		cfg.Rotation.ResetCron = "0 0 * * *"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	return cfg, nil
}

// Validate comprueba los campos que no tienen default razonable
func (c *Config) Validate() error {
	if c.Appium.Port <= 0 || c.Appium.Port > 65535 {
		return fmt.Errorf("appium.port out of range: %d", c.Appium.Port)
	}
	if c.Checker.DelaySeconds < 0 {
		return fmt.Errorf("checker.delay_seconds must not be negative")
	}
	if c.Checker.BatchSize < 0 {
		return fmt.Errorf("checker.batch_size must not be negative")
	}
	if c.Rotation.MaxFollowsPerDay <= 0 {
		return fmt.Errorf("rotation.max_follows_per_day must be positive")
	}
	return nil
}
