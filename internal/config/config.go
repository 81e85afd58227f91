// Package config is used to load the daemon configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"

	pconfig "github.com/apkcloner/apkclone/internal/pipeline/config"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type daemon struct {
	Host   string `json:"host" mapstructure:"host"`
	Port   int    `json:"port" mapstructure:"port"`
	Socket string `json:"socket" mapstructure:"socket"`
	Debug  bool   `json:"debug" mapstructure:"debug"`
}

type database struct {
	Driver   string `json:"driver" mapstructure:"driver"`
	Path     string `json:"path" mapstructure:"path"`
	Name     string `json:"database" mapstructure:"database"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
}

type storage struct {
	// Uploads holds one directory per project.
	Uploads string `json:"uploads" mapstructure:"uploads"`
	// MaxUpload is a human readable size such as "1 GiB".
	MaxUpload string `json:"max_upload" mapstructure:"max_upload"`
}

// Config is the configuration struct
type Config struct {
	Daemon   daemon         `json:"daemon" mapstructure:"daemon"`
	Database database       `json:"database" mapstructure:"database"`
	Storage  storage        `json:"storage" mapstructure:"storage"`
	Pipeline pconfig.Config `json:"pipeline" mapstructure:"pipeline"`
}

// MaxUploadBytes parses Storage.MaxUpload.
func (c *Config) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Storage.MaxUpload)
	if err != nil {
		return 0, fmt.Errorf("config: invalid storage.max_upload %q: %v", c.Storage.MaxUpload, err)
	}
	return int64(n), nil
}

func (c *Config) verify() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("config: failed to get user home directory: %v", err)
	}
	confDir := filepath.Join(home, ".config", "apkclone")

	if c.Daemon.Host == "" && c.Daemon.Port == 0 && c.Daemon.Socket == "" {
		c.Daemon.Socket = filepath.Join(confDir, "apkclone.sock")
	} else if c.Daemon.Host != "" && c.Daemon.Socket != "" {
		return fmt.Errorf("config: host and socket cannot be set at the same time")
	} else if c.Daemon.Host != "" && c.Daemon.Port == 0 {
		return fmt.Errorf("config: port must be set if host is set")
	} else if c.Daemon.Host == "" && c.Daemon.Port != 0 {
		c.Daemon.Host = "localhost"
	}

	switch c.Database.Driver {
	case "", DriverSqlite:
		c.Database.Driver = DriverSqlite
		if c.Database.Path == "" {
			c.Database.Path = filepath.Join(confDir, "apkclone.db")
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("config: database.host and database.database must be set for postgres")
		}
		if c.Database.Port == "" {
			c.Database.Port = "5432"
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}

	if c.Storage.Uploads == "" {
		c.Storage.Uploads = filepath.Join(confDir, "uploads")
	}
	if c.Storage.MaxUpload == "" {
		c.Storage.MaxUpload = "1 GiB"
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("config: pipeline: %v", err)
	}
	return nil
}

// LoadConfig loads the configuration file. Pipeline settings that are not
// set keep their defaults.
func LoadConfig() (*Config, error) {
	c := &Config{Pipeline: pconfig.Default()}

	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
