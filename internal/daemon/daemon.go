// Package daemon provides the daemon interface and implementation.
package daemon

import (
	"fmt"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/api/server"
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/apkcloner/apkclone/internal/config"
	"github.com/apkcloner/apkclone/internal/db"
	"github.com/apkcloner/apkclone/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Daemon is the interface that describes an apkclone daemon.
type Daemon interface {
	// Start starts the daemon.
	Start() error
	// Stop stops the daemon.
	Stop() error
}

type daemon struct {
	mu      sync.Mutex
	server  *server.Server
	db      db.Database
	conf    *config.Config
	stopped bool
}

// NewDaemon creates a new daemon.
func NewDaemon(conf *config.Config) Daemon {
	return &daemon{conf: conf}
}

// openDatabase returns the database selected by conf.Database.Driver.
func openDatabase(conf *config.Config) (db.Database, error) {
	switch conf.Database.Driver {
	case config.DriverSqlite:
		return db.NewSqlite(conf.Database.Path)
	case config.DriverPostgres:
		return db.NewPostgres(
			conf.Database.Host,
			conf.Database.Port,
			conf.Database.User,
			conf.Database.Password,
			conf.Database.Name,
		)
	case config.DriverMemory:
		return db.NewInMemory(conf.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", conf.Database.Driver)
	}
}

func (d *daemon) Start() error {
	if d.conf.Daemon.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	maxUpload, err := d.conf.MaxUploadBytes()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.conf.Storage.Uploads, 0o755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}

	database, err := openDatabase(d.conf)
	if err != nil {
		return err
	}
	if err := database.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", d.conf.Database.Driver, err)
	}
	log.WithField("driver", d.conf.Database.Driver).Debug("connected to database")

	svc := clone.NewService(&clone.Config{
		Uploads:  d.conf.Storage.Uploads,
		Pipeline: d.conf.Pipeline,
	}, database, clone.WithMetrics(metrics.NewProm(metrics.Namespace)))

	srv := server.NewServer(&server.Config{
		Host:      d.conf.Daemon.Host,
		Port:      d.conf.Daemon.Port,
		Socket:    d.conf.Daemon.Socket,
		Debug:     d.conf.Daemon.Debug,
		MaxUpload: maxUpload,
	}, database, svc)

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return database.Close()
	}
	d.db, d.server = database, srv
	d.mu.Unlock()

	return srv.Start()
}

func (d *daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	var err error
	if d.server != nil {
		err = d.server.Stop()
	}
	if d.db != nil {
		if cerr := d.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
