// Package server contains the main server struct and methods
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/api"
	"github.com/apkcloner/apkclone/api/server/routes"
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/apkcloner/apkclone/internal/db"
	"github.com/gin-gonic/gin"
)

// Config is the server config
type Config struct {
	Host      string
	Port      int
	Socket    string
	Debug     bool
	MaxUpload int64
}

// Server is the main server struct
type Server struct {
	router *gin.Engine
	server *http.Server
	conf   *Config
}

// NewServer creates a new server
func NewServer(conf *Config, database db.Database, svc *clone.Service) *Server {
	s := &Server{
		router: gin.New(),
		conf:   conf,
	}
	s.router.Use(gin.Recovery())
	if conf.Debug {
		s.router.Use(gin.Logger())
	}
	// multipart parts above this are spooled to disk
	s.router.MaxMultipartMemory = 32 << 20
	rg := s.router.Group("/v" + api.DefaultVersion)
	routes.Add(rg, database, svc, conf.MaxUpload)
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server and blocks until it is stopped
func (s *Server) Start() error {
	var (
		ln  net.Listener
		err error
	)
	if s.conf.Socket != "" {
		if err := os.MkdirAll(filepath.Dir(s.conf.Socket), 0o755); err != nil {
			return fmt.Errorf("server: failed to create socket directory: %w", err)
		}
		os.Remove(s.conf.Socket) // stale socket from a previous run
		ln, err = net.Listen("unix", s.conf.Socket)
	} else {
		ln, err = net.Listen("tcp", fmt.Sprintf("%s:%d", s.conf.Host, s.conf.Port))
	}
	if err != nil {
		return fmt.Errorf("server: failed to listen: %w", err)
	}
	log.WithField("addr", ln.Addr().String()).Info("listening")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
