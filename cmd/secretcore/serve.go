// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/secretcore/internal/config"
	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/agentsession/transport/websocket"
	"github.com/sage-x-project/secretcore/pkg/core"
	"github.com/sage-x-project/secretcore/pkg/health"
	"github.com/sage-x-project/secretcore/pkg/storage"
	"github.com/sage-x-project/secretcore/pkg/storage/boltstore"
	"github.com/sage-x-project/secretcore/pkg/storage/memstore"
	"github.com/sage-x-project/secretcore/pkg/storage/postgres"
	"github.com/sage-x-project/secretcore/pkg/version"
)

var serveConfigDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the secretcore daemon",
	Long: `serve starts the sealed core: it opens the configured storage
backend, wires every subsystem together, and exposes the agent session
channel, health check, and metrics endpoints until signaled to stop.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveConfigDir, "config-dir", "config", "directory containing environment config files")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.LoaderOptions{ConfigDir: serveConfigDir, DotenvPath: ".env"})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, parseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger.SetDefaultLogger(log)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	c, err := core.NewCore(ctx, store, cfg, log)
	if err != nil {
		return fmt.Errorf("construct core: %w", err)
	}
	c.Start(ctx)
	defer c.Stop()

	checker := newHealthChecker(cfg, c, store, log)

	servers := startAuxServers(cfg, checker, log)
	sessionSrv, err := startSessionServer(ctx, cfg, c, checker, log)
	if err != nil {
		return fmt.Errorf("start agent session server: %w", err)
	}
	servers = append(servers, sessionSrv)

	log.Info("secretcore: daemon started")
	<-ctx.Done()
	log.Info("secretcore: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("secretcore: server shutdown error", logger.Error(err))
		}
	}
	return nil
}

func parseLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel
	case "warn", "warning":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	case "fatal":
		return logger.FatalLevel
	default:
		return logger.InfoLevel
	}
}

// openStorage selects and opens the storage backend named by
// cfg.Storage.Backend, defaulting to the in-memory store for local runs
// and tests.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "bolt":
		return boltstore.Open(cfg.Storage.Bolt.Path)
	case "postgres":
		return postgres.NewStore(ctx, &postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newHealthChecker wires pkg/health's generic checker to the three
// conditions that actually matter for this daemon: the seal state, the
// storage backend's reachability, and whether the lease sweeper is
// still ticking.
func newHealthChecker(cfg *config.Config, c *core.Core, store storage.Backend, log logger.Logger) *health.HealthChecker {
	checker := health.NewHealthChecker(cfg.Health.Timeout)
	checker.SetLogger(log)
	checker.RegisterCheck("seal", health.SealHealthCheck(func() bool {
		return !c.SysStatus(context.Background()).Sealed
	}))
	checker.RegisterCheck("storage", health.StorageHealthCheck(store.Ping))
	checker.RegisterCheck("lease_sweeper", health.LeaseSweeperHealthCheck(c.Lease.LastSweepTime, 5*c.Lease.SweepInterval()))
	return checker
}

// startAuxServers starts the metrics HTTP endpoint, with the health
// check mounted alongside it. HealthConfig carries no listen address of
// its own, so when metrics is disabled the health route is mounted onto
// the agent session server instead (see startSessionServer).
func startAuxServers(cfg *config.Config, checker *health.HealthChecker, log logger.Logger) []*http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, metrics.Handler())
	if cfg.Health.Enabled {
		mux.HandleFunc(healthPath(cfg), healthHandlerFunc(checker))
	}

	srv := newHTTPServer(cfg.Metrics.Addr, mux)
	go func() {
		log.Info("secretcore: metrics server listening", logger.String("addr", cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("secretcore: metrics server stopped", logger.Error(err))
		}
	}()
	return []*http.Server{srv}
}

func healthPath(cfg *config.Config) string {
	if cfg.Health.Path == "" {
		return "/health"
	}
	return cfg.Health.Path
}

func healthHandlerFunc(checker *health.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sys := checker.GetSystemHealth(r.Context())
		sys.Details = map[string]interface{}{"version": version.Get()}
		w.Header().Set("Content-Type", "application/json")
		if sys.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(sys)
	}
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// startSessionServer mounts the websocket upgrade endpoint agents dial
// into. With a TLS certificate file configured it serves mTLS, so the
// peer's client certificate serial is available to bind the session
// token to; without one it serves plaintext and the serial is empty.
func startSessionServer(ctx context.Context, cfg *config.Config, c *core.Core, checker *health.HealthChecker, log logger.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	if cfg.Health.Enabled && !cfg.Metrics.Enabled {
		mux.HandleFunc(healthPath(cfg), healthHandlerFunc(checker))
	}
	mux.HandleFunc("/v1/session", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Upgrade(w, r)
		if err != nil {
			log.Warn("secretcore: websocket upgrade failed", logger.Error(err))
			return
		}
		certSerial := peerCertSerial(r)
		if _, err := c.Sessions.Accept(r.Context(), conn, certSerial); err != nil {
			log.Warn("secretcore: session accept failed", logger.Error(err))
			conn.Close()
		}
	})

	srv := newHTTPServer(cfg.AgentSession.ListenAddr, mux)

	if cfg.AgentSession.TLSCertFile == "" {
		go func() {
			log.Info("secretcore: agent session listening (plaintext)", logger.String("addr", cfg.AgentSession.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("secretcore: agent session server stopped", logger.Error(err))
			}
		}()
		return srv, nil
	}

	tlsCfg, err := buildServerTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	srv.TLSConfig = tlsCfg

	go func() {
		log.Info("secretcore: agent session listening (mTLS)", logger.String("addr", cfg.AgentSession.ListenAddr))
		if err := srv.ListenAndServeTLS(cfg.AgentSession.TLSCertFile, cfg.AgentSession.TLSKeyFile); err != nil && err != http.ErrServerClosed {
			log.Error("secretcore: agent session server stopped", logger.Error(err))
		}
	}()
	return srv, nil
}

func buildServerTLSConfig(cfg *config.Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ClientAuth: tls.RequireAndVerifyClientCert,
		MinVersion: tls.VersionTLS12,
	}
	if cfg.AgentSession.TLSClientCA == "" {
		return tlsCfg, nil
	}
	caPEM, err := os.ReadFile(cfg.AgentSession.TLSClientCA)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates parsed from %s", cfg.AgentSession.TLSClientCA)
	}
	tlsCfg.ClientCAs = pool
	return tlsCfg, nil
}

// peerCertSerial returns the hex serial of the client certificate
// presented on the TLS connection, matching the format
// pkg/pki.Manager uses to record the serials it issues. Empty when the
// connection is plaintext or unauthenticated.
func peerCertSerial(r *http.Request) string {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return ""
	}
	return fmt.Sprintf("%x", r.TLS.PeerCertificates[0].SerialNumber)
}
