// Igloo hub daemon: discovers Floe extensions, owns the device tree, and
// serves the UI-facing WebSocket API. Bring-up order and signal-driven
// shutdown follow daemon_ref/ap.configd/configd.go's main() (directory
// check, Prometheus mount, tree init, listen, then block until signalled)
// generalized from a single zmq REP loop to an HTTP server plus the
// supervisor's own core task goroutine.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"igloo/client"
	"igloo/internal/auth"
	ilog "igloo/internal/log"
	"igloo/internal/metrics"
	"igloo/persist"
	"igloo/supervisor"
)

func main() {
	var (
		floesDir = pflag.String("floes-dir", "./floes", "directory of Floe extension subdirectories")
		dataDir  = pflag.String("data-dir", "./data", "directory for state.json and auth.json")
		addr     = pflag.String("listen", ":6543", "HTTP listen address for the UI API")
	)
	pflag.Parse()

	logger := ilog.New("igloohubd")
	defer logger.Sync()

	if _, err := os.Stat(*floesDir); err != nil {
		logger.Fatal("floes directory does not exist", zap.String("dir", *floesDir), zap.Error(err))
	}

	store, err := persist.Open(*dataDir, logger.Named("persist"))
	if err != nil {
		logger.Fatal("failed to open data directory", zap.Error(err))
	}

	authStore, err := auth.Open(*dataDir, logger.Named("auth"))
	if err != nil {
		logger.Fatal("failed to open auth store", zap.Error(err))
	}
	hashKey, blockKey := auth.GenerateKeys()
	sessionMgr := auth.NewSessionManager(hashKey, blockKey)

	sup := supervisor.New(*floesDir, logger.Named("supervisor"))
	sup.SetStore(store)

	clientMgr := client.NewManager(sup, logger.Named("client"))

	router := mux.NewRouter()
	authStore.RegisterRoutes(router, sessionMgr, logger.Named("auth"))
	metrics.RegisterRoutes(router)

	protected := router.NewRoute().Subrouter()
	protected.Use(sessionMgr.RequireSession)
	clientMgr.RegisterRoutes(protected)

	httpSrv := &http.Server{Addr: *addr, Handler: router}

	if err := sup.Start(); err != nil {
		logger.Fatal("failed to start supervisor", zap.Error(err))
	}
	clientMgr.Start()

	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}

	clientMgr.Shutdown()
	sup.Shutdown()
	logger.Info("shutdown complete")
}
