// The hexmill server: loads the catalogs, starts the simulation
// coordinator, and serves the websocket transport for the renderer /
// GUI / input shell. Takes no arguments; everything is environment:
//
//	HEXMILL_ADDR     http listen address (default :8080)
//	HEXMILL_CONFIGS  config directory (default ./configs)
//	HEXMILL_DATA     runtime data directory (default ./data)
//	WGPU_BACKENDS    renderer backend passthrough
//	WGPU_POWER_PREF  renderer adapter passthrough
//	RUST_LOG         log level filter (default info)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hexmill.dev/internal/persistence/indexdb"
	"hexmill.dev/internal/persistence/mapfile"
	"hexmill.dev/internal/protocol"
	"hexmill.dev/internal/sim/catalogs"
	"hexmill.dev/internal/sim/errq"
	"hexmill.dev/internal/sim/game"
	"hexmill.dev/internal/sim/tuning"
	"hexmill.dev/internal/transport/ws"
)

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func logLevel() zapcore.Level {
	switch strings.ToLower(env("RUST_LOG", "info")) {
	case "debug", "trace":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(logLevel())
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	addr := env("HEXMILL_ADDR", ":8080")
	configDir := env("HEXMILL_CONFIGS", "./configs")
	dataDir := env("HEXMILL_DATA", "./data")

	reg, err := catalogs.Load(configDir)
	if err != nil {
		logger.Fatal("load catalogs", zap.Error(err))
	}

	tune, err := tuning.Load(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		logger.Fatal("load tuning", zap.Error(err))
	}
	if !filepath.IsAbs(tune.MapRoot) {
		tune.MapRoot = filepath.Join(dataDir, tune.MapRoot)
	}

	idx, err := indexdb.Open(filepath.Join(dataDir, "index.db"))
	if err != nil {
		logger.Fatal("open save index", zap.Error(err))
	}
	defer idx.Close()
	if err := idx.UpsertCatalogs(reg); err != nil {
		logger.Warn("index catalogs", zap.Error(err))
	}

	errs := errq.New(0)
	g := game.New(logger.Named("game"), reg, errs, tune)
	g.OnSave(func(name string, tileCount int, at time.Time) {
		idx.RecordSave(name, at, tileCount)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = g.Run(ctx)
	}()

	// Headless stand-in for the GUI error popups: drain the queue into
	// the log so data errors are not silently swallowed.
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for {
					e, ok := errs.Pop()
					if !ok {
						break
					}
					name, _ := reg.Interner.NameOf(e.ID)
					logger.Warn("data error",
						zap.String("id", name),
						zap.String("detail", e.Detail))
				}
			}
		}
	}()

	if err := g.LoadMap(mapfile.MainMenu); err != nil {
		logger.Fatal("load main menu map", zap.Error(err))
	}

	renderer := protocol.RendererParams{
		Backends:  os.Getenv("WGPU_BACKENDS"),
		PowerPref: os.Getenv("WGPU_POWER_PREF"),
	}
	wsrv := ws.NewServer(g, reg, idx, renderer, logger.Named("ws"))

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsrv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: addr, Handler: mux}
	httpErr := make(chan error, 1)
	go func() { httpErr <- httpSrv.ListenAndServe() }()
	logger.Info("listening",
		zap.String("addr", addr),
		zap.String("map_root", tune.MapRoot),
		zap.Int("tiles", len(reg.Tiles)))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-httpErr:
		logger.Error("http server", zap.Error(err))
	}

	// Freeze the simulation, save, then stop. Built-in maps save as a
	// no-op, so this is always safe.
	g.StopTicking(true)
	if err := g.SaveMap(); err != nil {
		logger.Error("save on shutdown", zap.Error(err))
	}
	g.Stop()
	<-runDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
