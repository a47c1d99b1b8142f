// Package app wires the service together: config, logging, storage,
// the session registry and dispatcher, both HTTP surfaces and the
// scheduled producers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"questnotify/internal/config"
	"questnotify/internal/eventbus"
	"questnotify/internal/membership"
	"questnotify/internal/realtime"
	"questnotify/internal/services/announce"
	"questnotify/internal/transport/api"
	"questnotify/internal/transport/ws"
	logx "questnotify/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store membership.Store
	reg   *realtime.Registry
	disp  *realtime.Dispatcher
	stats *api.Collector
	ann   *announce.Service

	srv             *http.Server
	shutdownTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := membership.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	reg := realtime.NewRegistry(log.With(logx.String("comp", "registry")))

	rtCfg, err := mapRealtimeConfig(cfg)
	if err != nil {
		return nil, err
	}
	disp := realtime.NewDispatcher(rtCfg, reg, store, log.With(logx.String("comp", "dispatcher")), bus)

	stats := api.NewCollector()

	mux := http.NewServeMux()
	mux.Handle("GET /ws/{user_id}", ws.NewHandler(reg, nil, log.With(logx.String("comp", "ws")), bus))
	api.NewHandler(disp, reg, stats, log.With(logx.String("comp", "api"))).Routes(mux)

	srvCfg, err := mapServerConfig(cfg)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:        srvCfg.addr,
		Handler:     mux,
		ReadTimeout: srvCfg.readTimeout,
		// WriteTimeout stays off: it would kill long-lived sockets.
		IdleTimeout: srvCfg.idleTimeout,
	}

	var ann *announce.Service
	if cfg.Announce.Enabled {
		annCfg, err := mapAnnounceConfig(cfg)
		if err != nil {
			return nil, err
		}
		ann = announce.New(annCfg, disp, store, log.With(logx.String("comp", "announce")))
	}

	return &App{
		cfgPath:         cfgPath,
		cfgm:            cfgm,
		log:             log,
		logs:            logSvc,
		bus:             bus,
		store:           store,
		reg:             reg,
		disp:            disp,
		stats:           stats,
		ann:             ann,
		srv:             srv,
		shutdownTimeout: srvCfg.shutdownTimeout,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	ln, err := net.Listen("tcp", a.srv.Addr)
	if err != nil {
		cancel()
		return fmt.Errorf("listen %s: %w", a.srv.Addr, err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.stats.Run(runCtx, a.bus)
	}()

	// Debug-level event trace; counters come from the collector.
	events, unsub := a.bus.Subscribe(128)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-runCtx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	}()

	// Hot reload: logging applies live; server, storage and announce
	// topology need a restart.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})
				if lastApplied != nil {
					if newCfg.Server != lastApplied.Server {
						a.log.Warn("server config changed; restart required")
					}
					if newCfg.Storage != lastApplied.Storage {
						a.log.Warn("storage config changed; restart required")
					}
				}
				lastApplied = newCfg
				a.log.Info("config reloaded")
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	if a.ann != nil {
		if err := a.ann.Start(runCtx); err != nil {
			cancel()
			_ = ln.Close()
			return err
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", logx.Err(err))
			cancel()
		}
	}()

	notifyReady(a.log)
	a.startWatchdog(runCtx)

	a.log.Info("app started", logx.String("addr", a.srv.Addr))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	notifyStopping(a.log)
	a.log.Info("stopping")

	if a.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.shutdownTimeout)
		defer cancel()
	}

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Warn("http shutdown", logx.Err(err))
	}

	if a.ann != nil {
		if err := a.ann.Stop(ctx); err != nil {
			a.log.Warn("announce stop", logx.Err(err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("stop deadline reached (continuing)")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func validateConfig(cfg *config.Config) error {
	if _, err := mapServerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapRealtimeConfig(cfg); err != nil {
		return err
	}
	if _, err := mapAnnounceConfig(cfg); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Announce.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("announce.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}
