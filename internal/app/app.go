package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"toastd/internal/config"
	"toastd/internal/eventbus"
	"toastd/internal/httpapi"
	"toastd/internal/presenter"
	"toastd/internal/reminders"
	"toastd/internal/runtime/supervisor"
	"toastd/internal/storage"
	"toastd/internal/telemetry"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

type Options struct {
	Version string
}

type App struct {
	cfgm    *config.Manager
	version string
	started time.Time

	log   logx.Logger
	root  logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	hub      *presenter.WebSocket
	console  *presenter.Console

	toasts    *Toasts
	reminders *reminders.Service
	http      *httpapi.Server

	// mgrMu serialises manager rebuilds; tg belongs to the live manager.
	mgrMu sync.Mutex
	tg    *presenter.Telegram

	sup *supervisor.Supervisor
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(cfg.LogConfig())
	log := root.Component("app")

	store, err := openStore(cfg, root)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		cfgm:     cfgm,
		version:  opts.Version,
		started:  time.Now(),
		log:      log,
		root:     root,
		logs:     logSvc,
		bus:      eventbus.New(),
		store:    store,
		registry: registry,
		hub:      presenter.NewWebSocket(root.Component("websocket"), cfg.HTTP.AllowedOrigins),
		console:  presenter.NewConsole(root.Component("console")),
	}
	if cfg.Metrics.Enabled {
		a.metrics = telemetry.NewMetrics(telemetry.MetricsConfig{Namespace: cfg.Metrics.Namespace, Registry: registry})
	}

	m, tg, err := a.buildManager(cfg)
	if err != nil {
		a.closeEarly()
		return nil, err
	}
	a.tg = tg
	a.toasts = newToasts(root.Component("toasts"), m)

	a.reminders = reminders.New(root.Component("reminders"), func() reminders.Shower { return a.toasts })
	rs, err := cfg.ReminderSet()
	if err != nil {
		a.closeEarly()
		return nil, err
	}
	a.reminders.Apply(rs)

	sc, err := serverConfig(cfg)
	if err != nil {
		a.closeEarly()
		return nil, err
	}
	a.http = httpapi.NewServer(sc, root)
	a.http.SetHandler(a.router(cfg))
	return a, nil
}

func (a *App) closeEarly() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
}

// buildManager assembles a manager and its presenters for cfg. The returned
// Telegram presenter, if any, is not started.
func (a *App) buildManager(cfg *config.Config) (*toast.Manager, *presenter.Telegram, error) {
	policy, err := cfg.ToastPolicy()
	if err != nil {
		return nil, nil, err
	}

	presenters := []toast.Presenter{a.console, a.hub}
	var tg *presenter.Telegram
	if tc := cfg.Telegram; tc != nil {
		tg, err = presenter.NewTelegram(presenter.TelegramConfig{
			Token:       tc.Token,
			ChatID:      tc.ChatID,
			ThreadID:    tc.ThreadID,
			PollTimeout: tc.PollTimeoutOrDefault(),
		}, a.root.Component("telegram"))
		if err != nil {
			return nil, nil, fmt.Errorf("telegram: %w", err)
		}
		presenters = append(presenters, tg)
	}

	sinks := []toast.TelemetrySink{
		telemetry.NewLog(a.root.Component("telemetry")),
		telemetry.NewBus(a.bus),
	}
	if a.metrics != nil {
		sinks = append(sinks, a.metrics)
	}
	opts := []toast.Option{
		toast.WithLogger(a.root.Component("toast")),
		toast.WithTelemetry(telemetry.NewMulti(a.root.Component("telemetry"), sinks...)),
	}
	if a.store != nil {
		opts = append(opts, toast.WithSnapshotStore(a.store))
	}
	m, err := toast.New(policy, presenter.NewMulti(a.root.Component("presenter"), presenters...), opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, tg, nil
}

func (a *App) router(cfg *config.Config) http.Handler {
	d := httpapi.Deps{
		Toasts:    a.toasts,
		Log:       a.root.Component("http"),
		Events:    a.bus,
		WebSocket: a.hub,
		Health:    a.Health,
		Token:     strings.TrimSpace(cfg.HTTP.Token),
		Pprof:     cfg.HTTP.Pprof,
	}
	if a.store != nil {
		d.Audit = a.store
	}
	if a.metrics != nil {
		d.Gatherer = a.registry
	}
	return httpapi.NewRouter(d)
}

func serverConfig(cfg *config.Config) (httpapi.ServerConfig, error) {
	t, err := cfg.HTTPTimeouts()
	if err != nil {
		return httpapi.ServerConfig{}, err
	}
	return httpapi.ServerConfig{
		Enabled:       cfg.HTTP.Enabled,
		Addr:          cfg.HTTPAddr(),
		TokenSet:      strings.TrimSpace(cfg.HTTP.Token) != "",
		ReadTimeout:   t.Read,
		WriteTimeout:  t.Write,
		IdleTimeout:   2 * time.Minute,
		ShutdownGrace: t.ShutdownGrace,
	}, nil
}

// Toasts is the scheduler handle shared by every caller.
func (a *App) Toasts() *Toasts { return a.toasts }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// HTTPAddr reports the control API's bound address ("" when not listening).
func (a *App) HTTPAddr() string { return a.http.Addr() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.root.Component("config"))
	a.cfgm.SetValidator(validateReload)

	run := a.sup.Context()

	a.mgrMu.Lock()
	if a.tg != nil {
		a.tg.Start(run)
	}
	a.mgrMu.Unlock()

	// Restore critical toasts persisted by the previous shutdown.
	if err := a.toasts.HandleAppWillEnterForeground(ctx); err != nil {
		a.log.Warn("snapshot restore failed", logx.Err(err))
	}

	a.reminders.Start(run)
	sc, err := serverConfig(a.cfgm.Get())
	if err != nil {
		return err
	}
	a.http.Reconfigure(run, sc)

	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("websocket.forward", func(c context.Context) {
		defer unsub()
		a.hub.ForwardEvents(c, events)
	})
	a.sup.GoRestart0("config.reload", a.reloadLoop,
		supervisor.WithRestartBackoff(time.Second, 10*time.Second),
		supervisor.WithMaxRestarts(3),
		supervisor.WithFatalOnFinalError(true),
	)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		watchdog(c, a.log, func() bool { return a.Health().OK })
	})

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started", logx.String("version", a.version))
	return nil
}

// Health summarises liveness for /v1/health and the systemd watchdog.
func (a *App) Health() httpapi.HealthReport {
	st := a.toasts.Status()
	rep := httpapi.HealthReport{
		OK:               true,
		Version:          a.version,
		Uptime:           time.Since(a.started).Round(time.Second).String(),
		State:            st.State.Kind().String(),
		Queued:           len(st.Queue),
		WebSocketClients: a.hub.ClientCount(),
		BusDropped:       a.bus.Dropped(),
	}
	if a.sup != nil {
		rep.Supervisor = a.sup.Snapshot()
		if a.sup.Err() != nil {
			rep.OK = false
		}
	}
	return rep
}

func validateReload(_ context.Context, cfg *config.Config) error {
	if _, err := cfg.ToastPolicy(); err != nil {
		return err
	}
	if _, err := serverConfig(cfg); err != nil {
		return err
	}
	if _, err := cfg.ReminderSet(); err != nil {
		return err
	}
	_, err := cfg.StorageOptions()
	return err
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	sdNotify(a.log, daemon.SdNotifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	a.step(ctx, "http", 3*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	a.step(ctx, "reminders", 2*time.Second, func(c context.Context) error { a.reminders.Stop(c); return nil })
	// Persist critical toasts for the next start, then take the screen down.
	a.step(ctx, "toasts", 2*time.Second, func(c context.Context) error {
		err := a.toasts.HandleAppDidEnterBackground(c)
		a.toasts.close()
		return err
	})
	a.step(ctx, "telegram", 2*time.Second, func(c context.Context) error {
		a.mgrMu.Lock()
		tg := a.tg
		a.mgrMu.Unlock()
		if tg == nil {
			return nil
		}
		return tg.Stop(c)
	})
	a.step(ctx, "websocket", time.Second, func(context.Context) error { a.hub.Close(); return nil })
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step with an upper bound so one component can't
// stall the whole stop. fn must honor its context.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

	stepCtx := ctx
	if limit > 0 {
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, max(time.Until(dl), 0))
		}
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			took := time.Since(start)
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			} else {
				a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
			}
		}()
	}
}
