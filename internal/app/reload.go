package app

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"toastd/internal/config"
	logx "toastd/pkg/logx"
)

// reloadLoop applies config published by the watcher until ctx ends.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	ch := config.SummarizeConfigChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Info("config applied (no changes)")
		return
	}
	sdNotify(a.log, daemon.SdNotifyReloading)
	defer sdNotify(a.log, daemon.SdNotifyReady)

	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
	a.log.Debug("config change summary", fields...)

	if ch.Has("logging") {
		a.logs.Apply(newCfg.LogConfig())
	}
	if ch.Has("storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if ch.Has("metrics") {
		a.log.Warn("metrics config changed; restart required for changes to take effect")
	}

	if ch.Has("policy") || ch.Has("telegram") {
		a.rebuildManager(ctx, newCfg)
	}

	if ch.Has("http") {
		a.hub.SetAllowedOrigins(newCfg.HTTP.AllowedOrigins)
		a.http.SetHandler(a.router(newCfg))
		if sc, err := serverConfig(newCfg); err != nil {
			a.log.Warn("invalid http config; keeping previous", logx.Err(err))
		} else {
			a.http.Reconfigure(ctx, sc)
		}
	}

	if ch.Has("reminders") {
		if rs, err := newCfg.ReminderSet(); err != nil {
			a.log.Warn("invalid reminders config; keeping previous", logx.Err(err))
		} else {
			a.reminders.Apply(rs)
			a.reminders.Start(ctx)
		}
	}

	a.log.Info("config applied", fields...)
}

// rebuildManager replaces the live manager with one built from cfg. On
// failure the previous manager keeps running.
func (a *App) rebuildManager(ctx context.Context, cfg *config.Config) {
	a.mgrMu.Lock()
	defer a.mgrMu.Unlock()

	m, tg, err := a.buildManager(cfg)
	if err != nil {
		a.log.Warn("toast manager rebuild failed; keeping previous", logx.Err(err))
		return
	}
	if tg != nil {
		tg.Start(a.sup.Context())
	}

	swapCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := a.toasts.swap(swapCtx, m); err != nil {
		a.log.Warn("toast handover incomplete", logx.Err(err))
	}
	cancel()

	if prev := a.tg; prev != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := prev.Stop(stopCtx); err != nil {
			a.log.Warn("telegram presenter stop", logx.Err(err))
		}
		cancel()
	}
	a.tg = tg
}
