package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crosspromo/internal/channel"
	"crosspromo/internal/config"
	"crosspromo/internal/metadata"
	"crosspromo/internal/observability"
	"crosspromo/internal/promo"
	"crosspromo/internal/runtime/supervisor"
	"crosspromo/internal/scheduler"
	"crosspromo/internal/storage"
	kit "crosspromo/internal/transport"
	telegram "crosspromo/internal/transport/telegram/adapter"
	"crosspromo/internal/transport/telegram/router"
	logx "crosspromo/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter *telegram.Adapter
	meta    *metadata.Telegram
	promo   *promo.Service
	sched   *scheduler.Service
	cmdm    *router.CommandManager

	metrics *observability.Metrics
	obs     *observability.Server

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := newLogging(cfg)

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	// The Telegram log sink can only start once the adapter exists.
	logSvc.SetSender(ad)
	logSvc.Apply(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	extra, err := metadata.NewTelegramClients(cfg.Metadata.Tokens)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	meta, err := newMetadata(cfg, log, append([]metadata.ChatClient{ad.Bot()}, extra...))
	if err != nil {
		closeStore(store)
		return nil, err
	}

	pcfg, err := mapPromoConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	svc := promo.New(channel.NewRegistry(), store, meta, pcfg, log.With(logx.String("comp", "promo")))

	ocfg, err := mapObservabilityConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	metrics := observability.NewMetrics(svc.Registry().Len)
	svc.SetRecorder(metrics)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		meta:    meta,
		promo:   svc,
		sched:   scheduler.New(mapSchedulerConfig(cfg), log.With(logx.String("comp", "scheduler"))),
		cmdm:    router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs),
		metrics: metrics,
		obs:     observability.NewServer(ocfg, metrics, log.With(logx.String("comp", "observability"))),
		updates: make(chan kit.Update, 256),
	}, nil
}

// newLogging builds the logging service with the Telegram sink disabled;
// callers enable it with Apply once a sender is attached.
func newLogging(cfg *config.Config) (*logx.Service, logx.Logger) {
	boot := mapLogConfig(cfg)
	boot.Telegram.Enabled = false
	logSvc, log := logx.New(boot, nil)
	if chatID := groupLogChat(cfg); chatID != 0 {
		logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	return logSvc, log
}

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		if err == nil {
			log.Warn("storage disabled; channels are kept in memory only")
		}
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	log.Info("storage enabled", logx.String("driver", sc.Driver))
	return st, nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

func newMetadata(cfg *config.Config, log logx.Logger, clients []metadata.ChatClient) (*metadata.Telegram, error) {
	mc, err := mapMetadataConfig(cfg)
	if err != nil {
		return nil, err
	}
	return metadata.NewTelegram(mc, log.With(logx.String("comp", "metadata")), clients...)
}

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
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.promo.Reload(ctx); err != nil {
		return fmt.Errorf("load channels: %w", err)
	}

	a.cmdm.SetRegistry(a.sup.Context(), promoCommands(a.promo))
	a.cmdm.SetTextHandler(textHandler(a.promo))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	syncSchedules(a.sched, a.promo, adapterPoster(a.adapter), a.metrics, a.cfgm.Get(), a.log)
	a.sched.Start(a.sup.Context())
	a.obs.Start(a.sup.Context())

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				newCfg = latest(sub, newCfg)
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	notifySystemd(a.log, sdReady)
	a.log.Info("app started", logx.Int("channels", a.promo.Registry().Len()))
	return nil
}

// latest drains sub so a burst of edits is applied once.
func latest(sub <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok {
				return cur
			}
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

// applyConfig fans a committed config out to every live component.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if rr := config.RestartRequired(oldCfg, newCfg); len(rr) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("settings", strings.Join(rr, ",")))
	}

	a.logs.SetTelegramTarget(groupLogChat(newCfg), newCfg.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLogConfig(newCfg))

	a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)

	if pcfg, err := mapPromoConfig(newCfg); err != nil {
		a.log.Warn("invalid promo config; keeping previous", logx.Err(err))
	} else {
		a.promo.SetConfig(pcfg)
	}
	a.meta.SetRate(newCfg.Metadata.RatePerSec)

	// Apply starts or stops triggering when scheduler.enabled flips.
	a.sched.Apply(mapSchedulerConfig(newCfg))
	syncSchedules(a.sched, a.promo, adapterPoster(a.adapter), a.metrics, newCfg, a.log)

	if ocfg, err := mapObservabilityConfig(newCfg); err != nil {
		a.log.Warn("invalid observability config; keeping previous", logx.Err(err))
	} else {
		a.obs.Reconfigure(a.sup.Context(), ocfg)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeResources()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifySystemd(a.log, sdStopping)

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	var errs []error
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "observability", time.Second, func(c context.Context) error { a.obs.Stop(c); return nil })
	errs = append(errs, a.step(ctx, "adapter", 3*time.Second, a.adapter.Stop))
	errs = append(errs, a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait))
	errs = append(errs, a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	}))

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	closeStore(a.store)
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// step runs one shutdown step bounded by limit so a stuck component cannot
// stall the whole stop. The caller's deadline is never extended.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return nil
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

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
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			return fmt.Errorf("%s: %w", name, err)
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		return nil
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
		}()
		return nil
	}
}
