package app

import (
	"strconv"
	"strings"
	"time"

	"crosspromo/internal/config"
	"crosspromo/internal/metadata"
	"crosspromo/internal/observability"
	"crosspromo/internal/promo"
	"crosspromo/internal/scheduler"
	"crosspromo/internal/storage"
	logx "crosspromo/pkg/logx"
)

const (
	defaultPollTimeout  = 10 * time.Second
	defaultCommandDelay = time.Second
	defaultRefreshDelay = 2 * time.Second
	defaultJobTimeout   = 30 * time.Minute
	defaultBusyTimeout  = time.Second
	defaultHTTPTimeout  = 10 * time.Second
)

// mapStorageConfig returns enabled=false for an empty or "none" driver.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	out := storage.Config{
		Driver:   driver,
		Path:     strings.TrimSpace(sc.Path),
		Addr:     strings.TrimSpace(sc.Addr),
		Password: sc.Password,
		DB:       sc.DB,
	}
	if driver == "sqlite" || driver == "sqlite3" {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, defaultBusyTimeout)
		if err != nil {
			return storage.Config{}, false, err
		}
		out.BusyTimeout = busy
	}
	return out, true, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			ThreadID:   lc.Telegram.ThreadID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

// groupLogChat parses telegram.group_log; 0 means unset.
func groupLogChat(cfg *config.Config) int64 {
	gl := strings.TrimSpace(cfg.Telegram.GroupLog)
	if gl == "" {
		return 0
	}
	id, err := strconv.ParseInt(gl, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func mapMetadataConfig(cfg *config.Config) (metadata.Config, error) {
	timeout, err := config.ParseDurationField("metadata.timeout", cfg.Metadata.Timeout)
	if err != nil {
		return metadata.Config{}, err
	}
	return metadata.Config{RatePerSec: cfg.Metadata.RatePerSec, Timeout: timeout}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: strings.TrimSpace(cfg.Scheduler.Timezone),
	}
}

func mapPromoConfig(cfg *config.Config) (promo.Config, error) {
	pc := cfg.Promo
	cmdDelay, err := config.ParseDurationOrDefault("promo.command_delay", pc.CommandDelay, defaultCommandDelay)
	if err != nil {
		return promo.Config{}, err
	}
	refreshDelay, err := config.ParseDurationOrDefault("promo.refresh_delay", pc.RefreshDelay, defaultRefreshDelay)
	if err != nil {
		return promo.Config{}, err
	}
	rng := strings.TrimSpace(pc.PublishRange)
	if rng == "" {
		rng = promo.RangeAll.Name
	}
	return promo.Config{
		CommandDelay: cmdDelay,
		RefreshDelay: refreshDelay,
		ListHeader:   pc.ListHeader,
		ListFooter:   pc.ListFooter,
		Publish: promo.PublishConfig{
			ChatID: pc.PublishChat,
			Range:  rng,
			Lists:  pc.PublishLists,
			Labels: append([]string(nil), pc.PublishLabels...),
		},
	}, nil
}

func mapObservabilityConfig(cfg *config.Config) (observability.Config, error) {
	oc := cfg.Observability
	read, err := config.ParseDurationOrDefault("observability.read_timeout", oc.ReadTimeout, defaultHTTPTimeout)
	if err != nil {
		return observability.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("observability.write_timeout", oc.WriteTimeout, defaultHTTPTimeout)
	if err != nil {
		return observability.Config{}, err
	}
	addr := strings.TrimSpace(oc.Addr)
	if addr == "" {
		addr = observability.DefaultAddr
	}
	return observability.Config{
		Enabled:       oc.Enabled,
		Addr:          addr,
		Token:         strings.TrimSpace(oc.Token),
		AllowInsecure: oc.AllowInsecure,
		Pprof:         oc.Pprof,
		ReadTimeout:   read,
		WriteTimeout:  write,
	}, nil
}
