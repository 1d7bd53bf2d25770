package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"crosspromo/internal/promo"
	"crosspromo/internal/scheduler"
)

var storageDrivers = map[string]bool{
	"": true, "none": true, "file": true, "sqlite": true, "sqlite3": true, "redis": true, "memory": true,
}

// Validate rejects configs that would fail at wiring time. It runs on
// startup and before every hot reload is committed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if len(cfg.Telegram.OwnerUserIDs) == 0 {
		return errors.New("telegram.owner_user_ids: at least one owner is required")
	}
	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if _, err := strconv.ParseInt(gl, 10, 64); err != nil {
			return fmt.Errorf("telegram.group_log: invalid chat id %q", gl)
		}
	}

	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"metadata.timeout", cfg.Metadata.Timeout},
		{"promo.command_delay", cfg.Promo.CommandDelay},
		{"promo.refresh_delay", cfg.Promo.RefreshDelay},
		{"promo.job_timeout", cfg.Promo.JobTimeout},
		{"observability.read_timeout", cfg.Observability.ReadTimeout},
		{"observability.write_timeout", cfg.Observability.WriteTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if !storageDrivers[driver] {
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if (driver == "sqlite" || driver == "sqlite3") && strings.TrimSpace(cfg.Storage.Path) == "" {
		return errors.New("storage.path is required when storage.driver=sqlite")
	}
	if driver == "redis" && strings.TrimSpace(cfg.Storage.Addr) == "" {
		return errors.New("storage.addr is required when storage.driver=redis")
	}
	if cfg.Storage.DB < 0 {
		return errors.New("storage.db must be >= 0")
	}
	if cfg.Metadata.RatePerSec < 0 {
		return errors.New("metadata.rate_per_sec must be >= 0")
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		return errors.New("logging.telegram.rate_per_sec must be >= 0")
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if o := cfg.Observability; o.Enabled && strings.TrimSpace(o.Addr) != "" {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(o.Addr)); err != nil {
			return fmt.Errorf("observability.addr: %w", err)
		}
	}
	return validatePromo(cfg.Promo)
}

func validatePromo(p PromoConfig) error {
	schedules := []struct{ path, raw string }{
		{"promo.clean_schedule", p.CleanSchedule},
		{"promo.refresh_schedule", p.RefreshSchedule},
		{"promo.publish_schedule", p.PublishSchedule},
	}
	for _, s := range schedules {
		if strings.TrimSpace(s.raw) == "" {
			continue
		}
		if _, err := scheduler.ParseSchedule(s.raw); err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
	}

	if strings.TrimSpace(p.PublishSchedule) == "" {
		return nil
	}
	if p.PublishChat == 0 {
		return errors.New("promo.publish_chat is required when promo.publish_schedule is set")
	}
	rng := strings.TrimSpace(p.PublishRange)
	if rng == "" {
		rng = promo.RangeAll.Name
	}
	if _, ok := promo.LookupRange(rng); !ok {
		return fmt.Errorf("promo.publish_range: unknown range %q", p.PublishRange)
	}
	if p.PublishLists < 1 {
		return errors.New("promo.publish_lists must be >= 1")
	}
	if len(p.PublishLabels) < p.PublishLists {
		return fmt.Errorf("promo.publish_labels: %d lists need %d labels, got %d", p.PublishLists, p.PublishLists, len(p.PublishLabels))
	}
	return nil
}

// ParseDurationField parses a Go duration string such as "500ms" or "2m".
// Empty means zero; negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
