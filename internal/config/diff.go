package config

import (
	"reflect"
	"slices"
	"sort"
	"strings"

	logx "crosspromo/pkg/logx"
)

// SummarizeConfigChange returns the changed section names and safe
// structured attrs for logging. Secrets (tokens, redis password) are only
// reported as "_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 20)
	trim := strings.TrimSpace

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if trim(ot.PollTimeout) != trim(nt.PollTimeout) ||
		!slices.Equal(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		trim(ot.GroupLog) != trim(nt.GroupLog) ||
		ot.Token != nt.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", trim(nt.PollTimeout)),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", trim(nt.GroupLog) != ""),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		nl := newCfg.Logging
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.console", nl.Console),
			logx.Bool("logging.file_enabled", nl.File.Enabled),
			logx.Bool("logging.telegram_enabled", nl.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		ns := newCfg.Storage
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", trim(ns.Driver)),
			logx.Bool("storage.path_set", trim(ns.Path) != ""),
			logx.Bool("storage.addr_set", trim(ns.Addr) != ""),
			logx.Bool("storage.password_set", ns.Password != ""),
		)
	}

	om, nm := oldCfg.Metadata, newCfg.Metadata
	if !slices.Equal(om.Tokens, nm.Tokens) ||
		om.RatePerSec != nm.RatePerSec || trim(om.Timeout) != trim(nm.Timeout) {
		changed = append(changed, "metadata")
		attrs = append(attrs,
			logx.Int("metadata.token_count", len(nm.Tokens)),
			logx.Float64("metadata.rate_per_sec", nm.RatePerSec),
			logx.String("metadata.timeout", trim(nm.Timeout)),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", trim(newCfg.Scheduler.Timezone)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Promo, newCfg.Promo) {
		np := newCfg.Promo
		changed = append(changed, "promo")
		attrs = append(attrs,
			logx.String("promo.command_delay", trim(np.CommandDelay)),
			logx.String("promo.refresh_delay", trim(np.RefreshDelay)),
			logx.String("promo.clean_schedule", trim(np.CleanSchedule)),
			logx.String("promo.refresh_schedule", trim(np.RefreshSchedule)),
			logx.String("promo.publish_schedule", trim(np.PublishSchedule)),
		)
	}

	if oldCfg.Observability != newCfg.Observability {
		no := newCfg.Observability
		changed = append(changed, "observability")
		attrs = append(attrs,
			logx.Bool("observability.enabled", no.Enabled),
			logx.String("observability.addr", trim(no.Addr)),
			logx.Bool("observability.token_set", no.Token != ""),
			logx.Bool("observability.pprof", no.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired lists the changed settings that hot reload cannot apply.
// They are bound once at startup (bot sessions and the store handle).
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token {
		out = append(out, "telegram.token")
	}
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		out = append(out, "telegram.poll_timeout")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	if !slices.Equal(oldCfg.Metadata.Tokens, newCfg.Metadata.Tokens) {
		out = append(out, "metadata.tokens")
	}
	return out
}
