package app

import (
	"context"
	"strings"
	"time"

	"crosspromo/internal/config"
	"crosspromo/internal/observability"
	"crosspromo/internal/promo"
	"crosspromo/internal/scheduler"
	kit "crosspromo/internal/transport"
	logx "crosspromo/pkg/logx"
)

const (
	jobClean     = "promo.clean"
	jobRefresh   = "promo.refresh"
	jobRepublish = "promo.republish"
)

// poster delivers one published list to a chat.
type poster func(ctx context.Context, chatID int64, text string) error

func adapterPoster(ad kit.Adapter) poster {
	return func(ctx context.Context, chatID int64, text string) error {
		_, err := ad.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{DisablePreview: true})
		return err
	}
}

// syncSchedules makes the scheduler's promo jobs match cfg. An empty
// schedule removes the job. m may be nil.
func syncSchedules(sched *scheduler.Service, svc *promo.Service, post poster, m *observability.Metrics, cfg *config.Config, log logx.Logger) {
	timeout, err := config.ParseDurationOrDefault("promo.job_timeout", cfg.Promo.JobTimeout, defaultJobTimeout)
	if err != nil {
		log.Warn("invalid promo.job_timeout; using default", logx.Err(err))
		timeout = defaultJobTimeout
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{jobClean, cfg.Promo.CleanSchedule, func(ctx context.Context) error { return svc.Clean(ctx, nil) }},
		{jobRefresh, cfg.Promo.RefreshSchedule, func(ctx context.Context) error { return svc.Refresh(ctx, nil) }},
		{jobRepublish, cfg.Promo.PublishSchedule, func(ctx context.Context) error { return svc.Republish(ctx, post) }},
	}
	for _, j := range jobs {
		if strings.TrimSpace(j.schedule) == "" {
			if sched.Remove(j.name) {
				log.Info("schedule removed", logx.String("name", j.name))
			}
			continue
		}
		if err := sched.AddSchedule(j.name, j.schedule, timeout, instrument(m, j.name, j.run)); err != nil {
			log.Warn("schedule rejected", logx.String("name", j.name), logx.String("schedule", j.schedule), logx.Err(err))
		}
	}
}

func instrument(m *observability.Metrics, name string, run func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		err := run(ctx)
		m.JobDone(name, time.Since(start), err)
		return err
	}
}
