package app

import (
	"context"
	"fmt"

	"crosspromo/internal/channel"
	"crosspromo/internal/config"
	"crosspromo/internal/metadata"
	"crosspromo/internal/promo"
	"crosspromo/internal/storage"
	logx "crosspromo/pkg/logx"
)

// Offline is the promo service without a polling bot, used by one-shot
// maintenance commands. Lookups go through offline bot clients.
type Offline struct {
	Promo *promo.Service

	logs  *logx.Service
	store storage.Store
}

// OpenOffline loads cfgPath, opens storage and restores the registry.
// withLookups adds metadata clients for the main and extra bot tokens.
func OpenOffline(ctx context.Context, cfgPath string, withLookups bool) (*Offline, error) {
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logSvc, log := newLogging(cfg)
	log = log.With(logx.String("comp", "offline"))

	o := &Offline{logs: logSvc}
	if o.store, err = openStore(cfg, log); err != nil {
		o.Close()
		return nil, err
	}

	var provider metadata.Provider
	if withLookups {
		clients, err := metadata.NewTelegramClients(append([]string{cfg.Telegram.Token}, cfg.Metadata.Tokens...))
		if err != nil {
			o.Close()
			return nil, err
		}
		meta, err := newMetadata(cfg, log, clients)
		if err != nil {
			o.Close()
			return nil, err
		}
		provider = meta
	}

	pcfg, err := mapPromoConfig(cfg)
	if err != nil {
		o.Close()
		return nil, err
	}
	o.Promo = promo.New(channel.NewRegistry(), o.store, provider, pcfg, log.With(logx.String("comp", "promo")))
	if err := o.Promo.Reload(ctx); err != nil {
		o.Close()
		return nil, fmt.Errorf("load channels: %w", err)
	}
	return o, nil
}

func (o *Offline) Close() {
	closeStore(o.store)
	o.store = nil
	if o.logs != nil {
		_ = o.logs.Close()
	}
}
