package app

import (
	"context"
	"fmt"
	"time"

	"crosspromo/internal/promo"
	"crosspromo/internal/transport/telegram/router"
)

const maintenanceTimeout = 30 * time.Minute

type rangeView struct {
	suffix string
	desc   string
	view   promo.View
}

var rangeViews = []rangeView{
	{suffix: "", desc: "channels with counts", view: promo.ViewList},
	{suffix: "names", desc: "channel names", view: promo.ViewNames},
	{suffix: "confirmed", desc: "confirmed channel names", view: promo.ViewConfirmed},
	{suffix: "notconfirmed", desc: "channels waiting for confirmation", view: promo.ViewNotConfirmed},
}

// promoCommands builds the operator command table. Every command is owner
// only; the router ignores everyone else.
func promoCommands(svc *promo.Service) []router.Command {
	cmds := []router.Command{
		{
			Route:       "start",
			Description: "reload channels and show the command list",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				if err := svc.Reload(ctx); err != nil {
					return fmt.Errorf("reload: %w", err)
				}
				return req.Reply(ctx, promo.WelcomeText())
			},
		},
		{
			Route:       "reload",
			Description: "reload channels from storage",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				if err := svc.Reload(ctx); err != nil {
					return fmt.Errorf("reload: %w", err)
				}
				return req.Reply(ctx, fmt.Sprintf("#reloaded #%dchannels", svc.Registry().Len()))
			},
		},
		{
			Route:       "refresh",
			Description: "look up every channel again",
			Access:      router.AccessOwnerOnly,
			Timeout:     maintenanceTimeout,
			Handle: func(ctx context.Context, req *router.Request) error {
				return svc.Refresh(ctx, req)
			},
		},
		{
			Route:       "clean_channels",
			Aliases:     []string{"clean"},
			Description: "archive and clear all channels",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				return svc.Clean(ctx, req)
			},
		},
		{
			Route:       "list all",
			Description: "all channels with counts",
			Access:      router.AccessOwnerOnly,
			Handle:      showHandler(svc, promo.RangeAll, promo.ViewList),
		},
		{
			Route:       "list all names",
			Description: "all channel names",
			Access:      router.AccessOwnerOnly,
			Handle:      showHandler(svc, promo.RangeAll, promo.ViewNames),
		},
	}

	for _, r := range promo.Ranges() {
		for _, v := range rangeViews {
			route := "list " + r.Name
			if v.suffix != "" {
				route += " " + v.suffix
			}
			cmds = append(cmds, router.Command{
				Route:       route,
				Description: fmt.Sprintf("%s, %s", r.Name, v.desc),
				Access:      router.AccessOwnerOnly,
				Handle:      showHandler(svc, r, v.view),
			})
		}
		cmds = append(cmds, router.Command{
			Route:       "list " + r.Name + " final",
			Description: fmt.Sprintf("%s, split confirmed channels into lists", r.Name),
			Usage:       "/list_" + r.Name + "_final <no_of_list> <emojis...>",
			Access:      router.AccessOwnerOnly,
			Handle:      finalHandler(svc, r),
		})
	}
	return cmds
}

func showHandler(svc *promo.Service, r promo.Range, v promo.View) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		return svc.Show(ctx, r, v, req)
	}
}

func finalHandler(svc *promo.Service, r promo.Range) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		return svc.Final(ctx, r, req.Args, req)
	}
}

// textHandler feeds operator free text (#new, #confirm, ...) to the service.
func textHandler(svc *promo.Service) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		return svc.HandleText(ctx, req.Text, req)
	}
}
