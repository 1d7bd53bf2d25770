package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crosspromo/internal/app"
	"crosspromo/internal/promo"
)

const stopTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:   "crosspromo",
		Short: "Cross-promotion bot for Telegram channels",
		Long: `crosspromo keeps a registry of channels submitted by the operators,
tracks their review stage and splits confirmed channels into balanced
promotional lists.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config file (json or yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Run the bot until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runStart(cmd.Context(), cfgPath)
			},
		},
		&cobra.Command{
			Use:   "clean",
			Short: "Archive the registered channels and clear the registry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOffline(cmd, cfgPath, false, func(ctx context.Context, svc *promo.Service, out promo.Replier) error {
					return svc.Clean(ctx, out)
				})
			},
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Look up every registered channel again and store the result",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOffline(cmd, cfgPath, true, func(ctx context.Context, svc *promo.Service, out promo.Replier) error {
					return svc.Refresh(ctx, out)
				})
			},
		},
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runStart(parent context.Context, cfgPath string) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		return errors.Join(fmt.Errorf("start: %w", err), a.Stop(stopCtx, app.StopFatalError))
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func runOffline(cmd *cobra.Command, cfgPath string, withLookups bool, op func(context.Context, *promo.Service, promo.Replier) error) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	o, err := app.OpenOffline(ctx, cfgPath, withLookups)
	if err != nil {
		return err
	}
	defer o.Close()

	out := promo.ReplyFunc(func(_ context.Context, text string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	})
	return op(ctx, o.Promo, out)
}
