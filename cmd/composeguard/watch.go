package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jongio/composeguard/cliout"
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/metrics"
	"github.com/jongio/composeguard/notify"
	"github.com/jongio/composeguard/watch"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var notifyFlag bool
	cmd := &cobra.Command{
		Use:   "watch file",
		Short: "Re-scan a compose file every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("notify") {
				a.cfg.Watch.Notify = notifyFlag
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, args[0])
		},
	}
	cmd.Flags().BoolVar(&notifyFlag, "notify", false, "Send a desktop notification when the score drops")
	return cmd
}

func (a *app) runWatch(ctx context.Context, path string) error {
	w, err := watch.New(path, a.analyzer(metrics.SourceWatch), a.cfg.Watch.Debounce)
	if err != nil {
		return err
	}

	var notifier notify.Notifier
	if a.cfg.Watch.Notify {
		notifier, err = notify.New(notify.DefaultConfig())
		if err != nil {
			return fmt.Errorf("notifications unavailable: %w", err)
		}
		defer func() { _ = notifier.Close() }()
	}

	name := filepath.Base(w.Path())
	if !cliout.IsStructured() {
		cliout.Info("Watching %s (Ctrl+C to stop)", w.Path())
	}

	return w.Run(ctx, func(ev watch.Event) {
		if ev.Err != nil {
			cliout.Error("%v", ev.Err)
			return
		}
		if err := a.printReport(ev.Report, name); err != nil {
			cliout.Error("%v", err)
		}

		if notifier == nil || !ev.ScoreDropped() {
			return
		}
		n, ok := notify.ScoreDrop(name, ev.Previous.Score, ev.Report.Score, ev.Report.Counts)
		if !ok {
			return
		}
		if err := notifier.Send(ctx, n); err != nil {
			logutil.Warn("desktop notification failed", "error", err)
		}
	})
}
