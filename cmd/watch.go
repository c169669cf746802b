package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wufan123/vs-ex-compress/workspace"
)

// watchCmd represents the watch command.
var watchCmd = newWatchCmd()

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the recent-files list current while the workspace changes",
		Long: `Watch the workspace and rescan it after every burst of changes, once the
quiet period has passed without further events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			notifier := workspace.MultiNotifier{
				workspace.LogNotifier{},
				consoleNotifier{out: cmd.OutOrStdout(), scans: true},
			}
			svc, err := newService(notifier)
			if err != nil {
				return err
			}
			defer svc.Close()

			watchConfig()
			return runWatching(cmd.Context(), svc)
		},
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatching runs the service fed by an fsnotify watcher, plus any extra
// tasks, until ctx is done or one of them fails.
func runWatching(ctx context.Context, svc *workspace.Service, extra ...func(context.Context) error) error {
	matchers := workspace.NewMatcherCache(0)
	w, err := workspace.NewFSWatcher(svc.Root(), func() *workspace.IgnoreRule {
		return matchers.Get(currentIgnore())
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(w.Start(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(svc.Run(gctx, w.Events()))
	})
	for _, task := range extra {
		g.Go(func() error {
			return ignoreCanceled(task(gctx))
		})
	}

	err = g.Wait()
	logger.Info("stopped", "root", svc.Root(), "err", err)
	return err
}
