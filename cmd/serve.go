package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wufan123/vs-ex-compress/workspace"
)

const shutdownTimeout = 5 * time.Second

var serveAddrFlag string

// serveCmd represents the serve command.
var serveCmd = newServeCmd()

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API while watching the workspace",
		Long: `Watch the workspace like "watch" does and expose the recent-files list,
compression and an event stream over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bus := workspace.NewEventBus()
			svc, err := newService(workspace.MultiNotifier{workspace.LogNotifier{}, bus})
			if err != nil {
				return err
			}
			defer svc.Close()

			watchConfig()
			srv := &http.Server{
				Addr:              viper.GetString(serveAddrKey),
				Handler:           workspace.NewHandlers(svc, bus).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return runWatching(cmd.Context(), svc, func(ctx context.Context) error {
				return serveHTTP(ctx, srv)
			})
		},
	}

	cmd.Flags().StringVar(&serveAddrFlag, serveAddrFlagName, defaultServeAddr, "listen address")
	bindFlagToConfig(cmd.Flags().Lookup(serveAddrFlagName), serveAddrKey)

	return cmd
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serveHTTP runs srv until ctx is done, then shuts it down. Request contexts
// derive from ctx so open event streams end with it.
func serveHTTP(ctx context.Context, srv *http.Server) error {
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
