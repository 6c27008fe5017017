package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/viewer"
)

var serveAddr string

// serveContext is the context serve runs under. Tests replace it to stop
// the server without a signal.
var serveContext = func(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the viewer API over HTTP",
	Long: `Serve the captured calls over a local HTTP API until interrupted.

Routes:
  GET    /status               capture flag and entry count
  PUT    /status               {"enabled": true|false}
  GET    /logs                 list (?filter=, ?url=, ?limit=)
  DELETE /logs                 clear
  GET    /logs/stream          WebSocket live tail (?filter=, ?url=)
  GET    /logs/{id}            one entry
  GET    /logs/{id}/curl       curl command
  GET    /logs/{id}/timeline   attempt timeline
  GET    /logs/{id}/extract    ?path=<JSONPath>
  GET    /export               ?format=json|har`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := app.cfg.Viewer.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		ctx, stop := serveContext(cmd.Context())
		defer stop()

		return withStore(ctx, func(store *apilog.Store) error {
			srv := viewer.New(store,
				viewer.WithLogger(app.log),
				viewer.WithVersion(Version),
			)
			return srv.ListenAndServe(ctx, addr, func(a net.Addr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Viewer listening on http://%s (Ctrl+C to stop)\n", a)
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", viewer.DefaultAddr, "Listen address")
}
