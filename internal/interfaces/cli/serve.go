package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/molsearch/internal/app"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/molsearch/internal/interfaces/http"
	"github.com/turtacn/molsearch/internal/interfaces/http/handlers"
)

// NewHTTPHandler builds the full route tree over a.
func NewHTTPHandler(a *app.App) http.Handler {
	workers, maxResults := a.Engine.Defaults()
	rc := httpapi.RouterConfig{
		SearchHandler:   handlers.NewSearchHandler(a.Engine, workers, maxResults, a.Logger),
		MoleculeHandler: handlers.NewMoleculeHandler(a.Indexer, a.Logger),
		HealthHandler:   handlers.NewHealthHandler(app.Version, a.Checkers...),
		Logger:          a.Logger,
	}
	if h := a.MetricsHandler(); h != nil {
		rc.Metrics = a.Metrics
		rc.MetricsServer = h
		rc.MetricsPath = a.Config.Metrics.Path
	}
	return httpapi.NewRouter(rc)
}

// Serve runs the HTTP API and, when enabled, the kafka index consumer
// until ctx is cancelled.  configPath, if set, is watched for log level
// changes.
func Serve(ctx context.Context, a *app.App, configPath string) error {
	if err := a.StartIndexConsumer(ctx); err != nil {
		return err
	}
	a.WatchConfig(configPath)

	srv := httpapi.NewServer(a.Config.Server, NewHTTPHandler(a), a.Logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		// Shutdown gets a fresh deadline; ctx is already done.
		return srv.Stop(context.WithoutCancel(gctx))
	})
	err := g.Wait()
	a.Logger.Info("server stopped", logging.Err(err))
	return err
}

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				host, port, err := splitAddr(addr)
				if err != nil {
					return err
				}
				cc.Config.Server.Host, cc.Config.Server.Port = host, port
			}
			// The server runs until interrupted; --timeout does not apply.
			a, err := cc.OpenApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return Serve(cmd.Context(), a, cc.ConfigPath)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address host:port (default from config)")
	return cmd
}
