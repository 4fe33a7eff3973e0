package commands

import (
	"github.com/spf13/cobra"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/app"
	"github.com/klabast/wb-services/plaza/internal/broker"
	"github.com/klabast/wb-services/plaza/internal/config"
	"github.com/klabast/wb-services/plaza/internal/render"
	"github.com/klabast/wb-services/plaza/internal/store"
)

func newServeCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the events web server",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	if err := a.v.BindPFlag(config.KeyAddr, cmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	return cmd
}

func (a *App) serve(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := a.cfg

	creds, err := a.credentials()
	if err != nil {
		return err
	}

	b := broker.New(a.logger)
	events, backends, err := a.eventStore(ctx, store.WithPublisher(b))
	if err != nil {
		return err
	}
	defer backends.Close()

	controller := admin.NewController(ctx, events,
		admin.WithSaveDelay(cfg.Delays.Save),
		admin.WithLogger(a.logger))
	gate := admin.NewGate(creds, backends.sessions,
		admin.WithLoginDelay(cfg.Delays.Login),
		admin.WithGateLogger(a.logger))
	renderer := render.New(
		render.WithLocale(cfg.Site.Locale),
		render.WithBookingPhone(cfg.Site.BookingPhone),
		render.WithPreviewLimit(cfg.Site.PreviewLimit),
		render.WithLogger(a.logger))

	srv := app.New(events, controller, gate, renderer, b,
		app.WithLogger(a.logger),
		app.WithMetrics(cfg.MetricsEnabled))

	a.logger.Info().
		Str("backend", cfg.Store.Backend).
		Str("locale", renderer.Locale().String()).
		Bool("metrics", cfg.MetricsEnabled).
		Msg("Configured")
	if cfg.Store.Backend == config.BackendFile {
		a.logger.Info().Str("path", cfg.StorePath()).Msg("Data file")
	}

	return srv.ListenAndServe(ctx, cfg.Addr)
}
