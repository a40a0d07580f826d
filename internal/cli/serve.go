package cli

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/concierge/internal/agent"
	"github.com/soyeahso/concierge/internal/gateway"
	"github.com/soyeahso/concierge/internal/notify"
	"github.com/soyeahso/concierge/internal/routing"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Run the gateway, chat channels and idle-flow sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			return runServe(ctx, a, nil)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// runServe runs every long-lived part of the service until ctx is done or
// one of them fails. A nil listener makes the gateway bind from config.
func runServe(ctx context.Context, a *app, ln net.Listener) error {
	srv := gateway.New(a.cfg, a.log,
		gateway.WithRunner(a.runner),
		gateway.WithReservations(a.reservations),
		gateway.WithChannels(a.channels),
		gateway.WithHooks(a.hooks),
		gateway.WithMetrics(a.metrics),
	)

	var sweeper *agent.Sweeper
	if idle := time.Duration(a.cfg.Session.IdleMinutes) * time.Minute; idle > 0 {
		var err error
		if sweeper, err = agent.NewSweeper(a.runner, idle, ""); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if ln != nil {
			return srv.Serve(gctx, ln)
		}
		return srv.Start(gctx)
	})

	if sweeper != nil {
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	if a.channels.Count() > 0 {
		// The channel notifier already delivers every reply; the router
		// only answers directly when no notifier does.
		router := routing.NewRouter(a.channels, a.runner, a.cfg.Notifier.Mode != notify.ModeChannel, a.log)
		router.Wire(gctx)

		g.Go(func() error {
			if err := a.channels.StartAll(gctx); err != nil {
				return err
			}
			a.log.Info().Int("channels", a.channels.Count()).Msg("message routing active")
			<-gctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.channels.StopAll(stopCtx)
			router.Wait()
			return nil
		})
	}

	return g.Wait()
}
