package main

import (
	"os/signal"
	"syscall"

	"github.com/jongio/composeguard/httpapi"
	"github.com/jongio/composeguard/metrics"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port      int
		rateLimit float64
		burst     int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API with /metrics and /health",
		Example: `  composeguard serve --port 8080
  curl --data-binary @compose.yaml localhost:8080/v1/analyze`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("port") {
				a.cfg.Serve.Port = port
			}
			if flags.Changed("rate-limit") {
				a.cfg.Serve.RateLimit = rateLimit
			}
			if flags.Changed("burst") {
				a.cfg.Serve.Burst = burst
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			srv := httpapi.New(httpapi.Options{
				Analyzer:  a.analyzer(metrics.SourceHTTP),
				RateLimit: a.cfg.Serve.RateLimit,
				Burst:     a.cfg.Serve.Burst,
				Version:   a.info.Version,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, a.cfg.Serve.Port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", httpapi.DefaultRateLimit, "Requests per second per client (0 disables)")
	cmd.Flags().IntVar(&burst, "burst", httpapi.DefaultBurst, "Burst size per client")
	return cmd
}
