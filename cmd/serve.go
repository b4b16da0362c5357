package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seir-sim/seir-sim/server"
)

var (
	serveConfigPath string // Optional YAML config file
	serveViper      = viper.New()
)

// serveCmd runs the WebSocket simulation service until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve SEIR simulations over WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadServeConfig(serveViper, serveConfigPath)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"addr":               cfg.Address,
			"path":               cfg.Path,
			"heartbeat_interval": cfg.Session.HeartbeatInterval,
			"client_timeout":     cfg.Session.ClientTimeout,
			"format":             cfg.Session.Format,
		}).Info("Starting SEIR simulation service")

		srv, err := server.New(cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := srv.ListenAndServe(ctx); err != nil {
			return err
		}
		logrus.Info("Server stopped.")
		return nil
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&serveConfigPath, "config", "", "YAML config file (default ./seir-sim.yaml when present)")
	flags.String("addr", "127.0.0.1:8080", "Listen address")
	flags.String("path", "/ws/", "WebSocket endpoint path")
	flags.Duration("heartbeat-interval", server.DefaultSessionConfig().HeartbeatInterval, "Interval between heartbeat checks")
	flags.Duration("client-timeout", server.DefaultSessionConfig().ClientTimeout, "Client silence before disconnecting")
	flags.Int("max-pending", server.DefaultSessionConfig().MaxPendingSolves, "Queued requests per connection before replying busy")
	flags.String("format", "map", "Trajectory encoding (map, records)")
	flags.Duration("grace-period", server.DefaultConfig().GracePeriod, "How long shutdown waits for open sessions")
	flags.StringSlice("allowed-origins", nil, "Accepted Origin headers (* for any; empty for same origin)")
	flags.Float64("rel-tol", server.DefaultConfig().Solver.RelTol, "Solver relative tolerance")
	flags.Float64("abs-tol", server.DefaultConfig().Solver.AbsTol, "Solver absolute tolerance")
	flags.Float64("output-step", 0, "Sample trajectories on a regular grid of this spacing (0 = every accepted step)")

	for key, flag := range map[string]string{
		keyAddr:              "addr",
		keyPath:              "path",
		keyHeartbeatInterval: "heartbeat-interval",
		keyClientTimeout:     "client-timeout",
		keyMaxPending:        "max-pending",
		keyFormat:            "format",
		keyGracePeriod:       "grace-period",
		keyAllowedOrigins:    "allowed-origins",
		keyRelTol:            "rel-tol",
		keyAbsTol:            "abs-tol",
		keyOutputStep:        "output-step",
	} {
		if err := serveViper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logrus.Fatalf("bind flag %s: %v", flag, err)
		}
	}
}
