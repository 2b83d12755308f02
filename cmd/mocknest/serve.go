package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mocknest/mocknest/pkg/config"
	"github.com/mocknest/mocknest/pkg/logging"
	"github.com/mocknest/mocknest/pkg/server"
)

var serveFlags struct {
	configFile string
	listenAddr string
	dataDir    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Start the mock server.

Tenants are resolved from the Host subdomain when a base domain is
configured, or from the /m/{tenant}/ path prefix otherwise. The internal
credential must be supplied via the config file or the
MOCKNEST_INTERNAL_SECRET environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveFlags.configFile)
		if err != nil {
			return err
		}
		if serveFlags.listenAddr != "" {
			cfg.ListenAddr = serveFlags.listenAddr
		}
		if serveFlags.dataDir != "" {
			cfg.DataDir = serveFlags.dataDir
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return err
		}

		log := logging.New(logging.Config{
			Level:  logging.ParseLevel(cfg.Log.Level),
			Format: logging.ParseFormat(cfg.Log.Format),
			Output: os.Stderr,
		})

		srv := server.New(cfg, log)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			log.Info("shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.configFile, "config", "c", "", "path to config file")
	serveCmd.Flags().StringVar(&serveFlags.listenAddr, "listen", "", "HTTP bind address (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.dataDir, "data-dir", "", "tenant database directory (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
