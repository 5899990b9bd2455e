// mintdeck — web admin dashboard for a Chaumian-ecash mint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mintdeck/mintdeck/internal/config"
	"github.com/mintdeck/mintdeck/internal/models"
	"github.com/mintdeck/mintdeck/internal/server"
)

const version = "v0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "mintdeck",
		Short: "mintdeck — admin dashboard for a Chaumian-ecash mint",
		Long: `mintdeck runs beside a mint and surfaces its operational state:
remote health, host resources, database entry counts, live request
activity and a bounded log stream — over HTTP, Prometheus scrape and
WebSocket push.`,
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mintdeck dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer logger.Sync()

			gin.SetMode(gin.ReleaseMode)
			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing server: %w", err)
			}

			addr := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
			logger.Info("mintdeck starting",
				zap.String("version", version),
				zap.String("addr", addr),
				zap.String("mint_url", cfg.MintURL),
				zap.Bool("mint_db", cfg.MintDBPath != ""))
			srv.Log().Append(models.CategorySystem, models.LevelInfo,
				"mintdeck "+version+" started", nil)

			httpSrv := &http.Server{Addr: addr, Handler: srv.Router()}

			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt)

			select {
			case err := <-errCh:
				return err
			case <-quit:
				logger.Info("shutting down")
				srv.Hub().Shutdown()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(ctx)
			}
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print mintdeck version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mintdeck %s\n", version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
