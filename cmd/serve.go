package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/api"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/ws"
)

var (
	servePort    int
	serveDevMode bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve plan, alter and verify over HTTP for the configured database.
Progress of running alterations is pushed to clients on /api/ws and
counters are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		hub := ws.NewHub(logger)
		eng := engine.New(cfg, logger, hub.ProgressCallback())
		hub.SetSnapshot(func() ([]byte, error) {
			st := eng.Status()
			if st == nil {
				return nil, nil
			}
			return json.Marshal(st)
		})
		go hub.Run()

		srv := api.New(eng, logger, port,
			api.WithHub(hub),
			api.WithDevMode(serveDevMode),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "Tablewright API: http://localhost:%d/api\n", port)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8230, "port for the API server (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable CORS for development mode")
	rootCmd.AddCommand(serveCmd)
}
