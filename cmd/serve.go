package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brandy/internal/render"
	"github.com/sells-group/brandy/internal/server"
	"github.com/sells-group/brandy/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the collections and tile server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		styles := render.DefaultStyleSheet()
		if cfg.Render.StylesPath != "" {
			styles, err = render.LoadStyleSheet(cfg.Render.StylesPath)
			if err != nil {
				return err
			}
		}
		renderer := render.NewCommandRenderer(
			time.Duration(cfg.Render.TimeoutSecs)*time.Second, cfg.Render.Command)

		srv := server.New(st, server.Options{
			Renderer:    renderer,
			Styles:      styles,
			FuzzPixels:  cfg.Render.FuzzPixels,
			IngestRate:  cfg.Ingest.RatePerSec,
			IngestBurst: cfg.Ingest.Burst,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("database", cfg.Database.Path))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
