package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/trainer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve training sessions over websocket",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		mux := http.NewServeMux()
		mux.Handle("/ws", trainer.NewHandler(a.deps(), a.options(), a.cfg.AllowedOrigins...))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{
			Addr:              a.cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		a.logger.Info("trainer_listening", zap.String("addr", a.cfg.ListenAddr))

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		a.logger.Info("trainer_stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
