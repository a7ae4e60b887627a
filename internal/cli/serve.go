package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/freshmate/internal/backup"
	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/server"
	ws "github.com/dukerupert/freshmate/internal/websocket"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var backupInterval time.Duration
	var backupKeep int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hub := ws.NewHub(a.logger.With("component", "hub"))
			svc := a.service(inventory.WithListener(hub.PassListener()))
			srv := server.New(svc, hub, a.logger, server.WithTrustProxyHeaders(a.cfg.TrustProxyHeaders))

			go srv.Maintain(ctx, time.Minute)
			if backupInterval > 0 {
				go scheduleBackups(ctx, a, backupInterval, backupKeep)
			}

			// No read or write timeout: they would cut off long-lived websockets.
			httpServer := &http.Server{
				Addr:              net.JoinHostPort("", a.cfg.Port),
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("freshmate listening", "addr", httpServer.Addr, "backend", a.cfg.DataBackend)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return WrapExitError(ExitCommandError, "server error", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return WrapExitError(ExitCommandError, "shutdown", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&backupInterval, "backup-interval", 0, "upload an encrypted backup this often (0 disables)")
	cmd.Flags().IntVar(&backupKeep, "backup-keep", 7, "backups to retain when scheduled backups run")
	return cmd
}

// scheduleBackups uploads a backup every interval until ctx is done. It needs
// backup_passphrase in the config since nobody is around to type one.
func scheduleBackups(ctx context.Context, a *app, interval time.Duration, keep int) {
	logger := a.logger.With("component", "backup")
	if !a.cfg.BackupConfigured() || a.cfg.BackupPassphrase == "" {
		logger.Warn("scheduled backups disabled: storage or passphrase not configured")
		return
	}
	m := a.backups()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Run(ctx, a.cfg.BackupPassphrase); err != nil {
				if errors.Is(err, backup.ErrWeakPassphrase) {
					logger.Error("scheduled backups stopped", "error", err)
					return
				}
				logger.Error("scheduled backup failed", "error", err)
				continue
			}
			if keep > 0 {
				if _, err := m.Cleanup(ctx, keep); err != nil {
					logger.Error("backup cleanup failed", "error", err)
				}
			}
		}
	}
}
