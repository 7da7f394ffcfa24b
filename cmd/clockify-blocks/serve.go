package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr, root string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tracker blocks of local Markdown files over HTTP",
		Long: `Start the local control server.

Routes:
  GET  /healthz
  GET  /blocks?file=PATH
  POST /blocks?file=PATH[&line=N]
  POST /blocks/{index}/click?file=PATH
  PUT  /blocks/{index}/description?file=PATH   {"description": "..."}

PATH must lie below the vault root (--root, vault.root, or the working
directory); relative paths are resolved against it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cfg, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = cfg.HTTP.Addr
			}
			if root == "" {
				root = cfg.Vault.Root
			}
			if root == "" {
				if root, err = os.Getwd(); err != nil {
					return err
				}
			}
			if err := a.SetRoot(root); err != nil {
				return err
			}
			opts.log.Info("serving documents", slog.String("root", a.Root()))
			srv := a.HTTPServer(addr)
			errCh := make(chan error, 1)
			go func() {
				opts.log.Info("http server listening", slog.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			opts.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http.addr from config)")
	cmd.Flags().StringVar(&root, "root", "", "directory documents must live in (default vault.root, then the working directory)")
	return cmd
}
