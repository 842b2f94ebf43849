package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"linenotes/internal/config"
	"linenotes/internal/server"
	"linenotes/internal/watch"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	var watchFiles bool

	cmd := &cobra.Command{
		Use:   "srv",
		Short: "Run the linenotes API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := componentLogger("server", cfg.ProjectRoot)

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			svc, err := openService(cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("opened project", "root", svc.ProjectRoot(), "backend", svc.Backend(), "location", svc.Location())
			defer func() {
				if err := svc.Dispose(); err != nil {
					logger.Error("dispose failed", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var w *watch.Watcher
			if watchFiles {
				w, err = watch.New(svc, watch.Options{
					Root:     svc.ProjectRoot(),
					Debounce: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
					Ignore:   cfg.Watch.Ignore,
					Logger:   componentLogger("watch", svc.ProjectRoot()),
				})
				if err != nil {
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			srv := server.New(addr, svc, cfg.APITokenHash, logger)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})
			if w != nil {
				g.Go(func() error {
					return w.Run(gctx)
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&watchFiles, "watch", false, "remap annotated files when they change on disk")
	return cmd
}
