package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/habiliai/supportagent/errors"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	params := &struct {
		Host string
		Port int
	}{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the support agent HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sa, err := flags.newSupportAgent(ctx)
			if err != nil {
				return err
			}
			defer sa.Close()

			conf := sa.Config()
			if cmd.Flags().Changed("host") {
				conf.Server.Host = params.Host
			}
			if cmd.Flags().Changed("port") {
				conf.Server.Port = params.Port
			}
			logger := sa.Logger()

			server := &http.Server{
				Addr:    fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port),
				Handler: NewServerHandler(sa),
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				logger.Info("server started", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return errors.Wrapf(err, "failed to serve on %s", server.Addr)
				}
				return nil
			})
			eg.Go(func() error {
				<-egCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(egCtx), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown server", "error", err)
				}
				return nil
			})

			defer logger.Info("server stopped")
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&params.Host, "host", "", "Host to listen on")
	cmd.Flags().IntVarP(&params.Port, "port", "p", 3001, "Port to listen on")

	return cmd
}
