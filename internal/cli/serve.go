package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/example/disputedesk/internal/httpapi"
	"github.com/example/disputedesk/internal/version"
	"github.com/example/disputedesk/internal/wire"
)

// ServeCmd returns the serve command: the JSON/HTTP API plus a gRPC health endpoint.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and gRPC health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Init(); err != nil {
				return err
			}
			cfg := wire.Config()
			logger := wire.Logger()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps := httpapi.Deps{
				Issues:        wire.IssueService(),
				Messages:      wire.MessageService(),
				Escalations:   wire.EscalationService(),
				Ready:         wire.Repository(),
				Metrics:       wire.Metrics(),
				Logger:        logger,
				Version:       version.String(),
				RateBurst:     cfg.Rate.Burst,
				RatePerSecond: cfg.Rate.PerSecond,
				MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
			}
			if cfg.Auth.Secret != "" {
				tokens, err := wire.TokenService()
				if err != nil {
					return err
				}
				deps.Tokens = tokens
			} else {
				logger.Warn("auth.secret is not set; trusting the X-Actor-ID header (development only)")
			}

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           httpapi.New(deps).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Addr, err)
			}
			grpcServer := grpc.NewServer()
			health := httpapi.NewHealthServer(wire.Repository())
			health.Register(grpcServer)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("http listening", "addr", cfg.HTTP.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				logger.Info("grpc listening", "addr", cfg.GRPC.Addr)
				if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					return fmt.Errorf("grpc server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				health.Run(gctx, 10*time.Second)
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
				grpcServer.GracefulStop()
				wire.Shutdown(shutdownCtx)
				return nil
			})
			return g.Wait()
		},
	}
}
