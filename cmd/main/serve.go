package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-chatbot/src/grpc_control"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/notifier"
	"stock-chatbot/src/server"
	"stock-chatbot/src/telegram"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func createServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot with the HTTP and gRPC surfaces",
		Long: `Run the bot until interrupted (Ctrl+C or SIGTERM).

Telegram polling runs when telegram.enabled is set. The HTTP API listens on
host:port and the gRPC control service on grpc_host:grpc_port.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := serve(ctx, a); err != nil {
				color.Red("❌ %v", err)
				return err
			}
			color.Green("✅ Stopped gracefully")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

// -----------------------------------------------------------------------------

// serve orchestrates the startup of all server components and blocks until
// ctx is done or one of them fails
func serve(ctx context.Context, a *app) error {
	mc := a.cfg.MConfig

	api := server.NewAPIServer(mc, a.dispatcher, logger.NewLogger(mc, "APIServer"))
	api.Journal = a.journal
	api.Status = a.control
	a.notifier.Add(notifier.NewHubChannel(api, nil))

	var bot *telegram.Bot
	if mc.Telegram.Enabled {
		client, err := telegram.Connect(mc)
		if err != nil {
			return err
		}
		a.log.Info("Authorized on Telegram as %s", client.Self.UserName)

		channel := notifier.NewTelegramChannel(client, mc.Delivery, logger.NewLogger(mc, "TelegramChannel"))
		a.notifier.Add(channel)
		bot = telegram.NewBot(mc, client, a.dispatcher, channel, logger.NewLogger(mc, "TelegramBot"))
	} else {
		a.log.Warning("Telegram is disabled; only the HTTP API accepts messages")
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// 1. HTTP API
	g.Go(func() error {
		return api.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return api.Stop(shutdownCtx)
	})

	// 2. gRPC Control Server
	if mc.GrpcPort != 0 {
		addr := fmt.Sprintf("%s:%d", mc.GrpcHost, mc.GrpcPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		grpcServer := grpc.NewServer()
		grpc_control.RegisterControlServer(grpcServer, a.control)

		g.Go(func() error {
			a.log.Info("Starting gRPC Control Server on %s", addr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("failed to serve gRPC: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	// 3. Telegram polling
	if bot != nil {
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	color.Green("✅ %s is running (HTTP %s:%d)", mc.Name, mc.Host, mc.Port)
	err := g.Wait()
	if ctx.Err() != nil {
		color.Yellow("\n🛑 Received interrupt signal, shutting down...")
	}
	return err
}
