package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"stock-chatbot/src/notifier"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func createConsoleCmd() *cobra.Command {
	var configPath string
	var userID int64

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the bot from the terminal",
		Long: `Read messages from stdin and print the bot's replies.

Alerts and monitors keep running in the background and their pushes are
printed as they arrive. Type /quit or press Ctrl+D to leave.`,
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

			a.notifier.Add(notifier.NewWriterChannel(color.Output))
			if err := a.scheduler.Start(ctx); err != nil {
				return err
			}

			return console(ctx, a, userID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().Int64VarP(&userID, "user", "u", 1, "user id to chat as")
	return cmd
}

// -----------------------------------------------------------------------------

func console(ctx context.Context, a *app, userID int64) error {
	prompt := color.New(color.FgCyan, color.Bold)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(color.Output, a.dispatcher.Dispatch(ctx, userID, "/start"))
	for {
		prompt.Fprint(color.Output, "\n> ")
		select {
		case <-ctx.Done():
			color.Yellow("\n🛑 Interrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "/quit" {
				return nil
			}
			if line == "" {
				continue
			}
			fmt.Fprintln(color.Output, a.dispatcher.Dispatch(ctx, userID, line))
		}
	}
}
