package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/default.yaml"

func main() {
	var rootCmd = &cobra.Command{
		Use:   "stock-chatbot",
		Short: "Korean stock chat bot",
		Long: `A Telegram bot answering Korean stock questions through numbered menus.

It serves quotes, symbol search, market indices, a per-user portfolio with
profit and loss, price-change alerts and periodic monitors. An HTTP and
websocket API and a gRPC control service run alongside the bot.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createConsoleCmd())
	rootCmd.AddCommand(createStatusCmd())
	rootCmd.AddCommand(createPurgeCmd())
	rootCmd.AddCommand(createConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
