package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	var configPath string
	check := &cobra.Command{
		Use:   "check",
		Short: "Load, default and validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				color.Red("❌ %v", err)
				return err
			}

			color.Green("✅ %s is valid", configPath)
			color.White("  http      %s:%d", cfg.Host, cfg.Port)
			color.White("  grpc      %s:%d", cfg.GrpcHost, cfg.GrpcPort)
			color.White("  telegram  enabled=%v", cfg.Telegram.Enabled)
			color.White("  storage   %s", cfg.Storage.DBType)
			color.White("  symbols   %d extra", len(cfg.Symbols))
			if cfg.PrivilegedUserID == 0 {
				color.Yellow("  ⚠️ privileged_user_id is not set; /test, /quicktest and /cli are refused")
			}
			if cfg.CLI.Enabled {
				color.Yellow("  ⚠️ /cli is enabled")
			}
			return nil
		},
	}
	check.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")

	cmd.AddCommand(check)
	return cmd
}
