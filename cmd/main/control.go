package main

import (
	"context"
	"fmt"
	"time"

	"stock-chatbot/src/grpc_control"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultControlAddr = "127.0.0.1:50051"

func createStatusCmd() *cobra.Command {
	var addr string
	var subscriptions bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show registry sizes of a running bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControl(addr, func(ctx context.Context, c *grpc_control.ControlClient) error {
				out, err := c.GetStatus(ctx)
				if err != nil {
					return err
				}
				printStruct("📊 Status", out)

				if subscriptions {
					subs, err := c.ListSubscriptions(ctx)
					if err != nil {
						return err
					}
					printStruct("🔔 Subscriptions", subs)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultControlAddr, "control service address")
	cmd.Flags().BoolVar(&subscriptions, "subscriptions", false, "also list alerts and monitors")
	return cmd
}

// -----------------------------------------------------------------------------

func createPurgeCmd() *cobra.Command {
	var addr string
	var userID int64

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop expired search results, or everything held for one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControl(addr, func(ctx context.Context, c *grpc_control.ControlClient) error {
				if userID != 0 {
					out, err := c.ClearUser(ctx, userID)
					if err != nil {
						return err
					}
					printStruct(fmt.Sprintf("🧹 Cleared user %d", userID), out)
					return nil
				}
				out, err := c.PurgeCache(ctx)
				if err != nil {
					return err
				}
				printStruct("🧹 Purged", out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultControlAddr, "control service address")
	cmd.Flags().Int64Var(&userID, "user", 0, "clear session, results and subscriptions of this user")
	return cmd
}

// -----------------------------------------------------------------------------

func withControl(addr string, fn func(ctx context.Context, c *grpc_control.ControlClient) error) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := fn(ctx, grpc_control.NewControlClient(conn)); err != nil {
		color.Red("❌ No bot answered on %s: %v", addr, err)
		return err
	}
	return nil
}

func printStruct(title string, s *structpb.Struct) {
	body, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		color.Red("❌ %v", err)
		return
	}
	color.Green(title)
	fmt.Println(string(body))
}
