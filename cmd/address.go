package cmd

import (
	"context"
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/registry"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/spf13/cobra"
)

func (c *cli) addressCmd() *cobra.Command {
	addressCmd := &cobra.Command{
		Use:   "address",
		Short: "Convert between native and universal addresses",
	}

	formatCmd := &cobra.Command{
		Use:   "format [CHAIN] [ADDRESS]",
		Short: "Print the 32 byte universal form of a native address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRegistry(cmd, func(_ context.Context, r *registry.Registry) error {
				chainCtx, err := r.ContextByName(args[0])
				if err != nil {
					return err
				}
				a, err := chainCtx.FormatAddress(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.String())
				return nil
			})
		},
	}

	parseCmd := &cobra.Command{
		Use:   "parse [CHAIN] [UNIVERSAL_ADDRESS]",
		Short: "Print the native form of a hex encoded universal address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := vaa.StringToAddress(args[1])
			if err != nil {
				return fmt.Errorf("invalid universal address: %w", err)
			}
			return c.withRegistry(cmd, func(_ context.Context, r *registry.Registry) error {
				chainCtx, err := r.ContextByName(args[0])
				if err != nil {
					return err
				}
				native, err := chainCtx.ParseAddress(a)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), native)
				return nil
			})
		},
	}

	addressCmd.AddCommand(formatCmd, parseCmd)
	return addressCmd
}
