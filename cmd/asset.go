package cmd

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/registry"
	"github.com/spf13/cobra"
)

// parseTokenID parses CHAIN/ADDRESS. Only the first slash separates the chain, so ibc denoms work.
func parseTokenID(s string) (common.TokenID, error) {
	chainName, address, ok := strings.Cut(s, "/")
	if !ok || address == "" {
		return common.TokenID{}, fmt.Errorf("invalid token %q, expected CHAIN/ADDRESS", s)
	}
	chain, err := chains.IDFromString(chainName)
	if err != nil {
		return common.TokenID{}, err
	}
	return common.TokenID{Chain: chain, Address: address}, nil
}

type foreignAssetOutput struct {
	Token   common.TokenID `json:"token"`
	Chain   chains.ID      `json:"chain"`
	Found   bool           `json:"found"`
	Address string         `json:"address,omitempty"`
}

type balanceOutput struct {
	Chain   chains.ID       `json:"chain"`
	Wallet  string          `json:"wallet"`
	Token   *common.TokenID `json:"token,omitempty"`
	Balance *big.Int        `json:"balance"`
}

func (c *cli) assetCmd() *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Look up token identities, representations and balances",
	}

	idCmd := &cobra.Command{
		Use:   "id [CHAIN/TOKEN]",
		Short: "Print the universal asset id of a token on its home chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				home, err := r.Context(token.Chain)
				if err != nil {
					return err
				}
				id, err := home.FormatAssetAddress(ctx, token.Address)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id.String())
				return nil
			})
		},
	}

	foreignCmd := &cobra.Command{
		Use:   "foreign [CHAIN] [TOKEN_CHAIN/TOKEN]",
		Short: "Look up the representation of a token on CHAIN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseTokenID(args[1])
			if err != nil {
				return err
			}
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				chainCtx, err := r.ContextByName(args[0])
				if err != nil {
					return err
				}
				address, found, err := chainCtx.GetForeignAsset(ctx, token)
				if err != nil {
					return err
				}
				return printJSON(cmd, &foreignAssetOutput{Token: token, Chain: chainCtx.Chain(), Found: found, Address: address})
			})
		},
	}

	var tokenFlag string
	balanceCmd := &cobra.Command{
		Use:   "balance [CHAIN] [WALLET]",
		Short: "Print the native or token balance of a wallet, in base units",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token *common.TokenID
			if tokenFlag != "" {
				t, err := parseTokenID(tokenFlag)
				if err != nil {
					return err
				}
				token = &t
			}
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				chainCtx, err := r.ContextByName(args[0])
				if err != nil {
					return err
				}
				balance, err := walletBalance(ctx, chainCtx, args[1], token)
				if err != nil {
					return err
				}
				return printJSON(cmd, &balanceOutput{Chain: chainCtx.Chain(), Wallet: args[1], Token: token, Balance: balance})
			})
		},
	}
	balanceCmd.Flags().StringVar(&tokenFlag, "token", "", "token as HOME_CHAIN/ADDRESS; the native unit if unset")

	assetCmd.AddCommand(idCmd, foreignCmd, balanceCmd)
	return assetCmd
}

func walletBalance(ctx context.Context, chainCtx adapter.ChainContext, wallet string, token *common.TokenID) (*big.Int, error) {
	if token == nil {
		return chainCtx.GetNativeBalance(ctx, wallet)
	}
	return chainCtx.GetTokenBalance(ctx, wallet, *token)
}
