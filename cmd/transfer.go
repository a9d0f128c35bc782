package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/attestation"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/cosmos"
	"github.com/certusone/wormhole/connect/pkg/evm"
	"github.com/certusone/wormhole/connect/pkg/registry"
	"github.com/certusone/wormhole/connect/pkg/transfer"
	"github.com/spf13/cobra"
)

// decodeOverrides builds the overrides of chain's family from --override key=value flags.
func decodeOverrides(chain chains.ID, raw map[string]string) (adapter.Overrides, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var o adapter.Overrides
	switch chain.Platform() {
	case chains.PlatformEVM:
		o = &evm.Overrides{}
	case chains.PlatformCosmWasm:
		o = &cosmos.Overrides{}
	default:
		return nil, fmt.Errorf("%s does not accept overrides", chain)
	}

	m := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		m[k] = v
	}
	if err := adapter.DecodeOverrides(m, o); err != nil {
		return nil, err
	}
	return o, nil
}

func parseBaseUnits(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q, expected a non-negative integer in base units", s)
	}
	return n, nil
}

type statusOutput struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	DestChain *chains.ID `json:"destChain,omitempty"`
	VAA       string     `json:"vaa,omitempty"`
}

type redeemOutput struct {
	ID               string               `json:"id"`
	State            string               `json:"state"`
	AlreadyCompleted bool                 `json:"alreadyCompleted"`
	Tx               *adapter.Transaction `json:"tx,omitempty"`
}

func (c *cli) transferCmd() *cobra.Command {
	transferCmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send, track and redeem token transfers",
	}
	transferCmd.AddCommand(
		c.transferSendCmd(),
		c.transferStatusCmd(),
		c.transferRedeemCmd(),
		c.transferParseTxCmd(),
	)
	return transferCmd
}

func (c *cli) transferSendCmd() *cobra.Command {
	var (
		token      string
		sender     string
		relayerFee string
		payload    string
		nonce      uint32
		overrides  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "send [FROM_CHAIN] [TO_CHAIN] [RECIPIENT] [AMOUNT]",
		Short: "Send a transfer. AMOUNT is in the token's base units on FROM_CHAIN",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &adapter.TransferRequest{
				Sender:    sender,
				Recipient: args[2],
				Nonce:     nonce,
			}

			var err error
			if req.Amount, err = parseBaseUnits(args[3]); err != nil {
				return err
			}
			if relayerFee != "" {
				if req.RelayerFee, err = parseBaseUnits(relayerFee); err != nil {
					return err
				}
			}
			if token != "" {
				t, err := parseTokenID(token)
				if err != nil {
					return err
				}
				req.Token = &t
			}
			if payload != "" {
				if req.Payload, err = decodeBytes(payload); err != nil {
					return fmt.Errorf("invalid payload: %w", err)
				}
			}

			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				source, err := r.ContextByName(args[0])
				if err != nil {
					return err
				}
				dest, err := r.ContextByName(args[1])
				if err != nil {
					return err
				}
				req.DestChain = dest.Chain()

				o, err := decodeOverrides(source.Chain(), overrides)
				if err != nil {
					return err
				}

				var tx *adapter.Transaction
				if req.Payload != nil {
					tx, err = source.SendWithPayload(ctx, req, o)
				} else {
					tx, err = source.Send(ctx, req, o)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, tx)
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "token as HOME_CHAIN/ADDRESS; the native unit if unset")
	cmd.Flags().StringVar(&sender, "sender", "", "sending address, must match the configured signing key")
	cmd.Flags().StringVar(&relayerFee, "relayer-fee", "", "fee paid to the redeemer, in base units")
	cmd.Flags().StringVar(&payload, "payload", "", "hex or base64 payload delivered to the recipient")
	cmd.Flags().Uint32Var(&nonce, "nonce", 0, "message nonce")
	cmd.Flags().StringToStringVar(&overrides, "override", nil, "transaction parameter overrides, e.g. gas_limit=300000")
	_ = cmd.MarkFlagRequired("sender")
	return cmd
}

func (c *cli) transferStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [CHAIN/EMITTER/SEQUENCE]",
		Short: "Report whether a transfer is sent, attested or redeemed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := attestation.MessageIDFromString(args[0])
			if err != nil {
				return err
			}
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				status, err := r.Tracker().Status(ctx, id)
				if err != nil {
					return err
				}
				out := &statusOutput{ID: id.String(), State: status.State.String()}
				if status.VAA != nil {
					out.DestChain = &status.DestChain
					out.VAA = fmt.Sprintf("%x", status.VAA.Bytes)
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func (c *cli) transferRedeemCmd() *cobra.Command {
	var (
		payer     string
		overrides map[string]string
	)

	cmd := &cobra.Command{
		Use:   "redeem [CHAIN/EMITTER/SEQUENCE]",
		Short: "Redeem a transfer on its destination chain unless it already is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := attestation.MessageIDFromString(args[0])
			if err != nil {
				return err
			}
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				status, err := r.Tracker().Status(ctx, id)
				if err != nil {
					return err
				}
				if status.State == transfer.StateSent {
					return fmt.Errorf("%s: %w", id, common.ErrAttestationUnavailable)
				}

				o, err := decodeOverrides(status.DestChain, overrides)
				if err != nil {
					return err
				}
				res, err := r.Tracker().RedeemOnce(ctx, status.VAA.Bytes, o, payer)
				if err != nil {
					return err
				}
				return printJSON(cmd, &redeemOutput{
					ID:               id.String(),
					State:            res.State.String(),
					AlreadyCompleted: res.AlreadyCompleted,
					Tx:               res.Tx,
				})
			})
		},
	}

	cmd.Flags().StringVar(&payer, "payer", "", "redeeming address; the transfer recipient if unset")
	cmd.Flags().StringToStringVar(&overrides, "override", nil, "transaction parameter overrides, e.g. gas_price=0.02")
	return cmd
}

func (c *cli) transferParseTxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-tx [CHAIN] [TX]",
		Short: "Decode the transfers published by a source chain transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				source, err := r.ContextByName(args[0])
				if err != nil {
					return err
				}
				msgs, err := source.ParseMessageFromTx(ctx, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, msgs)
			})
		},
	}
}
