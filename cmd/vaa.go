package cmd

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/attestation"
	"github.com/certusone/wormhole/connect/pkg/registry"
	"github.com/certusone/wormhole/connect/pkg/tokenbridge"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type vaaOutput struct {
	ID               string                 `json:"id"`
	Digest           string                 `json:"digest"`
	GuardianSetIndex uint32                 `json:"guardianSetIndex"`
	Signatures       int                    `json:"signatures"`
	Timestamp        time.Time              `json:"timestamp"`
	Nonce            uint32                 `json:"nonce"`
	ConsistencyLevel uint8                  `json:"consistencyLevel"`
	Bytes            string                 `json:"bytes"`
	Transfer         *adapter.ParsedMessage `json:"transfer,omitempty"`
}

func newVAAOutput(v *vaa.VAA, raw []byte, msg *adapter.ParsedMessage) *vaaOutput {
	return &vaaOutput{
		ID:               v.MessageID(),
		Digest:           v.HexDigest(),
		GuardianSetIndex: v.GuardianSetIndex,
		Signatures:       len(v.Signatures),
		Timestamp:        v.Timestamp.UTC(),
		Nonce:            v.Nonce,
		ConsistencyLevel: v.ConsistencyLevel,
		Bytes:            hex.EncodeToString(raw),
		Transfer:         msg,
	}
}

func (c *cli) vaaCmd() *cobra.Command {
	vaaCmd := &cobra.Command{
		Use:   "vaa",
		Short: "Fetch and decode signed VAAs",
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch [CHAIN/EMITTER/SEQUENCE]",
		Short: "Fetch a signed VAA from the guardian network and decode the transfer it carries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := attestation.MessageIDFromString(args[0])
			if err != nil {
				return err
			}
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				signed, msg, err := r.FetchAndParse(ctx, id)
				if signed == nil {
					return err
				}
				if err != nil {
					c.logger.Warn("fetched VAA does not carry a transfer", zap.Stringer("id", id), zap.Error(err))
				}
				return printJSON(cmd, newVAAOutput(signed.VAA, signed.Bytes, msg))
			})
		},
	}

	parseCmd := &cobra.Command{
		Use:   "parse [DATA]",
		Short: "Decode a hex or base64 encoded signed VAA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := decodeBytes(args[0])
			if err != nil {
				return err
			}
			v, err := vaa.Unmarshal(raw)
			if err != nil {
				return err
			}
			if !tokenbridge.IsTransfer(v.Payload) {
				return printJSON(cmd, newVAAOutput(v, raw, nil))
			}
			return c.withRegistry(cmd, func(ctx context.Context, r *registry.Registry) error {
				source, err := r.Context(v.EmitterChain)
				if err != nil {
					return err
				}
				msg, err := source.ParseMessage(ctx, v)
				if err != nil {
					return err
				}
				return printJSON(cmd, newVAAOutput(v, raw, msg))
			})
		},
	}

	vaaCmd.AddCommand(fetchCmd, parseCmd)
	return vaaCmd
}

// decodeBytes accepts hex, with or without 0x, or standard base64 as served by the guardian REST API.
func decodeBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("data is neither hex nor base64")
	}
	return b, nil
}
