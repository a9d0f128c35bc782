package cosmos

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	wasmdtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Conn is the part of a Cosmos node's gRPC API the chain context uses.
type Conn interface {
	// SubmitQuery submits a query to a smart contract and returns the result.
	SubmitQuery(ctx context.Context, contractAddress string, query []byte) ([]byte, error)
	// Balance returns the bank balance of address in denom.
	Balance(ctx context.Context, address string, denom string) (*big.Int, error)
	// Account returns the account number and next sequence of address.
	Account(ctx context.Context, address string) (accountNumber uint64, sequence uint64, err error)
	// BroadcastTx broadcasts a signed transaction and waits for it to be included in a block.
	BroadcastTx(ctx context.Context, txBytes []byte) (*TxResult, error)
	// GetTx returns an included transaction.
	GetTx(ctx context.Context, hash string) (*TxResult, error)
	Close() error
}

// TxResult is the outcome of an included transaction.
type TxResult struct {
	Hash   string
	Height int64
	Code   uint32
	RawLog string
	// Events is the JSON array of the transaction's ABCI events.
	Events string
}

// Failed reports whether the transaction was included but its execution failed.
func (r *TxResult) Failed() bool {
	return r.Code != 0
}

// ClientConn represents a gRPC connection to a Cosmos node.
//
// For semantics around ctx use and closing/ending streaming RPCs, please refer
// to https://godoc.org/google.golang.org/grpc#ClientConn.NewStream.
type ClientConn struct {
	c           *grpc.ClientConn
	encCfg      EncodingConfig
	waitTimeout time.Duration
}

var _ Conn = (*ClientConn)(nil)

// NewConn creates a new connection to the node at target.
func NewConn(ctx context.Context, target string, useTLS bool, encCfg EncodingConfig) (*ClientConn, error) {
	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	c, err := grpc.DialContext(ctx, target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, err
	}

	return &ClientConn{c: c, encCfg: encCfg, waitTimeout: 30 * time.Second}, nil
}

// Close terminates the connection and frees up resources.
func (c *ClientConn) Close() error {
	return c.c.Close()
}

func (c *ClientConn) SubmitQuery(ctx context.Context, contractAddress string, query []byte) ([]byte, error) {
	req := wasmdtypes.QuerySmartContractStateRequest{Address: contractAddress, QueryData: query}
	resp, err := wasmdtypes.NewQueryClient(c.c).SmartContractState(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *ClientConn) Balance(ctx context.Context, address string, denom string) (*big.Int, error) {
	resp, err := banktypes.NewQueryClient(c.c).Balance(ctx, &banktypes.QueryBalanceRequest{Address: address, Denom: denom})
	if err != nil {
		return nil, err
	}
	if resp.Balance == nil {
		return new(big.Int), nil
	}
	return resp.Balance.Amount.BigInt(), nil
}

func (c *ClientConn) Account(ctx context.Context, address string) (uint64, uint64, error) {
	resp, err := authtypes.NewQueryClient(c.c).Account(ctx, &authtypes.QueryAccountRequest{Address: address})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch account: %w", err)
	}

	var account authtypes.AccountI
	if err := c.encCfg.InterfaceRegistry.UnpackAny(resp.Account, &account); err != nil {
		return 0, 0, fmt.Errorf("failed to unmarshal account info: %w", err)
	}
	return account.GetAccountNumber(), account.GetSequence(), nil
}

func (c *ClientConn) BroadcastTx(ctx context.Context, txBytes []byte) (*TxResult, error) {
	client := sdktx.NewServiceClient(c.c)
	resp, err := client.BroadcastTx(ctx, &sdktx.BroadcastTxRequest{
		Mode:    sdktx.BroadcastMode_BROADCAST_MODE_SYNC,
		TxBytes: txBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast tx: %w", err)
	}
	if resp.TxResponse == nil {
		return nil, fmt.Errorf("broadcast returned no tx response")
	}
	// Rejected by CheckTx, it will never be included.
	if resp.TxResponse.Code != 0 {
		return &TxResult{Hash: resp.TxResponse.TxHash, Code: resp.TxResponse.Code, RawLog: resp.TxResponse.RawLog}, nil
	}

	res, err := waitForBlockInclusion(ctx, client, resp.TxResponse.TxHash, c.waitTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for tx inclusion: %w", err)
	}
	return c.txResult(res)
}

func (c *ClientConn) GetTx(ctx context.Context, hash string) (*TxResult, error) {
	res, err := sdktx.NewServiceClient(c.c).GetTx(ctx, &sdktx.GetTxRequest{Hash: hash})
	if err != nil {
		return nil, err
	}
	return c.txResult(res)
}

func (c *ClientConn) txResult(res *sdktx.GetTxResponse) (*TxResult, error) {
	if res.TxResponse == nil {
		return nil, fmt.Errorf("tx response is empty")
	}
	// The events are encoded on their own: the full response embeds the tx as an Any whose message types may not be
	// registered with our codec.
	events, err := json.Marshal(res.TxResponse.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to format tx events: %w", err)
	}
	return &TxResult{
		Hash:   res.TxResponse.TxHash,
		Height: res.TxResponse.Height,
		Code:   res.TxResponse.Code,
		RawLog: res.TxResponse.RawLog,
		Events: string(events),
	}, nil
}

// waitForBlockInclusion polls for the tx every second until it is included in a block or waitTimeout elapses.
func waitForBlockInclusion(ctx context.Context, client sdktx.ServiceClient, txHash string, waitTimeout time.Duration) (*sdktx.GetTxResponse, error) {
	exitAfter := time.After(waitTimeout)
	for {
		select {
		case <-exitAfter:
			return nil, fmt.Errorf("timed out after %s waiting for tx %s to be included in a block", waitTimeout, txHash)
		case <-time.After(1 * time.Second):
			res, err := client.GetTx(ctx, &sdktx.GetTxRequest{Hash: txHash})
			if err == nil {
				return res, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
