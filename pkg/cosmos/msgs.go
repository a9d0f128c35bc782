package cosmos

import (
	"encoding/json"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	wasmdtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/certusone/wormhole/connect/pkg/chains"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// Token bridge execute messages.
type (
	depositTokensMsg struct {
		DepositTokens struct{} `json:"deposit_tokens"`
	}

	initiateTransferMsg struct {
		Params *initiateTransferParams `json:"initiate_transfer,omitempty"`
	}

	initiateTransferWithPayloadMsg struct {
		Params *initiateTransferParams `json:"initiate_transfer_with_payload,omitempty"`
	}

	initiateTransferParams struct {
		Asset          asset  `json:"asset"`
		RecipientChain uint16 `json:"recipient_chain"`
		// Recipient is the universal address, serialized as base64.
		Recipient []byte `json:"recipient"`
		Fee       string `json:"fee"`
		Nonce     uint32 `json:"nonce"`
		Payload   []byte `json:"payload,omitempty"`
	}

	asset struct {
		Amount string    `json:"amount"`
		Info   assetInfo `json:"info"`
	}

	assetInfo struct {
		NativeToken *nativeTokenInfo `json:"native_token,omitempty"`
		Token       *tokenInfo       `json:"token,omitempty"`
	}

	nativeTokenInfo struct {
		Denom string `json:"denom"`
	}

	tokenInfo struct {
		ContractAddr string `json:"contract_addr"`
	}

	submitVAAMsg struct {
		Params submitVAAParams `json:"submit_vaa"`
	}

	submitVAAParams struct {
		Data []byte `json:"data"`
	}
)

// cw20 execute messages.
type (
	increaseAllowanceMsg struct {
		Params increaseAllowanceParams `json:"increase_allowance"`
	}

	increaseAllowanceParams struct {
		Spender string     `json:"spender"`
		Amount  string     `json:"amount"`
		Expires expiration `json:"expires"`
	}

	expiration struct {
		Never struct{} `json:"never"`
	}
)

// Queries and their responses.
type (
	isVAARedeemedQuery struct {
		Params isVAARedeemedParams `json:"is_vaa_redeemed"`
	}

	isVAARedeemedParams struct {
		VAA []byte `json:"vaa"`
	}

	isVAARedeemedResponse struct {
		IsRedeemed bool `json:"is_redeemed"`
	}

	wrappedRegistryQuery struct {
		Params wrappedRegistryParams `json:"wrapped_registry"`
	}

	wrappedRegistryParams struct {
		Chain   uint16 `json:"chain"`
		Address []byte `json:"address"`
	}

	wrappedRegistryResponse struct {
		Address string `json:"address"`
	}

	externalIDQuery struct {
		Params externalIDParams `json:"external_id"`
	}

	externalIDParams struct {
		ExternalID []byte `json:"external_id"`
	}

	externalIDResponse struct {
		TokenID struct {
			Bank *struct {
				Denom string `json:"denom"`
			} `json:"bank,omitempty"`
			Contract *struct {
				NativeCW20 *struct {
					ContractAddress string `json:"contract_address"`
				} `json:"native_cw20,omitempty"`
				ForeignToken *struct {
					ChainID        uint16 `json:"chain_id"`
					ForeignAddress string `json:"foreign_address"`
				} `json:"foreign_token,omitempty"`
			} `json:"contract,omitempty"`
		} `json:"token_id"`
	}

	cw20BalanceQuery struct {
		Params cw20BalanceParams `json:"balance"`
	}

	cw20BalanceParams struct {
		Address string `json:"address"`
	}

	cw20BalanceResponse struct {
		Balance string `json:"balance"`
	}

	cw20TokenInfoQuery struct {
		TokenInfo struct{} `json:"token_info"`
	}

	cw20TokenInfoResponse struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
	}
)

func newInitiateTransferParams(info assetInfo, amount *big.Int, recipientChain chains.ID, recipient []byte, fee *big.Int, nonce uint32) *initiateTransferParams {
	return &initiateTransferParams{
		Asset:          asset{Amount: amount.String(), Info: info},
		RecipientChain: uint16(recipientChain),
		Recipient:      recipient,
		Fee:            fee.String(),
		Nonce:          nonce,
	}
}

// executeMsg marshals msg into a MsgExecuteContract.
func executeMsg(sender string, contract string, msg interface{}, funds sdktypes.Coins) (*wasmdtypes.MsgExecuteContract, error) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if funds == nil {
		funds = sdktypes.Coins{}
	}
	return &wasmdtypes.MsgExecuteContract{
		Sender:   sender,
		Contract: contract,
		Msg:      msgBytes,
		Funds:    funds,
	}, nil
}

func coins(denom string, amount *big.Int) sdktypes.Coins {
	return sdktypes.NewCoins(sdktypes.NewCoin(denom, sdkmath.NewIntFromBigInt(amount)))
}
