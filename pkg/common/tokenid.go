package common

import (
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/chains"
)

// TokenID identifies a token by its home chain and its address in that chain's native format.
// Address is never the 32-byte universal form. Native units without a contract (e.g. "uluna") use their denomination.
type TokenID struct {
	Chain   chains.ID `json:"chain"`
	Address string    `json:"address"`
}

func (t TokenID) String() string {
	return fmt.Sprintf("%s/%s", t.Chain, t.Address)
}
