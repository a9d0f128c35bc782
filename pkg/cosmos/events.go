package cosmos

import (
	"encoding/hex"
	"strconv"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const contractAddressKey = "_contract_address"

// eventsToPublications extracts the messages posted by the core contract from the JSON array of a transaction's
// events. Malformed events are logged and skipped.
func eventsToPublications(logger *zap.Logger, chain chains.ID, coreContract string, txHash string, events string) []*adapter.Publication {
	pubs := make([]*adapter.Publication, 0)
	for _, event := range gjson.Parse(events).Array() {
		if !event.IsObject() {
			logger.Warn("event is invalid", zap.String("tx_hash", txHash), zap.String("event", event.String()))
			continue
		}
		if event.Get("type").String() != "wasm" {
			continue
		}

		attributes := event.Get("attributes")
		if !attributes.Exists() {
			logger.Warn("message event has no attributes", zap.String("tx_hash", txHash), zap.String("event", event.String()))
			continue
		}
		mappedAttributes := map[string]string{}
		for _, attribute := range attributes.Array() {
			key := attribute.Get("key")
			value := attribute.Get("value")
			if !key.Exists() || !value.Exists() {
				logger.Warn("event attribute is invalid", zap.String("tx_hash", txHash), zap.String("attribute", attribute.String()))
				continue
			}
			if _, ok := mappedAttributes[key.String()]; ok {
				continue
			}
			mappedAttributes[key.String()] = value.String()
		}

		// Not a wormhole message.
		if mappedAttributes[contractAddressKey] != coreContract {
			continue
		}

		payload, hasPayload := mappedAttributes["message.message"]
		sender, hasSender := mappedAttributes["message.sender"]
		sequence, hasSequence := mappedAttributes["message.sequence"]
		if !hasPayload || !hasSender || !hasSequence {
			logger.Error("wormhole event is missing fields", zap.String("tx_hash", txHash), zap.String("attributes", attributes.String()))
			continue
		}

		senderAddress, err := vaa.StringToAddress(sender)
		if err != nil {
			logger.Error("cannot decode emitter hex", zap.String("tx_hash", txHash), zap.String("value", sender))
			continue
		}
		payloadValue, err := hex.DecodeString(payload)
		if err != nil {
			logger.Error("cannot decode payload", zap.String("tx_hash", txHash), zap.String("value", payload))
			continue
		}
		sequenceValue, err := strconv.ParseUint(sequence, 10, 64)
		if err != nil {
			logger.Error("sequence cannot be parsed as int", zap.String("tx_hash", txHash), zap.String("value", sequence))
			continue
		}

		pubs = append(pubs, &adapter.Publication{
			TxID:           txHash,
			EmitterChain:   chain,
			EmitterAddress: senderAddress,
			Sequence:       sequenceValue,
			Payload:        payloadValue,
		})
	}
	return pubs
}
