package common

import (
	"fmt"
	"strings"
)

// Environment selects the guardian network attestations are fetched from.
type Environment string

const (
	MainNet Environment = "mainnet"
	TestNet Environment = "testnet"
	DevNet  Environment = "devnet"
)

// ParseEnvironment parses a string into the corresponding Environment value, allowing various reasonable variations.
func ParseEnvironment(str string) (Environment, error) {
	switch strings.ToLower(str) {
	case "prod", "mainnet":
		return MainNet, nil
	case "test", "testnet":
		return TestNet, nil
	case "dev", "devnet", "unsafedevnet":
		return DevNet, nil
	}
	return "", fmt.Errorf("invalid environment string: %s", str)
}

// GuardianHosts returns the public guardian REST endpoints of the environment.
func (e Environment) GuardianHosts() []string {
	switch e {
	case MainNet:
		return []string{
			"https://wormhole-v2-mainnet-api.mcf.rocks",
			"https://wormhole-v2-mainnet-api.chainlayer.network",
			"https://wormhole-v2-mainnet-api.staking.fund",
			"https://guardian.mainnet.xlabs.xyz",
		}
	case TestNet:
		return []string{"https://wormhole-v2-testnet-api.certus.one"}
	case DevNet:
		return []string{"http://localhost:7071"}
	}
	return nil
}
