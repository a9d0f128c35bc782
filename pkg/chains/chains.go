// Package chains is the single source of truth for chain identity: a bijective mapping between the numeric
// chain ids used on the wire and the symbolic names used in configuration and logs.
package chains

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ID is the numeric identifier of a chain as it appears in attestations and transfer payloads.
type ID uint16

// Platform identifies the chain family whose adapter serves a chain.
type Platform uint8

const (
	PlatformUnknown Platform = iota
	PlatformEVM
	PlatformCosmWasm
	PlatformSolana
	PlatformOther
)

func (p Platform) String() string {
	switch p {
	case PlatformEVM:
		return "evm"
	case PlatformCosmWasm:
		return "cosmwasm"
	case PlatformSolana:
		return "solana"
	case PlatformOther:
		return "other"
	default:
		return "unknown"
	}
}

// NOTE: Please keep these in numerical order.
const (
	Unset     ID = 0
	Solana    ID = 1
	Ethereum  ID = 2
	Terra     ID = 3
	BSC       ID = 4
	Polygon   ID = 5
	Avalanche ID = 6
	Oasis     ID = 7
	Algorand  ID = 8
	Aurora    ID = 9
	Fantom    ID = 10
	Karura    ID = 11
	Acala     ID = 12
	Klaytn    ID = 13
	Celo      ID = 14
	Near      ID = 15
	Moonbeam  ID = 16
	Terra2    ID = 18
	Injective ID = 19
	Osmosis   ID = 20
	Sui       ID = 21
	Aptos     ID = 22
	Arbitrum  ID = 23
	Optimism  ID = 24
	Gnosis    ID = 25
	PythNet   ID = 26
	Xpla      ID = 28
	Base      ID = 30
	Sei       ID = 32
	Scroll    ID = 34
	Mantle    ID = 35
	Blast     ID = 36
	Linea     ID = 38

	Wormchain ID = 3104
	Cosmoshub ID = 4000
	Evmos     ID = 4001
	Kujira    ID = 4002
	Neutron   ID = 4003
	Celestia  ID = 4004
	Stargaze  ID = 4005

	Sepolia         ID = 10002
	ArbitrumSepolia ID = 10003
	BaseSepolia     ID = 10004
	OptimismSepolia ID = 10005
	Holesky         ID = 10006
	PolygonSepolia  ID = 10007
)

// Chain is a single registry entry.
type Chain struct {
	ID       ID
	Name     string
	Platform Platform
}

func (c Chain) String() string {
	return c.Name
}

var (
	ErrUnknownChain    = errors.New("unknown chain")
	ErrInvalidRegistry = errors.New("invalid chain registry")
)

// Registry is an immutable bidirectional id <-> name mapping.
type Registry struct {
	byID   map[ID]Chain
	byName map[string]Chain
	all    []Chain
}

// NewRegistry validates that entries form a bijection between ids and names and builds the lookup tables.
// Names are matched case-insensitively and stored lowercase.
func NewRegistry(entries []Chain) (*Registry, error) {
	r := &Registry{
		byID:   make(map[ID]Chain, len(entries)),
		byName: make(map[string]Chain, len(entries)),
		all:    make([]Chain, 0, len(entries)),
	}

	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if e.ID == Unset {
			return nil, fmt.Errorf("%w: chain %q has id 0", ErrInvalidRegistry, e.Name)
		}
		if name == "" {
			return nil, fmt.Errorf("%w: chain id %d has an empty name", ErrInvalidRegistry, e.ID)
		}
		if _, err := strconv.ParseUint(name, 10, 64); err == nil {
			return nil, fmt.Errorf("%w: chain name %q is numeric", ErrInvalidRegistry, name)
		}
		if prev, exists := r.byID[e.ID]; exists {
			return nil, fmt.Errorf("%w: chain id %d used by both %q and %q", ErrInvalidRegistry, e.ID, prev.Name, name)
		}
		if prev, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("%w: chain name %q used by both %d and %d", ErrInvalidRegistry, name, prev.ID, e.ID)
		}

		c := Chain{ID: e.ID, Name: name, Platform: e.Platform}
		r.byID[c.ID] = c
		r.byName[c.Name] = c
		r.all = append(r.all, c)
	}

	sort.Slice(r.all, func(i, j int) bool { return r.all[i].ID < r.all[j].ID })
	return r, nil
}

// MustNewRegistry is NewRegistry for static tables. It panics on invalid input.
func MustNewRegistry(entries []Chain) *Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return r
}

// ByID returns the entry for a numeric id.
func (r *Registry) ByID(id ID) (Chain, error) {
	c, ok := r.byID[id]
	if !ok {
		return Chain{}, fmt.Errorf("%w: id %d", ErrUnknownChain, id)
	}
	return c, nil
}

// ByName returns the entry for a symbolic name, ignoring case.
func (r *Registry) ByName(name string) (Chain, error) {
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Chain{}, fmt.Errorf("%w: name %q", ErrUnknownChain, name)
	}
	return c, nil
}

// Resolve accepts either a chain name such as "ethereum" or a decimal chain id such as "2".
func (r *Registry) Resolve(s string) (Chain, error) {
	if c, err := r.ByName(s); err == nil {
		return c, nil
	}

	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return Chain{}, fmt.Errorf("%w: %q", ErrUnknownChain, s)
	}
	if n > math.MaxUint16 {
		return Chain{}, fmt.Errorf("chain id must be less than or equal to %d but got %d", math.MaxUint16, n)
	}
	return r.ByID(ID(n))
}

// All returns every entry ordered by id.
func (r *Registry) All() []Chain {
	out := make([]Chain, len(r.all))
	copy(out, r.all)
	return out
}

// Default is the registry of all chains known to this module.
var Default = MustNewRegistry(known)

// Name returns the symbolic name of id in the Default registry, or "" if it is not registered.
func (id ID) Name() string {
	c, err := Default.ByID(id)
	if err != nil {
		return ""
	}
	return c.Name
}

// Platform returns the chain family of id in the Default registry.
func (id ID) Platform() Platform {
	c, err := Default.ByID(id)
	if err != nil {
		return PlatformUnknown
	}
	return c.Platform
}

func (id ID) String() string {
	if name := id.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("unknown chain ID: %d", uint16(id))
}

// IDFromString resolves a chain name or decimal id against the Default registry.
func IDFromString(s string) (ID, error) {
	c, err := Default.Resolve(s)
	if err != nil {
		return Unset, err
	}
	return c.ID, nil
}
