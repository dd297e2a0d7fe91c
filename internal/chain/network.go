package chain

import (
	"fmt"
	"sort"
	"strings"
)

// NativeCurrency describes the gas token of a network.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Network is a chain definition that wallets can register.
type Network struct {
	Key            string         `json:"key"`
	Name           string         `json:"name"`
	ChainID        uint64         `json:"chainId"`
	RPCURL         string         `json:"rpcUrl"`
	ExplorerURL    string         `json:"explorerUrl"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
	Testnet        bool           `json:"testnet"`
}

// RaylsDevnet is the default deployment target.
var RaylsDevnet = Network{
	Key:         "rayls_devnet",
	Name:        "Rayls Testnet",
	ChainID:     123123,
	RPCURL:      "https://devnet-rpc.rayls.com",
	ExplorerURL: "https://devnet-explorer.rayls.com",
	NativeCurrency: NativeCurrency{
		Name:     "USDgas",
		Symbol:   "USDgas",
		Decimals: 18,
	},
	Testnet: true,
}

// Hardhat is the local development node.
var Hardhat = Network{
	Key:     "hardhat",
	Name:    "Hardhat",
	ChainID: 1337,
	RPCURL:  "http://127.0.0.1:8545",
	NativeCurrency: NativeCurrency{
		Name:     "Ether",
		Symbol:   "ETH",
		Decimals: 18,
	},
	Testnet: true,
}

var knownNetworks = map[string]Network{
	RaylsDevnet.Key: RaylsDevnet,
	Hardhat.Key:     Hardhat,
}

// LookupNetwork returns a known network by key.
func LookupNetwork(key string) (Network, error) {
	n, ok := knownNetworks[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		names := make([]string, 0, len(knownNetworks))
		for k := range knownNetworks {
			names = append(names, k)
		}
		sort.Strings(names)
		return Network{}, fmt.Errorf("unknown network %q (known: %s)", key, strings.Join(names, ", "))
	}
	return n, nil
}

// AddressURL returns the explorer link for an address, or "" without an explorer.
func (n Network) AddressURL(address string) string {
	return explorerLink(n.ExplorerURL, "address", address)
}

// TxURL returns the explorer link for a transaction hash.
func (n Network) TxURL(hash string) string {
	return explorerLink(n.ExplorerURL, "tx", hash)
}

func explorerLink(base, kind, id string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	return base + "/" + kind + "/" + id
}
