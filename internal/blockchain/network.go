package blockchain

import (
	"strings"

	"github.com/pkg/errors"
)

type Network string

const (
	Devnet  Network = "devnet"
	Testnet Network = "testnet"
	Mainnet Network = "mainnet"
)

// ClockObjectID is the shared clock object every time-aware entry point takes.
const ClockObjectID = "0x6"

var fullnodeURLs = map[Network]string{
	Devnet:  "https://fullnode.devnet.sui.io:443",
	Testnet: "https://fullnode.testnet.sui.io:443",
	Mainnet: "https://fullnode.mainnet.sui.io:443",
}

var ErrUnknownNetwork = errors.New("unknown network")

func ParseNetwork(name string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := fullnodeURLs[n]; !ok {
		return "", errors.Wrapf(ErrUnknownNetwork, "%q", name)
	}
	return n, nil
}

func (n Network) FullnodeURL() string {
	return fullnodeURLs[n]
}

// NetworkConfig names the deployed campaign package and its shared registry.
type NetworkConfig struct {
	Name       Network
	RPCURL     string
	PackageID  string
	RegistryID string
}

func (c NetworkConfig) Endpoint() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return c.Name.FullnodeURL()
}
