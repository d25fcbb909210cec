package explorer

import (
	"net/url"
	"strings"

	"campaignclient/internal/blockchain"
)

const baseURL = "https://suiscan.xyz"

// URLs renders verification links for one network. Links are for people
// and nothing in the client reads them back.
type URLs struct {
	network blockchain.Network
}

func For(network blockchain.Network) URLs {
	return URLs{network: network}
}

func (u URLs) Network() blockchain.Network {
	return u.network
}

func (u URLs) Account(address string) string {
	return u.link("account", address)
}

func (u URLs) Object(id string) string {
	return u.link("object", id)
}

func (u URLs) Transaction(digest string) string {
	return u.link("tx", digest)
}

func (u URLs) link(kind, value string) string {
	return baseURL + "/" + string(u.network) + "/" + kind + "/" + url.PathEscape(strings.TrimSpace(value))
}
