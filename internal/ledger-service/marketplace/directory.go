package marketplace

import (
	"fmt"

	"github.com/polybets/polybet-ledger/internal/ledger-service/core"
)

// Directory é o registro estático de venues conhecidos. Entradas são
// imutáveis após o registro; o resto do sistema só consulta por id.
type Directory struct {
	byID map[string]core.Marketplace
	ids  []string // ordem de registro
}

// New monta o diretório a partir das entradas dadas.
func New(entries []core.Marketplace) (*Directory, error) {
	d := &Directory{byID: make(map[string]core.Marketplace, len(entries))}
	for _, m := range entries {
		if m.ID == "" || m.Name == "" {
			return nil, fmt.Errorf("marketplace entry missing id or name: %+v", m)
		}
		if _, dup := d.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate marketplace id %q", m.ID)
		}
		d.byID[m.ID] = m
		d.ids = append(d.ids, m.ID)
	}
	return d, nil
}

// Resolve implementa core.MarketplaceResolver.
func (d *Directory) Resolve(id string) (*core.Marketplace, bool) {
	m, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return &m, true
}

// List retorna as entradas na ordem de registro.
func (d *Directory) List() []core.Marketplace {
	out := make([]core.Marketplace, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.byID[id])
	}
	return out
}

// Default retorna o diretório com os venues conhecidos do deployment
// atual: dois programas Solana (devnet) e dois proxies EVM na Sapphire
// testnet.
func Default() *Directory {
	d, err := New([]core.Marketplace{
		{
			ID:              "1",
			WarpRouterID:    1,
			ChainID:         901,
			ChainFamily:     core.ChainFamilySVM,
			Name:            "Slaughterhouse Predictions",
			ProxyAddress:    "Bh2UXpftCKHCqM4sQwHUtY8DMBQ35fxaBrLyHadaUpVb",
			PricingStrategy: core.PricingLMSR,
		},
		{
			ID:              "2",
			WarpRouterID:    2,
			ChainID:         901,
			ChainFamily:     core.ChainFamilySVM,
			Name:            "Terminal Degeneracy Labs",
			ProxyAddress:    "9Mfat3wrfsciFoi4kUTt7xVxvgYJietFTbAoZ1U6sUPY",
			PricingStrategy: core.PricingLMSR,
		},
		{
			ID:              "3",
			WarpRouterID:    3,
			ChainID:         23295,
			ChainFamily:     core.ChainFamilyEVM,
			Name:            "Degen Execution Chamber",
			ProxyAddress:    "0x4d3f29ed69c8e0c53bf3dd9b9a6b0ae5c3f0a1d2",
			PricingStrategy: core.PricingAMM,
		},
		{
			ID:              "4",
			WarpRouterID:    4,
			ChainID:         23295,
			ChainFamily:     core.ChainFamilyEVM,
			Name:            "Nihilistic Prophet Syndicate",
			ProxyAddress:    "0x8b21a7f3e5d4c6a890bf12c34d56e78f90a1b2c3",
			PricingStrategy: core.PricingOrderbook,
		},
	})
	if err != nil {
		panic(err) // entradas fixas, erro aqui é bug de compilação do seed
	}
	return d
}
