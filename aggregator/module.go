// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"

	"github.com/parsdao/swaprouter/contract"
	"github.com/parsdao/swaprouter/modules"
	"github.com/parsdao/swaprouter/precompileconfig"
	"github.com/parsdao/swaprouter/registry"
)

var _ contract.Configurator = (*configurator)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "swapAggregatorConfig"

// ContractAddress is the LXAggregator precompile address (LP-9015)
var ContractAddress = registry.PrecompileAddress(registry.DEXFamilyPage, 0, 0x15)

// AggregatorPrecompile is the singleton instance
var AggregatorPrecompile = NewContract(NewEngine(ContractAddress))

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractAddress,
	Contract:     AggregatorPrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

// Configure writes the initial owner, caller sets and venues into state.
func (*configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if config.IsDisabled() {
		return nil
	}
	if err := config.Verify(chainConfig); err != nil {
		return err
	}

	return config.apply(AggregatorPrecompile.Engine().store(state))
}

// InitialVenue is a venue config set at activation.
type InitialVenue struct {
	Kind        VenueKind      `json:"kind"`
	Router      common.Address `json:"router"`
	Active      bool           `json:"active"`
	GasEstimate uint64         `json:"gasEstimate"`
	Reliability uint64         `json:"reliability"`
	ExtraData   hexutil.Bytes  `json:"extraData,omitempty"`
}

func (v InitialVenue) config() VenueConfig {
	return VenueConfig{
		Router:      v.Router,
		Active:      v.Active,
		GasEstimate: v.GasEstimate,
		Reliability: v.Reliability,
		ExtraData:   v.ExtraData,
	}
}

func (v InitialVenue) equal(o InitialVenue) bool {
	return v.Kind == o.Kind &&
		v.Router == o.Router &&
		v.Active == o.Active &&
		v.GasEstimate == o.GasEstimate &&
		v.Reliability == o.Reliability &&
		bytes.Equal(v.ExtraData, o.ExtraData)
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade           precompileconfig.Upgrade `json:"upgrade,omitempty"`
	Owner             common.Address           `json:"owner,omitempty"`
	AuthorizedCallers []common.Address         `json:"authorizedCallers,omitempty"`
	ProtectedCallers  []common.Address         `json:"protectedCallers,omitempty"`
	Venues            []InitialVenue           `json:"venues,omitempty"`
	// BridgeAsset is stored in state; nil keeps the engine default.
	BridgeAsset       *common.Address          `json:"bridgeAsset,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	if !c.Upgrade.Equal(&other.Upgrade) ||
		c.Owner != other.Owner ||
		!slices.Equal(c.AuthorizedCallers, other.AuthorizedCallers) ||
		!slices.Equal(c.ProtectedCallers, other.ProtectedCallers) ||
		len(c.Venues) != len(other.Venues) {
		return false
	}
	switch {
	case c.BridgeAsset == nil && other.BridgeAsset == nil:
	case c.BridgeAsset == nil || other.BridgeAsset == nil:
		return false
	case *c.BridgeAsset != *other.BridgeAsset:
		return false
	}
	for i := range c.Venues {
		if !c.Venues[i].equal(other.Venues[i]) {
			return false
		}
	}
	return true
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	if c.Upgrade.Disable {
		return nil
	}
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("%s: owner is required", ConfigKey)
	}
	var seen [NumVenueKinds]bool
	for _, v := range c.Venues {
		if !v.Kind.Valid() {
			return fmt.Errorf("%s: %w: %s", ConfigKey, ErrUnsupportedVenue, v.Kind)
		}
		if seen[v.Kind] {
			return fmt.Errorf("%s: duplicate venue %s", ConfigKey, v.Kind)
		}
		seen[v.Kind] = true
		if v.Reliability > MaxReliability {
			return fmt.Errorf("%s: %w: %s reliability %d", ConfigKey, ErrInvalidConfig, v.Kind, v.Reliability)
		}
	}
	return nil
}

func (c *Config) apply(s store) error {
	s.setOwner(c.Owner)
	for _, addr := range c.AuthorizedCallers {
		s.setAuthorized(addr, true)
	}
	for _, addr := range c.ProtectedCallers {
		s.setProtected(addr, true)
	}
	for _, v := range c.Venues {
		s.setVenueConfig(v.Kind, v.config())
	}
	// Without an explicit asset the engine default applies.
	var asset common.Address
	if c.BridgeAsset != nil {
		asset = *c.BridgeAsset
	}
	s.setBridgeAsset(asset)
	return nil
}
