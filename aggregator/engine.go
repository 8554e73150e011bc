// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/parsdao/swaprouter/contract"
	"github.com/parsdao/swaprouter/custody"
)

// DefaultBridgeAsset is the intermediate asset of multi-hop paths (WETH).
var DefaultBridgeAsset = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

// Entry point labels used in logs and metrics
const (
	entryExecuteSwap       = "executeSwap"
	entryProtectedSwap     = "executeProtectedSwap"
	entrySwapWithBestQuote = "swapWithBestQuote"
	entryUpdateVenueConfig = "updateVenueConfig"
	entryAdmin             = "admin"
	entryEmergency         = "emergencyWithdraw"
)

// Engine is the swap aggregator. All persistent state lives in the StateDB
// under the engine address; the Engine itself only holds collaborators, so
// one instance serves every call.
type Engine struct {
	address     common.Address
	log         log.Logger
	metrics     *Metrics
	custody     custody.Custody
	bridgeAsset common.Address
	venues      [NumVenueKinds]Venue

	guard reentrancyGuard
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCustody sets the asset ledger funds move through.
func WithCustody(c custody.Custody) Option {
	return func(e *Engine) { e.custody = c }
}

// WithBridgeAsset sets the intermediate asset of multi-hop paths used when
// none is configured in state.
func WithBridgeAsset(asset common.Address) Option {
	return func(e *Engine) { e.bridgeAsset = asset }
}

// WithVenue installs the strategy for v.Kind(), replacing any previous one.
func WithVenue(v Venue) Option {
	return func(e *Engine) {
		if v != nil && v.Kind().Valid() {
			e.venues[v.Kind()] = v
		}
	}
}

// NewEngine creates an engine whose state and custody account is address.
func NewEngine(address common.Address, opts ...Option) *Engine {
	e := &Engine{
		address:     address,
		bridgeAsset: DefaultBridgeAsset,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.NewTestLogger(log.InfoLevel)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics("")
	}
	if e.custody == nil {
		e.custody = custody.NewLedger()
	}
	return e
}

// Address returns the account holding engine state and funds in flight.
func (e *Engine) Address() common.Address {
	return e.address
}

// Metrics returns the engine's collector.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Venue returns the strategy installed for kind, or nil.
func (e *Engine) Venue(kind VenueKind) Venue {
	if !kind.Valid() {
		return nil
	}
	return e.venues[kind]
}

// BridgeAsset returns the multi-hop intermediate asset: the one configured
// in state, else the engine default.
func (e *Engine) BridgeAsset(state contract.StateDB) common.Address {
	if asset := e.store(state).bridgeAsset(); asset != (common.Address{}) {
		return asset
	}
	return e.bridgeAsset
}

func (e *Engine) store(state contract.StateDB) store {
	return store{db: state, addr: e.address}
}

func (e *Engine) swapContext(state contract.StateDB) *SwapContext {
	return &SwapContext{
		State:       state,
		Custody:     e.custody,
		Holder:      e.address,
		BridgeAsset: e.BridgeAsset(state),
	}
}

// mutate runs fn under the reentrancy guard inside a state snapshot. Any
// error, or a panic in fn, reverts everything fn wrote.
func (e *Engine) mutate(state contract.StateDB, entry string, fn func() error) (err error) {
	release, err := e.guard.enter()
	if err != nil {
		e.metrics.recordFailure(entry, err)
		e.log.Warn("rejected reentrant call", "entry", entry)
		return err
	}
	defer release()

	snapshot := state.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", entry, r)
			e.log.Error("recovered panic", "entry", entry, "panic", r)
		}
		if err != nil {
			state.RevertToSnapshot(snapshot)
			e.metrics.recordFailure(entry, err)
			e.log.Debug("call reverted", "entry", entry, "err", err)
		}
	}()
	return fn()
}
