// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
)

const swapRequestComponents = `[
	{"name":"srcAsset","type":"address"},
	{"name":"dstAsset","type":"address"},
	{"name":"amountIn","type":"uint256"},
	{"name":"minAmountOut","type":"uint256"},
	{"name":"recipient","type":"address"},
	{"name":"deadline","type":"uint256"},
	{"name":"preferredVenue","type":"uint8"},
	{"name":"useMultiHop","type":"bool"}
]`

const quoteComponents = `[
	{"name":"venueKind","type":"uint8"},
	{"name":"venueName","type":"string"},
	{"name":"router","type":"address"},
	{"name":"amountOut","type":"uint256"},
	{"name":"gasEstimate","type":"uint256"},
	{"name":"priceImpactBps","type":"uint256"},
	{"name":"path","type":"address[]"},
	{"name":"routeData","type":"bytes"},
	{"name":"isActive","type":"bool"},
	{"name":"reliability","type":"uint256"}
]`

const venueConfigComponents = `[
	{"name":"router","type":"address"},
	{"name":"active","type":"bool"},
	{"name":"gasEstimate","type":"uint256"},
	{"name":"reliability","type":"uint256"},
	{"name":"extraData","type":"bytes"}
]`

// RawABI is the precompile interface.
var RawABI = `[
{"type":"function","name":"getAllQuotes","stateMutability":"view",
 "inputs":[{"name":"src","type":"address"},{"name":"dst","type":"address"},{"name":"amountIn","type":"uint256"}],
 "outputs":[{"name":"quotes","type":"tuple[]","components":` + quoteComponents + `}]},
{"type":"function","name":"getBestQuote","stateMutability":"view",
 "inputs":[{"name":"src","type":"address"},{"name":"dst","type":"address"},{"name":"amountIn","type":"uint256"}],
 "outputs":[{"name":"quote","type":"tuple","components":` + quoteComponents + `}]},
{"type":"function","name":"executeSwap","stateMutability":"nonpayable",
 "inputs":[{"name":"request","type":"tuple","components":` + swapRequestComponents + `}],
 "outputs":[{"name":"amountOut","type":"uint256"}]},
{"type":"function","name":"executeProtectedSwap","stateMutability":"nonpayable",
 "inputs":[{"name":"request","type":"tuple","components":` + swapRequestComponents + `},{"name":"commitment","type":"bytes32"}],
 "outputs":[{"name":"amountOut","type":"uint256"}]},
{"type":"function","name":"swapWithBestQuote","stateMutability":"nonpayable",
 "inputs":[{"name":"src","type":"address"},{"name":"dst","type":"address"},{"name":"amountIn","type":"uint256"},
  {"name":"minAmountOut","type":"uint256"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"}],
 "outputs":[{"name":"amountOut","type":"uint256"}]},
{"type":"function","name":"updateVenueConfig","stateMutability":"nonpayable",
 "inputs":[{"name":"kind","type":"uint8"},{"name":"config","type":"tuple","components":` + venueConfigComponents + `}],
 "outputs":[]},
{"type":"function","name":"getVenueConfig","stateMutability":"view",
 "inputs":[{"name":"kind","type":"uint8"}],
 "outputs":[{"name":"config","type":"tuple","components":` + venueConfigComponents + `}]},
{"type":"function","name":"setAuthorizedCaller","stateMutability":"nonpayable",
 "inputs":[{"name":"caller","type":"address"},{"name":"authorized","type":"bool"}],"outputs":[]},
{"type":"function","name":"setProtectedCaller","stateMutability":"nonpayable",
 "inputs":[{"name":"caller","type":"address"},{"name":"protected","type":"bool"}],"outputs":[]},
{"type":"function","name":"pause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"unpause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"emergencyWithdraw","stateMutability":"nonpayable",
 "inputs":[{"name":"asset","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"transferOwnership","stateMutability":"nonpayable",
 "inputs":[{"name":"newOwner","type":"address"}],"outputs":[]},
{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isAuthorized","stateMutability":"view",
 "inputs":[{"name":"caller","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isProtected","stateMutability":"view",
 "inputs":[{"name":"caller","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isCommitmentUsed","stateMutability":"view",
 "inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"computeCommitment","stateMutability":"view",
 "inputs":[{"name":"caller","type":"address"},{"name":"request","type":"tuple","components":` + swapRequestComponents + `},
  {"name":"salt","type":"bytes32"}],
 "outputs":[{"name":"","type":"bytes32"}]},
{"type":"event","name":"SwapExecuted","anonymous":false,
 "inputs":[{"name":"caller","type":"address","indexed":true},{"name":"srcAsset","type":"address","indexed":true},
  {"name":"dstAsset","type":"address","indexed":true},{"name":"amountIn","type":"uint256","indexed":false},
  {"name":"amountOut","type":"uint256","indexed":false},{"name":"venueKind","type":"uint8","indexed":false},
  {"name":"venueName","type":"string","indexed":false}]},
{"type":"event","name":"VenueConfigUpdated","anonymous":false,
 "inputs":[{"name":"kind","type":"uint8","indexed":true},{"name":"router","type":"address","indexed":false},
  {"name":"active","type":"bool","indexed":false}]}
]`

// AggregatorABI is the parsed RawABI
var AggregatorABI = contract.ParseABI(RawABI)

// Tuple layouts. Field order and names follow the ABI components.

type swapRequestTuple struct {
	SrcAsset       common.Address
	DstAsset       common.Address
	AmountIn       *big.Int
	MinAmountOut   *big.Int
	Recipient      common.Address
	Deadline       *big.Int
	PreferredVenue uint8
	UseMultiHop    bool
}

type quoteTuple struct {
	VenueKind      uint8
	VenueName      string
	Router         common.Address
	AmountOut      *big.Int
	GasEstimate    *big.Int
	PriceImpactBps *big.Int
	Path           []common.Address
	RouteData      []byte
	IsActive       bool
	Reliability    *big.Int
}

type venueConfigTuple struct {
	Router      common.Address
	Active      bool
	GasEstimate *big.Int
	Reliability *big.Int
	ExtraData   []byte
}

func bigOrZero(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", ErrInvalidInput, v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: value %s out of uint256 range", ErrInvalidInput, v)
	}
	return out, nil
}

func toUint64(v *big.Int, field string) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s out of range", ErrInvalidInput, field, v)
	}
	return v.Uint64(), nil
}

func (r SwapRequest) tuple() swapRequestTuple {
	return swapRequestTuple{
		SrcAsset:       r.SrcAsset,
		DstAsset:       r.DstAsset,
		AmountIn:       bigOrZero(r.AmountIn),
		MinAmountOut:   bigOrZero(r.MinAmountOut),
		Recipient:      r.Recipient,
		Deadline:       new(big.Int).SetUint64(r.Deadline),
		PreferredVenue: uint8(r.PreferredVenue),
		UseMultiHop:    r.UseMultiHop,
	}
}

func (t swapRequestTuple) request() (SwapRequest, error) {
	amountIn, err := toUint256(t.AmountIn)
	if err != nil {
		return SwapRequest{}, err
	}
	minOut, err := toUint256(t.MinAmountOut)
	if err != nil {
		return SwapRequest{}, err
	}
	// Deadlines past uint64 never expire.
	deadline := ^uint64(0)
	if t.Deadline != nil && t.Deadline.IsUint64() {
		deadline = t.Deadline.Uint64()
	}
	return SwapRequest{
		SrcAsset:       t.SrcAsset,
		DstAsset:       t.DstAsset,
		AmountIn:       amountIn,
		MinAmountOut:   minOut,
		Recipient:      t.Recipient,
		Deadline:       deadline,
		PreferredVenue: VenueKind(t.PreferredVenue),
		UseMultiHop:    t.UseMultiHop,
	}, nil
}

func (q Quote) tuple() quoteTuple {
	path := q.Path
	if path == nil {
		path = []common.Address{}
	}
	routeData := q.RouteData
	if routeData == nil {
		routeData = []byte{}
	}
	return quoteTuple{
		VenueKind:      uint8(q.VenueKind),
		VenueName:      q.VenueName,
		Router:         q.Router,
		AmountOut:      bigOrZero(q.AmountOut),
		GasEstimate:    new(big.Int).SetUint64(q.GasEstimate),
		PriceImpactBps: bigOrZero(q.PriceImpactBps),
		Path:           path,
		RouteData:      routeData,
		IsActive:       q.IsActive,
		Reliability:    new(big.Int).SetUint64(q.Reliability),
	}
}

func (c VenueConfig) tuple() venueConfigTuple {
	extra := c.ExtraData
	if extra == nil {
		extra = []byte{}
	}
	return venueConfigTuple{
		Router:      c.Router,
		Active:      c.Active,
		GasEstimate: new(big.Int).SetUint64(c.GasEstimate),
		Reliability: new(big.Int).SetUint64(c.Reliability),
		ExtraData:   extra,
	}
}

func (t venueConfigTuple) config() (VenueConfig, error) {
	gas, err := toUint64(t.GasEstimate, "gasEstimate")
	if err != nil {
		return VenueConfig{}, err
	}
	reliability, err := toUint64(t.Reliability, "reliability")
	if err != nil {
		return VenueConfig{}, err
	}
	return VenueConfig{
		Router:      t.Router,
		Active:      t.Active,
		GasEstimate: gas,
		Reliability: reliability,
		ExtraData:   t.ExtraData,
	}, nil
}
