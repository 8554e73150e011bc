// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package aggregator implements the LXAggregator precompile (LP-9015).
// It quotes a swap across several liquidity venues, scores the quotes and
// executes against the chosen venue while holding user funds in custody.
// Swaps can be gated behind single-use commitments for MEV-sensitive callers.
package aggregator

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// VenueKind identifies a liquidity venue. The numeric order is the
// iteration order of quoting and the tie-break order of scoring.
type VenueKind uint8

const (
	AmmV2       VenueKind = iota // constant-product AMM (UniswapV2)
	AmmV3                        // concentrated liquidity AMM (UniswapV3)
	AmmV2Alt                     // constant-product AMM fork (SushiSwap)
	Aggregator                   // external aggregator (1inch)
	StableCurve                  // stable swap pool (Curve)

	// NumVenueKinds is the number of venue kinds
	NumVenueKinds
)

// AutoSelect in SwapRequest.PreferredVenue asks for the best-scoring venue.
const AutoSelect VenueKind = 255

var venueNames = [NumVenueKinds]string{
	AmmV2:       "UniswapV2",
	AmmV3:       "UniswapV3",
	AmmV2Alt:    "SushiSwap",
	Aggregator:  "1inch",
	StableCurve: "Curve",
}

// Valid reports whether k names a venue.
func (k VenueKind) Valid() bool {
	return k < NumVenueKinds
}

func (k VenueKind) String() string {
	if k.Valid() {
		return venueNames[k]
	}
	if k == AutoSelect {
		return "auto"
	}
	return fmt.Sprintf("VenueKind(%d)", uint8(k))
}

// Scoring and execution constants
const (
	BasisPoints    = 10_000 // 100%
	MaxReliability = 1_000
	MaxSlippageBps = 300 // 3%, advisory only

	// V3FeeTier is the pool tier used for AmmV3 swaps (0.30%)
	V3FeeTier uint32 = 3000
)

// Gas costs
const (
	GasGetVenueConfig    uint64 = 2_100
	GasUpdateVenueConfig uint64 = 20_000
	GasQuotePerVenue     uint64 = 5_000
	GasQuoteBase         uint64 = 2_000
	GasExecuteSwap       uint64 = 60_000
	GasProtectedSwap     uint64 = 80_000
	GasSwapWithBestQuote uint64 = 85_000
	GasAdmin             uint64 = 10_000
	GasEmergencyWithdraw uint64 = 25_000
	GasRead              uint64 = 800
	GasComputeCommitment uint64 = 1_500
)

// VenueConfig is the owner-managed configuration of one venue.
// The zero value is an inactive venue.
type VenueConfig struct {
	Router      common.Address
	Active      bool
	GasEstimate uint64
	Reliability uint64 // 0..MaxReliability
	ExtraData   []byte
}

// Quote is one venue's offer for a swap. Quotes are built per request and
// never stored.
type Quote struct {
	VenueKind      VenueKind
	VenueName      string
	Router         common.Address
	AmountOut      *uint256.Int
	GasEstimate    uint64
	PriceImpactBps *uint256.Int
	Path           []common.Address
	RouteData      []byte
	IsActive       bool
	Reliability    uint64
}

// QuoteResult is the outcome of asking one venue for a quote.
type QuoteResult struct {
	Quote Quote
	Err   error
}

// SwapRequest describes a swap to execute.
type SwapRequest struct {
	SrcAsset       common.Address
	DstAsset       common.Address
	AmountIn       *uint256.Int
	MinAmountOut   *uint256.Int
	Recipient      common.Address // zero means the caller
	Deadline       uint64         // unix seconds
	PreferredVenue VenueKind      // or AutoSelect
	UseMultiHop    bool
}

// Error categories. Every error returned by the engine wraps exactly one.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrExpired            = errors.New("deadline expired")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyConsumed    = errors.New("commitment already used")
	ErrVenueInactive      = errors.New("venue inactive")
	ErrInsufficientOutput = errors.New("insufficient output amount")
	ErrSystemPaused       = errors.New("system paused")
)

var (
	ErrSameAsset        = fmt.Errorf("%w: source and destination asset are equal", ErrInvalidInput)
	ErrZeroAmount       = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrUnsupportedVenue = fmt.Errorf("%w: unsupported venue", ErrInvalidInput)
	ErrInvalidConfig    = fmt.Errorf("%w: invalid venue config", ErrInvalidInput)
	ErrNoBridgeAsset    = fmt.Errorf("%w: multi-hop requires a bridge asset", ErrInvalidInput)
	ErrNotOwner         = fmt.Errorf("%w: caller is not the owner", ErrUnauthorized)
	ErrNotAuthorized    = fmt.Errorf("%w: caller is not authorized", ErrUnauthorized)
	ErrNoActiveVenues   = fmt.Errorf("%w: no active venues", ErrVenueInactive)

	// ErrReentrant is returned when a mutating call is made while another
	// one is still executing.
	ErrReentrant = errors.New("reentrant call")
)

// Category returns the category sentinel err wraps, or nil.
func Category(err error) error {
	for _, c := range []error{
		ErrInvalidInput,
		ErrExpired,
		ErrUnauthorized,
		ErrAlreadyConsumed,
		ErrVenueInactive,
		ErrInsufficientOutput,
		ErrSystemPaused,
	} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}
