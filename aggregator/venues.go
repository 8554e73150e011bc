// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
	"github.com/parsdao/swaprouter/custody"
)

var errEmptyAmounts = errors.New("router returned no amounts")

// SwapContext is the engine state a venue quotes and executes against.
type SwapContext struct {
	State   contract.StateDB
	Custody custody.Custody
	// Holder is the account holding funds during a swap. Venue output must
	// be delivered to it.
	Holder      common.Address
	BridgeAsset common.Address
}

// Venue quotes and executes swaps on one kind of liquidity source.
type Venue interface {
	Kind() VenueKind
	Name() string
	Quote(ctx *SwapContext, cfg VenueConfig, src, dst common.Address, amountIn *uint256.Int) (Quote, error)
	// Execute swaps req.AmountIn of req.SrcAsset held by ctx.Holder and
	// returns the output amount the venue reports.
	Execute(ctx *SwapContext, cfg VenueConfig, req SwapRequest) (*uint256.Int, error)
}

func newQuote(v Venue, cfg VenueConfig, amountIn, amountOut *uint256.Int, path []common.Address, routeData []byte) Quote {
	return Quote{
		VenueKind:      v.Kind(),
		VenueName:      v.Name(),
		Router:         cfg.Router,
		AmountOut:      amountOut,
		GasEstimate:    cfg.GasEstimate,
		PriceImpactBps: PriceImpact(amountIn, amountOut),
		Path:           path,
		RouteData:      routeData,
		IsActive:       true,
		Reliability:    cfg.Reliability,
	}
}

// approve lets spender pull amount of asset from the holder. The native
// asset is moved without allowances.
func approve(ctx *SwapContext, asset, spender common.Address, amount *uint256.Int) error {
	if asset == custody.NativeAsset {
		return nil
	}
	if err := ctx.Custody.Approve(ctx.State, asset, ctx.Holder, spender, amount); err != nil {
		return fmt.Errorf("failed to approve %s: %w", spender.Hex(), err)
	}
	return nil
}

func lastAmount(amounts []*uint256.Int) (*uint256.Int, error) {
	if len(amounts) == 0 {
		return nil, errEmptyAmounts
	}
	return amounts[len(amounts)-1], nil
}

// =========================================================================
// Constant-product AMMs
// =========================================================================

type ammV2Venue struct {
	kind   VenueKind
	router V2Router
}

// NewAmmV2Venue returns the UniswapV2 venue.
func NewAmmV2Venue(router V2Router) Venue {
	return &ammV2Venue{kind: AmmV2, router: router}
}

// NewAmmV2AltVenue returns the SushiSwap venue, a V2 fork.
func NewAmmV2AltVenue(router V2Router) Venue {
	return &ammV2Venue{kind: AmmV2Alt, router: router}
}

func (v *ammV2Venue) Kind() VenueKind { return v.kind }
func (v *ammV2Venue) Name() string    { return v.kind.String() }

func (v *ammV2Venue) Quote(ctx *SwapContext, cfg VenueConfig, src, dst common.Address, amountIn *uint256.Int) (Quote, error) {
	path := []common.Address{src, dst}
	amounts, err := v.router.GetAmountsOut(ctx.State, cfg.Router, amountIn, path)
	if err != nil {
		return Quote{}, err
	}
	out, err := lastAmount(amounts)
	if err != nil {
		return Quote{}, err
	}
	return newQuote(v, cfg, amountIn, out, path, nil), nil
}

func (v *ammV2Venue) Execute(ctx *SwapContext, cfg VenueConfig, req SwapRequest) (*uint256.Int, error) {
	path, err := swapPath(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := approve(ctx, req.SrcAsset, cfg.Router, req.AmountIn); err != nil {
		return nil, err
	}
	amounts, err := v.router.SwapExactTokensForTokens(
		ctx.State, cfg.Router, ctx.Holder,
		req.AmountIn, req.MinAmountOut, path, ctx.Holder, req.Deadline,
	)
	if err != nil {
		return nil, err
	}
	return lastAmount(amounts)
}

// swapPath is the direct pair, or the pair routed through the bridge asset
// when multi-hop is requested.
func swapPath(ctx *SwapContext, req SwapRequest) ([]common.Address, error) {
	if !req.UseMultiHop {
		return []common.Address{req.SrcAsset, req.DstAsset}, nil
	}
	if ctx.BridgeAsset == (common.Address{}) {
		return nil, ErrNoBridgeAsset
	}
	if ctx.BridgeAsset == req.SrcAsset || ctx.BridgeAsset == req.DstAsset {
		return []common.Address{req.SrcAsset, req.DstAsset}, nil
	}
	return []common.Address{req.SrcAsset, ctx.BridgeAsset, req.DstAsset}, nil
}

// =========================================================================
// Concentrated liquidity AMM
// =========================================================================

type ammV3Venue struct {
	router V3Router
}

// NewAmmV3Venue returns the UniswapV3 venue, swapping in the 0.30% tier.
func NewAmmV3Venue(router V3Router) Venue {
	return &ammV3Venue{router: router}
}

func (v *ammV3Venue) Kind() VenueKind { return AmmV3 }
func (v *ammV3Venue) Name() string    { return AmmV3.String() }

func (v *ammV3Venue) Quote(ctx *SwapContext, cfg VenueConfig, src, dst common.Address, amountIn *uint256.Int) (Quote, error) {
	out, err := v.router.QuoteExactInputSingle(ctx.State, cfg.Router, src, dst, V3FeeTier, amountIn)
	if err != nil {
		return Quote{}, err
	}
	return newQuote(v, cfg, amountIn, out, []common.Address{src, dst}, nil), nil
}

func (v *ammV3Venue) Execute(ctx *SwapContext, cfg VenueConfig, req SwapRequest) (*uint256.Int, error) {
	if err := approve(ctx, req.SrcAsset, cfg.Router, req.AmountIn); err != nil {
		return nil, err
	}
	return v.router.ExactInputSingle(ctx.State, cfg.Router, ctx.Holder, ExactInputSingleParams{
		TokenIn:           req.SrcAsset,
		TokenOut:          req.DstAsset,
		Fee:               V3FeeTier,
		Recipient:         ctx.Holder,
		Deadline:          req.Deadline,
		AmountIn:          req.AmountIn,
		AmountOutMinimum:  req.MinAmountOut,
		SqrtPriceLimitX96: new(uint256.Int),
	})
}

// =========================================================================
// External aggregator
// =========================================================================

type aggregatorVenue struct {
	router AggregatorRouter
}

// NewAggregatorVenue returns the 1inch venue. The venue's ExtraData is
// passed to the aggregator when quoting.
func NewAggregatorVenue(router AggregatorRouter) Venue {
	return &aggregatorVenue{router: router}
}

func (v *aggregatorVenue) Kind() VenueKind { return Aggregator }
func (v *aggregatorVenue) Name() string    { return Aggregator.String() }

func (v *aggregatorVenue) Quote(ctx *SwapContext, cfg VenueConfig, src, dst common.Address, amountIn *uint256.Int) (Quote, error) {
	out, routeData, err := v.router.Quote(ctx.State, cfg.Router, src, dst, amountIn, cfg.ExtraData)
	if err != nil {
		return Quote{}, err
	}
	return newQuote(v, cfg, amountIn, out, []common.Address{src, dst}, routeData), nil
}

// Execute quotes again for fresh route data, then delegates. The engine
// enforces the minimum output on the balance it receives.
func (v *aggregatorVenue) Execute(ctx *SwapContext, cfg VenueConfig, req SwapRequest) (*uint256.Int, error) {
	_, routeData, err := v.router.Quote(ctx.State, cfg.Router, req.SrcAsset, req.DstAsset, req.AmountIn, cfg.ExtraData)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route: %w", err)
	}
	if err := approve(ctx, req.SrcAsset, cfg.Router, req.AmountIn); err != nil {
		return nil, err
	}
	return v.router.Swap(
		ctx.State, cfg.Router, ctx.Holder,
		req.SrcAsset, req.DstAsset, req.AmountIn, req.MinAmountOut, routeData, ctx.Holder,
	)
}

// =========================================================================
// Stable swap pool
// =========================================================================

type stableCurveVenue struct {
	pool StablePool
}

// NewStableCurveVenue returns the Curve venue. cfg.Router is the pool.
func NewStableCurveVenue(pool StablePool) Venue {
	return &stableCurveVenue{pool: pool}
}

func (v *stableCurveVenue) Kind() VenueKind { return StableCurve }
func (v *stableCurveVenue) Name() string    { return StableCurve.String() }

func (v *stableCurveVenue) indices(ctx *SwapContext, pool, src, dst common.Address) (int, int, error) {
	i, err := v.pool.CoinIndex(ctx.State, pool, src)
	if err != nil {
		return 0, 0, fmt.Errorf("source asset not in pool: %w", err)
	}
	j, err := v.pool.CoinIndex(ctx.State, pool, dst)
	if err != nil {
		return 0, 0, fmt.Errorf("destination asset not in pool: %w", err)
	}
	return i, j, nil
}

func (v *stableCurveVenue) Quote(ctx *SwapContext, cfg VenueConfig, src, dst common.Address, amountIn *uint256.Int) (Quote, error) {
	i, j, err := v.indices(ctx, cfg.Router, src, dst)
	if err != nil {
		return Quote{}, err
	}
	out, err := v.pool.GetDy(ctx.State, cfg.Router, i, j, amountIn)
	if err != nil {
		return Quote{}, err
	}
	return newQuote(v, cfg, amountIn, out, []common.Address{src, dst}, nil), nil
}

func (v *stableCurveVenue) Execute(ctx *SwapContext, cfg VenueConfig, req SwapRequest) (*uint256.Int, error) {
	i, j, err := v.indices(ctx, cfg.Router, req.SrcAsset, req.DstAsset)
	if err != nil {
		return nil, err
	}
	if err := approve(ctx, req.SrcAsset, cfg.Router, req.AmountIn); err != nil {
		return nil, err
	}
	return v.pool.Exchange(ctx.State, cfg.Router, ctx.Holder, i, j, req.AmountIn, req.MinAmountOut, ctx.Holder)
}
