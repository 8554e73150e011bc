// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
)

// External venue interfaces. Each call addresses the venue contract at
// `router`; `sender` is the account the venue pulls input from, through the
// allowance the engine grants before executing.

// V2Router is a constant-product AMM router.
type V2Router interface {
	GetAmountsOut(state contract.StateDB, router common.Address, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error)
	SwapExactTokensForTokens(
		state contract.StateDB,
		router common.Address,
		sender common.Address,
		amountIn *uint256.Int,
		amountOutMin *uint256.Int,
		path []common.Address,
		to common.Address,
		deadline uint64,
	) ([]*uint256.Int, error)
}

// ExactInputSingleParams mirrors the V3 router's single-pool swap params.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	Recipient         common.Address
	Deadline          uint64
	AmountIn          *uint256.Int
	AmountOutMinimum  *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
}

// V3Router is a concentrated-liquidity AMM router and quoter.
type V3Router interface {
	QuoteExactInputSingle(
		state contract.StateDB,
		router common.Address,
		tokenIn, tokenOut common.Address,
		fee uint32,
		amountIn *uint256.Int,
	) (*uint256.Int, error)
	ExactInputSingle(state contract.StateDB, router common.Address, sender common.Address, params ExactInputSingleParams) (*uint256.Int, error)
}

// AggregatorRouter is an external swap aggregator. Quote returns opaque
// route data that Swap consumes.
type AggregatorRouter interface {
	Quote(
		state contract.StateDB,
		router common.Address,
		src, dst common.Address,
		amountIn *uint256.Int,
		extraData []byte,
	) (amountOut *uint256.Int, routeData []byte, err error)
	Swap(
		state contract.StateDB,
		router common.Address,
		sender common.Address,
		src, dst common.Address,
		amountIn *uint256.Int,
		minAmountOut *uint256.Int,
		routeData []byte,
		recipient common.Address,
	) (*uint256.Int, error)
}

// StablePool is a stable-swap pool addressed by coin index.
type StablePool interface {
	CoinIndex(state contract.StateDB, pool common.Address, asset common.Address) (int, error)
	GetDy(state contract.StateDB, pool common.Address, i, j int, dx *uint256.Int) (*uint256.Int, error)
	Exchange(
		state contract.StateDB,
		pool common.Address,
		sender common.Address,
		i, j int,
		dx *uint256.Int,
		minDy *uint256.Int,
		recipient common.Address,
	) (*uint256.Int, error)
}
