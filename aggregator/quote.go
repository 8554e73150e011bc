// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"math/big"

	"github.com/holiman/uint256"
)

var basisPoints = uint256.NewInt(BasisPoints)

// PriceImpact returns how far the implied price of a quote lies above the
// reference price, in basis points. The reference is a flat 1:1 rate.
func PriceImpact(amountIn, amountOut *uint256.Int) *uint256.Int {
	if amountIn == nil || amountOut == nil || amountIn.IsZero() || amountOut.IsZero() {
		return new(uint256.Int)
	}

	impliedPrice, overflow := new(uint256.Int).MulDivOverflow(amountIn, basisPoints, amountOut)
	if overflow {
		impliedPrice.SetAllOne()
	}
	spotPrice := basisPoints
	if !impliedPrice.Gt(spotPrice) {
		return new(uint256.Int)
	}

	diff := new(uint256.Int).Sub(impliedPrice, spotPrice)
	impact, overflow := new(uint256.Int).MulDivOverflow(diff, basisPoints, spotPrice)
	if overflow {
		impact.SetAllOne()
	}
	return impact
}

// Isqrt returns floor(sqrt(x)) by Babylonian iteration.
func Isqrt(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	z := x/2 + x%2 // (x+1)/2 without overflow
	y := x
	for z < y {
		y = z
		z = (x/z + z) / 2
	}
	return y
}

// Score ranks a quote: amountOut * reliability / isqrt(gasEstimate).
// A zero root counts as one.
func Score(q Quote) *big.Int {
	if q.AmountOut == nil || q.AmountOut.IsZero() {
		return new(big.Int)
	}
	root := Isqrt(q.GasEstimate)
	if root == 0 {
		root = 1
	}
	score := new(big.Int).Mul(q.AmountOut.ToBig(), new(big.Int).SetUint64(q.Reliability))
	return score.Quo(score, new(big.Int).SetUint64(root))
}

// bestQuoteIndex returns the index of the highest scoring quote. Only a
// strictly greater score replaces the running best, so earlier venues win
// ties. With no positive score the first quote is returned.
func bestQuoteIndex(quotes []Quote) int {
	bestIndex := 0
	bestScore := new(big.Int)
	for i, q := range quotes {
		if q.AmountOut == nil || q.AmountOut.IsZero() {
			continue
		}
		if score := Score(q); score.Cmp(bestScore) > 0 {
			bestScore = score
			bestIndex = i
		}
	}
	return bestIndex
}
