// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
)

func validatePair(src, dst common.Address, amountIn *uint256.Int) error {
	if src == dst {
		return ErrSameAsset
	}
	if amountIn == nil || amountIn.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

// GetAllQuotes asks every active venue for a quote, in VenueKind order.
// A venue that fails contributes an inactive zero quote instead of failing
// the call. Quoting is not gated by pause and leaves no state behind.
func (e *Engine) GetAllQuotes(state contract.StateDB, src, dst common.Address, amountIn *uint256.Int) ([]Quote, error) {
	if err := validatePair(src, dst, amountIn); err != nil {
		return nil, err
	}

	snapshot := state.Snapshot()
	defer state.RevertToSnapshot(snapshot)

	s := e.store(state)
	ctx := e.swapContext(state)
	quotes := make([]Quote, 0, NumVenueKinds)
	for kind := VenueKind(0); kind < NumVenueKinds; kind++ {
		cfg := s.venueConfig(kind)
		if !cfg.Active {
			continue
		}

		res := e.quoteVenue(ctx, kind, cfg, src, dst, amountIn)
		e.metrics.recordQuote(kind.String(), res.Err)
		if res.Err != nil {
			e.log.Warn("venue quote failed",
				"venue", kind.String(),
				"src", src,
				"dst", dst,
				"err", res.Err,
			)
			quotes = append(quotes, inactiveQuote(kind))
			continue
		}
		quotes = append(quotes, res.Quote)
	}
	return quotes, nil
}

// GetBestQuote returns the highest scoring quote among the active venues.
func (e *Engine) GetBestQuote(state contract.StateDB, src, dst common.Address, amountIn *uint256.Int) (Quote, error) {
	quotes, err := e.GetAllQuotes(state, src, dst, amountIn)
	if err != nil {
		return Quote{}, err
	}
	if len(quotes) == 0 {
		return Quote{}, ErrNoActiveVenues
	}
	return quotes[bestQuoteIndex(quotes)], nil
}

// quoteVenue isolates one venue: errors and panics become a failed result.
func (e *Engine) quoteVenue(
	ctx *SwapContext,
	kind VenueKind,
	cfg VenueConfig,
	src, dst common.Address,
	amountIn *uint256.Int,
) (res QuoteResult) {
	venue := e.venues[kind]
	if venue == nil {
		return QuoteResult{Err: fmt.Errorf("no strategy installed for %s", kind)}
	}

	defer func() {
		if r := recover(); r != nil {
			res = QuoteResult{Err: fmt.Errorf("%s quote panicked: %v", kind, r)}
		}
	}()

	q, err := venue.Quote(ctx, cfg, src, dst, new(uint256.Int).Set(amountIn))
	if err != nil {
		return QuoteResult{Err: err}
	}
	if q.AmountOut == nil {
		q.AmountOut = new(uint256.Int)
	}
	if q.PriceImpactBps == nil {
		q.PriceImpactBps = new(uint256.Int)
	}
	return QuoteResult{Quote: q}
}

func inactiveQuote(kind VenueKind) Quote {
	return Quote{
		VenueKind:      kind,
		VenueName:      kind.String(),
		AmountOut:      new(uint256.Int),
		PriceImpactBps: new(uint256.Int),
		IsActive:       false,
	}
}
