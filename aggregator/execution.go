// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
)

// validateRequest checks the request fields against the execution time.
func validateRequest(req SwapRequest, now uint64) error {
	if req.Deadline < now {
		return fmt.Errorf("%w: deadline %d is before %d", ErrExpired, req.Deadline, now)
	}
	return validatePair(req.SrcAsset, req.DstAsset, req.AmountIn)
}

// ExecuteSwap swaps on req.PreferredVenue and sends the output to the
// recipient. Protected callers go through the protection routine first.
func (e *Engine) ExecuteSwap(env contract.AccessibleState, caller common.Address, req SwapRequest) (*uint256.Int, error) {
	state := env.GetStateDB()
	var (
		amountOut *uint256.Int
		rounds    uint64
	)
	err := e.mutate(state, entryExecuteSwap, func() error {
		s := e.store(state)
		if s.paused() {
			return ErrSystemPaused
		}
		if s.protected(caller) {
			rounds = e.protect(env, caller)
		}
		out, err := e.swap(env, caller, req, entryExecuteSwap)
		amountOut = out
		return err
	})
	if err != nil {
		return nil, err
	}
	if rounds > 0 {
		e.metrics.recordProtection(rounds)
	}
	return amountOut, nil
}

// SwapWithBestQuote executes on the venue with the best quote.
func (e *Engine) SwapWithBestQuote(
	env contract.AccessibleState,
	caller common.Address,
	src, dst common.Address,
	amountIn *uint256.Int,
	minAmountOut *uint256.Int,
	recipient common.Address,
	deadline uint64,
) (*uint256.Int, error) {
	state := env.GetStateDB()
	var (
		amountOut *uint256.Int
		rounds    uint64
	)
	err := e.mutate(state, entrySwapWithBestQuote, func() error {
		s := e.store(state)
		if s.paused() {
			return ErrSystemPaused
		}
		req := SwapRequest{
			SrcAsset:     src,
			DstAsset:     dst,
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
			Recipient:    recipient,
			Deadline:     deadline,
		}
		if err := validateRequest(req, env.GetBlockContext().Timestamp()); err != nil {
			return err
		}

		best, err := e.GetBestQuote(state, src, dst, amountIn)
		if err != nil {
			return err
		}
		req.PreferredVenue = best.VenueKind

		if s.protected(caller) {
			rounds = e.protect(env, caller)
		}
		out, err := e.swap(env, caller, req, entrySwapWithBestQuote)
		amountOut = out
		return err
	})
	if err != nil {
		return nil, err
	}
	if rounds > 0 {
		e.metrics.recordProtection(rounds)
	}
	return amountOut, nil
}

// swap moves funds in, runs the venue and pays out what the engine actually
// received. It runs inside mutate, so a failure at any step reverts the
// earlier ones.
func (e *Engine) swap(env contract.AccessibleState, caller common.Address, req SwapRequest, entry string) (*uint256.Int, error) {
	state := env.GetStateDB()
	s := e.store(state)

	if s.paused() {
		return nil, ErrSystemPaused
	}
	if err := validateRequest(req, env.GetBlockContext().Timestamp()); err != nil {
		return nil, err
	}
	if !req.PreferredVenue.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVenue, req.PreferredVenue)
	}
	venue := e.venues[req.PreferredVenue]
	if venue == nil {
		return nil, fmt.Errorf("%w: no strategy for %s", ErrUnsupportedVenue, req.PreferredVenue)
	}
	cfg := s.venueConfig(req.PreferredVenue)
	if !cfg.Active {
		return nil, fmt.Errorf("%w: %s", ErrVenueInactive, req.PreferredVenue)
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = caller
	}
	minOut := req.MinAmountOut
	if minOut == nil {
		minOut = new(uint256.Int)
		req.MinAmountOut = minOut
	}

	if err := e.custody.TransferIn(state, req.SrcAsset, caller, e.address, req.AmountIn); err != nil {
		return nil, fmt.Errorf("failed to transfer %s in: %w", req.SrcAsset.Hex(), err)
	}

	before := e.custody.BalanceOf(state, req.DstAsset, e.address)
	reported, err := venue.Execute(e.swapContext(state), cfg, req)
	if err != nil {
		return nil, fmt.Errorf("%s swap failed: %w", venue.Name(), err)
	}
	after := e.custody.BalanceOf(state, req.DstAsset, e.address)
	if after.Lt(before) {
		return nil, fmt.Errorf("%s swap reduced the engine's %s balance", venue.Name(), req.DstAsset.Hex())
	}
	amountOut := new(uint256.Int).Sub(after, before)
	if reported != nil && !reported.Eq(amountOut) {
		e.log.Warn("venue reported a different output than received",
			"venue", venue.Name(),
			"reported", reported,
			"received", amountOut,
		)
	}
	if amountOut.Lt(minOut) {
		return nil, fmt.Errorf("%w: received %s, minimum %s", ErrInsufficientOutput, amountOut, minOut)
	}

	if err := e.custody.TransferOut(state, req.DstAsset, e.address, recipient, amountOut); err != nil {
		return nil, fmt.Errorf("failed to transfer %s out: %w", req.DstAsset.Hex(), err)
	}

	if err := e.emitSwapExecuted(env, caller, req, amountOut, venue); err != nil {
		return nil, err
	}
	e.metrics.recordSwap(venue.Name(), entry)
	e.log.Info("swap executed",
		"entry", entry,
		"caller", caller,
		"venue", venue.Name(),
		"src", req.SrcAsset,
		"dst", req.DstAsset,
		"amountIn", req.AmountIn,
		"amountOut", amountOut,
		"recipient", recipient,
	)
	return amountOut, nil
}
