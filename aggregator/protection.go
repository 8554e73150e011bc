// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
)

// ExecuteProtectedSwap consumes commitment and executes req. Only the owner
// and authorized callers may use it. With PreferredVenue set to AutoSelect
// the best-scoring venue is used.
func (e *Engine) ExecuteProtectedSwap(
	env contract.AccessibleState,
	caller common.Address,
	req SwapRequest,
	commitment common.Hash,
) (*uint256.Int, error) {
	state := env.GetStateDB()
	var (
		amountOut *uint256.Int
		rounds    uint64
	)
	err := e.mutate(state, entryProtectedSwap, func() error {
		s := e.store(state)
		if !e.isPrivileged(s, caller) {
			return ErrNotAuthorized
		}
		if s.paused() {
			return ErrSystemPaused
		}
		if s.commitmentUsed(commitment) {
			return fmt.Errorf("%w: %s", ErrAlreadyConsumed, commitment.Hex())
		}
		s.markCommitmentUsed(commitment)

		rounds = e.protect(env, caller)

		if req.PreferredVenue == AutoSelect {
			if err := validateRequest(req, env.GetBlockContext().Timestamp()); err != nil {
				return err
			}
			best, err := e.GetBestQuote(state, req.SrcAsset, req.DstAsset, req.AmountIn)
			if err != nil {
				return err
			}
			req.PreferredVenue = best.VenueKind
		}

		out, err := e.swap(env, caller, req, entryProtectedSwap)
		amountOut = out
		return err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.recordCommitment()
	e.metrics.recordProtection(rounds)
	return amountOut, nil
}

// IsCommitmentUsed reports whether commitment has been consumed.
func (e *Engine) IsCommitmentUsed(state contract.StateDB, commitment common.Hash) bool {
	return e.store(state).commitmentUsed(commitment)
}

// protect runs the ordering-jitter routine for caller. The derived round
// count is only logged, and recorded by the caller once the swap succeeds:
// a single atomic call cannot yield to other transactions, so waiting
// inside it would not change ordering. Real protection needs the commit
// and the swap in separate blocks.
func (e *Engine) protect(env contract.AccessibleState, caller common.Address) uint64 {
	block := env.GetBlockContext()
	rounds := protectionRounds(block.Timestamp(), block.Difficulty(), caller)
	e.log.Debug("protection rounds derived",
		"caller", caller,
		"rounds", rounds,
		"effective", false,
	)
	return rounds
}

// protectionRounds maps (timestamp, entropy, caller) to 1..3.
func protectionRounds(timestamp uint64, difficulty *big.Int, caller common.Address) uint64 {
	var buf [32 + 32 + common.AddressLength]byte
	new(big.Int).SetUint64(timestamp).FillBytes(buf[:32])
	if difficulty != nil && difficulty.Sign() > 0 && difficulty.BitLen() <= 256 {
		difficulty.FillBytes(buf[32:64])
	}
	copy(buf[64:], caller.Bytes())

	h := new(big.Int).SetBytes(crypto.Keccak256(buf[:]))
	return h.Mod(h, big.NewInt(3)).Uint64() + 1
}

// ComputeCommitment returns the commitment a client registers for req:
// keccak256 of the ABI encoding of (caller, req, salt).
func ComputeCommitment(caller common.Address, req SwapRequest, salt common.Hash) (common.Hash, error) {
	method, ok := AggregatorABI.Methods["computeCommitment"]
	if !ok {
		return common.Hash{}, fmt.Errorf("computeCommitment missing from ABI")
	}
	packed, err := method.Inputs.Pack(caller, req.tuple(), [32]byte(salt))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack commitment: %w", err)
	}
	return common.BytesToHash(crypto.Keccak256(packed)), nil
}
