// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package custody moves fungible assets between accounts. ERC20-style assets
// keep balances and allowances in storage slots under the asset address; the
// native asset (zero address) uses account balances.
package custody

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/zeebo/blake3"

	"github.com/parsdao/swaprouter/contract"
)

// NativeAsset identifies the chain's native coin.
var NativeAsset = common.Address{}

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroRecipient         = errors.New("transfer to zero address")
	ErrNativeApproval        = errors.New("native asset has no allowances")
)

// Storage key prefixes
var (
	balancePrefix   = []byte("custody/balance")
	allowancePrefix = []byte("custody/allowance")
	supplyPrefix    = []byte("custody/supply")
)

// Custody is what the swap engine needs from an asset ledger.
type Custody interface {
	BalanceOf(state contract.StateDB, asset, owner common.Address) *uint256.Int
	// TransferIn pulls amount of asset from `from` into `to`, spending the
	// allowance `from` granted to `to`.
	TransferIn(state contract.StateDB, asset, from, to common.Address, amount *uint256.Int) error
	// TransferOut sends amount of asset held by `from` to `to`.
	TransferOut(state contract.StateDB, asset, from, to common.Address, amount *uint256.Int) error
	Approve(state contract.StateDB, asset, owner, spender common.Address, amount *uint256.Int) error
}

// TransferHook runs after a transfer of the asset it is registered for has
// been applied. A non-nil error fails the transfer. Hooks may call back into
// arbitrary code, including the caller of the transfer.
type TransferHook func(state contract.StateDB, asset, from, to common.Address, amount *uint256.Int) error

var _ Custody = (*Ledger)(nil)

// Ledger is the storage-backed Custody implementation.
type Ledger struct {
	mu    sync.RWMutex
	hooks map[common.Address]TransferHook
}

// NewLedger returns a ledger with no transfer hooks.
func NewLedger() *Ledger {
	return &Ledger{hooks: make(map[common.Address]TransferHook)}
}

// SetHook installs (or with nil, removes) the transfer hook of asset.
func (l *Ledger) SetHook(asset common.Address, hook TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, asset)
		return
	}
	l.hooks[asset] = hook
}

func (l *Ledger) hook(asset common.Address) TransferHook {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hooks[asset]
}

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, part := range id {
		h.Write(part)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func readUint(state contract.StateDB, asset common.Address, key common.Hash) *uint256.Int {
	v := state.GetState(asset, key)
	return new(uint256.Int).SetBytes(v[:])
}

func writeUint(state contract.StateDB, asset common.Address, key common.Hash, v *uint256.Int) {
	state.SetState(asset, key, common.Hash(v.Bytes32()))
}

// BalanceOf returns owner's balance of asset.
func (l *Ledger) BalanceOf(state contract.StateDB, asset, owner common.Address) *uint256.Int {
	if asset == NativeAsset {
		return state.GetBalance(owner)
	}
	return readUint(state, asset, makeStorageKey(balancePrefix, owner.Bytes()))
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(state contract.StateDB, asset, owner, spender common.Address) *uint256.Int {
	return readUint(state, asset, makeStorageKey(allowancePrefix, owner.Bytes(), spender.Bytes()))
}

// TotalSupply returns the minted supply of an ERC20-style asset.
func (l *Ledger) TotalSupply(state contract.StateDB, asset common.Address) *uint256.Int {
	return readUint(state, asset, makeStorageKey(supplyPrefix))
}

// Approve sets the allowance of spender over owner's asset balance.
func (l *Ledger) Approve(state contract.StateDB, asset, owner, spender common.Address, amount *uint256.Int) error {
	if asset == NativeAsset {
		return ErrNativeApproval
	}
	writeUint(state, asset, makeStorageKey(allowancePrefix, owner.Bytes(), spender.Bytes()), amount)
	return nil
}

// Mint credits amount of an ERC20-style asset to `to`.
func (l *Ledger) Mint(state contract.StateDB, asset, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroRecipient
	}
	if asset == NativeAsset {
		state.AddBalance(to, amount, tracing.BalanceChangeUnspecified)
		return nil
	}
	supplyKey := makeStorageKey(supplyPrefix)
	supply, overflow := new(uint256.Int).AddOverflow(readUint(state, asset, supplyKey), amount)
	if overflow {
		return fmt.Errorf("mint overflows supply of %s", asset.Hex())
	}
	writeUint(state, asset, supplyKey, supply)

	balKey := makeStorageKey(balancePrefix, to.Bytes())
	writeUint(state, asset, balKey, new(uint256.Int).Add(readUint(state, asset, balKey), amount))
	return nil
}

// Transfer moves amount of asset from `from` to `to` and runs the asset's hook.
func (l *Ledger) Transfer(state contract.StateDB, asset, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroRecipient
	}

	if asset == NativeAsset {
		if state.GetBalance(from).Lt(amount) {
			return fmt.Errorf("%w: %s holds %s native, needs %s",
				ErrInsufficientBalance, from.Hex(), state.GetBalance(from), amount)
		}
		state.SubBalance(from, amount, tracing.BalanceChangeTransfer)
		state.AddBalance(to, amount, tracing.BalanceChangeTransfer)
	} else {
		fromKey := makeStorageKey(balancePrefix, from.Bytes())
		fromBal := readUint(state, asset, fromKey)
		if fromBal.Lt(amount) {
			return fmt.Errorf("%w: %s holds %s of %s, needs %s",
				ErrInsufficientBalance, from.Hex(), fromBal, asset.Hex(), amount)
		}
		writeUint(state, asset, fromKey, new(uint256.Int).Sub(fromBal, amount))

		toKey := makeStorageKey(balancePrefix, to.Bytes())
		writeUint(state, asset, toKey, new(uint256.Int).Add(readUint(state, asset, toKey), amount))
	}

	if hook := l.hook(asset); hook != nil {
		if err := hook(state, asset, from, to, amount); err != nil {
			return fmt.Errorf("transfer hook of %s: %w", asset.Hex(), err)
		}
	}
	return nil
}

// TransferFrom moves owner's funds on behalf of spender, spending allowance.
func (l *Ledger) TransferFrom(state contract.StateDB, asset, spender, from, to common.Address, amount *uint256.Int) error {
	if asset != NativeAsset && spender != from {
		allowKey := makeStorageKey(allowancePrefix, from.Bytes(), spender.Bytes())
		allowance := readUint(state, asset, allowKey)
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: %s may spend %s of %s, needs %s",
				ErrInsufficientAllowance, spender.Hex(), allowance, asset.Hex(), amount)
		}
		writeUint(state, asset, allowKey, new(uint256.Int).Sub(allowance, amount))
	}
	return l.Transfer(state, asset, from, to, amount)
}

// TransferIn pulls funds from `from` into `to` using the allowance granted to `to`.
func (l *Ledger) TransferIn(state contract.StateDB, asset, from, to common.Address, amount *uint256.Int) error {
	return l.TransferFrom(state, asset, to, from, to, amount)
}

// TransferOut sends funds held by `from`.
func (l *Ledger) TransferOut(state contract.StateDB, asset, from, to common.Address, amount *uint256.Int) error {
	return l.Transfer(state, asset, from, to, amount)
}
