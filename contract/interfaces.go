// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the execution environment a stateful precompile
// runs against: keyed storage, native balances, logs and journaled snapshots.
package contract

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/parsdao/swaprouter/precompileconfig"
)

// StateDB is the subset of EVM state a precompile may read and write.
// Snapshot/RevertToSnapshot provide all-or-nothing execution.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash

	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int
	SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int

	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)

	AddLog(log *ethtypes.Log)
	Logs() []*ethtypes.Log

	Snapshot() int
	RevertToSnapshot(id int)
}

// BlockContext exposes the block the call executes in.
type BlockContext interface {
	Number() *big.Int
	Timestamp() uint64
	// Difficulty is the block entropy value (prevrandao on post-merge chains).
	Difficulty() *big.Int
}

// ConfigurationBlockContext is the block context available while applying
// an upgrade config.
type ConfigurationBlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// AccessibleState is handed to Run on every precompile call.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
}

// StatefulPrecompiledContract is implemented by every precompile.
type StatefulPrecompiledContract interface {
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}

// Configurator builds and applies a precompile's config.
type Configurator interface {
	MakeConfig() precompileconfig.Config
	Configure(
		chainConfig precompileconfig.ChainConfig,
		cfg precompileconfig.Config,
		state StateDB,
		blockContext ConfigurationBlockContext,
	) error
}

// NewAccessibleState pairs a StateDB with a block context.
func NewAccessibleState(stateDB StateDB, block BlockContext) AccessibleState {
	return &accessibleState{stateDB: stateDB, block: block}
}

type accessibleState struct {
	stateDB StateDB
	block   BlockContext
}

func (a *accessibleState) GetStateDB() StateDB           { return a.stateDB }
func (a *accessibleState) GetBlockContext() BlockContext { return a.block }

// Block is a static BlockContext.
type Block struct {
	BlockNumber *big.Int
	Time        uint64
	Entropy     *big.Int
}

func (b *Block) Number() *big.Int {
	if b.BlockNumber == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.BlockNumber)
}

func (b *Block) Timestamp() uint64 { return b.Time }

func (b *Block) Difficulty() *big.Int {
	if b.Entropy == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.Entropy)
}
