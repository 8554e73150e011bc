// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides a contract.StateDB persisted into a key-value
// database, for running precompiles outside of an EVM.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/parsdao/swaprouter/contract"
)

var _ contract.StateDB = (*StateDB)(nil)

// Key prefixes in the backing database
var (
	storagePrefix = []byte("s")
	balancePrefix = []byte("b")
	accountPrefix = []byte("a")
)

// ErrInvalidSnapshot is raised when reverting to an unknown revision.
var ErrInvalidSnapshot = errors.New("invalid snapshot id")

// StateDB buffers writes in memory on top of a database.Database.
// Writes become durable only on Commit; Snapshot/RevertToSnapshot undo
// buffered writes through a journal.
type StateDB struct {
	mu sync.Mutex

	db database.Database

	// dirty values not yet committed
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]bool

	logs []*ethtypes.Log

	journal        []journalEntry
	validRevisions []revision
	nextRevisionID int
}

type revision struct {
	id           int
	journalIndex int
}

// New creates a StateDB over db.
func New(db database.Database) *StateDB {
	return &StateDB{
		db:       db,
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]bool),
	}
}

func storageKey(addr common.Address, key common.Hash) []byte {
	k := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	k = append(k, storagePrefix...)
	k = append(k, addr.Bytes()...)
	return append(k, key.Bytes()...)
}

func balanceKey(addr common.Address) []byte {
	return append(append([]byte{}, balancePrefix...), addr.Bytes()...)
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr.Bytes()...)
}

// GetState returns the value of a storage slot.
func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getState(addr, key)
}

func (s *StateDB) getState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.storage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v
		}
	}
	raw, err := s.db.Get(storageKey(addr, key))
	if err != nil {
		return common.Hash{}
	}
	return common.BytesToHash(raw)
}

// SetState writes a storage slot and returns its previous value.
func (s *StateDB) SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.getState(addr, key)
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		s.storage[addr] = slots
	}
	old, dirty := slots[key]
	s.journal = append(s.journal, storageChange{addr: addr, key: key, prev: old, dirty: dirty})
	slots[key] = value
	return prev
}

// GetBalance returns the native balance of addr.
func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBalance(addr).Clone()
}

func (s *StateDB) getBalance(addr common.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal
	}
	raw, err := s.db.Get(balanceKey(addr))
	if err != nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).SetBytes(raw)
}

func (s *StateDB) setBalance(addr common.Address, bal *uint256.Int) {
	old, dirty := s.balances[addr]
	s.journal = append(s.journal, balanceChange{addr: addr, prev: old, dirty: dirty})
	s.balances[addr] = bal
}

// AddBalance credits addr and returns the previous balance.
func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.getBalance(addr).Clone()
	s.setBalance(addr, new(uint256.Int).Add(prev, amount))
	return *prev
}

// SubBalance debits addr and returns the previous balance. Callers check
// sufficiency; the balance wraps like the EVM state does.
func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.getBalance(addr).Clone()
	s.setBalance(addr, new(uint256.Int).Sub(prev, amount))
	return *prev
}

// Exist reports whether addr was created or holds state.
func (s *StateDB) Exist(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accounts[addr] {
		return true
	}
	ok, err := s.db.Has(accountKey(addr))
	return err == nil && ok
}

// CreateAccount marks addr as existing.
func (s *StateDB) CreateAccount(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accounts[addr] {
		return
	}
	s.journal = append(s.journal, createAccountChange{addr: addr})
	s.accounts[addr] = true
}

// AddLog appends a log entry.
func (s *StateDB) AddLog(log *ethtypes.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Index = uint(len(s.logs))
	s.journal = append(s.journal, addLogChange{})
	s.logs = append(s.logs, log)
}

// Logs returns the logs emitted since the last Commit.
func (s *StateDB) Logs() []*ethtypes.Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ethtypes.Log(nil), s.logs...)
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id: id, journalIndex: len(s.journal)})
	return id
}

// RevertToSnapshot undoes every change made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("%w: revision id %v cannot be reverted", ErrInvalidSnapshot, revid))
	}
	snapshot := s.validRevisions[idx].journalIndex

	for i := len(s.journal) - 1; i >= snapshot; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:snapshot]
	s.validRevisions = s.validRevisions[:idx]
}

// Commit writes every buffered change to the database in one batch and
// clears the journal and logs.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	for addr, slots := range s.storage {
		for key, value := range slots {
			if err := batch.Put(storageKey(addr, key), value.Bytes()); err != nil {
				return fmt.Errorf("failed to stage storage slot: %w", err)
			}
		}
	}
	for addr, bal := range s.balances {
		if err := batch.Put(balanceKey(addr), bal.Bytes()); err != nil {
			return fmt.Errorf("failed to stage balance: %w", err)
		}
	}
	for addr := range s.accounts {
		if err := batch.Put(accountKey(addr), []byte{1}); err != nil {
			return fmt.Errorf("failed to stage account: %w", err)
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to write state batch: %w", err)
	}

	s.storage = make(map[common.Address]map[common.Hash]common.Hash)
	s.balances = make(map[common.Address]*uint256.Int)
	s.accounts = make(map[common.Address]bool)
	s.logs = nil
	s.journal = nil
	s.validRevisions = nil
	return nil
}

// journalEntry is a modification that can be undone.
type journalEntry interface {
	revert(s *StateDB)
}

type storageChange struct {
	addr  common.Address
	key   common.Hash
	prev  common.Hash
	dirty bool
}

func (c storageChange) revert(s *StateDB) {
	if c.dirty {
		s.storage[c.addr][c.key] = c.prev
		return
	}
	delete(s.storage[c.addr], c.key)
}

type balanceChange struct {
	addr  common.Address
	prev  *uint256.Int
	dirty bool
}

func (c balanceChange) revert(s *StateDB) {
	if c.dirty {
		s.balances[c.addr] = c.prev
		return
	}
	delete(s.balances, c.addr)
}

type createAccountChange struct {
	addr common.Address
}

func (c createAccountChange) revert(s *StateDB) {
	delete(s.accounts, c.addr)
}

type addLogChange struct{}

func (addLogChange) revert(s *StateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}
